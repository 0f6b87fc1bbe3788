package bus

import "time"

// EventKind classifies an operator-facing event.
type EventKind string

const (
	KindStarted       EventKind = "started"
	KindHalted        EventKind = "halted"
	KindUndelivered   EventKind = "undelivered"
	KindComposeFailed EventKind = "compose_failed"
)

type Event struct {
	Kind    EventKind         `json:"kind"`
	PostID  string            `json:"post_id,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Time    time.Time         `json:"time"`
}
