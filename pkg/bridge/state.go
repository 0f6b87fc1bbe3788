package bridge

// State is the loop's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateProcessingBatch
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateProcessingBatch:
		return "processing_batch"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}
