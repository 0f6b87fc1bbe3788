package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// KindTextNote is the NIP-01 short text note.
const KindTextNote = 1

// Tag is one structured metadata entry, e.g. ["client", "x-nostr-bridge"].
type Tag []string

type Tags []Tag

// Event is a NIP-01 event. Once signed its id is derived from every other
// field, so any mutation invalidates it.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Serialize renders the canonical id preimage
// [0,<pubkey>,<created_at>,<kind>,<tags>,<content>].
func (e *Event) Serialize() []byte {
	buf := make([]byte, 0, 128+len(e.Content))
	buf = append(buf, `[0,"`...)
	buf = append(buf, e.PubKey...)
	buf = append(buf, `",`...)
	buf = strconv.AppendInt(buf, e.CreatedAt, 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(e.Kind), 10)
	buf = append(buf, ",["...)
	for i, tag := range e.Tags {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '[')
		for j, v := range tag {
			if j > 0 {
				buf = append(buf, ',')
			}
			buf = appendQuoted(buf, v)
		}
		buf = append(buf, ']')
	}
	buf = append(buf, "],"...)
	buf = appendQuoted(buf, e.Content)
	buf = append(buf, ']')
	return buf
}

// ComputeID returns the hex sha256 of Serialize.
func (e *Event) ComputeID() string {
	sum := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(sum[:])
}

// Sign binds the event to keys: it sets PubKey, ID and Sig.
func (e *Event) Sign(keys *Keys) error {
	if e.Tags == nil {
		e.Tags = Tags{}
	}
	e.PubKey = keys.PublicKey()

	sum := sha256.Sum256(e.Serialize())
	sig, err := schnorr.Sign(keys.secret, sum[:])
	if err != nil {
		return fmt.Errorf("signing event: %w", err)
	}

	e.ID = hex.EncodeToString(sum[:])
	e.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// Verify checks that ID matches the content and Sig is valid for PubKey.
func (e *Event) Verify() error {
	sum := sha256.Sum256(e.Serialize())
	if hex.EncodeToString(sum[:]) != e.ID {
		return fmt.Errorf("%w: id does not match content", ErrInvalidSignature)
	}

	pkRaw, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return fmt.Errorf("%w: pubkey: %v", ErrInvalidSignature, err)
	}
	pk, err := schnorr.ParsePubKey(pkRaw)
	if err != nil {
		return fmt.Errorf("%w: pubkey: %v", ErrInvalidSignature, err)
	}

	sigRaw, err := hex.DecodeString(e.Sig)
	if err != nil {
		return fmt.Errorf("%w: sig: %v", ErrInvalidSignature, err)
	}
	sig, err := schnorr.ParseSignature(sigRaw)
	if err != nil {
		return fmt.Errorf("%w: sig: %v", ErrInvalidSignature, err)
	}

	if !sig.Verify(sum[:], pk) {
		return ErrInvalidSignature
	}
	return nil
}

// TagValues returns the second element of every tag named key.
func (e *Event) TagValues(key string) []string {
	var out []string
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == key {
			out = append(out, t[1])
		}
	}
	return out
}

// appendQuoted applies the NIP-01 escaping rules, which differ from
// encoding/json (no HTML or U+2028 escapes).
func appendQuoted(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		default:
			if c < 0x20 {
				buf = append(buf, fmt.Sprintf(`\u%04x`, c)...)
				continue
			}
			buf = append(buf, c)
		}
	}
	return append(buf, '"')
}
