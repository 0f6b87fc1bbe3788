// Package nostr holds the Nostr primitives the bridge needs: bech32 key
// material, NIP-01 events and BIP-340 signatures over their ids.
package nostr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

var (
	ErrInvalidKey       = errors.New("invalid nostr key")
	ErrInvalidSignature = errors.New("invalid event signature")
)

const (
	hrpSecret = "nsec"
	hrpPublic = "npub"
)

// Keys is the bridge's long-term signing identity.
type Keys struct {
	secret *btcec.PrivateKey
	public string // x-only, hex
}

// ParseSecret accepts an nsec1 bech32 string or a 64 character hex secret.
func ParseSecret(s string) (*Keys, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidKey)
	}

	var raw []byte
	if strings.HasPrefix(s, hrpSecret+"1") {
		data, err := decodeBech32(hrpSecret, s)
		if err != nil {
			return nil, err
		}
		raw = data
	} else {
		data, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: not nsec or hex", ErrInvalidKey)
		}
		raw = data
	}

	if len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: secret must be %d bytes, got %d", ErrInvalidKey, btcec.PrivKeyBytesLen, len(raw))
	}
	return keysFromBytes(raw)
}

// GenerateKeys creates a fresh random identity.
func GenerateKeys() (*Keys, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return keysFromBytes(priv.Serialize())
}

func keysFromBytes(raw []byte) (*Keys, error) {
	priv, pub := btcec.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero secret", ErrInvalidKey)
	}
	return &Keys{
		secret: priv,
		public: hex.EncodeToString(schnorr.SerializePubKey(pub)),
	}, nil
}

// PublicKey returns the x-only public key in hex, as used in event pubkey fields.
func (k *Keys) PublicKey() string {
	return k.public
}

// Npub returns the bech32 public key.
func (k *Keys) Npub() string {
	raw, _ := hex.DecodeString(k.public)
	s, _ := encodeBech32(hrpPublic, raw)
	return s
}

// Nsec returns the bech32 secret key.
func (k *Keys) Nsec() string {
	s, _ := encodeBech32(hrpSecret, k.secret.Serialize())
	return s
}

// DecodeNpub returns the hex public key for an npub1 string.
func DecodeNpub(s string) (string, error) {
	raw, err := decodeBech32(hrpPublic, strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	if len(raw) != schnorr.PubKeyBytesLen {
		return "", fmt.Errorf("%w: public key must be %d bytes", ErrInvalidKey, schnorr.PubKeyBytesLen)
	}
	return hex.EncodeToString(raw), nil
}

func decodeBech32(wantHRP, s string) ([]byte, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if hrp != wantHRP {
		return nil, fmt.Errorf("%w: expected %s prefix, got %s", ErrInvalidKey, wantHRP, hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return raw, nil
}

func encodeBech32(hrp string, raw []byte) (string, error) {
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, data)
}
