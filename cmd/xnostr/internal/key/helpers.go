package key

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tinyland-inc/xnostr/pkg/nostr"
)

// readKey prompts on w and reads one line of key material from r.
func readKey(r io.Reader, w io.Writer) (string, error) {
	fmt.Fprintln(w, "Paste the bridge nsec, a 64-char hex secret, or an npub:")
	fmt.Fprint(w, "> ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading key: %w", err)
		}
		return "", errors.New("no input received")
	}

	key := strings.TrimSpace(scanner.Text())
	if key == "" {
		return "", errors.New("key cannot be empty")
	}
	return key, nil
}

// inspect validates the key and prints its public forms. An npub only
// carries the public half.
func inspect(r io.Reader, w io.Writer) error {
	key, err := readKey(r, w)
	if err != nil {
		return err
	}

	var npub, pubkey string
	if strings.HasPrefix(key, "npub1") {
		pubkey, err = nostr.DecodeNpub(key)
		if err != nil {
			return err
		}
		npub = key
	} else {
		keys, err := nostr.ParseSecret(key)
		if err != nil {
			return err
		}
		npub, pubkey = keys.Npub(), keys.PublicKey()
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "npub:   %s\n", npub)
	fmt.Fprintf(w, "pubkey: %s\n", pubkey)
	return nil
}
