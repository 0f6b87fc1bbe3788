package key

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/xnostr/pkg/nostr"
)

func TestNewKeyCommand(t *testing.T) {
	cmd := NewKeyCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "key", cmd.Use)
	assert.True(t, cmd.HasSubCommands())

	inspectCmd, _, err := cmd.Find([]string{"inspect"})
	require.NoError(t, err)
	assert.Equal(t, "inspect", inspectCmd.Use)
	assert.NotNil(t, inspectCmd.RunE)
}

func TestInspect(t *testing.T) {
	keys, err := nostr.GenerateKeys()
	require.NoError(t, err)

	cmd := NewKeyCommand()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(keys.Nsec() + "\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"inspect"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "npub:   "+keys.Npub())
	assert.Contains(t, out.String(), "pubkey: "+keys.PublicKey())
}

func TestInspect_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no input", "", "no input received"},
		{"blank line", "   \n", "cannot be empty"},
		{"bad npub", "npub1qqqq\n", "invalid nostr key"},
		{"garbage", "nsec1notakey\n", "invalid nostr key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := inspect(strings.NewReader(tt.input), &out)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInspect_AcceptsHex(t *testing.T) {
	var out bytes.Buffer
	secret := strings.Repeat("01", 32)
	require.NoError(t, inspect(strings.NewReader(secret), &out))
	assert.Contains(t, out.String(), "npub1")
}

func TestInspect_AcceptsNpub(t *testing.T) {
	keys, err := nostr.GenerateKeys()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, inspect(strings.NewReader(keys.Npub()+"\n"), &out))
	assert.Contains(t, out.String(), "npub:   "+keys.Npub())
	assert.Contains(t, out.String(), "pubkey: "+keys.PublicKey())
}
