package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoCF_WritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: INFO, Output: &buf})
	t.Cleanup(func() { Configure(Options{Level: INFO}) })

	InfoCF("publisher", "Relay accepted event", map[string]any{"relay": "wss://nos.lol"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "publisher", line["component"])
	assert.Equal(t, "Relay accepted event", line["message"])
	assert.Equal(t, "wss://nos.lol", line["relay"])
}

func TestSetLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: INFO, Output: &buf})
	t.Cleanup(func() { Configure(Options{Level: INFO}) })

	DebugCF("bridge", "hidden", nil)
	assert.Empty(t, buf.String())

	SetLevel(DEBUG)
	DebugCF("bridge", "visible", nil)
	assert.True(t, strings.Contains(buf.String(), "visible"))
}
