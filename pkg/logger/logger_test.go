package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("settle-cli", &buf, LevelDebug)

	log.Info("Settlement selected", map[string]interface{}{
		"strategy":     "largest_difference",
		"transactions": 3,
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "settle-cli", entry["service"])
	assert.Equal(t, "Settlement selected", entry["message"])
	assert.Equal(t, "largest_difference", entry["strategy"])
	assert.EqualValues(t, 3, entry["transactions"])
}

func TestJSONLogger_FiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("settle-cli", &buf, LevelWarn)

	log.Debug("dropped", nil)
	log.Info("dropped", nil)
	log.Warn("kept", nil)
	log.Error("kept", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestJSONLogger_FatalExits(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("settle-cli", &buf, LevelInfo).(*jsonLogger)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("audit failed", nil)

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), `"level":"fatal"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
