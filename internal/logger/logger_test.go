package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	assert.Len(t, a, 8)
	assert.Regexp(t, `^[0-9a-f]{8}$`, a)
	assert.NotEqual(t, a, b)
}

func TestLoggerComponentAndID(t *testing.T) {
	var buf bytes.Buffer
	Init("debug", "json")
	SetOutput(&buf)
	defer Init("info", "console")

	l := New("checker").WithID("abcd1234")
	l.Info().Int("count", 3).Msg("batch finished")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "checker", entry["component"])
	assert.Equal(t, "abcd1234", entry["id"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "batch finished", entry["message"])
	assert.EqualValues(t, 3, entry["count"])
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init("chatty", "json")
	SetOutput(&buf)
	defer Init("info", "console")

	l := New("test")
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
