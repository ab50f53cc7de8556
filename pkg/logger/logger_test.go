package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithOutput("info", "json", &buf))
	t.Cleanup(func() { log = nil })

	WithFields(Fields{"session_id": "abc"}).Info("seeded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "seeded", entry["msg"])
	assert.Equal(t, "abc", entry["session_id"])
}

func TestInitWithOutput_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithOutput("warn", "text", &buf))
	t.Cleanup(func() { log = nil })

	Infof("hidden %d", 1)
	assert.Empty(t, buf.String())

	Warnf("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}

func TestInitWithOutput_UnknownLevel(t *testing.T) {
	err := InitWithOutput("verbose", "text", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestWithFields_BeforeInit(t *testing.T) {
	log = nil
	assert.NotPanics(t, func() {
		WithFields(Fields{"k": "v"}).Info("dropped")
	})
}
