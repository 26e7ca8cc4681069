package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltersAndComponentField(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(Config{Level: "warn"}, &buf), "engine")

	log.Info().Msg("dropped")
	log.Warn().Str("class", "validation").Msg("rejected")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "validation", entry["class"])
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "loud"}, &buf)
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
}
