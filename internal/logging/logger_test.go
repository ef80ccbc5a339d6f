package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("hidden")
	log.Info().Msg("hidden too")
	log.Warn().Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestSubLoggerTagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info").Sub("chat")

	log.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"subsystem":"chat"`)
}

func TestParseLevelDefaults(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "not-a-level")

	log.Info().Msg("default level is info")
	assert.True(t, strings.Contains(buf.String(), "default level is info"))
}
