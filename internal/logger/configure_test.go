package logger

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/droplet-assay-mcp/internal/config"
)

func TestConfigureWriter_JSON(t *testing.T) {
	saved := log.Logger
	defer func() { log.Logger = saved }()

	var buf bytes.Buffer
	ConfigureWriter(&config.Env{LogLevel: "warn", LogFormat: "json"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("evt.name", "test.event").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "test.event", entry["evt.name"])
	assert.Equal(t, "shown", entry["message"])
}

func TestConfigureWriter_Console(t *testing.T) {
	saved := log.Logger
	defer func() { log.Logger = saved }()

	var buf bytes.Buffer
	ConfigureWriter(&config.Env{LogLevel: "bogus", LogFormat: "console"}, &buf)

	log.Debug().Msg("hidden")
	log.Info().Msg("hello")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "hello")
}
