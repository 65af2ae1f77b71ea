package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	initLogger(&buf, "medibook", "production", "info")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	LoggerFromContext(context.Background()).Info().Str("doctor_id", "7").Msg("availability loaded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "medibook", entry["service"])
	assert.Equal(t, "7", entry["doctor_id"])
	assert.Equal(t, "availability loaded", entry["message"])
}

func TestInitLogger_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	initLogger(&buf, "medibook", "production", "warn")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	GetLogger().Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	GetLogger().Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
