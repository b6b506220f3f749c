package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithWriterLevels(t *testing.T) {
	tests := []struct {
		env, level string
		want       zerolog.Level
	}{
		{"production", "warn", zerolog.WarnLevel},
		{"production", "", zerolog.InfoLevel},
		{"production", "loud", zerolog.InfoLevel},
		{"development", "info", zerolog.DebugLevel},
		{"development", "trace", zerolog.TraceLevel},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			logger := SetupWithWriter(tt.env, tt.level, &bytes.Buffer{})
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestSetupWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("production", "info", &buf)
	logger.Info().Str("component", "booking").Msg("appointment booked")
	logger.Debug().Msg("dropped")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line), buf.String())
	assert.Equal(t, "coach-scheduling", line["service"])
	assert.Equal(t, "booking", line["component"])
	assert.Equal(t, "appointment booked", line["message"])
	assert.Contains(t, line, "time")
}
