package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	mu.Lock()
	output = buf
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		output = os.Stderr
		mu.Unlock()
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})
	return buf
}

func lastJSONLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var event map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &event))
	return event
}

func TestInitJSONSetsLevelAndComponent(t *testing.T) {
	buf := captureOutput(t)

	Init(Config{Format: "json", Level: "debug", Component: "billing"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	log.Debug().Str("provider", "paddle").Msg("hello")
	event := lastJSONLine(t, buf)
	assert.Equal(t, "billing", event["component"])
	assert.Equal(t, "paddle", event["provider"])
	assert.Equal(t, "hello", event["message"])
}

func TestInitConsoleFormat(t *testing.T) {
	buf := captureOutput(t)

	Init(Config{Format: "console", Level: "info"})
	log.Info().Msg("console line")

	out := buf.String()
	assert.Contains(t, out, "console line")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}

func TestAutoFormatFallsBackToJSONForNonTerminals(t *testing.T) {
	buf := captureOutput(t)

	Init(Config{Format: "auto"})
	log.Info().Msg("auto")
	assert.Equal(t, "auto", lastJSONLine(t, buf)["message"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestWithRequestID(t *testing.T) {
	buf := captureOutput(t)
	Init(Config{Format: "json"})

	ctx, id := WithRequestID(context.Background(), "")
	assert.NotEmpty(t, id)
	assert.Equal(t, id, RequestID(ctx))

	log.Ctx(ctx).Info().Msg("scoped")
	assert.Equal(t, id, lastJSONLine(t, buf)["request_id"])

	ctx, id = WithRequestID(ctx, "  req-1 ")
	assert.Equal(t, "req-1", id)
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.TODO()))
}

func TestContextWithoutLoggerUsesGlobal(t *testing.T) {
	buf := captureOutput(t)
	Init(Config{Format: "json", Component: "api"})

	log.Ctx(context.Background()).Info().Msg("fallback")
	assert.Equal(t, "api", lastJSONLine(t, buf)["component"])
}
