package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"budgettracker/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONInRelease(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	l := initWithWriter(config.LogConfig{Level: "info"}, "release", &buf)
	l.Info("hello", FieldUserID, 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, float64(7), entry[FieldUserID])
}

func TestInit_LevelFilter(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	l := initWithWriter(config.LogConfig{Level: "warn", Format: "text"}, "debug", &buf)
	l.Info("hidden")
	assert.Empty(t, buf.String())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestComponentAndContext(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	initWithWriter(config.LogConfig{Format: "json"}, "debug", &buf)

	reqLogger := Component(ComponentHTTP).With(FieldRequestID, "req-1")
	ctx := IntoContext(context.Background(), reqLogger)

	l := FromContext(ctx, Component(ComponentSummary))
	l.Info("generate")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[FieldRequestID])

	// 没有请求 logger 时使用 fallback
	fb := Component(ComponentAI)
	assert.Same(t, fb, FromContext(context.Background(), fb))
	assert.Equal(t, ComponentApp, FromContext(context.Background(), nil).Name())
}
