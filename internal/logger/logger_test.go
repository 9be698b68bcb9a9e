package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAttrsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json", slog.LevelInfo)

	ctx := Ctx(context.Background(), slog.String("run_id", "r1"))
	ctx = Ctx(ctx, slog.String("target", "golang"))
	l.With("mode", "mock").InfoContext(ctx, "fetched", "records", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "r1", line["run_id"])
	assert.Equal(t, "golang", line["target"])
	assert.Equal(t, "mock", line["mode"])
	assert.Equal(t, float64(3), line["records"])
}

func TestCtxDoesNotLeakBetweenBranches(t *testing.T) {
	base := Ctx(context.Background(), slog.String("run_id", "r1"))
	a := Ctx(base, slog.String("target", "a"))
	_ = Ctx(base, slog.String("target", "b"))

	attrs := a.Value(attrKey).([]slog.Attr)
	require.Len(t, attrs, 2)
	assert.Equal(t, "a", attrs[1].Value.String())
}

func TestTextFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "text", slog.LevelWarn)
	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "msg=shown"))
}
