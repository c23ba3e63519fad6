package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestLogger_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentWorker, Output: &buf})

	l.Info("Processing pending expenses", "count", 3)
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "component=worker")
	assert.Contains(t, out, "count=3")
	assert.NotContains(t, out, "hidden")
}

func TestMiddleware_StoresRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Output: &buf})

	h := Middleware(base, func(context.Context) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "Handled")
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "request_id=req_1")
	assert.Contains(t, buf.String(), "component=http")
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, ComponentApp, l.Component())
}
