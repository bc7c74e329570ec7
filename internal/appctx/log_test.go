package appctx

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggerMiddlewareInjectsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var inner http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
		l := GetLogger(r.Context())
		l.Info("handled")
		w.WriteHeader(http.StatusOK)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/verify/credits", nil)
	req.Header.Set("X-Request-Id", "req-123")
	w := httptest.NewRecorder()

	LoggerMiddleware(logger)(inner).ServeHTTP(w, req)

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-123"`) {
		t.Errorf("expected request_id attr in log output, got: %s", out)
	}
	if !strings.Contains(out, `"path":"/api/verify/credits"`) {
		t.Errorf("expected path attr in log output, got: %s", out)
	}
}

func TestLoggerMiddlewareGeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var inner http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
		GetLogger(r.Context()).Info("handled")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	LoggerMiddleware(logger)(inner).ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"request_id":"`) {
		t.Errorf("expected generated request_id, got: %s", buf.String())
	}
}

func TestGetLoggerFallsBack(t *testing.T) {
	if GetLogger(context.Background()) == nil {
		t.Error("expected fallback logger, got nil")
	}
}
