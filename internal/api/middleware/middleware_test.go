package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newRouter(logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Use(RequestLogger(logger))
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("tea"))
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return r
}

func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		path      string
		wantLevel string
	}{
		{"/items/42", "level=WARN"},
		{"/boom", "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			rec := httptest.NewRecorder()
			newRouter(logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("лог %q не содержит %s", out, tt.wantLevel)
			}
			if !strings.Contains(out, "path="+tt.path) {
				t.Errorf("лог %q не содержит путь", out)
			}
		})
	}
}

func TestRequestLogger_Bytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rec := httptest.NewRecorder()
	newRouter(logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/1", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("статус = %d, ожидался 418", rec.Code)
	}
	if !strings.Contains(buf.String(), "bytes=3") {
		t.Errorf("лог %q не содержит размер ответа", buf.String())
	}
}

func TestRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/items/{id}", func(_ http.ResponseWriter, req *http.Request) {
		got = routePattern(req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/abc", nil))
	if got != "/items/{id}" {
		t.Errorf("routePattern() = %q, ожидался /items/{id}", got)
	}

	if p := routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); p != "other" {
		t.Errorf("routePattern() без chi = %q, ожидался other", p)
	}
}
