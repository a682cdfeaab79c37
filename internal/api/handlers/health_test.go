package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthLive(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}
	var resp healthLiveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if resp.Status != "ok" || resp.Service != serviceName {
		t.Errorf("ответ = %+v", resp)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     []NamedChecker
		wantCode   int
		wantStatus string
	}{
		{
			name:       "все ok",
			checks:     []NamedChecker{{Name: "postgresql", Checker: StaticChecker{Status: "ok"}}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "degraded",
			checks: []NamedChecker{
				{Name: "postgresql", Checker: StaticChecker{Status: "ok"}},
				{Name: "scheduler", Checker: StaticChecker{Status: "degraded", Message: "отстаёт"}},
			},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name:       "не инициализирован",
			checks:     []NamedChecker{{Name: "postgresql"}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
		},
		{
			name:       "без проверок",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.checks...).HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantCode)
			}
			var resp healthReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("ошибка декодирования ответа: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, ожидался %q", resp.Status, tt.wantStatus)
			}
			if len(resp.Checks) != len(tt.checks) {
				t.Errorf("checks = %v", resp.Checks)
			}
		})
	}
}

// mockChecker — проверка готовности с подменяемым поведением.
type mockChecker struct {
	checkReadyFn func(ctx context.Context) (string, string)
}

func (m *mockChecker) CheckReady(ctx context.Context) (string, string) {
	return m.checkReadyFn(ctx)
}

type ctxKey struct{}

func TestHealthReady_RequestContext(t *testing.T) {
	var got any
	checker := &mockChecker{checkReadyFn: func(ctx context.Context) (string, string) {
		got = ctx.Value(ctxKey{})
		if ctx.Err() != nil {
			return "fail", ctx.Err().Error()
		}
		return "ok", ""
	}}

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(context.WithValue(req.Context(), ctxKey{}, "ready-request"))
	rec := httptest.NewRecorder()
	NewHealthHandler(NamedChecker{Name: "postgresql", Checker: checker}).HealthReady(rec, req)

	if got != "ready-request" {
		t.Errorf("проверка получила значение контекста %v, ожидался контекст запроса", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("статус = %d, ожидался 200", rec.Code)
	}

	// Запрос отменён клиентом: проверка видит отмену.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec = httptest.NewRecorder()
	NewHealthHandler(NamedChecker{Name: "postgresql", Checker: checker}).
		HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("статус при отменённом запросе = %d, ожидался 503", rec.Code)
	}
}

func TestGetMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().GetMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("ответ /metrics не содержит стандартных метрик Go")
	}
}
