package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/clinic-reports/internal/observability"
	"github.com/odyssey-erp/clinic-reports/internal/records"
	"github.com/odyssey-erp/clinic-reports/internal/reports"
	reportshttp "github.com/odyssey-erp/clinic-reports/internal/reports/http"
)

func newTestRouter(checks map[string]ReadinessCheck) (http.Handler, *observability.Metrics) {
	metrics := observability.NewMetrics()
	audit := reports.NewAuditLog(5)
	svc := reports.NewService(records.StaticSource{}, nil, reports.NewAggregator(audit, metrics))
	handler := reportshttp.NewHandler(nil, svc, audit, nil)
	router := NewRouter(RouterParams{
		Config:        &Config{AppEnv: "test"},
		ReportHandler: handler,
		Metrics:       metrics,
		Checks:        checks,
	})
	return router, metrics
}

func TestRouterHealthAndSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
}

func TestRouterReadinessReportsFailingCheck(t *testing.T) {
	router, _ := newTestRouter(map[string]ReadinessCheck{
		"redis":    func(ctx context.Context) error { return nil },
		"postgres": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, map[string]string{"redis": "ok", "postgres": "down"}, body)
}

func TestRouterServesReportsAndMetrics(t *testing.T) {
	router, _ := newTestRouter(nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/summary", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.True(t, strings.Contains(body, `clinic_http_requests_total{code="200",route="/reports/summary"} 1`), body)
	require.True(t, strings.Contains(body, `clinic_report_calculations_total{type="summary"} 1`), body)
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("report served", "route", "/reports/summary")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &line))
	require.Equal(t, "production", line["env"])
	require.Equal(t, "/reports/summary", line["route"])

	buf.Reset()
	newLogger(&Config{AppEnv: "development"}, &buf).Debug("visible")
	require.Contains(t, buf.String(), "visible")
}
