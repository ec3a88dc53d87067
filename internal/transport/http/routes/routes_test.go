package routes_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davinaleong/project-pulse-auth/internal/infra/config"
	httproutes "github.com/davinaleong/project-pulse-auth/internal/transport/http/routes"
)

type fakeChecker struct {
	err error
}

func (f fakeChecker) Ping(context.Context) error        { return f.err }
func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func testDependencies() httproutes.Dependencies {
	logger, _ := zap.NewDevelopment()
	return httproutes.Dependencies{
		Config: &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger: logger,
	}
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(testDependencies())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestReadinessEndpointReportsFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)

	deps := testDependencies()
	deps.Database = fakeChecker{}
	deps.Cache = fakeChecker{err: errors.New("connection refused")}

	r := httproutes.Register(deps)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/readyz", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readiness payload: %v", err)
	}
	if body.Checks["database"] != "ok" {
		t.Fatalf("database check = %q, want ok", body.Checks["database"])
	}
	if body.Checks["redis"] == "ok" {
		t.Fatal("redis check must report the failure")
	}
}

func TestAdminRoutesRequireAuthentication(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(testDependencies())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPatch, "/api/v1/admin/accounts/account-1/status", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(testDependencies())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}
