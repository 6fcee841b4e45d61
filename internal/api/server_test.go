package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quantloop/core/internal/execution"
	"github.com/quantloop/core/internal/risk"
	"github.com/quantloop/core/internal/strategy"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()
	oms := execution.NewOMS(logger)
	sim := risk.NewSimulator()
	limiters := execution.NewRateLimiterRegistry()
	validator := execution.NewValidator(execution.DefaultValidatorConfig())
	riskEngine := risk.NewEngine(logger, nil)
	eng := execution.NewEngine(logger, execution.DefaultEngineConfig(), limiters, validator, riskEngine, oms, sim, nil)
	coord := strategy.NewCoordinator(logger)

	return NewServer(logger, Config{Host: "127.0.0.1", Port: 0}, eng, oms, coord, nil)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListOrdersEmpty(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetUnknownOrderNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
