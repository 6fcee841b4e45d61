// Package api provides the OMS snapshot HTTP surface of spec §6: read-only
// routes over tracked orders, fills, and positions. There is no WebSocket
// push surface in scope (see SPEC_FULL.md's dropped gorilla/websocket
// dependency note).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/quantloop/core/internal/execution"
	"github.com/quantloop/core/internal/strategy"
	"github.com/quantloop/core/pkg/types"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server is the read-only HTTP surface over a running engine's state.
type Server struct {
	logger      *zap.Logger
	router      *mux.Router
	httpServer  *http.Server
	engine      *execution.Engine
	oms         *execution.OMS
	coordinator *strategy.Coordinator
	metrics     http.Handler // may be nil; mounted at the configured path when set
	metricsPath string
}

// Config configures the listen address and CORS policy.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	MetricsPath    string
}

// NewServer builds the router and registers every route.
func NewServer(logger *zap.Logger, cfg Config, engine *execution.Engine, oms *execution.OMS, coordinator *strategy.Coordinator, metricsHandler http.Handler) *Server {
	s := &Server{
		logger:      logger.Named("api"),
		router:      mux.NewRouter(),
		engine:      engine,
		oms:         oms,
		coordinator: coordinator,
		metrics:     metricsHandler,
		metricsPath: cfg.MetricsPath,
	}
	s.setupRoutes()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: handler,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/orders", s.handleListOrders).Methods("GET")
	s.router.HandleFunc("/api/v1/orders/{id}", s.handleGetOrder).Methods("GET")
	s.router.HandleFunc("/api/v1/orders/{id}/fills", s.handleListFills).Methods("GET")
	s.router.HandleFunc("/api/v1/positions", s.handleListPositions).Methods("GET")
	s.router.HandleFunc("/api/v1/exposure", s.handleExposure).Methods("GET")

	if s.metrics != nil && s.metricsPath != "" {
		s.router.Handle(s.metricsPath, s.metrics).Methods("GET")
	}
}

// Start serves until the process is signalled to stop (see cmd/quantloopd).
func (s *Server) Start() error {
	s.logger.Info("starting OMS snapshot server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	var orders []types.Order
	switch status {
	case "active":
		orders = s.oms.GetActiveOrders()
	case "terminal":
		orders = s.oms.GetTerminalOrders()
	default:
		orders = s.oms.GetAllOrders()
	}
	writeJSON(w, map[string]interface{}{"orders": orders, "count": len(orders)})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := types.OrderId(mux.Vars(r)["id"])
	order := s.oms.GetOrder(id)
	if order == nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	writeJSON(w, order)
}

func (s *Server) handleListFills(w http.ResponseWriter, r *http.Request) {
	id := types.OrderId(mux.Vars(r)["id"])
	fills := s.oms.GetFills(id)
	writeJSON(w, map[string]interface{}{"fills": fills, "count": len(fills)})
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions := s.engine.GetAllPositions()
	writeJSON(w, map[string]interface{}{"positions": positions, "count": len(positions)})
}

func (s *Server) handleExposure(w http.ResponseWriter, r *http.Request) {
	exposure := s.coordinator.CalculateTotalExposure()
	writeJSON(w, exposure)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
