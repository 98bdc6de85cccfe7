// Package server: HTTP фасад devapi, тот же REST контракт, что у боевого
// бэкенда консоли, для локального запуска и e2e тестов.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/devapi/handler"
	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/infra/auth"
)

type Server struct {
	router  *chi.Mux
	logger  *zap.Logger
	metrics *Metrics

	// Проверка токенов (RS256), реализуется AuthService через auth.Validator
	authValidator auth.TokenValidator

	authHandler    *handler.AuthHandler    // /auth/token
	tradingHandler *handler.TradingHandler // /api/...
}

func New(
	logger *zap.Logger,
	reg prometheus.Registerer,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	tradingH *handler.TradingHandler,
) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger.Named("devapi"),
		metrics:        NewMetrics(reg),
		authValidator:  validator,
		authHandler:    authH,
		tradingHandler: tradingH,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Инфраструктурные middleware для всех ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing)
	r.Use(observe(s.logger, s.metrics))
	r.Use(middleware.Recoverer)

	// --- 2. Публичные роуты ---
	r.Post("/auth/token", s.authHandler.Login)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// --- 3. Защищенный периметр (RS256 bearer) ---
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))
		r.Use(auth.RequireScope(domain.ScopeRead))

		r.Get("/alerts", s.tradingHandler.ListAlerts)
		r.With(auth.RequireScope(domain.ScopeAlertsWrite)).Patch("/alerts/{id}", s.tradingHandler.MarkAlertRead)
		r.With(auth.RequireScope(domain.ScopeAlertsWrite)).Post("/alert-rules/create", s.tradingHandler.CreateRule)

		r.Route("/gates/{executionID}", func(r chi.Router) {
			r.Get("/", s.tradingHandler.ListGates)
			r.With(auth.RequireScope(domain.ScopeGatesDecide)).Patch("/{gateID}", s.tradingHandler.DecideGate)
		})

		r.Get("/strategies/performance", s.tradingHandler.StrategyPerformance)

		r.Route("/autonomy/{agentID}", func(r chi.Router) {
			r.Get("/", s.tradingHandler.GetAutonomy)
			r.With(auth.RequireScope(domain.ScopeAutonomyEdit)).Patch("/", s.tradingHandler.SetAutonomy)
		})

		r.Get("/audit", s.tradingHandler.AuditLog)
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
