package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/devapi/service"
	"github.com/xela07ax/vintrade-console/internal/domain"
)

type TradingHandler struct {
	service *service.TradingService
	logger  *zap.Logger
}

func NewTradingHandler(s *service.TradingService, logger *zap.Logger) *TradingHandler {
	return &TradingHandler{service: s, logger: logger.Named("trading-handler")}
}

// ListAlerts: GET /api/alerts
func (h *TradingHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.ListAlerts(r.Context())
	if err != nil {
		writeError(w, h.logger, "alerts.list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// MarkAlertRead: PATCH /api/alerts/{id}?read=true
func (h *TradingHandler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	read, err := strconv.ParseBool(r.URL.Query().Get("read"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "query parameter read must be a boolean")
		return
	}

	alert, err := h.service.MarkAlertRead(r.Context(), chi.URLParam(r, "id"), read)
	if err != nil {
		writeError(w, h.logger, "alerts.read", err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// CreateRule: POST /api/alert-rules/create
func (h *TradingHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeDetail(w, http.StatusBadRequest, "bad request")
		return
	}

	created, err := h.service.CreateRule(r.Context(), rule)
	if err != nil {
		writeError(w, h.logger, "alert_rules.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListGates: GET /api/gates/{execution_id}
func (h *TradingHandler) ListGates(w http.ResponseWriter, r *http.Request) {
	gates, err := h.service.ListGates(r.Context(), chi.URLParam(r, "executionID"))
	if err != nil {
		writeError(w, h.logger, "gates.list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gates": gates})
}

// DecideGate: PATCH /api/gates/{execution_id}/{gate_id}?gate_status=PASSED
func (h *TradingHandler) DecideGate(w http.ResponseWriter, r *http.Request) {
	status, err := domain.ParseGateStatus(r.URL.Query().Get("gate_status"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	gate, err := h.service.DecideGate(r.Context(), chi.URLParam(r, "executionID"), chi.URLParam(r, "gateID"), status)
	if err != nil {
		writeError(w, h.logger, "gates.decide", err)
		return
	}
	writeJSON(w, http.StatusOK, gate)
}

// StrategyPerformance: GET /api/strategies/performance, голый массив
func (h *TradingHandler) StrategyPerformance(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.StrategyPerformance(r.Context())
	if err != nil {
		writeError(w, h.logger, "strategies.performance", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *TradingHandler) GetAutonomy(w http.ResponseWriter, r *http.Request) {
	setting, err := h.service.GetAutonomy(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, h.logger, "autonomy.get", err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// SetAutonomy: PATCH /api/autonomy/{agent_id}?level=SUPERVISED
func (h *TradingHandler) SetAutonomy(w http.ResponseWriter, r *http.Request) {
	level, err := domain.ParseAutonomyLevel(r.URL.Query().Get("level"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	setting, err := h.service.SetAutonomy(r.Context(), chi.URLParam(r, "agentID"), level)
	if err != nil {
		writeError(w, h.logger, "autonomy.set", err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditLog: GET /api/audit?limit=50
func (h *TradingHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAuditLimit {
			writeDetail(w, http.StatusUnprocessableEntity, "query parameter limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.service.AuditLog(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, "audit.list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
