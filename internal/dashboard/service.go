package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
	"github.com/xela07ax/vintrade-console/internal/domain"
)

// API описывает то, что панелям нужно от клиента. Реализуется *apiclient.Client.
type API interface {
	Do(ctx context.Context, r apiclient.Request) ([]byte, error)
	HasTokenSource() bool
}

// Service: типизированные обертки над эндпоинтами бэкенда.
type Service struct {
	api API
}

func NewService(api API) *Service {
	return &Service{api: api}
}

func (s *Service) Ready() bool { return s.api.HasTokenSource() }

func (s *Service) ListAlerts(ctx context.Context) ([]domain.Alert, error) {
	body, err := s.api.Do(ctx, apiclient.Request{Name: "alerts.list", Method: http.MethodGet, Path: "/api/alerts"})
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[domain.Alert](body, "alerts")
}

// MarkAlertRead: PATCH /api/alerts/{id}?read=true
func (s *Service) MarkAlertRead(ctx context.Context, id string, read bool) (domain.Alert, error) {
	body, err := s.api.Do(ctx, apiclient.Request{
		Name:   "alerts.read",
		Method: http.MethodPatch,
		Path:   "/api/alerts/" + url.PathEscape(id),
		Query:  url.Values{"read": {strconv.FormatBool(read)}},
	})
	if err != nil {
		return domain.Alert{}, err
	}
	return apiclient.DecodeOne[domain.Alert](body)
}

func (s *Service) CreateAlertRule(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	if err := rule.Validate(); err != nil {
		return domain.AlertRule{}, err
	}
	body, err := s.api.Do(ctx, apiclient.Request{
		Name:   "alert_rules.create",
		Method: http.MethodPost,
		Path:   "/api/alert-rules/create",
		Body:   rule,
	})
	if err != nil {
		return domain.AlertRule{}, err
	}
	return apiclient.DecodeOne[domain.AlertRule](body)
}

func (s *Service) ListGates(ctx context.Context, executionID string) ([]domain.Gate, error) {
	if executionID == "" {
		return nil, fmt.Errorf("execution id is required")
	}
	body, err := s.api.Do(ctx, apiclient.Request{
		Name:   "gates.list",
		Method: http.MethodGet,
		Path:   "/api/gates/" + url.PathEscape(executionID),
	})
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[domain.Gate](body, "gates")
}

// DecideGate: ручное решение оператора по гейту (PENDING -> PASSED/BLOCKED).
func (s *Service) DecideGate(ctx context.Context, executionID, gateID string, status domain.GateStatus) (domain.Gate, error) {
	body, err := s.api.Do(ctx, apiclient.Request{
		Name:   "gates.decide",
		Method: http.MethodPatch,
		Path:   "/api/gates/" + url.PathEscape(executionID) + "/" + url.PathEscape(gateID),
		Query:  url.Values{"gate_status": {string(status)}},
	})
	if err != nil {
		return domain.Gate{}, err
	}
	return apiclient.DecodeOne[domain.Gate](body)
}

func (s *Service) StrategyPerformance(ctx context.Context) ([]domain.StrategyPerformance, error) {
	body, err := s.api.Do(ctx, apiclient.Request{
		Name:   "strategies.performance",
		Method: http.MethodGet,
		Path:   "/api/strategies/performance",
	})
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[domain.StrategyPerformance](body, "strategies")
}

func (s *Service) GetAutonomy(ctx context.Context, agentID string) (domain.AutonomySetting, error) {
	body, err := s.api.Do(ctx, apiclient.Request{
		Name:   "autonomy.get",
		Method: http.MethodGet,
		Path:   "/api/autonomy/" + url.PathEscape(agentID),
	})
	if err != nil {
		return domain.AutonomySetting{}, err
	}
	return apiclient.DecodeOne[domain.AutonomySetting](body)
}

func (s *Service) SetAutonomy(ctx context.Context, agentID string, level domain.AutonomyLevel) (domain.AutonomySetting, error) {
	body, err := s.api.Do(ctx, apiclient.Request{
		Name:   "autonomy.set",
		Method: http.MethodPatch,
		Path:   "/api/autonomy/" + url.PathEscape(agentID),
		Query:  url.Values{"level": {string(level)}},
	})
	if err != nil {
		return domain.AutonomySetting{}, err
	}
	return apiclient.DecodeOne[domain.AutonomySetting](body)
}

// AuditLog: GET /api/audit, последние limit записей журнала.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	body, err := s.api.Do(ctx, apiclient.Request{
		Name:   "audit.list",
		Method: http.MethodGet,
		Path:   "/api/audit",
		Query:  url.Values{"limit": {strconv.Itoa(limit)}},
	})
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[domain.AuditEntry](body, "entries")
}

// acceptCommitted: 2xx с неожиданным телом значит, что сервер изменение уже принял.
// Откатывать его нельзя, только пишем в лог.
func acceptCommitted(err error, logger *zap.Logger, op string) error {
	if !errors.Is(err, domain.ErrShapeMismatch) {
		return err
	}
	if logger != nil {
		logger.Warn("mutation committed, response body ignored", zap.String("op", op), zap.Error(err))
	}
	return nil
}
