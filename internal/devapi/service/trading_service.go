package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/audit"
	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/infra/auth"
	"github.com/xela07ax/vintrade-console/internal/risk"
)

// Store описывает требования к хранилищу devapi. Реализуют memory, redisrepo и postgres.
type Store interface {
	AuthProvider

	ListAlerts(ctx context.Context) ([]domain.Alert, error)
	AddAlert(ctx context.Context, a domain.Alert) error
	SetAlertRead(ctx context.Context, id string, read bool) (domain.Alert, error)

	AddRule(ctx context.Context, r domain.AlertRule) error
	ListRules(ctx context.Context) ([]domain.AlertRule, error)
	Metrics(ctx context.Context) (map[string]float64, error)

	ListGates(ctx context.Context, executionID string) ([]domain.Gate, error)
	GetGate(ctx context.Context, executionID, gateID string) (domain.Gate, error)
	SetGateStatus(ctx context.Context, executionID, gateID string, st domain.GateStatus) (domain.Gate, error)

	ListStrategies(ctx context.Context) ([]domain.StrategyPerformance, error)

	GetAutonomy(ctx context.Context, agentID string) (domain.AutonomySetting, error)
	SetAutonomy(ctx context.Context, agentID string, level domain.AutonomyLevel) (domain.AutonomySetting, error)

	audit.Sink
	ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// Recorder принимает записи журнала, реализует audit.Journal.
type Recorder interface {
	Record(e domain.AuditEntry)
}

type nopRecorder struct{}

func (nopRecorder) Record(domain.AuditEntry) {}

type TradingService struct {
	store    Store
	analyzer *risk.Analyzer
	journal  Recorder
	logger   *zap.Logger
}

// NewTradingService. journal может быть nil, тогда действия не журналируются.
func NewTradingService(store Store, analyzer *risk.Analyzer, journal Recorder, logger *zap.Logger) *TradingService {
	if journal == nil {
		journal = nopRecorder{}
	}
	return &TradingService{store: store, analyzer: analyzer, journal: journal, logger: logger.Named("trading-service")}
}

// record дописывает trace_id и автора из контекста запроса.
func (s *TradingService) record(ctx context.Context, action, target string, payload map[string]any) {
	e := domain.AuditEntry{
		ID:        uuid.NewString(),
		TraceID:   audit.TraceID(ctx),
		Action:    action,
		Target:    target,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	if claims := auth.ClaimsFrom(ctx); claims != nil {
		e.Actor = claims.UserID
	}
	s.journal.Record(e)
}

func (s *TradingService) ListAlerts(ctx context.Context) ([]domain.Alert, error) {
	return s.store.ListAlerts(ctx)
}

func (s *TradingService) MarkAlertRead(ctx context.Context, id string, read bool) (domain.Alert, error) {
	a, err := s.store.SetAlertRead(ctx, id, read)
	if err != nil {
		return domain.Alert{}, err
	}
	s.logger.Info("alert read flag updated", zap.String("alert_id", id), zap.Bool("read", read))
	s.record(ctx, domain.AuditAlertRead, id, map[string]any{"read": read})
	return a, nil
}

// CreateRule сохраняет правило и сразу проверяет его на текущих метриках.
func (s *TradingService) CreateRule(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	if err := rule.Validate(); err != nil {
		return domain.AlertRule{}, err
	}
	rule.ID = uuid.NewString()
	rule.CreatedAt = time.Now()

	if err := s.store.AddRule(ctx, rule); err != nil {
		return domain.AlertRule{}, fmt.Errorf("store rule: %w", err)
	}
	s.record(ctx, domain.AuditRuleCreate, rule.ID, map[string]any{
		"metric":    rule.Metric,
		"threshold": rule.Threshold,
		"severity":  string(rule.Severity),
	})

	samples, err := s.store.Metrics(ctx)
	if err != nil {
		s.logger.Warn("rule stored but metrics unavailable", zap.String("rule_id", rule.ID), zap.Error(err))
		return rule, nil
	}
	if alert, fired := s.analyzer.Evaluate(rule, samples); fired {
		if err := s.store.AddAlert(ctx, alert); err != nil {
			s.logger.Error("failed to store raised alert", zap.String("rule_id", rule.ID), zap.Error(err))
		}
	}
	return rule, nil
}

// Rescan заново прогоняет все правила (devapi вызывает при старте).
func (s *TradingService) Rescan(ctx context.Context) (int, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return 0, err
	}
	samples, err := s.store.Metrics(ctx)
	if err != nil {
		return 0, err
	}
	alerts := s.analyzer.Scan(rules, samples)
	for _, a := range alerts {
		if err := s.store.AddAlert(ctx, a); err != nil {
			return 0, err
		}
	}
	return len(alerts), nil
}

func (s *TradingService) ListGates(ctx context.Context, executionID string) ([]domain.Gate, error) {
	return s.store.ListGates(ctx, executionID)
}

// DecideGate фиксирует решение оператора. Решенный гейт не меняется.
func (s *TradingService) DecideGate(ctx context.Context, executionID, gateID string, status domain.GateStatus) (domain.Gate, error) {
	gate, err := s.store.GetGate(ctx, executionID, gateID)
	if err != nil {
		return domain.Gate{}, err
	}
	if err := gate.CanTransitionTo(status); err != nil {
		return domain.Gate{}, fmt.Errorf("gate %s is %s: %w", gateID, gate.Status, err)
	}

	// хранилище проверяет PENDING еще раз атомарно: параллельное решение получит ErrAlreadyDecided
	updated, err := s.store.SetGateStatus(ctx, executionID, gateID, status)
	if errors.Is(err, domain.ErrAlreadyDecided) {
		s.logger.Warn("gate decided concurrently", zap.String("gate_id", gateID), zap.String("rejected", string(status)))
		return domain.Gate{}, err
	}
	if err != nil {
		s.logger.Error("failed to persist gate decision",
			zap.String("execution_id", executionID),
			zap.String("gate_id", gateID),
			zap.Error(err))
		return domain.Gate{}, err
	}

	s.logger.Info("gate decided",
		zap.String("execution_id", executionID),
		zap.String("gate_id", gateID),
		zap.String("status", string(status)))
	s.record(ctx, domain.AuditGateDecide, executionID+"/"+gateID, map[string]any{"status": string(status)})
	return updated, nil
}

func (s *TradingService) StrategyPerformance(ctx context.Context) ([]domain.StrategyPerformance, error) {
	return s.store.ListStrategies(ctx)
}

func (s *TradingService) GetAutonomy(ctx context.Context, agentID string) (domain.AutonomySetting, error) {
	return s.store.GetAutonomy(ctx, agentID)
}

func (s *TradingService) SetAutonomy(ctx context.Context, agentID string, level domain.AutonomyLevel) (domain.AutonomySetting, error) {
	a, err := s.store.SetAutonomy(ctx, agentID, level)
	if err != nil {
		return domain.AutonomySetting{}, err
	}
	s.logger.Info("autonomy level changed", zap.String("agent_id", agentID), zap.String("level", string(level)))
	s.record(ctx, domain.AuditAutonomySet, agentID, map[string]any{"level": string(level)})
	return a, nil
}

// AuditLog: последние записи журнала, новые сверху.
func (s *TradingService) AuditLog(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return s.store.ListAudit(ctx, limit)
}
