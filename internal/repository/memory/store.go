// Package memory: хранилище devapi в памяти процесса. Используется по
// умолчанию и как источник неизменяемых данных для redisrepo.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xela07ax/vintrade-console/internal/domain"
)

// Seed: начальное состояние.
type Seed struct {
	Users      []domain.User
	Alerts     []domain.Alert
	Rules      []domain.AlertRule
	Gates      []domain.Gate
	Strategies []domain.StrategyPerformance
	Autonomy   []domain.AutonomySetting
	// Metrics: текущие значения метрик, по которым срабатывают правила
	Metrics map[string]float64
}

type Store struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	alerts     []domain.Alert
	rules      []domain.AlertRule
	gates      map[string][]domain.Gate // execution_id -> gates
	strategies []domain.StrategyPerformance
	autonomy   map[string]domain.AutonomySetting
	metrics    map[string]float64
	audit      []domain.AuditEntry // в порядке записи
	now        func() time.Time
}

func NewStore(seed Seed) *Store {
	s := &Store{
		users:      make(map[string]domain.User),
		alerts:     append([]domain.Alert(nil), seed.Alerts...),
		rules:      append([]domain.AlertRule(nil), seed.Rules...),
		gates:      make(map[string][]domain.Gate),
		strategies: append([]domain.StrategyPerformance(nil), seed.Strategies...),
		autonomy:   make(map[string]domain.AutonomySetting),
		metrics:    make(map[string]float64),
		now:        time.Now,
	}
	for _, u := range seed.Users {
		s.users[u.Username] = u
	}
	for _, g := range seed.Gates {
		s.gates[g.ExecutionID] = append(s.gates[g.ExecutionID], g)
	}
	for _, a := range seed.Autonomy {
		s.autonomy[a.AgentID] = a
	}
	for k, v := range seed.Metrics {
		s.metrics[k] = v
	}
	return s
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	return &u, nil
}

// ListAlerts: новые сверху.
func (s *Store) ListAlerts(_ context.Context) ([]domain.Alert, error) {
	s.mu.RLock()
	out := append([]domain.Alert{}, s.alerts...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AddAlert(_ context.Context, a domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *Store) SetAlertRead(_ context.Context, id string, read bool) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Read = read
			return s.alerts[i], nil
		}
	}
	return domain.Alert{}, fmt.Errorf("alert %q: %w", id, domain.ErrNotFound)
}

func (s *Store) AddRule(_ context.Context, r domain.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
	return nil
}

func (s *Store) ListRules(_ context.Context) ([]domain.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AlertRule{}, s.rules...), nil
}

func (s *Store) Metrics(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.metrics))
	for k, v := range s.metrics {
		out[k] = v
	}
	return out, nil
}

// ListGates для неизвестного исполнения возвращает пустой список, а не ошибку.
func (s *Store) ListGates(_ context.Context, executionID string) ([]domain.Gate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Gate{}, s.gates[executionID]...), nil
}

func (s *Store) GetGate(_ context.Context, executionID, gateID string) (domain.Gate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.gates[executionID] {
		if g.ID == gateID {
			return g, nil
		}
	}
	return domain.Gate{}, fmt.Errorf("gate %s/%s: %w", executionID, gateID, domain.ErrNotFound)
}

// SetGateStatus меняет только PENDING гейт, проверка и запись под одной блокировкой.
func (s *Store) SetGateStatus(_ context.Context, executionID, gateID string, st domain.GateStatus) (domain.Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gates := s.gates[executionID]
	for i := range gates {
		if gates[i].ID == gateID {
			if err := gates[i].CanTransitionTo(st); err != nil {
				return domain.Gate{}, fmt.Errorf("gate %s/%s: %w", executionID, gateID, err)
			}
			now := s.now()
			gates[i].Status = st
			gates[i].CheckedAt = &now
			return gates[i], nil
		}
	}
	return domain.Gate{}, fmt.Errorf("gate %s/%s: %w", executionID, gateID, domain.ErrNotFound)
}

func (s *Store) ListStrategies(_ context.Context) ([]domain.StrategyPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StrategyPerformance{}, s.strategies...), nil
}

func (s *Store) GetAutonomy(_ context.Context, agentID string) (domain.AutonomySetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.autonomy[agentID]
	if !ok {
		return domain.AutonomySetting{}, fmt.Errorf("agent %q: %w", agentID, domain.ErrNotFound)
	}
	return a, nil
}

func (s *Store) SetAutonomy(_ context.Context, agentID string, level domain.AutonomyLevel) (domain.AutonomySetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.autonomy[agentID]
	if !ok {
		return domain.AutonomySetting{}, fmt.Errorf("agent %q: %w", agentID, domain.ErrNotFound)
	}
	a.Level = level
	a.UpdatedAt = s.now()
	s.autonomy[agentID] = a
	return a, nil
}

func (s *Store) WriteAudit(_ context.Context, entries []domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entries...)
	return nil
}

// ListAudit: последние limit записей, новые сверху. limit <= 0, все.
func (s *Store) ListAudit(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.audit)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.AuditEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}
