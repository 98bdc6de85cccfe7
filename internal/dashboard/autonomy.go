package dashboard

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/panel"
)

// AutonomyPanel: переключатель уровня автономии торгового агента.
type AutonomyPanel struct {
	*panel.Panel[domain.AutonomySetting]
	svc     *Service
	mutator *panel.Mutator[domain.AutonomyLevel]
	logger  *zap.Logger

	mu      sync.RWMutex
	agentID string
}

func NewAutonomyPanel(svc *Service, logger *zap.Logger, metrics *panel.Metrics) *AutonomyPanel {
	a := &AutonomyPanel{svc: svc, logger: logger}
	a.Panel = panel.New(panel.Config[domain.AutonomySetting]{
		Name: "autonomy",
		Fetch: func(ctx context.Context) (domain.AutonomySetting, error) {
			return svc.GetAutonomy(ctx, a.AgentID())
		},
		Ready:   func() bool { return svc.Ready() && a.AgentID() != "" },
		Logger:  logger,
		Metrics: metrics,
	})
	a.mutator = panel.NewMutator[domain.AutonomyLevel](panel.MutatorConfig{
		Name:    "autonomy",
		Report:  a.SetError,
		Logger:  logger,
		Metrics: metrics,
	})
	return a
}

func (a *AutonomyPanel) AgentID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.agentID
}

// Select переключает панель на агента и сразу загружает его настройку.
func (a *AutonomyPanel) Select(ctx context.Context, agentID string) error {
	a.mu.Lock()
	a.agentID = agentID
	a.mu.Unlock()
	a.Update(func(domain.AutonomySetting) domain.AutonomySetting {
		return domain.AutonomySetting{AgentID: agentID}
	})
	return a.Refresh(ctx)
}

// SetLevel оптимистично меняет уровень и откатывает его, если сервер отказал.
func (a *AutonomyPanel) SetLevel(ctx context.Context, level domain.AutonomyLevel) error {
	agentID := a.AgentID()
	return a.mutator.Apply(ctx, panel.Mutation[domain.AutonomyLevel]{
		ID: agentID,
		Get: func() (domain.AutonomyLevel, bool) {
			st := a.State().Data
			return st.Level, st.AgentID == agentID && agentID != ""
		},
		// Пока шел PATCH, оператор мог выбрать другого агента: его не трогаем
		Set: func(l domain.AutonomyLevel) {
			a.Update(func(s domain.AutonomySetting) domain.AutonomySetting {
				if s.AgentID != agentID {
					return s
				}
				s.Level = l
				return s
			})
		},
		Next: level,
		Persist: func(ctx context.Context) error {
			_, err := a.svc.SetAutonomy(ctx, agentID, level)
			return acceptCommitted(err, a.logger, "autonomy.set")
		},
	})
}
