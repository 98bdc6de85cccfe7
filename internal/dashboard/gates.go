package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/panel"
)

// GatesPanel: статусы гейтов одного исполнения. Поллится, пока известен ID исполнения.
type GatesPanel struct {
	*panel.Panel[[]domain.Gate]
	svc         *Service
	emptyStatus domain.GateStatus
	poller      *panel.Poller
	mutator     *panel.Mutator[domain.GateStatus]
	logger      *zap.Logger

	mu          sync.RWMutex
	executionID string
}

func NewGatesPanel(svc *Service, interval time.Duration, emptyStatus domain.GateStatus, logger *zap.Logger, metrics *panel.Metrics) *GatesPanel {
	g := &GatesPanel{svc: svc, emptyStatus: emptyStatus, logger: logger}
	g.Panel = panel.New(panel.Config[[]domain.Gate]{
		Name: "gates",
		Fetch: func(ctx context.Context) ([]domain.Gate, error) {
			return svc.ListGates(ctx, g.ExecutionID())
		},
		Initial: []domain.Gate{},
		Ready:   func() bool { return svc.Ready() && g.ExecutionID() != "" },
		Logger:  logger,
		Metrics: metrics,
	})
	g.mutator = panel.NewMutator[domain.GateStatus](panel.MutatorConfig{
		Name:    "gates",
		Report:  g.SetError,
		Logger:  logger,
		Metrics: metrics,
	})
	g.poller = panel.NewPoller("gates", interval, func(ctx context.Context, _ string) {
		_ = g.Refresh(ctx)
	}, logger, metrics)
	return g
}

func (g *GatesPanel) ExecutionID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.executionID
}

// Watch начинает (или переключает) поллинг на исполнение id. Пустой id, остановка.
func (g *GatesPanel) Watch(ctx context.Context, executionID string) {
	g.switchTo(executionID)
	if executionID != "" && g.poller.Key() == "" {
		g.poller.Start(ctx, executionID)
	}
}

// Load переключает панель на исполнение и загружает гейты один раз, без поллинга.
func (g *GatesPanel) Load(ctx context.Context, executionID string) error {
	g.switchTo(executionID)
	return g.Refresh(ctx)
}

func (g *GatesPanel) switchTo(executionID string) {
	g.mu.Lock()
	changed := g.executionID != executionID
	g.executionID = executionID
	g.mu.Unlock()

	if changed {
		// сначала дожидаемся старого цикла, иначе он может вернуть гейты прошлого исполнения
		g.poller.Retarget("")
		g.Update(func([]domain.Gate) []domain.Gate { return []domain.Gate{} })
	}
}

// Overall пересчитывается из последних данных при каждом вызове, нигде не хранится.
func (g *GatesPanel) Overall() domain.GateStatus {
	return domain.OverallGateStatus(g.State().Data, g.emptyStatus)
}

// Decide: оптимистичное решение по гейту с откатом при отказе сервера.
func (g *GatesPanel) Decide(ctx context.Context, gateID string, status domain.GateStatus) error {
	executionID := g.ExecutionID()

	if gate, ok := g.find(gateID); ok {
		if err := gate.CanTransitionTo(status); err != nil {
			return err
		}
	}

	return g.mutator.Apply(ctx, panel.Mutation[domain.GateStatus]{
		ID: gateID,
		Get: func() (domain.GateStatus, bool) {
			gate, ok := g.find(gateID)
			return gate.Status, ok
		},
		Set:  func(st domain.GateStatus) { g.setStatus(executionID, gateID, st) },
		Next: status,
		Persist: func(ctx context.Context) error {
			_, err := g.svc.DecideGate(ctx, executionID, gateID, status)
			return acceptCommitted(err, g.logger, "gates.decide")
		},
	})
}

// Stop останавливает поллинг и разбирает панель.
func (g *GatesPanel) Stop() {
	g.Close()
	g.poller.Stop()
}

func (g *GatesPanel) find(id string) (domain.Gate, bool) {
	for _, gate := range g.State().Data {
		if gate.ID == id {
			return gate, true
		}
	}
	return domain.Gate{}, false
}

// setStatus не трогает панель, переключенную на другое исполнение: ID гейтов повторяются.
func (g *GatesPanel) setStatus(executionID, id string, st domain.GateStatus) {
	g.Update(func(in []domain.Gate) []domain.Gate {
		if g.ExecutionID() != executionID {
			return in
		}
		out := make([]domain.Gate, len(in))
		copy(out, in)
		for i := range out {
			if out[i].ID == id {
				out[i].Status = st
			}
		}
		return out
	})
}
