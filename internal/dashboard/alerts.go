package dashboard

import (
	"context"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/panel"
)

// AlertsPanel: лента алертов с оптимистичной отметкой "прочитано".
type AlertsPanel struct {
	*panel.Panel[[]domain.Alert]
	svc     *Service
	mutator *panel.Mutator[bool]
	logger  *zap.Logger
}

// NewAlertsPanel. onRead вызывается после подтверждения сервером (например,
// чтобы пересчитать бейдж непрочитанных в шапке).
func NewAlertsPanel(svc *Service, logger *zap.Logger, metrics *panel.Metrics, onRead func(id string)) *AlertsPanel {
	a := &AlertsPanel{svc: svc, logger: logger}
	a.Panel = panel.New(panel.Config[[]domain.Alert]{
		Name:    "alerts",
		Fetch:   svc.ListAlerts,
		Initial: []domain.Alert{},
		Ready:   svc.Ready,
		Logger:  logger,
		Metrics: metrics,
	})
	a.mutator = panel.NewMutator[bool](panel.MutatorConfig{
		Name:        "alerts",
		Report:      a.SetError,
		OnCommitted: onRead,
		Logger:      logger,
		Metrics:     metrics,
	})
	return a
}

// MarkRead сразу помечает алерт прочитанным и откатывает отметку, если сервер отказал.
func (a *AlertsPanel) MarkRead(ctx context.Context, id string) error {
	return a.mutator.Apply(ctx, panel.Mutation[bool]{
		ID:   id,
		Get:  func() (bool, bool) { return a.readFlag(id) },
		Set:  func(v bool) { a.setRead(id, v) },
		Next: true,
		Persist: func(ctx context.Context) error {
			_, err := a.svc.MarkAlertRead(ctx, id, true)
			return acceptCommitted(err, a.logger, "alerts.read")
		},
	})
}

// Marking: идет ли запрос по алерту (кнопка в UI неактивна).
func (a *AlertsPanel) Marking(id string) bool {
	return a.mutator.InFlight(id)
}

func (a *AlertsPanel) Unread() int {
	n := 0
	for _, al := range a.State().Data {
		if !al.Read {
			n++
		}
	}
	return n
}

func (a *AlertsPanel) readFlag(id string) (bool, bool) {
	for _, al := range a.State().Data {
		if al.ID == id {
			return al.Read, true
		}
	}
	return false, false
}

func (a *AlertsPanel) setRead(id string, read bool) {
	a.Update(func(in []domain.Alert) []domain.Alert {
		out := make([]domain.Alert, len(in))
		copy(out, in)
		for i := range out {
			if out[i].ID == id {
				out[i].Read = read
			}
		}
		return out
	})
}
