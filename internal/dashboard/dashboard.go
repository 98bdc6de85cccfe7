// Package dashboard собирает панели консоли поверх общего механизма panel:
// алерты, гейты исполнения, доходность стратегий, автономия агентов.
package dashboard

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/infra"
	"github.com/xela07ax/vintrade-console/internal/panel"
)

// Dashboard владеет всеми панелями и их поллерами.
type Dashboard struct {
	Alerts     *AlertsPanel
	Gates      *GatesPanel
	Strategies *StrategiesPanel
	Autonomy   *AutonomyPanel
	Rules      *RulesForm

	alertsPoller     *panel.Poller
	strategiesPoller *panel.Poller
	logger           *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New. reg может быть nil, метрики тогда пишутся в локальный реестр.
func New(api API, cfg infra.Config, reg prometheus.Registerer, logger *zap.Logger) *Dashboard {
	logger = logger.Named("dashboard")
	metrics := panel.NewMetrics(reg)
	svc := NewService(api)

	emptyStatus, err := domain.ParseGateStatus(cfg.Gates.EmptyStatus)
	if err != nil {
		logger.Warn("invalid gates.empty_status, using PASSED", zap.String("value", cfg.Gates.EmptyStatus))
		emptyStatus = domain.GatePassed
	}

	d := &Dashboard{
		Strategies: NewStrategiesPanel(svc, logger, metrics),
		Gates:      NewGatesPanel(svc, cfg.Poll.Gates, emptyStatus, logger, metrics),
		Autonomy:   NewAutonomyPanel(svc, logger, metrics),
		Rules:      NewRulesForm(svc, logger),
		logger:     logger,
	}
	d.Alerts = NewAlertsPanel(svc, logger, metrics, func(id string) {
		logger.Debug("alert acknowledged", zap.String("alert_id", id))
	})

	// У алертов и стратегий нет ключа, поллер крутится на постоянном "all"
	d.alertsPoller = panel.NewPoller("alerts", cfg.Poll.Alerts, func(ctx context.Context, _ string) {
		_ = d.Alerts.Refresh(ctx)
	}, logger, metrics)
	d.strategiesPoller = panel.NewPoller("strategies", cfg.Poll.Strategies, func(ctx context.Context, _ string) {
		_ = d.Strategies.Refresh(ctx)
	}, logger, metrics)

	return d
}

// Start запускает поллинг панелей без ключа. Гейты ждут WatchExecution.
func (d *Dashboard) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.alertsPoller.Start(ctx, "all")
	d.strategiesPoller.Start(ctx, "all")
	d.logger.Info("dashboard started")
}

// WatchExecution переключает панель гейтов на исполнение. Пустой id, перестать следить.
func (d *Dashboard) WatchExecution(ctx context.Context, executionID string) {
	d.Gates.Watch(ctx, executionID)
}

// Overall: сводный статус гейтов текущего исполнения.
func (d *Dashboard) Overall() domain.GateStatus {
	return d.Gates.Overall()
}

// Close останавливает все поллеры и разбирает панели. Ответы, пришедшие
// после Close, никуда не применяются.
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()

	d.alertsPoller.Stop()
	d.strategiesPoller.Stop()
	d.Gates.Stop()

	d.Alerts.Close()
	d.Strategies.Close()
	d.Autonomy.Close()
	d.logger.Info("dashboard closed")
}
