package dashboard

import (
	"sort"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/panel"
)

// StrategiesPanel: аналитика доходности торговых стратегий.
type StrategiesPanel struct {
	*panel.Panel[[]domain.StrategyPerformance]
}

func NewStrategiesPanel(svc *Service, logger *zap.Logger, metrics *panel.Metrics) *StrategiesPanel {
	return &StrategiesPanel{Panel: panel.New(panel.Config[[]domain.StrategyPerformance]{
		Name:    "strategies",
		Fetch:   svc.StrategyPerformance,
		Initial: []domain.StrategyPerformance{},
		Ready:   svc.Ready,
		Logger:  logger,
		Metrics: metrics,
	})}
}

// Top возвращает n лучших стратегий по ROI (n <= 0, все).
func (s *StrategiesPanel) Top(n int) []domain.StrategyPerformance {
	data := s.State().Data
	out := make([]domain.StrategyPerformance, len(data))
	copy(out, data)

	sort.SliceStable(out, func(i, j int) bool { return out[i].ROI > out[j].ROI })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
