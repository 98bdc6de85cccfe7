package risk

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
)

// Analyzer сверяет правила алертов с текущими значениями метрик.
type Analyzer struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger.Named("analyzer"), now: time.Now}
}

// Evaluate возвращает алерт, если метрика правила превысила порог.
// Метрики, которых нет в samples, не срабатывают.
func (a *Analyzer) Evaluate(rule domain.AlertRule, samples map[string]float64) (domain.Alert, bool) {
	val, ok := samples[rule.Metric]
	if !ok {
		a.logger.Debug("no samples for rule metric", zap.String("metric", rule.Metric))
		return domain.Alert{}, false
	}
	if val <= rule.Threshold {
		return domain.Alert{}, false
	}

	a.logger.Warn("alert rule breached",
		zap.String("metric", rule.Metric),
		zap.Float64("value", val),
		zap.Float64("threshold", rule.Threshold),
	)
	return domain.Alert{
		ID:        uuid.NewString(),
		Severity:  rule.Severity,
		Metric:    rule.Metric,
		Message:   fmt.Sprintf("%s is %.4g, above threshold %.4g", rule.Metric, val, rule.Threshold),
		Value:     val,
		Threshold: rule.Threshold,
		CreatedAt: a.now(),
	}, true
}

// Scan прогоняет все правила и возвращает сработавшие алерты.
func (a *Analyzer) Scan(rules []domain.AlertRule, samples map[string]float64) []domain.Alert {
	var out []domain.Alert
	for _, r := range rules {
		if alert, ok := a.Evaluate(r, samples); ok {
			out = append(out, alert)
		}
	}
	return out
}
