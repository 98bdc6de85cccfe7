package dashboard

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/panel"
)

// RulesForm: форма создания правила алерта. Повторная отправка, пока
// предыдущая не завершилась, отклоняется.
type RulesForm struct {
	svc    *Service
	logger *zap.Logger

	mu         sync.Mutex
	submitting bool
	err        string
	created    []domain.AlertRule
}

func NewRulesForm(svc *Service, logger *zap.Logger) *RulesForm {
	return &RulesForm{svc: svc, logger: logger.Named("rules-form")}
}

func (f *RulesForm) Create(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return domain.AlertRule{}, panel.ErrMutationInFlight
	}
	f.submitting = true
	f.err = ""
	f.mu.Unlock()

	created, err := f.svc.CreateAlertRule(ctx, rule)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		if msg, show := apiclient.UserMessage(err); show {
			f.err = msg
			f.logger.Error("alert rule creation failed", zap.String("metric", rule.Metric), zap.Error(err))
		} else {
			f.logger.Warn("alert rule creation rejected: unauthorized", zap.Error(err))
		}
		return domain.AlertRule{}, err
	}
	f.created = append(f.created, created)
	return created, nil
}

// Err: текст ошибки последней отправки.
func (f *RulesForm) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *RulesForm) Created() []domain.AlertRule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AlertRule(nil), f.created...)
}
