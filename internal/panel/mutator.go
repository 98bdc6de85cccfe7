package panel

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
)

var (
	// ErrMutationInFlight: по этой сущности уже идет изменение.
	ErrMutationInFlight = errors.New("panel: mutation already in flight")
	// ErrEntityNotFound: сущности нет в локальном состоянии.
	ErrEntityNotFound = errors.New("panel: entity not found")
)

// Mutation описывает одно оптимистичное изменение поля сущности.
type Mutation[V comparable] struct {
	ID      string
	Get     func() (V, bool)
	Set     func(V)
	Next    V
	Persist func(ctx context.Context) error
}

type MutatorConfig struct {
	Name string
	// Report показывает баннер с ошибкой (обычно Panel.SetError)
	Report func(msg string)
	// OnCommitted вызывается с ID после подтверждения сервером
	OnCommitted func(id string)
	Logger      *zap.Logger
	Metrics     *Metrics
}

// Mutator применяет изменение локально до ответа сервера и откатывает его при отказе.
// Для одного ID одновременно может идти только одно изменение.
type Mutator[V comparable] struct {
	name        string
	report      func(string)
	onCommitted func(string)
	logger      *zap.Logger
	metrics     *Metrics

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewMutator[V comparable](cfg MutatorConfig) *Mutator[V] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Mutator[V]{
		name:        cfg.Name,
		report:      cfg.Report,
		onCommitted: cfg.OnCommitted,
		logger:      logger.Named("mutator").With(zap.String("panel", cfg.Name)),
		metrics:     metrics,
		inflight:    make(map[string]struct{}),
	}
}

// InFlight: идет ли сейчас изменение по ID (для блокировки кнопки в UI).
func (m *Mutator[V]) InFlight(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[id]
	return ok
}

func (m *Mutator[V]) Apply(ctx context.Context, mut Mutation[V]) error {
	m.mu.Lock()
	if _, busy := m.inflight[mut.ID]; busy {
		m.mu.Unlock()
		return ErrMutationInFlight
	}
	m.inflight[mut.ID] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, mut.ID)
		m.mu.Unlock()
	}()

	prev, ok := mut.Get()
	if !ok {
		return ErrEntityNotFound
	}
	if prev == mut.Next {
		return nil
	}

	// 1. Оптимистично применяем
	mut.Set(mut.Next)

	// 2. Сохраняем на сервере
	err := mut.Persist(ctx)
	if err == nil {
		if m.onCommitted != nil {
			m.onCommitted(mut.ID)
		}
		return nil
	}

	// 3. Откат к значению до попытки
	mut.Set(prev)
	m.metrics.Rollbacks.WithLabelValues(m.name).Inc()

	msg, show := apiclient.UserMessage(err)
	if !show {
		m.logger.Warn("mutation rolled back: unauthorized", zap.String("id", mut.ID), zap.Error(err))
		return err
	}

	m.logger.Error("mutation rolled back", zap.String("id", mut.ID), zap.Error(err))
	if m.report != nil {
		m.report(msg)
	}
	return err
}
