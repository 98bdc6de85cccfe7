// Package panel содержит общий для всех панелей консоли механизм:
// состояние вида (data/loading/error), обновление через API с защитой
// от устаревших ответов, оптимистичные изменения и поллинг.
package panel

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
)

// ErrClosed: панель уже разобрана, обновлять нечего.
var ErrClosed = errors.New("panel: closed")

// Phase: состояние конечного автомата панели.
type Phase string

const (
	PhaseIdle    Phase = "idle"    // До первого запуска
	PhaseLoading Phase = "loading" // Запрос текущего поколения в полете
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
	PhaseClosed  Phase = "closed" // Терминальное
)

// State: снимок состояния панели. Data: последний удачный ответ
// (или начальное значение), Err: текст для баннера.
type State[T any] struct {
	Data       T
	Loading    bool
	Err        string
	Phase      Phase
	Generation uint64
	UpdatedAt  time.Time
}

type FetchFunc[T any] func(ctx context.Context) (T, error)

type Config[T any] struct {
	Name    string
	Fetch   FetchFunc[T]
	Initial T
	// Ready проверяется до перехода в Loading. При false Refresh ничего не делает
	// (нет источника токена, не пришел обязательный идентификатор).
	Ready    func() bool
	OnChange func(State[T])
	Logger   *zap.Logger
	Metrics  *Metrics
}

// Panel владеет одним State. Каждый Refresh получает новый номер поколения,
// результат применяется, только если поколение все еще текущее.
type Panel[T any] struct {
	name     string
	fetch    FetchFunc[T]
	ready    func() bool
	onChange func(State[T])
	logger   *zap.Logger
	metrics  *Metrics

	mu     sync.Mutex
	state  State[T]
	gen    uint64
	closed bool
}

func New[T any](cfg Config[T]) *Panel[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Panel[T]{
		name:     cfg.Name,
		fetch:    cfg.Fetch,
		ready:    cfg.Ready,
		onChange: cfg.OnChange,
		logger:   logger.Named("panel").With(zap.String("panel", cfg.Name)),
		metrics:  metrics,
		state:    State[T]{Data: cfg.Initial, Phase: PhaseIdle},
	}
}

func (p *Panel[T]) Name() string { return p.name }

// State возвращает снимок. Data разделяется с панелью, не меняйте ее на месте,
// для локальных изменений есть Update.
func (p *Panel[T]) State() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Refresh: один цикл Loading -> {Success, Error}. Это же и ручная кнопка Retry.
// Возвращает ошибку запроса как есть; что показывать пользователю, уже
// записано в State.Err.
func (p *Panel[T]) Refresh(ctx context.Context) error {
	if p.ready != nil && !p.ready() {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.gen++
	gen := p.gen
	prevPhase := p.state.Phase
	p.state.Loading = true
	p.state.Err = "" // новый запрос сбрасывает прошлую ошибку
	p.state.Phase = PhaseLoading
	p.state.Generation = gen
	loading := p.state
	p.mu.Unlock()
	p.notify(loading)

	data, err := p.fetch(ctx)

	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		p.metrics.StaleResults.WithLabelValues(p.name).Inc()
		p.logger.Debug("stale fetch result discarded", zap.Uint64("generation", gen))
		return err
	}

	// Отмена контекста вызывающим (смена ключа поллера, teardown), не ошибка для UI
	if errors.Is(ctx.Err(), context.Canceled) && errors.Is(err, context.Canceled) {
		p.state.Loading = false
		p.state.Phase = prevPhase
		canceled := p.state
		p.mu.Unlock()
		p.metrics.Refreshes.WithLabelValues(p.name, string(apiclient.KindCanceled)).Inc()
		p.notify(canceled)
		return err
	}

	// Loading снимается при любом исходе
	p.state.Loading = false
	kind := apiclient.Classify(err)
	switch kind {
	case apiclient.KindOK:
		p.state.Data = data
		p.state.Phase = PhaseSuccess
		p.state.UpdatedAt = time.Now()
	case apiclient.KindNoTokenSource:
		p.state.Phase = prevPhase
	case apiclient.KindUnauthorized:
		// Гонка обновления токена: баннер не показываем, только пишем в лог
		p.state.Phase = PhaseError
		p.logger.Warn("fetch rejected: unauthorized", zap.Error(err))
	default:
		msg, _ := apiclient.UserMessage(err)
		p.state.Err = msg
		p.state.Phase = PhaseError
		p.logger.Error("fetch failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	done := p.state
	p.mu.Unlock()

	p.metrics.Refreshes.WithLabelValues(p.name, string(kind)).Inc()
	p.notify(done)
	return err
}

// Update применяет локальное изменение к данным. fn должна вернуть новое
// значение, а не менять старое на месте: снимки State могут быть у читателей.
func (p *Panel[T]) Update(fn func(T) T) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.state.Data = fn(p.state.Data)
	st := p.state
	p.mu.Unlock()
	p.notify(st)
}

// SetError показывает баннер, не трогая данные (ошибка мутации).
func (p *Panel[T]) SetError(msg string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.state.Err = msg
	st := p.state
	p.mu.Unlock()
	p.notify(st)
}

// Close: терминальное состояние. Ответы, пришедшие после, отбрасываются.
func (p *Panel[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.gen++
	p.state.Loading = false
	p.state.Phase = PhaseClosed
}

func (p *Panel[T]) notify(st State[T]) {
	if p.onChange != nil {
		p.onChange(st)
	}
}
