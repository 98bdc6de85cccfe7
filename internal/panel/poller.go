package panel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunFunc: одно обновление для ключа (например, ID исполнения).
type RunFunc func(ctx context.Context, key string)

// Poller повторяет RunFunc с фиксированным интервалом, пока есть непустой ключ.
// Первый запуск, сразу после появления ключа. Запуски не пересекаются:
// один ключ, одна горутина, тики во время медленного запроса пропускаются.
type Poller struct {
	name     string
	interval time.Duration
	run      RunFunc
	logger   *zap.Logger
	metrics  *Metrics

	mu      sync.Mutex
	parent  context.Context
	key     string
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

func NewPoller(name string, interval time.Duration, run RunFunc, logger *zap.Logger, metrics *Metrics) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Poller{
		name:     name,
		interval: interval,
		run:      run,
		logger:   logger.Named("poller").With(zap.String("panel", name)),
		metrics:  metrics,
	}
}

// Start привязывает поллер к ctx и запускает его для key.
// Отмена ctx останавливает поллинг так же, как Stop.
func (p *Poller) Start(ctx context.Context, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.parent = ctx
	p.retargetLocked(key)
}

// Retarget меняет ключ. Пустой ключ останавливает поллинг до появления нового.
func (p *Poller) Retarget(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.parent == nil || key == p.key {
		return
	}
	p.retargetLocked(key)
}

// Key: текущий ключ ("" если поллинг не идет).
func (p *Poller) Key() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key
}

// Stop останавливает поллинг и ждет выхода горутины. После возврата
// ни одного нового запуска не будет.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haltLocked()
	p.stopped = true
	p.key = ""
}

func (p *Poller) retargetLocked(key string) {
	p.haltLocked()
	p.key = key
	if key == "" {
		return
	}

	ctx, cancel := context.WithCancel(p.parent)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.loop(ctx, key, done)
}

func (p *Poller) haltLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

func (p *Poller) loop(ctx context.Context, key string, done chan struct{}) {
	defer close(done)
	p.logger.Debug("polling started", zap.String("key", key), zap.Duration("interval", p.interval))

	p.tick(ctx, key)
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("polling stopped", zap.String("key", key))
			return
		case <-ticker.C:
			p.tick(ctx, key)
		}
	}
}

func (p *Poller) tick(ctx context.Context, key string) {
	if ctx.Err() != nil {
		return
	}
	p.metrics.PollTicks.WithLabelValues(p.name).Inc()
	p.run(ctx, key)
}
