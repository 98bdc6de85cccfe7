// Package audit: журнал действий оператора (прочтение алертов, решения по
// гейтам, смена автономии). Запись не блокирует обработчик запроса: события
// копятся в буфере и пишутся в хранилище пачками.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
)

const (
	defaultBuffer    = 1024
	defaultBatchSize = 100
	defaultFlush     = 500 * time.Millisecond
)

// Sink: куда физически пишется журнал (memory, Redis, Postgres).
type Sink interface {
	WriteAudit(ctx context.Context, entries []domain.AuditEntry) error
}

type Options struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
}

type Journal struct {
	ch        chan domain.AuditEntry
	sink      Sink
	batchSize int
	interval  time.Duration
	logger    *zap.Logger

	// RLock в Record, Lock в Stop: после Stop канал уже закрыт, писать в него нельзя
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewJournal(sink Sink, logger *zap.Logger, opts Options) *Journal {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlush
	}
	return &Journal{
		ch:        make(chan domain.AuditEntry, opts.Buffer),
		sink:      sink,
		batchSize: opts.BatchSize,
		interval:  opts.FlushInterval,
		logger:    logger.Named("audit"),
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop закрывает вход и ждет, пока воркер допишет остаток буфера.
func (j *Journal) Stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.ch)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("audit journal stopped")
}

// Record не блокируется. Переполненный буфер, запись уходит только в лог.
func (j *Journal) Record(e domain.AuditEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.logger.Warn("audit entry dropped: journal is stopped", zap.String("action", e.Action))
		return
	}

	select {
	case j.ch <- e:
	default:
		j.logger.Error("audit_buffer_overflow",
			zap.String("action", e.Action),
			zap.String("target", e.Target),
			zap.String("trace_id", e.TraceID))
	}
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]domain.AuditEntry, 0, j.batchSize)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// контекст запроса к этому моменту уже закрыт
		if err := j.sink.WriteAudit(context.Background(), batch); err != nil {
			j.logger.Error("audit flush failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = make([]domain.AuditEntry, 0, j.batchSize)
	}

	for {
		select {
		case e, ok := <-j.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= j.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
