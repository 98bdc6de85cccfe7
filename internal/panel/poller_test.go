package panel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

type keyLog struct {
	mu   sync.Mutex
	keys []string
}

func (l *keyLog) run(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
}

func (l *keyLog) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, k := range l.keys {
		if k == key {
			n++
		}
	}
	return n
}

func TestPoller_ImmediateFirstRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := &keyLog{}
	p := NewPoller("gates", time.Hour, log.run, nil, nil)
	p.Start(context.Background(), "exec-1")
	defer p.Stop()

	// интервал час, значит, первый запуск не ждал тикера
	assert.Eventually(t, func() bool { return log.count("exec-1") == 1 }, testTimeout, testTick)
}

func TestPoller_RepeatsOnInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := &keyLog{}
	p := NewPoller("gates", 5*time.Millisecond, log.run, nil, nil)
	p.Start(context.Background(), "exec-1")
	defer p.Stop()

	assert.Eventually(t, func() bool { return log.count("exec-1") >= 3 }, testTimeout, testTick)
}

func TestPoller_EmptyKeyDoesNotPoll(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	p := NewPoller("gates", 5*time.Millisecond, func(context.Context, string) { calls.Add(1) }, nil, nil)
	p.Start(context.Background(), "")
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int32(0), calls.Load())
}

func TestPoller_RetargetSwitchesAndFalsyKeyStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := &keyLog{}
	p := NewPoller("gates", 5*time.Millisecond, log.run, nil, nil)
	p.Start(context.Background(), "exec-1")
	defer p.Stop()

	require.Eventually(t, func() bool { return log.count("exec-1") >= 1 }, testTimeout, testTick)

	p.Retarget("exec-2")
	assert.Equal(t, "exec-2", p.Key())
	require.Eventually(t, func() bool { return log.count("exec-2") >= 1 }, testTimeout, testTick)
	before := log.count("exec-1")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, log.count("exec-1"))

	p.Retarget("")
	stopped := log.count("exec-2")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, log.count("exec-2"))
	assert.Empty(t, p.Key())
}

func TestPoller_NoRunsAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	p := NewPoller("alerts", 2*time.Millisecond, func(context.Context, string) { calls.Add(1) }, nil, nil)
	p.Start(context.Background(), "all")

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, testTimeout, testTick)
	p.Stop()
	after := calls.Load()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load())

	// после Stop поллер не оживает
	p.Retarget("again")
	p.Start(context.Background(), "again")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

func TestPoller_ContextCancelStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	p := NewPoller("alerts", 2*time.Millisecond, func(context.Context, string) { calls.Add(1) }, nil, nil)
	p.Start(ctx, "all")

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, testTimeout, testTick)
	cancel()
	p.Stop()

	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

func TestPoller_SlowRunsDoNotOverlap(t *testing.T) {
	defer goleak.VerifyNone(t)

	var active, maxActive atomic.Int32
	p := NewPoller("strategies", time.Millisecond, func(ctx context.Context, _ string) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
		}
		active.Add(-1)
	}, nil, nil)

	p.Start(context.Background(), "all")
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestPoller_DrivesPanelAndTeardownDiscards(t *testing.T) {
	defer goleak.VerifyNone(t)

	var fetches atomic.Int32
	pn := New(Config[int]{
		Name: "gates",
		Fetch: func(ctx context.Context) (int, error) {
			return int(fetches.Add(1)), nil
		},
	})
	p := NewPoller("gates", 2*time.Millisecond, func(ctx context.Context, _ string) { _ = pn.Refresh(ctx) }, nil, nil)
	p.Start(context.Background(), "exec-1")

	require.Eventually(t, func() bool { return pn.State().Data >= 2 }, testTimeout, testTick)

	p.Stop()
	pn.Close()
	after := fetches.Load()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, after, fetches.Load())
	assert.Equal(t, PhaseClosed, pn.State().Phase)
}
