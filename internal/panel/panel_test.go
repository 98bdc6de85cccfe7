package panel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
)

// recorder собирает все снимки, которые панель отдала в OnChange.
type recorder[T any] struct {
	mu     sync.Mutex
	states []State[T]
}

func (r *recorder[T]) record(st State[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *recorder[T]) loadingCleared() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := 1; i < len(r.states); i++ {
		if r.states[i-1].Loading && !r.states[i].Loading {
			n++
		}
	}
	return n
}

func newTestPanel(fetch FetchFunc[[]string], logger *zap.Logger) (*Panel[[]string], *recorder[[]string]) {
	rec := &recorder[[]string]{}
	p := New(Config[[]string]{
		Name:     "test",
		Fetch:    fetch,
		Initial:  []string{},
		OnChange: rec.record,
		Logger:   logger,
	})
	return p, rec
}

func TestPanel_Success(t *testing.T) {
	p, rec := newTestPanel(func(context.Context) ([]string, error) {
		return []string{"a1", "a2"}, nil
	}, nil)

	assert.Equal(t, PhaseIdle, p.State().Phase)

	require.NoError(t, p.Refresh(context.Background()))

	st := p.State()
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Err)
	assert.Equal(t, []string{"a1", "a2"}, st.Data)
	assert.False(t, st.UpdatedAt.IsZero())
	assert.Equal(t, 1, rec.loadingCleared())
}

func TestPanel_FailureKeepsLastGoodData(t *testing.T) {
	fail := false
	p, rec := newTestPanel(func(context.Context) ([]string, error) {
		if fail {
			return nil, &apiclient.APIError{Status: 500, Detail: "gate service down"}
		}
		return []string{"kyc"}, nil
	}, nil)

	require.NoError(t, p.Refresh(context.Background()))
	fail = true
	require.Error(t, p.Refresh(context.Background()))

	st := p.State()
	assert.Equal(t, PhaseError, st.Phase)
	assert.False(t, st.Loading)
	assert.Equal(t, "gate service down", st.Err)
	assert.Equal(t, []string{"kyc"}, st.Data)
	assert.Equal(t, 2, rec.loadingCleared())
}

func TestPanel_NewFetchClearsPreviousError(t *testing.T) {
	calls := 0
	var seen []string
	p := New(Config[[]string]{
		Name: "test",
		Fetch: func(context.Context) ([]string, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("boom")
			}
			return []string{"ok"}, nil
		},
		OnChange: func(st State[[]string]) {
			if st.Loading {
				seen = append(seen, st.Err)
			}
		},
	})

	_ = p.Refresh(context.Background())
	assert.Equal(t, "boom", p.State().Err)

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, []string{"", ""}, seen)
	assert.Empty(t, p.State().Err)
}

func TestPanel_UnauthorizedIsSilent(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p, rec := newTestPanel(func(context.Context) ([]string, error) {
		return nil, &apiclient.APIError{Status: 401, Detail: "token expired"}
	}, zap.New(core))

	err := p.Refresh(context.Background())

	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)
	st := p.State()
	assert.Empty(t, st.Err)
	assert.False(t, st.Loading)
	assert.Equal(t, 1, rec.loadingCleared())
	assert.Equal(t, 1, logs.FilterMessage("fetch rejected: unauthorized").Len())
}

func TestPanel_MissingTokenShowsMessage(t *testing.T) {
	p, _ := newTestPanel(func(context.Context) ([]string, error) {
		return nil, apiclient.ErrAuthTokenMissing
	}, nil)

	_ = p.Refresh(context.Background())

	assert.NotEmpty(t, p.State().Err)
	assert.Equal(t, PhaseError, p.State().Phase)
}

func TestPanel_NotReadyIsNoop(t *testing.T) {
	var calls atomic.Int32
	p := New(Config[[]string]{
		Name: "test",
		Fetch: func(context.Context) ([]string, error) {
			calls.Add(1)
			return nil, nil
		},
		Ready: func() bool { return false },
	})

	require.NoError(t, p.Refresh(context.Background()))

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, PhaseIdle, p.State().Phase)
	assert.False(t, p.State().Loading)
}

func TestPanel_NoTokenSourceRestoresPhase(t *testing.T) {
	p, _ := newTestPanel(func(context.Context) ([]string, error) {
		return nil, apiclient.ErrNoTokenSource
	}, nil)

	_ = p.Refresh(context.Background())

	st := p.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Empty(t, st.Err)
	assert.False(t, st.Loading)
}

func TestPanel_StaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32

	p, _ := newTestPanel(func(ctx context.Context) ([]string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return []string{"old"}, nil
		}
		return []string{"new"}, nil
	}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = p.Refresh(context.Background())
	}()

	<-started
	require.NoError(t, p.Refresh(context.Background()))
	close(release)
	wg.Wait()

	st := p.State()
	assert.Equal(t, []string{"new"}, st.Data)
	assert.Equal(t, uint64(2), st.Generation)
	assert.False(t, st.Loading)
}

func TestPanel_LoadingStaysWhileNewerFetchOutstanding(t *testing.T) {
	firstStarted, secondStarted := make(chan struct{}), make(chan struct{})
	firstRelease, secondRelease := make(chan struct{}), make(chan struct{})
	var calls atomic.Int32

	p, _ := newTestPanel(func(ctx context.Context) ([]string, error) {
		if calls.Add(1) == 1 {
			close(firstStarted)
			<-firstRelease
			return []string{"old"}, nil
		}
		close(secondStarted)
		<-secondRelease
		return []string{"new"}, nil
	}, nil)

	firstDone, secondDone := make(chan struct{}), make(chan struct{})
	go func() { defer close(firstDone); _ = p.Refresh(context.Background()) }()
	<-firstStarted
	go func() { defer close(secondDone); _ = p.Refresh(context.Background()) }()
	<-secondStarted

	close(firstRelease)
	<-firstDone

	// первый ответ устарел: Loading остается, данные не тронуты
	st := p.State()
	assert.True(t, st.Loading)
	assert.Empty(t, st.Data)

	close(secondRelease)
	<-secondDone

	st = p.State()
	assert.False(t, st.Loading)
	assert.Equal(t, []string{"new"}, st.Data)
}

func TestPanel_CloseDiscardsInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	p, _ := newTestPanel(func(context.Context) ([]string, error) {
		close(started)
		<-release
		return []string{"late"}, nil
	}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Refresh(context.Background())
	}()

	<-started
	p.Close()
	close(release)
	<-done

	st := p.State()
	assert.Equal(t, PhaseClosed, st.Phase)
	assert.Empty(t, st.Data)
	assert.ErrorIs(t, p.Refresh(context.Background()), ErrClosed)
}

func TestPanel_UpdateAndSetError(t *testing.T) {
	p, _ := newTestPanel(func(context.Context) ([]string, error) { return []string{"a"}, nil }, nil)
	require.NoError(t, p.Refresh(context.Background()))

	p.Update(func(in []string) []string { return append(append([]string{}, in...), "b") })
	p.SetError("could not save")

	st := p.State()
	assert.Equal(t, []string{"a", "b"}, st.Data)
	assert.Equal(t, "could not save", st.Err)
	assert.Equal(t, PhaseSuccess, st.Phase)
}

func TestPanel_CallerCancelIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, rec := newTestPanel(func(ctx context.Context) ([]string, error) {
		cancel()
		return nil, &apiclient.TransportError{Op: "GET /api/gates/exec-1", Err: ctx.Err()}
	}, nil)

	err := p.Refresh(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	st := p.State()
	assert.Empty(t, st.Err)
	assert.False(t, st.Loading)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, 1, rec.loadingCleared())
}
