package dashboard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/panel"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

func gatesJSON(executionID string, statuses ...domain.GateStatus) string {
	out := `{"gates":[`
	for i, st := range statuses {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"id":"g%d","execution_id":%q,"name":"KYC","gate_status":%q}`, i+1, executionID, st)
	}
	return out + `]}`
}

func TestGates_NotReadyWithoutExecution(t *testing.T) {
	api := newFakeAPI()
	g := NewGatesPanel(NewService(api), time.Hour, domain.GatePassed, zap.NewNop(), nil)

	require.NoError(t, g.Refresh(context.Background()))

	assert.Empty(t, api.requests("gates.list"))
	assert.Equal(t, domain.GatePassed, g.Overall())
}

func TestGates_WatchPollsAndRetargets(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newFakeAPI()
	api.on("gates.list", func(r apiclient.Request) ([]byte, error) {
		switch r.Path {
		case "/api/gates/exec-1":
			return []byte(gatesJSON("exec-1", domain.GatePassed, domain.GateBlocked)), nil
		default:
			return []byte(gatesJSON("exec-2", domain.GatePassed, domain.GatePassed)), nil
		}
	})
	g := NewGatesPanel(NewService(api), testTick, domain.GatePassed, zap.NewNop(), nil)
	defer g.Stop()

	g.Watch(context.Background(), "exec-1")
	require.Eventually(t, func() bool { return g.Overall() == domain.GateBlocked }, testTimeout, testTick)

	g.Watch(context.Background(), "exec-2")
	require.Eventually(t, func() bool {
		data := g.State().Data
		return len(data) == 2 && data[0].ExecutionID == "exec-2"
	}, testTimeout, testTick)
	assert.Equal(t, domain.GatePassed, g.Overall())

	g.Watch(context.Background(), "")
	n := len(api.requests("gates.list"))
	time.Sleep(10 * testTick)
	assert.Equal(t, n, len(api.requests("gates.list")))
	assert.Empty(t, g.State().Data)
}

func TestGates_RetargetClearsPreviousExecution(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	var once sync.Once
	api := newFakeAPI()
	api.on("gates.list", func(r apiclient.Request) ([]byte, error) {
		if r.Path == "/api/gates/exec-2" {
			once.Do(func() { <-release })
			return []byte(gatesJSON("exec-2", domain.GatePending)), nil
		}
		return []byte(gatesJSON("exec-1", domain.GateBlocked)), nil
	})
	g := NewGatesPanel(NewService(api), time.Hour, domain.GatePassed, zap.NewNop(), nil)
	defer g.Stop()

	g.Watch(context.Background(), "exec-1")
	require.Eventually(t, func() bool { return len(g.State().Data) == 1 }, testTimeout, testTick)

	g.Watch(context.Background(), "exec-2")
	// пока ответ по exec-2 не пришел, гейты exec-1 уже не показываются
	assert.Empty(t, g.State().Data)
	assert.Equal(t, domain.GatePassed, g.Overall())

	close(release)
	require.Eventually(t, func() bool { return g.Overall() == domain.GatePending }, testTimeout, testTick)
}

func TestGates_EmptyStatusPolicy(t *testing.T) {
	api := newFakeAPI()
	api.reply("gates.list", `{"gates":[]}`)
	g := NewGatesPanel(NewService(api), time.Hour, domain.GatePending, zap.NewNop(), nil)
	defer g.Stop()

	g.Watch(context.Background(), "exec-1")
	require.Eventually(t, func() bool { return g.State().Phase == panel.PhaseSuccess }, testTimeout, testTick)

	assert.Equal(t, domain.GatePending, g.Overall())
}

func TestGates_Decide(t *testing.T) {
	api := newFakeAPI()
	api.reply("gates.list", gatesJSON("exec-1", domain.GatePending, domain.GatePassed))
	api.on("gates.decide", func(r apiclient.Request) ([]byte, error) {
		return []byte(fmt.Sprintf(`{"id":"g1","gate_status":%q}`, r.Query.Get("gate_status"))), nil
	})
	g := NewGatesPanel(NewService(api), time.Hour, domain.GatePassed, zap.NewNop(), nil)
	defer g.Stop()

	g.Watch(context.Background(), "exec-1")
	require.Eventually(t, func() bool { return len(g.State().Data) == 2 }, testTimeout, testTick)

	require.NoError(t, g.Decide(context.Background(), "g1", domain.GatePassed))
	assert.Equal(t, domain.GatePassed, g.Overall())

	reqs := api.requests("gates.decide")
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/gates/exec-1/g1", reqs[0].Path)

	// решенный гейт не меняется, на сервер ничего не уходит
	assert.ErrorIs(t, g.Decide(context.Background(), "g2", domain.GateBlocked), domain.ErrAlreadyDecided)
	assert.Len(t, api.requests("gates.decide"), 1)
}

func TestGates_DecideRollsBack(t *testing.T) {
	api := newFakeAPI()
	api.reply("gates.list", gatesJSON("exec-1", domain.GatePending))
	api.on("gates.decide", func(apiclient.Request) ([]byte, error) {
		return nil, &apiclient.APIError{Status: 409, Detail: "gate already decided by compliance"}
	})
	g := NewGatesPanel(NewService(api), time.Hour, domain.GatePassed, zap.NewNop(), nil)
	defer g.Stop()

	g.Watch(context.Background(), "exec-1")
	require.Eventually(t, func() bool { return len(g.State().Data) == 1 }, testTimeout, testTick)

	require.Error(t, g.Decide(context.Background(), "g1", domain.GateBlocked))

	assert.Equal(t, domain.GatePending, g.Overall())
	assert.Equal(t, "gate already decided by compliance", g.State().Err)
}

func TestGates_RollbackSkipsOtherExecution(t *testing.T) {
	api := newFakeAPI()
	api.on("gates.list", func(r apiclient.Request) ([]byte, error) {
		if r.Path == "/api/gates/exec-2" {
			return []byte(gatesJSON("exec-2", domain.GatePassed)), nil
		}
		return []byte(gatesJSON("exec-1", domain.GatePending)), nil
	})
	g := NewGatesPanel(NewService(api), time.Hour, domain.GatePassed, zap.NewNop(), nil)
	defer g.Stop()
	api.on("gates.decide", func(apiclient.Request) ([]byte, error) {
		// оператор открыл другое исполнение, пока решение в полете
		if err := g.Load(context.Background(), "exec-2"); err != nil {
			return nil, err
		}
		return nil, &apiclient.APIError{Status: 500, Detail: "ledger is locked"}
	})
	require.NoError(t, g.Load(context.Background(), "exec-1"))

	require.Error(t, g.Decide(context.Background(), "g1", domain.GateBlocked))

	gates := g.State().Data
	require.Len(t, gates, 1)
	assert.Equal(t, "exec-2", gates[0].ExecutionID)
	assert.Equal(t, domain.GatePassed, gates[0].Status)
}

func TestGates_DecideEmptyBodyStaysCommitted(t *testing.T) {
	api := newFakeAPI()
	api.reply("gates.list", gatesJSON("exec-1", domain.GatePending))
	api.reply("gates.decide", "")
	g := NewGatesPanel(NewService(api), time.Hour, domain.GatePassed, zap.NewNop(), nil)
	defer g.Stop()
	require.NoError(t, g.Load(context.Background(), "exec-1"))

	require.NoError(t, g.Decide(context.Background(), "g1", domain.GateBlocked))

	assert.Equal(t, domain.GateBlocked, g.Overall())
	assert.Empty(t, g.State().Err)
}
