package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
	"github.com/xela07ax/vintrade-console/internal/infra"
)

const alertsBody = `{"alerts":[
	{"id":"a1","severity":"CRITICAL","metric":"drawdown","message":"drawdown 12%","read":false},
	{"id":"a2","severity":"INFO","metric":"roi","message":"roi ok","read":true}
]}`

// newAlertsFixture поднимает httptest бэкенд: GET отдает два алерта,
// PATCH обрабатывает patch. Внутри patch видно состояние панели в момент запроса.
func newAlertsFixture(t *testing.T, patch func(w http.ResponseWriter, a *AlertsPanel)) (*AlertsPanel, *observer.ObservedLogs) {
	t.Helper()
	var panelRef *AlertsPanel

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(alertsBody))
		case http.MethodPatch:
			patch(w, panelRef)
		}
	}))
	t.Cleanup(srv.Close)

	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)
	client := apiclient.New(infra.APIConfig{BaseURL: srv.URL, Timeout: time.Second}, apiclient.StaticToken("tok"), logger)

	panelRef = NewAlertsPanel(NewService(client), logger, nil, nil)
	require.NoError(t, panelRef.Refresh(context.Background()))
	require.Equal(t, 1, panelRef.Unread())
	return panelRef, logs
}

func TestAlerts_MarkReadCommits(t *testing.T) {
	var readDuringRequest bool
	a, _ := newAlertsFixture(t, func(w http.ResponseWriter, a *AlertsPanel) {
		readDuringRequest, _ = a.readFlag("a1")
		w.Write([]byte(`{"id":"a1","severity":"CRITICAL","read":true}`))
	})

	require.NoError(t, a.MarkRead(context.Background(), "a1"))

	assert.True(t, readDuringRequest, "read flag must be set before the server answers")
	assert.Equal(t, 0, a.Unread())
	assert.Empty(t, a.State().Err)
}

func TestAlerts_MarkReadUnauthorizedRevertsSilently(t *testing.T) {
	var readDuringRequest bool
	a, logs := newAlertsFixture(t, func(w http.ResponseWriter, a *AlertsPanel) {
		readDuringRequest, _ = a.readFlag("a1")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"token expired"}`))
	})

	err := a.MarkRead(context.Background(), "a1")

	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)
	assert.True(t, readDuringRequest)
	read, _ := a.readFlag("a1")
	assert.False(t, read)
	assert.Empty(t, a.State().Err)
	assert.Equal(t, 1, logs.FilterMessage("mutation rolled back: unauthorized").Len())
}

func TestAlerts_MarkReadServerErrorShowsDetail(t *testing.T) {
	a, _ := newAlertsFixture(t, func(w http.ResponseWriter, _ *AlertsPanel) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"alert store is read-only"}`))
	})

	err := a.MarkRead(context.Background(), "a1")

	require.Error(t, err)
	read, _ := a.readFlag("a1")
	assert.False(t, read)
	assert.Equal(t, 1, a.Unread())
	assert.Equal(t, "alert store is read-only", a.State().Err)
}

func TestAlerts_MarkReadUnknownOrAlreadyRead(t *testing.T) {
	calls := 0
	a, _ := newAlertsFixture(t, func(w http.ResponseWriter, _ *AlertsPanel) {
		calls++
		w.Write([]byte(`{}`))
	})

	assert.NoError(t, a.MarkRead(context.Background(), "a2"))
	assert.Error(t, a.MarkRead(context.Background(), "missing"))
	assert.Equal(t, 0, calls)
}

func TestAlerts_MarkReadNoContentStaysCommitted(t *testing.T) {
	a, logs := newAlertsFixture(t, func(w http.ResponseWriter, _ *AlertsPanel) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, a.MarkRead(context.Background(), "a1"))

	read, _ := a.readFlag("a1")
	assert.True(t, read)
	assert.Empty(t, a.State().Err)
	assert.Equal(t, 1, logs.FilterMessage("mutation committed, response body ignored").Len())
}
