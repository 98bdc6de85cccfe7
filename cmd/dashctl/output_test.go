package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
	"github.com/xela07ax/vintrade-console/internal/dashboard"
	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/infra"
)

func TestPrintGates(t *testing.T) {
	var buf bytes.Buffer
	printGates(&buf, []domain.Gate{
		{ID: "kyc", Name: "KYC", Status: domain.GatePassed},
		{ID: "aml", Name: "AML", Status: domain.GateBlocked, Reason: "sanctions hit"},
	}, domain.GateBlocked)

	out := buf.String()
	assert.Contains(t, out, "GATE")
	assert.Contains(t, out, "sanctions hit")
	assert.Contains(t, out, "overall: BLOCKED\n")
}

func TestPrintAlertsAndStrategies(t *testing.T) {
	var buf bytes.Buffer
	printAlerts(&buf, []domain.Alert{{ID: "a1", Severity: domain.SeverityCritical, Metric: "drawdown", Message: "drawdown 12%"}})
	assert.Contains(t, buf.String(), "drawdown 12%")
	assert.Contains(t, buf.String(), "false")

	buf.Reset()
	printStrategies(&buf, []domain.StrategyPerformance{{ID: "s1", Name: "Bordeaux carry", ROI: 0.0712}})
	assert.Contains(t, buf.String(), "+7.12%")
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)
	assert.Equal(t, "2026-03-01 09:30", formatTime(ts))
}

func TestExplain(t *testing.T) {
	assert.NoError(t, explain(nil))
	assert.EqualError(t, explain(apiclient.ErrNoTokenSource), "no credentials configured: set auth.token or auth.username")
	assert.EqualError(t, explain(&apiclient.APIError{Status: 409, Detail: "gate already decided"}), "gate already decided")
	assert.EqualError(t, explain(apiclient.ErrUnauthorized), "unauthorized: sign in again")
}

func TestTokenSource(t *testing.T) {
	assert.Nil(t, tokenSource(&infra.Config{}))

	tok, err := tokenSource(&infra.Config{Auth: infra.AuthConfig{Token: "tok", Username: "op"}}).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestPrintSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/alerts":
			w.Write([]byte(`{"alerts":[{"id":"a1","severity":"CRITICAL"},{"id":"a2","severity":"INFO","read":true}]}`))
		case "/api/strategies/performance":
			w.Write([]byte(`[{"id":"s1","name":"Bordeaux carry","roi":0.04},{"id":"s2","name":"Burgundy momentum","roi":0.21}]`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"gate service down"}`))
		}
	}))
	defer srv.Close()

	c := apiclient.New(infra.APIConfig{BaseURL: srv.URL, Timeout: time.Second}, apiclient.StaticToken("tok"), zap.NewNop())
	d := dashboard.New(c, infra.Config{Poll: infra.PollConfig{Gates: time.Hour}}, nil, zap.NewNop())
	defer d.Close()
	ctx := context.Background()
	require.NoError(t, d.Alerts.Refresh(ctx))
	require.NoError(t, d.Strategies.Refresh(ctx))

	var buf bytes.Buffer
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	printSummary(&buf, now, d, "")
	assert.Equal(t, "[09:30:00] unread alerts: 1 | best: Burgundy momentum +21.00%\n", buf.String())

	require.Error(t, d.Gates.Load(ctx, "exec-1"))
	buf.Reset()
	printSummary(&buf, now, d, "exec-1")
	assert.Contains(t, buf.String(), "| exec-1: PASSED")
	assert.Contains(t, buf.String(), "| error: gate service down")
}

func TestExplainKeepsTransportMessage(t *testing.T) {
	err := explain(&apiclient.TransportError{Op: "GET /api/alerts", Err: errors.New("connection refused")})
	assert.EqualError(t, err, "connection refused")
}
