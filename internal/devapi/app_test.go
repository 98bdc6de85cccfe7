package devapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
	"github.com/xela07ax/vintrade-console/internal/dashboard"
	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/infra"
	"github.com/xela07ax/vintrade-console/internal/panel"
)

// DevAPISuite гоняет настоящий клиент консоли против devapi через httptest.
type DevAPISuite struct {
	suite.Suite
	app    *App
	srv    *httptest.Server
	client *apiclient.Client
	svc    *dashboard.Service
}

func (s *DevAPISuite) SetupTest() {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	s.Require().NoError(err)

	cfg := &infra.Config{
		Auth:   infra.AuthConfig{Username: "operator", TokenTTL: time.Hour},
		DevAPI: infra.DevAPIConfig{PasswordHash: string(hash)},
	}
	s.app, err = NewApp(context.Background(), cfg, nil, zap.NewNop())
	s.Require().NoError(err)

	s.srv = httptest.NewServer(s.app.Handler)
	tokens := apiclient.NewPasswordTokenSource(s.srv.URL, "operator", "s3cret", 1, nil, zap.NewNop())
	s.client = apiclient.New(infra.APIConfig{BaseURL: s.srv.URL, Timeout: 5 * time.Second}, tokens, zap.NewNop())
	s.svc = dashboard.NewService(s.client)
}

func (s *DevAPISuite) TearDownTest() {
	s.srv.Close()
	s.Require().NoError(s.app.Close())
}

func (s *DevAPISuite) TestHealthIsPublic() {
	resp, err := http.Get(s.srv.URL + "/health")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *DevAPISuite) TestUnauthenticatedGets401Detail() {
	c := apiclient.New(infra.APIConfig{BaseURL: s.srv.URL}, apiclient.StaticToken("garbage"), zap.NewNop())

	_, err := dashboard.NewService(c).ListAlerts(context.Background())

	s.ErrorIs(err, apiclient.ErrUnauthorized)
	var apiErr *apiclient.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal("Could not validate credentials", apiErr.Detail)
}

func (s *DevAPISuite) TestWrongPasswordIsMissingToken() {
	tokens := apiclient.NewPasswordTokenSource(s.srv.URL, "operator", "nope", 3, nil, zap.NewNop())
	c := apiclient.New(infra.APIConfig{BaseURL: s.srv.URL}, tokens, zap.NewNop())

	_, err := dashboard.NewService(c).ListAlerts(context.Background())

	s.Equal(apiclient.KindMissingToken, apiclient.Classify(err))
}

func (s *DevAPISuite) TestAlertsMarkRead() {
	ctx := context.Background()
	alerts := dashboard.NewAlertsPanel(s.svc, zap.NewNop(), nil, nil)
	s.Require().NoError(alerts.Refresh(ctx))
	unread := alerts.Unread()
	s.Require().Positive(unread)

	s.Require().NoError(alerts.MarkRead(ctx, "alert-1001"))
	s.Equal(unread-1, alerts.Unread())

	// сервер запомнил отметку
	s.Require().NoError(alerts.Refresh(ctx))
	s.Equal(unread-1, alerts.Unread())

	err := alerts.MarkRead(ctx, "alert-9999")
	s.ErrorIs(err, panel.ErrEntityNotFound)
}

func (s *DevAPISuite) TestGatesDecideAndConflict() {
	ctx := context.Background()

	gates, err := s.svc.ListGates(ctx, "exec-2041")
	s.Require().NoError(err)
	s.Equal(domain.GatePending, domain.OverallGateStatus(gates, ""))

	for _, id := range []string{"aml", "tax"} {
		g, err := s.svc.DecideGate(ctx, "exec-2041", id, domain.GatePassed)
		s.Require().NoError(err)
		s.Equal(domain.GatePassed, g.Status)
	}
	gates, err = s.svc.ListGates(ctx, "exec-2041")
	s.Require().NoError(err)
	s.Equal(domain.GatePassed, domain.OverallGateStatus(gates, ""))

	_, err = s.svc.DecideGate(ctx, "exec-2041", "aml", domain.GateBlocked)
	var apiErr *apiclient.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusConflict, apiErr.Status)

	gates, err = s.svc.ListGates(ctx, "exec-2042")
	s.Require().NoError(err)
	s.Equal(domain.GateBlocked, domain.OverallGateStatus(gates, ""))

	gates, err = s.svc.ListGates(ctx, "exec-unknown")
	s.Require().NoError(err)
	s.Empty(gates)
}

func (s *DevAPISuite) TestGatesPanelDecide() {
	ctx := context.Background()
	gates := dashboard.NewGatesPanel(s.svc, 0, domain.GatePassed, zap.NewNop(), nil)
	defer gates.Stop()

	s.Require().NoError(gates.Load(ctx, "exec-2041"))
	s.Equal(domain.GatePending, gates.Overall())

	s.Require().NoError(gates.Decide(ctx, "aml", domain.GateBlocked))
	s.Equal(domain.GateBlocked, gates.Overall())

	s.Require().NoError(gates.Load(ctx, "exec-2041"))
	s.Equal(domain.GateBlocked, gates.Overall(), "decision persisted on the server")
}

func (s *DevAPISuite) TestStrategiesBareArray() {
	items, err := s.svc.StrategyPerformance(context.Background())
	s.Require().NoError(err)
	s.Len(items, 3)
}

func (s *DevAPISuite) TestAutonomy() {
	ctx := context.Background()
	autonomy := dashboard.NewAutonomyPanel(s.svc, zap.NewNop(), nil)
	s.Require().NoError(autonomy.Select(ctx, "agent-arbitrage"))
	s.Equal(domain.AutonomyManual, autonomy.State().Data.Level)

	s.Require().NoError(autonomy.SetLevel(ctx, domain.AutonomyAutonomous))

	got, err := s.svc.GetAutonomy(ctx, "agent-arbitrage")
	s.Require().NoError(err)
	s.Equal(domain.AutonomyAutonomous, got.Level)

	_, err = s.svc.GetAutonomy(ctx, "agent-ghost")
	var apiErr *apiclient.APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusNotFound, apiErr.Status)
}

func (s *DevAPISuite) TestAuditTrail() {
	ctx := apiclient.WithTraceID(context.Background(), "trace-audit")
	_, err := s.svc.SetAutonomy(ctx, "agent-arbitrage", domain.AutonomySupervised)
	s.Require().NoError(err)

	// сбрасываем буфер журнала в хранилище
	s.app.journal.Stop()

	entries, err := s.svc.AuditLog(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(domain.AuditAutonomySet, entries[0].Action)
	s.Equal("agent-arbitrage", entries[0].Target)
	s.Equal("trace-audit", entries[0].TraceID)
	s.NotEmpty(entries[0].Actor)
	s.Equal(string(domain.AutonomySupervised), entries[0].Payload["level"])
}

func (s *DevAPISuite) TestRuleCreationRaisesAlert() {
	ctx := context.Background()
	before, err := s.svc.ListAlerts(ctx)
	s.Require().NoError(err)

	rule, err := s.svc.CreateAlertRule(ctx, domain.AlertRule{Metric: "drawdown", Threshold: 0.05, Severity: domain.SeverityCritical})
	s.Require().NoError(err)
	s.NotEmpty(rule.ID)

	after, err := s.svc.ListAlerts(ctx)
	s.Require().NoError(err)
	s.Len(after, len(before)+1)
	s.Equal("drawdown", after[0].Metric)
	s.False(after[0].Read)
}

func TestDevAPISuite(t *testing.T) {
	suite.Run(t, new(DevAPISuite))
}

func TestNewApp_SeedRuleBreachedOnStartup(t *testing.T) {
	cfg := &infra.Config{DevAPI: infra.DevAPIConfig{PasswordHash: "$2a$04$invalidbutunused"}}
	app, err := NewApp(context.Background(), cfg, nil, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	alerts, err := app.Trading.ListAlerts(context.Background())
	require.NoError(t, err)
	// seed: exposure 0.64 при пороге 0.5
	var exposure int
	for _, a := range alerts {
		if a.Metric == "exposure" {
			exposure++
		}
	}
	assert.Equal(t, 1, exposure)
}
