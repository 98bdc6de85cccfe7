package devapi

import (
	"time"

	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/repository/memory"
)

// DefaultSeed: демо-данные винной торговой площадки.
func DefaultSeed(username, passwordHash string, now time.Time) memory.Seed {
	checked := now.Add(-10 * time.Minute)
	return memory.Seed{
		Users: []domain.User{{
			ID:           "user-operator",
			Username:     username,
			PasswordHash: passwordHash,
			Scopes: map[string]bool{
				domain.ScopeRead:         true,
				domain.ScopeAlertsWrite:  true,
				domain.ScopeGatesDecide:  true,
				domain.ScopeAutonomyEdit: true,
			},
		}},
		Alerts: []domain.Alert{
			{
				ID: "alert-1001", Severity: domain.SeverityCritical, Metric: "drawdown",
				Message: "Portfolio drawdown 12% exceeds 10% limit", Value: 0.12, Threshold: 0.10,
				CreatedAt: now.Add(-5 * time.Minute),
			},
			{
				ID: "alert-1002", Severity: domain.SeverityWarning, Metric: "lot_price:bordeaux-2019",
				Message: "Bordeaux 2019 lot price moved 8% in an hour", Value: 0.08, Threshold: 0.05,
				CreatedAt: now.Add(-30 * time.Minute),
			},
			{
				ID: "alert-1003", Severity: domain.SeverityInfo, Metric: "roi",
				Message: "Weekly ROI report is ready", Read: true,
				CreatedAt: now.Add(-2 * time.Hour),
			},
		},
		Rules: []domain.AlertRule{
			{ID: "rule-1", Metric: "exposure", Threshold: 0.5, Severity: domain.SeverityWarning, CreatedAt: now.Add(-24 * time.Hour)},
		},
		Gates: []domain.Gate{
			{ID: "kyc", ExecutionID: "exec-2041", Name: "KYC", Status: domain.GatePassed, ReliabilityLevel: "HIGH", CheckedAt: &checked},
			{ID: "aml", ExecutionID: "exec-2041", Name: "AML", Status: domain.GatePending, ReliabilityLevel: "MEDIUM"},
			{ID: "tax", ExecutionID: "exec-2041", Name: "TAX", Status: domain.GatePending, ReliabilityLevel: "MEDIUM"},
			{ID: "kyc", ExecutionID: "exec-2042", Name: "KYC", Status: domain.GateBlocked, Reason: "sanctions list match", CheckedAt: &checked},
		},
		Strategies: []domain.StrategyPerformance{
			{ID: "strat-bdx-carry", Name: "Bordeaux carry", ROI: 0.071, ReliabilityLevel: "HIGH", UpdatedAt: now},
			{ID: "strat-bgy-mom", Name: "Burgundy momentum", ROI: 0.184, ReliabilityLevel: "MEDIUM", UpdatedAt: now},
			{ID: "strat-chp-spread", Name: "Champagne spread", ROI: -0.023, ReliabilityLevel: "LOW", UpdatedAt: now},
		},
		Autonomy: []domain.AutonomySetting{
			{AgentID: "agent-sommelier", Level: domain.AutonomySupervised, UpdatedAt: now},
			{AgentID: "agent-arbitrage", Level: domain.AutonomyManual, UpdatedAt: now},
		},
		Metrics: map[string]float64{
			"drawdown": 0.12,
			"exposure": 0.64,
			"roi":      0.071,
		},
	}
}
