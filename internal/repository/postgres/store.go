// Package postgres: постоянное хранилище devapi на pgx. Включается, если
// задан postgres.dsn.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/repository/memory"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore открывает пул и проверяет соединение с таймаутом.
func NewStore(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: database unreachable: %w", err)
	}
	return &Store{pool: pool, logger: logger.Named("postgres-store")}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate создает таблицы и заливает seed. Существующие строки не трогаются.
func (s *Store) Migrate(ctx context.Context, seed memory.Seed) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}

	batch := &pgx.Batch{}
	for _, u := range seed.Users {
		batch.Queue(`INSERT INTO users (id, username, password_hash, scopes) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING`, u.ID, u.Username, u.PasswordHash, u.Scopes)
	}
	for _, a := range seed.Alerts {
		batch.Queue(`INSERT INTO alerts (id, severity, metric, message, value, threshold, read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`,
			a.ID, string(a.Severity), a.Metric, a.Message, a.Value, a.Threshold, a.Read, a.CreatedAt)
	}
	for _, r := range seed.Rules {
		batch.Queue(`INSERT INTO alert_rules (id, metric, threshold, severity, created_at)
			VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			r.ID, r.Metric, r.Threshold, string(r.Severity), r.CreatedAt)
	}
	for name, v := range seed.Metrics {
		batch.Queue(`INSERT INTO metric_samples (name, value) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, name, v)
	}
	for _, g := range seed.Gates {
		batch.Queue(`INSERT INTO gates (execution_id, id, name, gate_status, reliability_level, reason, checked_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (execution_id, id) DO NOTHING`,
			g.ExecutionID, g.ID, g.Name, string(g.Status), g.ReliabilityLevel, g.Reason, g.CheckedAt)
	}
	for _, st := range seed.Strategies {
		batch.Queue(`INSERT INTO strategies (id, name, roi, reliability_level, updated_at)
			VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			st.ID, st.Name, st.ROI, st.ReliabilityLevel, st.UpdatedAt)
	}
	for _, a := range seed.Autonomy {
		batch.Queue(`INSERT INTO autonomy (agent_id, level, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (agent_id) DO NOTHING`, a.AgentID, string(a.Level), a.UpdatedAt)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: seed: %w", err)
	}
	s.logger.Info("schema ready", zap.Int("seed_statements", batch.Len()))
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	u := &domain.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, scopes FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Scopes)
	if err != nil {
		return nil, notFound(err, "user "+username)
	}
	return u, nil
}

const alertColumns = `id, severity, metric, message, value, threshold, read, created_at`

func scanAlert(row pgx.Row) (domain.Alert, error) {
	var (
		a        domain.Alert
		severity string
	)
	err := row.Scan(&a.ID, &severity, &a.Metric, &a.Message, &a.Value, &a.Threshold, &a.Read, &a.CreatedAt)
	a.Severity = domain.Severity(severity)
	return a, err
}

func (s *Store) ListAlerts(ctx context.Context) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Alert, error) { return scanAlert(r) })
}

func (s *Store) AddAlert(ctx context.Context, a domain.Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, string(a.Severity), a.Metric, a.Message, a.Value, a.Threshold, a.Read, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: add alert: %w", err)
	}
	return nil
}

func (s *Store) SetAlertRead(ctx context.Context, id string, read bool) (domain.Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx,
		`UPDATE alerts SET read = $1 WHERE id = $2 RETURNING `+alertColumns, read, id))
	if err != nil {
		return domain.Alert{}, notFound(err, "alert "+id)
	}
	return a, nil
}

func (s *Store) AddRule(ctx context.Context, r domain.AlertRule) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_rules (id, metric, threshold, severity, created_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.Metric, r.Threshold, string(r.Severity), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: add rule: %w", err)
	}
	return nil
}

func (s *Store) ListRules(ctx context.Context) ([]domain.AlertRule, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, metric, threshold, severity, created_at FROM alert_rules ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rules: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AlertRule, error) {
		var (
			r        domain.AlertRule
			severity string
		)
		err := row.Scan(&r.ID, &r.Metric, &r.Threshold, &severity, &r.CreatedAt)
		r.Severity = domain.Severity(severity)
		return r, err
	})
}

func (s *Store) Metrics(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, value FROM metric_samples`)
	if err != nil {
		return nil, fmt.Errorf("postgres: metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			name  string
			value float64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

const gateColumns = `id, execution_id, name, gate_status, reliability_level, reason, checked_at`

func scanGate(row pgx.Row) (domain.Gate, error) {
	var (
		g      domain.Gate
		status string
	)
	err := row.Scan(&g.ID, &g.ExecutionID, &g.Name, &status, &g.ReliabilityLevel, &g.Reason, &g.CheckedAt)
	g.Status = domain.GateStatus(status)
	return g, err
}

func (s *Store) ListGates(ctx context.Context, executionID string) ([]domain.Gate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+gateColumns+` FROM gates WHERE execution_id = $1 ORDER BY id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list gates: %w", err)
	}
	gates, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Gate, error) { return scanGate(r) })
	if err != nil {
		return nil, err
	}
	if gates == nil {
		gates = []domain.Gate{}
	}
	return gates, nil
}

func (s *Store) GetGate(ctx context.Context, executionID, gateID string) (domain.Gate, error) {
	g, err := scanGate(s.pool.QueryRow(ctx,
		`SELECT `+gateColumns+` FROM gates WHERE execution_id = $1 AND id = $2`, executionID, gateID))
	if err != nil {
		return domain.Gate{}, notFound(err, "gate "+executionID+"/"+gateID)
	}
	return g, nil
}

// SetGateStatus обновляет только PENDING гейт: гонку двух операторов решает база.
func (s *Store) SetGateStatus(ctx context.Context, executionID, gateID string, st domain.GateStatus) (domain.Gate, error) {
	g, err := scanGate(s.pool.QueryRow(ctx,
		`UPDATE gates SET gate_status = $1, checked_at = NOW()
		 WHERE execution_id = $2 AND id = $3 AND gate_status = $4
		 RETURNING `+gateColumns,
		string(st), executionID, gateID, string(domain.GatePending)))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetGate(ctx, executionID, gateID); getErr != nil {
			return domain.Gate{}, getErr
		}
		return domain.Gate{}, fmt.Errorf("gate %s: %w", gateID, domain.ErrAlreadyDecided)
	}
	if err != nil {
		return domain.Gate{}, fmt.Errorf("postgres: set gate status: %w", err)
	}
	return g, nil
}

func (s *Store) ListStrategies(ctx context.Context) ([]domain.StrategyPerformance, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, roi, reliability_level, updated_at FROM strategies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list strategies: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.StrategyPerformance])
}

func scanAutonomy(row pgx.Row) (domain.AutonomySetting, error) {
	var (
		a     domain.AutonomySetting
		level string
	)
	err := row.Scan(&a.AgentID, &level, &a.UpdatedAt)
	a.Level = domain.AutonomyLevel(level)
	return a, err
}

func (s *Store) GetAutonomy(ctx context.Context, agentID string) (domain.AutonomySetting, error) {
	a, err := scanAutonomy(s.pool.QueryRow(ctx,
		`SELECT agent_id, level, updated_at FROM autonomy WHERE agent_id = $1`, agentID))
	if err != nil {
		return domain.AutonomySetting{}, notFound(err, "agent "+agentID)
	}
	return a, nil
}

func (s *Store) SetAutonomy(ctx context.Context, agentID string, level domain.AutonomyLevel) (domain.AutonomySetting, error) {
	a, err := scanAutonomy(s.pool.QueryRow(ctx,
		`UPDATE autonomy SET level = $1, updated_at = NOW() WHERE agent_id = $2
		 RETURNING agent_id, level, updated_at`, string(level), agentID))
	if err != nil {
		return domain.AutonomySetting{}, notFound(err, "agent "+agentID)
	}
	return a, nil
}

// WriteAudit пишет пачку через COPY: журнал растет быстрее остальных таблиц.
func (s *Store) WriteAudit(ctx context.Context, entries []domain.AuditEntry) error {
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"audit_events"},
		[]string{"id", "trace_id", "actor", "action", "target", "payload", "created_at"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{e.ID, e.TraceID, e.Actor, e.Action, e.Target, e.Payload, e.Timestamp}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("postgres: write audit: %w", err)
	}
	s.logger.Debug("audit batch stored", zap.Int64("rows", n))
	return nil
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	q := `SELECT id, trace_id, actor, action, target, payload, created_at FROM audit_events ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AuditEntry, error) {
		var e domain.AuditEntry
		err := row.Scan(&e.ID, &e.TraceID, &e.Actor, &e.Action, &e.Target, &e.Payload, &e.Timestamp)
		return e, err
	})
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("postgres: %s: %w", what, err)
}
