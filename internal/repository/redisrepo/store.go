// Package redisrepo хранит изменяемое состояние devapi в Redis: отметки
// прочтения, решения по гейтам, уровни автономии. Остальное берется из
// memory.Store. Так несколько инстансов devapi видят одни и те же решения.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
	"github.com/xela07ax/vintrade-console/internal/infra"
	"github.com/xela07ax/vintrade-console/internal/repository/memory"
)

type Store struct {
	*memory.Store
	rdb    *redis.Client
	logger *zap.Logger
}

func NewStore(rdb *redis.Client, base *memory.Store, logger *zap.Logger) *Store {
	return &Store{Store: base, rdb: rdb, logger: logger.Named("redis-store")}
}

// NewClient проверяет соединение сразу: devapi без Redis при заданном адресе не стартует.
func NewClient(ctx context.Context, cfg infra.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func (s *Store) ListAlerts(ctx context.Context) ([]domain.Alert, error) {
	alerts, err := s.Store.ListAlerts(ctx)
	if err != nil {
		return nil, err
	}
	read, err := s.rdb.SMembers(ctx, infra.RedisKeyReadAlerts).Result()
	if err != nil {
		return nil, fmt.Errorf("read set: %w", err)
	}
	readSet := make(map[string]struct{}, len(read))
	for _, id := range read {
		readSet[id] = struct{}{}
	}
	for i := range alerts {
		_, alerts[i].Read = readSet[alerts[i].ID]
	}
	return alerts, nil
}

func (s *Store) SetAlertRead(ctx context.Context, id string, read bool) (domain.Alert, error) {
	// проверяем существование по базовому хранилищу
	a, err := s.Store.SetAlertRead(ctx, id, read)
	if err != nil {
		return domain.Alert{}, err
	}
	if read {
		err = s.rdb.SAdd(ctx, infra.RedisKeyReadAlerts, id).Err()
	} else {
		err = s.rdb.SRem(ctx, infra.RedisKeyReadAlerts, id).Err()
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("update read set: %w", err)
	}
	return a, nil
}

func (s *Store) ListGates(ctx context.Context, executionID string) ([]domain.Gate, error) {
	gates, err := s.Store.ListGates(ctx, executionID)
	if err != nil {
		return nil, err
	}
	decided, err := s.rdb.HGetAll(ctx, infra.GateStatusKey(executionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("gate statuses: %w", err)
	}
	for i := range gates {
		if st, ok := decided[gates[i].ID]; ok {
			gates[i].Status = domain.GateStatus(st)
		}
	}
	return gates, nil
}

func (s *Store) GetGate(ctx context.Context, executionID, gateID string) (domain.Gate, error) {
	g, err := s.Store.GetGate(ctx, executionID, gateID)
	if err != nil {
		return domain.Gate{}, err
	}
	st, err := s.rdb.HGet(ctx, infra.GateStatusKey(executionID), gateID).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return domain.Gate{}, fmt.Errorf("gate status: %w", err)
	default:
		g.Status = domain.GateStatus(st)
	}
	return g, nil
}

// SetGateStatus: решение принимает HSETNX, из двух операторов побеждает первый.
// Локальная копия обновляется только у победителя.
func (s *Store) SetGateStatus(ctx context.Context, executionID, gateID string, st domain.GateStatus) (domain.Gate, error) {
	g, err := s.Store.GetGate(ctx, executionID, gateID)
	if err != nil {
		return domain.Gate{}, err
	}
	if st == domain.GatePending {
		return domain.Gate{}, fmt.Errorf("gate %s: %w", gateID, domain.ErrInvalidTransition)
	}

	won, err := s.rdb.HSetNX(ctx, infra.GateStatusKey(executionID), gateID, string(st)).Result()
	if err != nil {
		return domain.Gate{}, fmt.Errorf("persist gate status: %w", err)
	}
	if !won {
		return domain.Gate{}, fmt.Errorf("gate %s: %w", gateID, domain.ErrAlreadyDecided)
	}

	if local, err := s.Store.SetGateStatus(ctx, executionID, gateID, st); err == nil {
		g = local
	} else {
		// seed этого инстанса уже считает гейт решенным, источник правды Redis
		s.logger.Warn("local gate state diverged", zap.String("gate_id", gateID), zap.Error(err))
		now := time.Now().UTC()
		g.Status, g.CheckedAt = st, &now
	}
	s.logger.Debug("gate status stored", zap.String("execution_id", executionID), zap.String("gate_id", gateID))
	return g, nil
}

func (s *Store) GetAutonomy(ctx context.Context, agentID string) (domain.AutonomySetting, error) {
	a, err := s.Store.GetAutonomy(ctx, agentID)
	if err != nil {
		return domain.AutonomySetting{}, err
	}
	level, err := s.rdb.HGet(ctx, infra.RedisKeyAutonomy, agentID).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return domain.AutonomySetting{}, fmt.Errorf("autonomy level: %w", err)
	default:
		a.Level = domain.AutonomyLevel(level)
	}
	return a, nil
}

func (s *Store) SetAutonomy(ctx context.Context, agentID string, level domain.AutonomyLevel) (domain.AutonomySetting, error) {
	a, err := s.Store.SetAutonomy(ctx, agentID, level)
	if err != nil {
		return domain.AutonomySetting{}, err
	}
	if err := s.rdb.HSet(ctx, infra.RedisKeyAutonomy, agentID, string(level)).Err(); err != nil {
		return domain.AutonomySetting{}, fmt.Errorf("persist autonomy level: %w", err)
	}
	return a, nil
}

// WriteAudit кладет пачку одним pipeline и обрезает список до AuditLogCap.
func (s *Store) WriteAudit(ctx context.Context, entries []domain.AuditEntry) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			raw, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal audit entry %s: %w", e.ID, err)
			}
			pipe.LPush(ctx, infra.RedisKeyAuditLog, raw)
		}
		pipe.LTrim(ctx, infra.RedisKeyAuditLog, 0, infra.AuditLogCap-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}
	raw, err := s.rdb.LRange(ctx, infra.RedisKeyAuditLog, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	out := make([]domain.AuditEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.AuditEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			s.logger.Warn("skipping malformed audit entry", zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
