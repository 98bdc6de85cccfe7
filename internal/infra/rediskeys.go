package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "vintrade"
)

// Ключи состояния devapi
const (
	RedisKeyReadAlerts = RedisNamespace + ":alerts:read_set"
	RedisKeyAutonomy   = RedisNamespace + ":autonomy:levels" // hash agent_id -> level
	RedisKeyAuditLog   = RedisNamespace + ":audit:log"       // list JSON, новые слева
)

// AuditLogCap: сколько последних записей журнала держим в Redis.
const AuditLogCap = 10000

// GateStatusKey: hash gate_id -> status для одного исполнения
func GateStatusKey(executionID string) string {
	return fmt.Sprintf("%s:gates:%s", RedisNamespace, executionID)
}
