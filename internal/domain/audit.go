package domain

import (
	"fmt"
	"strings"
	"time"
)

// Действия оператора, которые попадают в журнал.
const (
	AuditAlertRead   = "alert.read"
	AuditRuleCreate  = "rule.create"
	AuditGateDecide  = "gate.decide"
	AuditAutonomySet = "autonomy.set"
)

// AuditEntry: одна запись журнала изменений, сделанных через API.
type AuditEntry struct {
	ID        string         `json:"id"`
	TraceID   string         `json:"trace_id"`
	Actor     string         `json:"actor"`  // user_id из токена
	Action    string         `json:"action"` // AuditGateDecide и т.д.
	Target    string         `json:"target"` // "exec-2041/aml", "alert-1001"
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e AuditEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.Action) == "" {
		return fmt.Errorf("audit entry: %w: id and action are required", ErrShapeMismatch)
	}
	return nil
}
