package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// GateStatus: статусы State Machine гейта исполнения
type GateStatus string

const (
	GatePassed  GateStatus = "PASSED"
	GateBlocked GateStatus = "BLOCKED"
	GatePending GateStatus = "PENDING"
)

var (
	ErrInvalidTransition = errors.New("invalid gate status transition")
	ErrAlreadyDecided    = errors.New("gate already decided")
)

// ParseGateStatus приводит строку к статусу, регистр не важен.
func ParseGateStatus(s string) (GateStatus, error) {
	st := GateStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case GatePassed, GateBlocked, GatePending:
		return st, nil
	}
	return "", fmt.Errorf("unknown gate status %q", s)
}

// Gate: предусловие (KYC, AML, Tax), которое должно пройти до исполнения сделки.
type Gate struct {
	ID               string     `json:"id"`
	ExecutionID      string     `json:"execution_id"`
	Name             string     `json:"name"` // "KYC", "AML", "TAX"
	Status           GateStatus `json:"gate_status"`
	ReliabilityLevel string     `json:"reliability_level,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	CheckedAt        *time.Time `json:"checked_at,omitempty"`
}

func (g Gate) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("gate: %w: id is empty", ErrShapeMismatch)
	}
	if _, err := ParseGateStatus(string(g.Status)); err != nil {
		return fmt.Errorf("gate %s: %w: %v", g.ID, ErrShapeMismatch, err)
	}
	return nil
}

// CanTransitionTo проверяет правила конечного автомата:
// PENDING -> PASSED | BLOCKED, решенный гейт больше не меняется.
func (g *Gate) CanTransitionTo(next GateStatus) error {
	if g.Status != GatePending {
		return ErrAlreadyDecided
	}
	if next == GatePending {
		return ErrInvalidTransition
	}
	return nil
}

// OverallGateStatus считает сводный статус по списку гейтов.
// Блокировка доминирует, успех требует единогласия. Для пустого списка
// возвращается empty (по умолчанию PASSED, см. gates.empty_status).
func OverallGateStatus(gates []Gate, empty GateStatus) GateStatus {
	if len(gates) == 0 {
		if empty == "" {
			return GatePassed
		}
		return empty
	}

	allPassed := true
	for _, g := range gates {
		switch g.Status {
		case GateBlocked:
			return GateBlocked
		case GatePassed:
		default:
			allPassed = false
		}
	}

	if allPassed {
		return GatePassed
	}
	return GatePending
}
