package domain

import (
	"fmt"
	"strings"
	"time"
)

// AutonomyLevel определяет, насколько агент может торговать без человека.
type AutonomyLevel string

const (
	AutonomyManual     AutonomyLevel = "MANUAL"     // Каждое действие подтверждает оператор
	AutonomySupervised AutonomyLevel = "SUPERVISED" // Исполнение после прохождения гейтов
	AutonomyAutonomous AutonomyLevel = "AUTONOMOUS" // Полная автономия в пределах лимитов
)

func ParseAutonomyLevel(s string) (AutonomyLevel, error) {
	l := AutonomyLevel(strings.ToUpper(strings.TrimSpace(s)))
	switch l {
	case AutonomyManual, AutonomySupervised, AutonomyAutonomous:
		return l, nil
	}
	return "", fmt.Errorf("unknown autonomy level %q", s)
}

type AutonomySetting struct {
	AgentID   string        `json:"agent_id"`
	Level     AutonomyLevel `json:"level"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (a AutonomySetting) Validate() error {
	if a.AgentID == "" {
		return fmt.Errorf("autonomy: %w: agent_id is empty", ErrShapeMismatch)
	}
	if _, err := ParseAutonomyLevel(string(a.Level)); err != nil {
		return fmt.Errorf("autonomy %s: %w: %v", a.AgentID, ErrShapeMismatch, err)
	}
	return nil
}
