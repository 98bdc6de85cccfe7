package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	switch sev {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return sev, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Alert: срабатывание правила по метрике (цена лота, ROI стратегии и т.д.)
type Alert struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Metric    string    `json:"metric"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (a Alert) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("alert: %w: id is empty", ErrShapeMismatch)
	}
	if _, err := ParseSeverity(string(a.Severity)); err != nil {
		return fmt.Errorf("alert %s: %w: %v", a.ID, ErrShapeMismatch, err)
	}
	return nil
}

// ErrInvalidRule: правило не прошло проверку до отправки.
var ErrInvalidRule = errors.New("invalid alert rule")

// AlertRule: правило, по которому бэкенд поднимает алерты.
type AlertRule struct {
	ID        string    `json:"id,omitempty"`
	Metric    string    `json:"metric"`
	Threshold float64   `json:"threshold"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Validate проверяет правило до отправки на сервер.
func (r AlertRule) Validate() error {
	if strings.TrimSpace(r.Metric) == "" {
		return fmt.Errorf("%w: metric is required", ErrInvalidRule)
	}
	if _, err := ParseSeverity(string(r.Severity)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}
