package domain

import (
	"fmt"
	"time"
)

// StrategyPerformance: строка панели аналитики по торговым стратегиям.
type StrategyPerformance struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ROI              float64   `json:"roi"`
	ReliabilityLevel string    `json:"reliability_level"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (s StrategyPerformance) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("strategy: %w: id is empty", ErrShapeMismatch)
	}
	return nil
}
