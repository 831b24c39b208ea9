package postgres

import (
	"context"
	"fmt"
	"time"
)

// healthTimeout keeps a saturated pool from stalling GET /health.
const healthTimeout = 2 * time.Second

// HealthCheck implements ports.HealthChecker for PostgreSQL. It runs through
// the same Pool the account repository uses, so it also reports pool
// exhaustion.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping runs SELECT 1 within healthTimeout.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if _, err := h.pool.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("postgresql ping: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
