package postgres

import (
	"context"
	"errors"
	"fmt"
)

// errSchemaMissing is reported when the server answers but the tables were
// never created (database.migrate off against a fresh database).
var errSchemaMissing = errors.New("deliveries table missing, run with database.migrate enabled")

// HealthCheck implements ports.HealthChecker. It checks connectivity and
// that the schema is in place.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var ok bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('deliveries') IS NOT NULL`).Scan(&ok); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	if !ok {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
