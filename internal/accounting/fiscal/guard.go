// Package fiscal implements the fiscal-year lock gate. The ledger
// engine respects it when posting; locking and unlocking years is an
// administrative concern owned elsewhere.
package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting"
)

// Guard answers whether a posting date falls inside a locked year.
type Guard struct {
	db *pgxpool.Pool
}

// NewGuard constructs the guard.
func NewGuard(db *pgxpool.Pool) *Guard {
	return &Guard{db: db}
}

// EnsureOpen fails with the ledger's period-locked error when the date
// is covered by a lock row. A guard without a database allows
// everything, matching deployments that never lock years.
func (g *Guard) EnsureOpen(ctx context.Context, date time.Time) error {
	if g == nil || g.db == nil {
		return nil
	}
	var year int
	err := g.db.QueryRow(ctx, `SELECT year FROM fiscal_locks WHERE $1 BETWEEN year_start AND year_end LIMIT 1`, date).Scan(&year)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	return fmt.Errorf("%w: fiscal year %d", accounting.ErrPeriodLocked, year)
}
