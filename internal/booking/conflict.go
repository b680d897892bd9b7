package booking

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the slice of pgx.Tx the engine components run their statements
// through. Everything here executes inside a transaction owned by the
// coordinator.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const (
	// Serializes conflict scans for the same space and date against concurrent
	// transactions. Released automatically at commit or rollback.
	sqlLockAgenda = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	// Two half-open [start, end) intervals overlap iff each starts before the
	// other ends. Touching endpoints do not overlap, so adjacent bookings pass.
	sqlCountConflicts = `SELECT count(*) FROM bookings
		WHERE space_id=$1 AND booking_date=$2 AND id <> $3
		AND start_time < $5 AND end_time > $4`
)

type ConflictDetector struct{}

// HasConflict reports whether any booking for the space on the date overlaps
// [start, end). excludeID skips the booking being updated; pass "" on create.
// Callers must have validated start < end already.
func (ConflictDetector) HasConflict(ctx context.Context, q Querier, spaceID, date, start, end, excludeID string) (bool, error) {
	if _, err := q.Exec(ctx, sqlLockAgenda, spaceID+"@"+date); err != nil {
		return false, fmt.Errorf("lock agenda %s %s: %w", spaceID, date, err)
	}

	var n int
	if err := q.QueryRow(ctx, sqlCountConflicts, spaceID, date, excludeID, start, end).Scan(&n); err != nil {
		return false, fmt.Errorf("scan conflicts: %w", err)
	}
	return n > 0, nil
}
