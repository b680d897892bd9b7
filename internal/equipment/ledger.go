package equipment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the slice of pgx.Tx the ledger needs. Reserve and Release always
// run inside a transaction owned by the caller.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const (
	sqlLockAvailability = `SELECT available FROM equipment WHERE id=$1 FOR UPDATE`
	sqlDecrementStock   = `UPDATE equipment SET available = available - $2, updated_at=now() WHERE id=$1`
	sqlIncrementStock   = `UPDATE equipment SET available = available + $2, updated_at=now() WHERE id=$1`
)

// Ledger is the only mutation path for equipment availability used by the
// booking engine. Every Reserve must be paired with exactly one Release over
// the lifetime of the allocation that owns it.
type Ledger struct {
	logger *log.Logger
}

func NewLedger(logger *log.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// Reserve re-reads availability under a row lock and decrements it only if
// enough stock remains. On shortfall it returns InsufficientStockError and
// leaves the row untouched. A missing equipment id is ErrNotFound.
func (l *Ledger) Reserve(ctx context.Context, q Querier, equipmentID string, quantity int) error {
	var available int
	err := q.QueryRow(ctx, sqlLockAvailability, equipmentID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock equipment %s: %w", equipmentID, err)
	}

	if available < quantity {
		return &InsufficientStockError{
			EquipmentID: equipmentID,
			Requested:   quantity,
			Available:   available,
		}
	}

	if _, err := q.Exec(ctx, sqlDecrementStock, equipmentID, quantity); err != nil {
		return fmt.Errorf("decrement equipment %s: %w", equipmentID, err)
	}
	return nil
}

// Release returns quantity units to the item. It is unconditional: the schema
// caps available at total_quantity, and tripping that cap means a reserve was
// released twice, which is a coordinator bug, not a user error.
func (l *Ledger) Release(ctx context.Context, q Querier, equipmentID string, quantity int) error {
	tag, err := q.Exec(ctx, sqlIncrementStock, equipmentID, quantity)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			l.logger.Printf("ledger: release of %d on equipment %s exceeds total stock", quantity, equipmentID)
		}
		return fmt.Errorf("increment equipment %s: %w", equipmentID, err)
	}
	if tag.RowsAffected() == 0 {
		l.logger.Printf("ledger: release on missing equipment %s", equipmentID)
		return ErrNotFound
	}
	return nil
}
