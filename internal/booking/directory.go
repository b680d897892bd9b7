package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	sqlSpaceExists     = `SELECT 1 FROM spaces WHERE id=$1`
	sqlProfessorExists = `SELECT 1 FROM professors WHERE id=$1`
)

// Directory answers existence questions about the entities a booking
// references. Absence is an answer, not a fault; the coordinator turns it
// into a NotFound outcome.
type Directory struct{}

func (Directory) SpaceExists(ctx context.Context, q Querier, id string) (bool, error) {
	return exists(ctx, q, sqlSpaceExists, id)
}

func (Directory) ProfessorExists(ctx context.Context, q Querier, id string) (bool, error) {
	return exists(ctx, q, sqlProfessorExists, id)
}

func exists(ctx context.Context, q Querier, sql, id string) (bool, error) {
	var one int
	if err := q.QueryRow(ctx, sql, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("existence check: %w", err)
	}
	return true, nil
}
