package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCode = errors.New("code already exists")
)

type SpaceRepository interface {
	Create(ctx context.Context, s *Space) error
	GetByID(ctx context.Context, id string) (*Space, error)
	List(ctx context.Context) ([]Space, error)
	Update(ctx context.Context, s *Space) error
	Delete(ctx context.Context, id string) error
}

type spaceRepo struct {
	db *sql.DB
}

func NewSpaceRepository(db *sql.DB) SpaceRepository {
	return &spaceRepo{db: db}
}

func (r *spaceRepo) Create(ctx context.Context, s *Space) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO spaces (id, code, name, kind, capacity, description)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Code, s.Name, s.Kind, s.Capacity, s.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert space: %w", err)
	}
	return nil
}

func (r *spaceRepo) GetByID(ctx context.Context, id string) (*Space, error) {
	var s Space
	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, name, kind, capacity, description, created_at
         FROM spaces WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Code, &s.Name, &s.Kind, &s.Capacity, &s.Description, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select space: %w", err)
	}
	return &s, nil
}

func (r *spaceRepo) List(ctx context.Context) ([]Space, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code, name, kind, capacity, description, created_at
         FROM spaces ORDER BY code`,
	)
	if err != nil {
		return nil, fmt.Errorf("select spaces: %w", err)
	}
	defer rows.Close()

	var spaces []Space
	for rows.Next() {
		var s Space
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Kind, &s.Capacity, &s.Description, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		spaces = append(spaces, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return spaces, nil
}

func (r *spaceRepo) Update(ctx context.Context, s *Space) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE spaces SET code = $2, name = $3, kind = $4, capacity = $5, description = $6
         WHERE id = $1`,
		s.ID, s.Code, s.Name, s.Kind, s.Capacity, s.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("update space: %w", err)
	}
	return requireRow(res)
}

func (r *spaceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM spaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete space: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
