package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type ProfessorRepository interface {
	Create(ctx context.Context, p *Professor) error
	GetByID(ctx context.Context, id string) (*Professor, error)
	List(ctx context.Context) ([]Professor, error)
}

type professorRepo struct {
	db *sql.DB
}

func NewProfessorRepository(db *sql.DB) ProfessorRepository {
	return &professorRepo{db: db}
}

func (r *professorRepo) Create(ctx context.Context, p *Professor) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = "professor"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO professors (id, email, name, role) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Email, p.Name, p.Role,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert professor: %w", err)
	}
	return nil
}

func (r *professorRepo) GetByID(ctx context.Context, id string) (*Professor, error) {
	var p Professor
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, role FROM professors WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &p.Name, &p.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select professor: %w", err)
	}
	return &p, nil
}

func (r *professorRepo) List(ctx context.Context) ([]Professor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, name, role FROM professors ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select professors: %w", err)
	}
	defer rows.Close()

	var professors []Professor
	for rows.Next() {
		var p Professor
		if err := rows.Scan(&p.ID, &p.Email, &p.Name, &p.Role); err != nil {
			return nil, fmt.Errorf("scan professor: %w", err)
		}
		professors = append(professors, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return professors, nil
}
