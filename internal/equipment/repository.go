package equipment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (Item, error)
	List(ctx context.Context) ([]Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id string) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const (
	sqlInsertEquipment = `INSERT INTO equipment (id, code, name, kind, total_quantity, available, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	sqlSelectEquipment = `SELECT id, code, name, kind, total_quantity, available, active
		FROM equipment WHERE id=$1`
	sqlListEquipment = `SELECT id, code, name, kind, total_quantity, available, active
		FROM equipment ORDER BY code`
	sqlUpdateEquipment = `UPDATE equipment
		SET code=$2, name=$3, kind=$4, total_quantity=$5, available=$6, active=$7, updated_at=now()
		WHERE id=$1`
	sqlDeleteEquipment = `DELETE FROM equipment WHERE id=$1`
)

func (r *PostgresRepository) Create(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Total < 1 || item.Available < 0 || item.Available > item.Total {
		return ErrInvalidStock
	}

	_, err := r.pool.Exec(ctx, sqlInsertEquipment,
		item.ID, item.Code, item.Name, item.Kind, item.Total, item.Available, item.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert equipment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Item, error) {
	var item Item
	row := r.pool.QueryRow(ctx, sqlSelectEquipment, id)
	if err := row.Scan(&item.ID, &item.Code, &item.Name, &item.Kind, &item.Total, &item.Available, &item.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("select equipment: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, sqlListEquipment)
	if err != nil {
		return nil, fmt.Errorf("select equipment: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Code, &item.Name, &item.Kind, &item.Total, &item.Available, &item.Active); err != nil {
			return nil, fmt.Errorf("scan equipment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) Update(ctx context.Context, item *Item) error {
	tag, err := r.pool.Exec(ctx, sqlUpdateEquipment,
		item.ID, item.Code, item.Name, item.Kind, item.Total, item.Available, item.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("update equipment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, sqlDeleteEquipment, id)
	if err != nil {
		return fmt.Errorf("delete equipment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
