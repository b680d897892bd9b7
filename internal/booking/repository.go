package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adao00/agendamento/internal/equipment"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository is the transactional surface of the booking engine. Every method
// is one atomic unit: it either fully commits or leaves no trace.
type Repository interface {
	Create(ctx context.Context, b *Booking, lines []Line) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context) ([]Booking, error)
	ListByProfessor(ctx context.Context, professorID string) ([]Booking, error)
	Update(ctx context.Context, b *Booking) error
	Delete(ctx context.Context, id string) error

	CreateAllocation(ctx context.Context, a *Allocation) error
	GetAllocation(ctx context.Context, id string) (*Allocation, error)
	ListAllocationDetails(ctx context.Context) ([]AllocationDetail, error)
	UpdateAllocation(ctx context.Context, a *Allocation) error
	DeleteAllocation(ctx context.Context, id string) error
}

const (
	sqlInsertBooking = `INSERT INTO bookings (id, professor_id, space_id, booking_date, start_time, end_time, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	sqlSelectBooking = `SELECT id, professor_id, space_id, booking_date, start_time, end_time, notes, created_at
		FROM bookings WHERE id=$1`
	sqlListBookings = `SELECT id, professor_id, space_id, booking_date, start_time, end_time, notes, created_at
		FROM bookings ORDER BY booking_date, start_time`
	sqlListBookingsByProfessor = `SELECT b.id, b.professor_id, b.space_id, b.booking_date, b.start_time, b.end_time, b.notes, b.created_at, s.name
		FROM bookings b JOIN spaces s ON b.space_id = s.id
		WHERE b.professor_id=$1 ORDER BY b.booking_date, b.start_time`
	sqlUpdateBooking = `UPDATE bookings
		SET professor_id=$2, space_id=$3, booking_date=$4, start_time=$5, end_time=$6, notes=$7
		WHERE id=$1`
	sqlBookingExists = `SELECT 1 FROM bookings WHERE id=$1`
	sqlDeleteBooking = `DELETE FROM bookings WHERE id=$1`

	sqlInsertAllocation = `INSERT INTO booking_equipment (id, booking_id, equipment_id, quantity)
		VALUES ($1, $2, $3, $4)`
	sqlSelectAllocation = `SELECT id, booking_id, equipment_id, quantity
		FROM booking_equipment WHERE id=$1`
	sqlLockAllocation = `SELECT id, booking_id, equipment_id, quantity
		FROM booking_equipment WHERE id=$1 FOR UPDATE`
	sqlListAllocationsByBooking = `SELECT id, booking_id, equipment_id, quantity
		FROM booking_equipment WHERE booking_id=$1`
	sqlUpdateAllocation = `UPDATE booking_equipment SET equipment_id=$2, quantity=$3 WHERE id=$1`
	sqlDeleteAllocation = `DELETE FROM booking_equipment WHERE id=$1`
	sqlDeleteAllocationsByBooking = `DELETE FROM booking_equipment WHERE booking_id=$1`

	sqlListAllocationDetails = `SELECT ba.id, ba.booking_id, ba.equipment_id, ba.quantity,
		e.code, e.name, b.booking_date, b.start_time, b.end_time, p.name, s.name
		FROM booking_equipment ba
		JOIN equipment e ON ba.equipment_id = e.id
		JOIN bookings b ON ba.booking_id = b.id
		JOIN professors p ON b.professor_id = p.id
		JOIN spaces s ON b.space_id = s.id
		ORDER BY b.booking_date DESC, b.start_time DESC`
)

type PostgresRepository struct {
	pool      DBPool
	ledger    *equipment.Ledger
	conflicts ConflictDetector
	directory Directory
}

func NewPostgresRepository(pool DBPool, ledger *equipment.Ledger) *PostgresRepository {
	return &PostgresRepository{pool: pool, ledger: ledger}
}

// Create admits the booking and all its equipment lines as one transaction.
// The first failed step rolls back everything: no booking row, no allocation
// row and no stock delta survive a partial create.
func (r *PostgresRepository) Create(ctx context.Context, b *Booking, lines []Line) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := r.directory.ProfessorExists(ctx, tx, b.ProfessorID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("professor %s: %w", b.ProfessorID, ErrNotFound)
	}

	ok, err = r.directory.SpaceExists(ctx, tx, b.SpaceID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("space %s: %w", b.SpaceID, ErrNotFound)
	}

	conflict, err := r.conflicts.HasConflict(ctx, tx, b.SpaceID, b.Date, b.StartTime, b.EndTime, "")
	if err != nil {
		return err
	}
	if conflict {
		return ErrConflict
	}

	_, err = tx.Exec(ctx, sqlInsertBooking,
		b.ID, b.ProfessorID, b.SpaceID, b.Date, b.StartTime, b.EndTime, b.Notes)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	b.Allocations = b.Allocations[:0]
	for _, line := range lines {
		if err := r.ledger.Reserve(ctx, tx, line.EquipmentID, line.Quantity); err != nil {
			if errors.Is(err, equipment.ErrNotFound) {
				return fmt.Errorf("equipment %s: %w", line.EquipmentID, ErrNotFound)
			}
			return err
		}

		alloc := Allocation{
			ID:          uuid.NewString(),
			BookingID:   b.ID,
			EquipmentID: line.EquipmentID,
			Quantity:    line.Quantity,
		}
		if _, err := tx.Exec(ctx, sqlInsertAllocation,
			alloc.ID, alloc.BookingID, alloc.EquipmentID, alloc.Quantity); err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
		b.Allocations = append(b.Allocations, alloc)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	row := r.pool.QueryRow(ctx, sqlSelectBooking, id)
	if err := row.Scan(&b.ID, &b.ProfessorID, &b.SpaceID, &b.Date, &b.StartTime, &b.EndTime, &b.Notes, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select booking: %w", err)
	}

	allocs, err := r.listAllocations(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	b.Allocations = allocs
	return &b, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, sqlListBookings)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.ProfessorID, &b.SpaceID, &b.Date, &b.StartTime, &b.EndTime, &b.Notes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return bookings, nil
}

func (r *PostgresRepository) ListByProfessor(ctx context.Context, professorID string) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, sqlListBookingsByProfessor, professorID)
	if err != nil {
		return nil, fmt.Errorf("select bookings by professor: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.ProfessorID, &b.SpaceID, &b.Date, &b.StartTime, &b.EndTime, &b.Notes, &b.CreatedAt, &b.SpaceName); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return bookings, nil
}

// Update replaces the booking's own fields. Allocations are untouched; they
// have their own update path.
func (r *PostgresRepository) Update(ctx context.Context, b *Booking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := exists(ctx, tx, sqlBookingExists, b.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	ok, err = r.directory.SpaceExists(ctx, tx, b.SpaceID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("space %s: %w", b.SpaceID, ErrNotFound)
	}

	conflict, err := r.conflicts.HasConflict(ctx, tx, b.SpaceID, b.Date, b.StartTime, b.EndTime, b.ID)
	if err != nil {
		return err
	}
	if conflict {
		return ErrConflict
	}

	if _, err := tx.Exec(ctx, sqlUpdateBooking,
		b.ID, b.ProfessorID, b.SpaceID, b.Date, b.StartTime, b.EndTime, b.Notes); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete releases every child allocation's stock before removing the rows.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := exists(ctx, tx, sqlBookingExists, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	allocs, err := r.listAllocations(ctx, tx, id)
	if err != nil {
		return err
	}
	for _, a := range allocs {
		if err := r.ledger.Release(ctx, tx, a.EquipmentID, a.Quantity); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, sqlDeleteAllocationsByBooking, id); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlDeleteBooking, id); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateAllocation(ctx context.Context, a *Allocation) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := exists(ctx, tx, sqlBookingExists, a.BookingID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("booking %s: %w", a.BookingID, ErrNotFound)
	}

	if err := r.ledger.Reserve(ctx, tx, a.EquipmentID, a.Quantity); err != nil {
		if errors.Is(err, equipment.ErrNotFound) {
			return fmt.Errorf("equipment %s: %w", a.EquipmentID, ErrNotFound)
		}
		return err
	}

	if _, err := tx.Exec(ctx, sqlInsertAllocation,
		a.ID, a.BookingID, a.EquipmentID, a.Quantity); err != nil {
		return fmt.Errorf("insert allocation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAllocation(ctx context.Context, id string) (*Allocation, error) {
	var a Allocation
	row := r.pool.QueryRow(ctx, sqlSelectAllocation, id)
	if err := row.Scan(&a.ID, &a.BookingID, &a.EquipmentID, &a.Quantity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select allocation: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) ListAllocationDetails(ctx context.Context) ([]AllocationDetail, error) {
	rows, err := r.pool.Query(ctx, sqlListAllocationDetails)
	if err != nil {
		return nil, fmt.Errorf("select allocation details: %w", err)
	}
	defer rows.Close()

	var details []AllocationDetail
	for rows.Next() {
		var d AllocationDetail
		if err := rows.Scan(&d.ID, &d.BookingID, &d.EquipmentID, &d.Quantity,
			&d.EquipmentCode, &d.EquipmentName, &d.Date, &d.StartTime, &d.EndTime,
			&d.ProfessorName, &d.SpaceName); err != nil {
			return nil, fmt.Errorf("scan allocation detail: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return details, nil
}

// UpdateAllocation swaps one equipment line in place. The old quantity goes
// back first, then the new reserve runs against the post-release availability,
// so moving an allocation onto its own equipment never fails against stock it
// itself holds. Release and reserve commit together or not at all.
func (r *PostgresRepository) UpdateAllocation(ctx context.Context, a *Allocation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var old Allocation
	row := tx.QueryRow(ctx, sqlLockAllocation, a.ID)
	if err := row.Scan(&old.ID, &old.BookingID, &old.EquipmentID, &old.Quantity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select allocation: %w", err)
	}
	a.BookingID = old.BookingID

	if err := r.ledger.Release(ctx, tx, old.EquipmentID, old.Quantity); err != nil {
		return err
	}
	if err := r.ledger.Reserve(ctx, tx, a.EquipmentID, a.Quantity); err != nil {
		if errors.Is(err, equipment.ErrNotFound) {
			return fmt.Errorf("equipment %s: %w", a.EquipmentID, ErrNotFound)
		}
		return err
	}

	if _, err := tx.Exec(ctx, sqlUpdateAllocation, a.ID, a.EquipmentID, a.Quantity); err != nil {
		return fmt.Errorf("update allocation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllocation(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var a Allocation
	row := tx.QueryRow(ctx, sqlLockAllocation, id)
	if err := row.Scan(&a.ID, &a.BookingID, &a.EquipmentID, &a.Quantity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select allocation: %w", err)
	}

	if err := r.ledger.Release(ctx, tx, a.EquipmentID, a.Quantity); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sqlDeleteAllocation, id); err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) listAllocations(ctx context.Context, q Querier, bookingID string) ([]Allocation, error) {
	rows, err := q.Query(ctx, sqlListAllocationsByBooking, bookingID)
	if err != nil {
		return nil, fmt.Errorf("select allocations: %w", err)
	}
	defer rows.Close()

	var allocs []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.BookingID, &a.EquipmentID, &a.Quantity); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		allocs = append(allocs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return allocs, nil
}
