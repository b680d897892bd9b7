package booking

import (
	"context"
	"errors"
	"io"
	"log"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/adao00/agendamento/internal/equipment"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	ledger := equipment.NewLedger(log.New(io.Discard, "", 0))
	return NewPostgresRepository(mock, ledger), mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

// Ledger statements as issued by the equipment package, restated here so the
// coordinator tests can pin the exact order they hit the wire in.
const (
	sqlLedgerLock      = `SELECT available FROM equipment WHERE id=$1 FOR UPDATE`
	sqlLedgerDecrement = `UPDATE equipment SET available = available - $2, updated_at=now() WHERE id=$1`
	sqlLedgerIncrement = `UPDATE equipment SET available = available + $2, updated_at=now() WHERE id=$1`
)

func expectDirectoryChecks(mock pgxmock.PgxPoolIface, professorID, spaceID string) {
	mock.ExpectQuery(q(sqlProfessorExists)).WithArgs(professorID).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(q(sqlSpaceExists)).WithArgs(spaceID).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
}

func expectConflictScan(mock pgxmock.PgxPoolIface, spaceID, date, excludeID, start, end string, conflicts int) {
	mock.ExpectExec(q(sqlLockAgenda)).WithArgs(spaceID + "@" + date).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(q(sqlCountConflicts)).WithArgs(spaceID, date, excludeID, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(conflicts))
}

func TestRepositoryCreate_CommitsBookingAndAllocations(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ctx := context.Background()

	b := &Booking{
		ID:          "bk-1",
		ProfessorID: "prof-1",
		SpaceID:     "s1",
		Date:        "2026-09-01",
		StartTime:   "10:00:00",
		EndTime:     "11:00:00",
	}

	mock.ExpectBegin()
	expectDirectoryChecks(mock, "prof-1", "s1")
	expectConflictScan(mock, "s1", "2026-09-01", "", "10:00:00", "11:00:00", 0)
	mock.ExpectExec(q(sqlInsertBooking)).
		WithArgs("bk-1", "prof-1", "s1", "2026-09-01", "10:00:00", "11:00:00", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectQuery(q(sqlLedgerLock)).WithArgs("e1").
		WillReturnRows(pgxmock.NewRows([]string{"available"}).AddRow(5))
	mock.ExpectExec(q(sqlLedgerDecrement)).WithArgs("e1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(q(sqlInsertAllocation)).
		WithArgs(pgxmock.AnyArg(), "bk-1", "e1", 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.Create(ctx, b, []Line{{EquipmentID: "e1", Quantity: 2}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(b.Allocations) != 1 || b.Allocations[0].EquipmentID != "e1" {
		t.Fatalf("allocations not recorded: %+v", b.Allocations)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryCreate_ConflictRollsBack(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	b := &Booking{
		ID: "bk-1", ProfessorID: "prof-1", SpaceID: "s1",
		Date: "2026-09-01", StartTime: "10:30:00", EndTime: "10:45:00",
	}

	mock.ExpectBegin()
	expectDirectoryChecks(mock, "prof-1", "s1")
	expectConflictScan(mock, "s1", "2026-09-01", "", "10:30:00", "10:45:00", 1)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), b, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryCreate_InsufficientStockRollsBack(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	b := &Booking{
		ID: "bk-1", ProfessorID: "prof-1", SpaceID: "s1",
		Date: "2026-09-01", StartTime: "10:00:00", EndTime: "11:00:00",
	}

	mock.ExpectBegin()
	expectDirectoryChecks(mock, "prof-1", "s1")
	expectConflictScan(mock, "s1", "2026-09-01", "", "10:00:00", "11:00:00", 0)
	mock.ExpectExec(q(sqlInsertBooking)).
		WithArgs("bk-1", "prof-1", "s1", "2026-09-01", "10:00:00", "11:00:00", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(q(sqlLedgerLock)).WithArgs("e1").
		WillReturnRows(pgxmock.NewRows([]string{"available"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), b, []Line{{EquipmentID: "e1", Quantity: 2}})

	var stockErr *equipment.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.EquipmentID != "e1" || stockErr.Requested != 2 || stockErr.Available != 1 {
		t.Fatalf("unexpected shortfall detail: %+v", stockErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryCreate_MissingProfessor(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	b := &Booking{
		ID: "bk-1", ProfessorID: "ghost", SpaceID: "s1",
		Date: "2026-09-01", StartTime: "10:00:00", EndTime: "11:00:00",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(q(sqlProfessorExists)).WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))
	mock.ExpectRollback()

	if err := repo.Create(context.Background(), b, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryUpdate_ExcludesSelf(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	b := &Booking{
		ID: "bk-1", ProfessorID: "prof-1", SpaceID: "s1",
		Date: "2026-09-01", StartTime: "10:00:00", EndTime: "11:30:00",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(q(sqlBookingExists)).WithArgs("bk-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(q(sqlSpaceExists)).WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	expectConflictScan(mock, "s1", "2026-09-01", "bk-1", "10:00:00", "11:30:00", 0)
	mock.ExpectExec(q(sqlUpdateBooking)).
		WithArgs("bk-1", "prof-1", "s1", "2026-09-01", "10:00:00", "11:30:00", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := repo.Update(context.Background(), b); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryDelete_ReleasesEveryAllocation(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(sqlBookingExists)).WithArgs("bk-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(q(sqlListAllocationsByBooking)).WithArgs("bk-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "booking_id", "equipment_id", "quantity"}).
			AddRow("al-1", "bk-1", "e1", 1).
			AddRow("al-2", "bk-1", "e2", 4))
	mock.ExpectExec(q(sqlLedgerIncrement)).WithArgs("e1", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(q(sqlLedgerIncrement)).WithArgs("e2", 4).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(q(sqlDeleteAllocationsByBooking)).WithArgs("bk-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(q(sqlDeleteBooking)).WithArgs("bk-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	if err := repo.Delete(context.Background(), "bk-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryDelete_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(sqlBookingExists)).WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))
	mock.ExpectRollback()

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryUpdateAllocation_ReleaseThenReserve(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(sqlLockAllocation)).WithArgs("al-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "booking_id", "equipment_id", "quantity"}).
			AddRow("al-1", "bk-1", "e1", 3))
	// Old quantity goes back to e1 before e2 is checked.
	mock.ExpectExec(q(sqlLedgerIncrement)).WithArgs("e1", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(q(sqlLedgerLock)).WithArgs("e2").
		WillReturnRows(pgxmock.NewRows([]string{"available"}).AddRow(5))
	mock.ExpectExec(q(sqlLedgerDecrement)).WithArgs("e2", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(q(sqlUpdateAllocation)).WithArgs("al-1", "e2", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	a := &Allocation{ID: "al-1", EquipmentID: "e2", Quantity: 3}
	if err := repo.UpdateAllocation(context.Background(), a); err != nil {
		t.Fatalf("update allocation: %v", err)
	}
	if a.BookingID != "bk-1" {
		t.Fatalf("booking id not carried over: %q", a.BookingID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryUpdateAllocation_ShortfallAbortsWholeStep(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(sqlLockAllocation)).WithArgs("al-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "booking_id", "equipment_id", "quantity"}).
			AddRow("al-1", "bk-1", "e1", 3))
	mock.ExpectExec(q(sqlLedgerIncrement)).WithArgs("e1", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(q(sqlLedgerLock)).WithArgs("e2").
		WillReturnRows(pgxmock.NewRows([]string{"available"}).AddRow(1))
	mock.ExpectRollback()

	a := &Allocation{ID: "al-1", EquipmentID: "e2", Quantity: 3}
	err := repo.UpdateAllocation(context.Background(), a)

	var stockErr *equipment.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	// The release above rolls back with everything else: the step is atomic.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryDeleteAllocation_ReleasesBeforeRemoving(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(sqlLockAllocation)).WithArgs("al-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "booking_id", "equipment_id", "quantity"}).
			AddRow("al-1", "bk-1", "e1", 2))
	mock.ExpectExec(q(sqlLedgerIncrement)).WithArgs("e1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(q(sqlDeleteAllocation)).WithArgs("al-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	if err := repo.DeleteAllocation(context.Background(), "al-1"); err != nil {
		t.Fatalf("delete allocation: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryGetByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q(sqlSelectBooking)).WithArgs("bk-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "professor_id", "space_id", "booking_date", "start_time", "end_time", "notes", "created_at"}).
			AddRow("bk-1", "prof-1", "s1", "2026-09-01", "10:00:00", "11:00:00", "seminar", created))
	mock.ExpectQuery(q(sqlListAllocationsByBooking)).WithArgs("bk-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "booking_id", "equipment_id", "quantity"}).
			AddRow("al-1", "bk-1", "e1", 2))

	b, err := repo.GetByID(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.SpaceID != "s1" || b.Notes != "seminar" || len(b.Allocations) != 1 {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
