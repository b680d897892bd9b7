package booking

import (
	"context"
	"log"
)

// EventPublisher notifies downstream consumers after a booking operation
// commits. Publishing is best-effort and never changes the engine outcome.
type EventPublisher interface {
	BookingCreated(ctx context.Context, b *Booking)
	BookingCancelled(ctx context.Context, bookingID string)
}

// Service fronts the transactional repository with window validation and the
// post-commit event fanout. One call, one atomic transition.
type Service struct {
	repo   Repository
	pub    EventPublisher
	logger *log.Logger
}

func NewService(repo Repository, pub EventPublisher, logger *log.Logger) *Service {
	return &Service{repo: repo, pub: pub, logger: logger}
}

// Create rejects an inverted or empty window before anything else runs: no
// conflict scan, no stock check, no writes.
func (s *Service) Create(ctx context.Context, b *Booking, lines []Line) error {
	if b.StartTime >= b.EndTime {
		return ErrInvalidWindow
	}

	if err := s.repo.Create(ctx, b, lines); err != nil {
		return err
	}

	s.logger.Printf("booking created id=%s space=%s date=%s window=%s-%s lines=%d",
		b.ID, b.SpaceID, b.Date, b.StartTime, b.EndTime, len(b.Allocations))
	if s.pub != nil {
		s.pub.BookingCreated(ctx, b)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Booking, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListByProfessor(ctx context.Context, professorID string) ([]Booking, error) {
	return s.repo.ListByProfessor(ctx, professorID)
}

func (s *Service) Update(ctx context.Context, b *Booking) error {
	if b.StartTime >= b.EndTime {
		return ErrInvalidWindow
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return err
	}
	s.logger.Printf("booking updated id=%s space=%s date=%s window=%s-%s",
		b.ID, b.SpaceID, b.Date, b.StartTime, b.EndTime)
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Printf("booking deleted id=%s", id)
	if s.pub != nil {
		s.pub.BookingCancelled(ctx, id)
	}
	return nil
}

func (s *Service) CreateAllocation(ctx context.Context, a *Allocation) error {
	if err := s.repo.CreateAllocation(ctx, a); err != nil {
		return err
	}
	s.logger.Printf("allocation created id=%s booking=%s equipment=%s qty=%d",
		a.ID, a.BookingID, a.EquipmentID, a.Quantity)
	return nil
}

func (s *Service) GetAllocation(ctx context.Context, id string) (*Allocation, error) {
	return s.repo.GetAllocation(ctx, id)
}

func (s *Service) ListAllocationDetails(ctx context.Context) ([]AllocationDetail, error) {
	return s.repo.ListAllocationDetails(ctx)
}

func (s *Service) UpdateAllocation(ctx context.Context, a *Allocation) error {
	if err := s.repo.UpdateAllocation(ctx, a); err != nil {
		return err
	}
	s.logger.Printf("allocation updated id=%s equipment=%s qty=%d", a.ID, a.EquipmentID, a.Quantity)
	return nil
}

func (s *Service) DeleteAllocation(ctx context.Context, id string) error {
	if err := s.repo.DeleteAllocation(ctx, id); err != nil {
		return err
	}
	s.logger.Printf("allocation deleted id=%s", id)
	return nil
}
