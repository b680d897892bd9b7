package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/adao00/agendamento/internal/booking"
)

const (
	EventTypeBookingCreated   = "BookingCreated"
	EventTypeBookingCancelled = "BookingCancelled"
)

type BookingLine struct {
	EquipmentID string `json:"equipmentId"`
	Quantity    int    `json:"quantity"`
}

type BookingCreated struct {
	EventType   string        `json:"eventType"`
	EventID     string        `json:"eventId"`
	BookingID   string        `json:"bookingId"`
	ProfessorID string        `json:"professorId"`
	SpaceID     string        `json:"spaceId"`
	Date        string        `json:"date"`
	StartTime   string        `json:"startTime"`
	EndTime     string        `json:"endTime"`
	Equipment   []BookingLine `json:"equipment,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

type BookingCancelled struct {
	EventType string    `json:"eventType"`
	EventID   string    `json:"eventId"`
	BookingID string    `json:"bookingId"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits booking lifecycle events after the owning transaction has
// committed. Failures are logged, never surfaced to the caller.
type Publisher struct {
	ch     *amqp.Channel
	logger *log.Logger
}

func NewPublisher(conn *amqp.Connection, logger *log.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	return &Publisher{ch: ch, logger: logger}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) BookingCreated(ctx context.Context, b *booking.Booking) {
	ev := NewBookingCreated(b)
	if err := p.publishJSON(ctx, BookingCreatedRoutingKey, ev); err != nil {
		p.logger.Printf("publish BookingCreated id=%s: %v", b.ID, err)
	}
}

func (p *Publisher) BookingCancelled(ctx context.Context, bookingID string) {
	ev := BookingCancelled{
		EventType: EventTypeBookingCancelled,
		EventID:   uuid.NewString(),
		BookingID: bookingID,
		Timestamp: time.Now().UTC(),
	}
	if err := p.publishJSON(ctx, BookingCancelledRoutingKey, ev); err != nil {
		p.logger.Printf("publish BookingCancelled id=%s: %v", bookingID, err)
	}
}

// NewBookingCreated builds the wire event for a committed booking.
func NewBookingCreated(b *booking.Booking) BookingCreated {
	ev := BookingCreated{
		EventType:   EventTypeBookingCreated,
		EventID:     uuid.NewString(),
		BookingID:   b.ID,
		ProfessorID: b.ProfessorID,
		SpaceID:     b.SpaceID,
		Date:        b.Date,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Timestamp:   time.Now().UTC(),
	}
	for _, a := range b.Allocations {
		ev.Equipment = append(ev.Equipment, BookingLine{
			EquipmentID: a.EquipmentID,
			Quantity:    a.Quantity,
		})
	}
	return ev
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", routingKey, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
