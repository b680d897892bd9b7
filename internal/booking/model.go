package booking

import (
	"errors"
	"time"
)

// Booking reserves one space for one date and time window. Dates are
// "YYYY-MM-DD" and times "HH:MM:SS", naive local values; fixed-width strings
// compare chronologically.
type Booking struct {
	ID          string       `json:"bookingId"`
	ProfessorID string       `json:"professorId"`
	SpaceID     string       `json:"spaceId"`
	Date        string       `json:"date"`
	StartTime   string       `json:"startTime"`
	EndTime     string       `json:"endTime"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	SpaceName   string       `json:"spaceName,omitempty"`
	Allocations []Allocation `json:"equipment,omitempty"`
}

// Line is a requested equipment quantity on a create call.
type Line struct {
	EquipmentID string `json:"equipmentId"`
	Quantity    int    `json:"quantity"`
}

// Allocation links one booking to one equipment item with a quantity.
type Allocation struct {
	ID          string `json:"allocationId"`
	BookingID   string `json:"bookingId"`
	EquipmentID string `json:"equipmentId"`
	Quantity    int    `json:"quantity"`
}

// AllocationDetail is the joined listing view over allocations.
type AllocationDetail struct {
	Allocation
	EquipmentCode string `json:"equipmentCode"`
	EquipmentName string `json:"equipmentName"`
	Date          string `json:"date"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	ProfessorName string `json:"professorName"`
	SpaceName     string `json:"spaceName"`
}

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidWindow = errors.New("start time must be before end time")
	ErrConflict      = errors.New("time window conflicts with an existing booking")
)
