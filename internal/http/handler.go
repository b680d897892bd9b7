package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/adao00/agendamento/internal/booking"
	"github.com/adao00/agendamento/internal/catalog"
	"github.com/adao00/agendamento/internal/equipment"
)

// BookingService is the engine surface the handlers call. Implemented by
// *booking.Service.
type BookingService interface {
	Create(ctx context.Context, b *booking.Booking, lines []booking.Line) error
	Get(ctx context.Context, id string) (*booking.Booking, error)
	List(ctx context.Context) ([]booking.Booking, error)
	ListByProfessor(ctx context.Context, professorID string) ([]booking.Booking, error)
	Update(ctx context.Context, b *booking.Booking) error
	Delete(ctx context.Context, id string) error

	CreateAllocation(ctx context.Context, a *booking.Allocation) error
	GetAllocation(ctx context.Context, id string) (*booking.Allocation, error)
	ListAllocationDetails(ctx context.Context) ([]booking.AllocationDetail, error)
	UpdateAllocation(ctx context.Context, a *booking.Allocation) error
	DeleteAllocation(ctx context.Context, id string) error
}

type Handler struct {
	bookings   BookingService
	spaces     catalog.SpaceRepository
	professors catalog.ProfessorRepository
	equipment  equipment.Repository
}

func NewHandler(bookings BookingService, spaces catalog.SpaceRepository, professors catalog.ProfessorRepository, equip equipment.Repository) *Handler {
	return &Handler{bookings: bookings, spaces: spaces, professors: professors, equipment: equip}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d):([0-5]\d)$`)
)

type bookingRequest struct {
	ProfessorID string         `json:"professorId"`
	SpaceID     string         `json:"spaceId"`
	Date        string         `json:"date"`
	StartTime   string         `json:"startTime"`
	EndTime     string         `json:"endTime"`
	Notes       string         `json:"notes"`
	Equipment   []booking.Line `json:"equipment"`
}

func (req *bookingRequest) validate() string {
	if req.ProfessorID == "" || req.SpaceID == "" {
		return "professorId and spaceId are required"
	}
	if !datePattern.MatchString(req.Date) {
		return "date must be YYYY-MM-DD"
	}
	if !timePattern.MatchString(req.StartTime) || !timePattern.MatchString(req.EndTime) {
		return "startTime and endTime must be HH:MM:SS"
	}
	for _, line := range req.Equipment {
		if line.EquipmentID == "" || line.Quantity < 1 {
			return "equipment lines need equipmentId and quantity >= 1"
		}
	}
	return ""
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	b := &booking.Booking{
		ProfessorID: req.ProfessorID,
		SpaceID:     req.SpaceID,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Notes:       req.Notes,
	}
	if err := h.bookings.Create(r.Context(), b, req.Equipment); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Get(r.Context(), chi.URLParam(r, "bookingId"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.List(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	b := &booking.Booking{
		ID:          chi.URLParam(r, "bookingId"),
		ProfessorID: req.ProfessorID,
		SpaceID:     req.SpaceID,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Notes:       req.Notes,
	}
	if err := h.bookings.Update(r.Context(), b); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.Delete(r.Context(), chi.URLParam(r, "bookingId")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type allocationRequest struct {
	BookingID   string `json:"bookingId"`
	EquipmentID string `json:"equipmentId"`
	Quantity    int    `json:"quantity"`
}

func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.BookingID == "" || req.EquipmentID == "" || req.Quantity < 1 {
		http.Error(w, "bookingId, equipmentId and quantity >= 1 are required", http.StatusBadRequest)
		return
	}

	a := &booking.Allocation{
		BookingID:   req.BookingID,
		EquipmentID: req.EquipmentID,
		Quantity:    req.Quantity,
	}
	if err := h.bookings.CreateAllocation(r.Context(), a); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	a, err := h.bookings.GetAllocation(r.Context(), chi.URLParam(r, "allocationId"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	details, err := h.bookings.ListAllocationDetails(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.EquipmentID == "" || req.Quantity < 1 {
		http.Error(w, "equipmentId and quantity >= 1 are required", http.StatusBadRequest)
		return
	}

	a := &booking.Allocation{
		ID:          chi.URLParam(r, "allocationId"),
		EquipmentID: req.EquipmentID,
		Quantity:    req.Quantity,
	}
	if err := h.bookings.UpdateAllocation(r.Context(), a); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.DeleteAllocation(r.Context(), chi.URLParam(r, "allocationId")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type spaceRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Capacity    int    `json:"capacity"`
	Description string `json:"description"`
}

func (h *Handler) CreateSpace(w http.ResponseWriter, r *http.Request) {
	var req spaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Name == "" || req.Capacity < 1 {
		http.Error(w, "code, name and capacity >= 1 are required", http.StatusBadRequest)
		return
	}

	s := &catalog.Space{
		Code:        req.Code,
		Name:        req.Name,
		Kind:        req.Kind,
		Capacity:    req.Capacity,
		Description: req.Description,
	}
	if s.Kind == "" {
		s.Kind = "room"
	}
	if err := h.spaces.Create(r.Context(), s); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) GetSpace(w http.ResponseWriter, r *http.Request) {
	s, err := h.spaces.GetByID(r.Context(), chi.URLParam(r, "spaceId"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) ListSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := h.spaces.List(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spaces)
}

func (h *Handler) UpdateSpace(w http.ResponseWriter, r *http.Request) {
	var req spaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Name == "" || req.Capacity < 1 {
		http.Error(w, "code, name and capacity >= 1 are required", http.StatusBadRequest)
		return
	}

	s := &catalog.Space{
		ID:          chi.URLParam(r, "spaceId"),
		Code:        req.Code,
		Name:        req.Name,
		Kind:        req.Kind,
		Capacity:    req.Capacity,
		Description: req.Description,
	}
	if err := h.spaces.Update(r.Context(), s); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) DeleteSpace(w http.ResponseWriter, r *http.Request) {
	if err := h.spaces.Delete(r.Context(), chi.URLParam(r, "spaceId")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type equipmentRequest struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Total     int    `json:"totalQuantity"`
	Available int    `json:"available"`
	Active    *bool  `json:"active"`
}

func (h *Handler) CreateEquipment(w http.ResponseWriter, r *http.Request) {
	var req equipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Name == "" || req.Total < 1 || req.Available < 0 {
		http.Error(w, "code, name, totalQuantity >= 1 and available >= 0 are required", http.StatusBadRequest)
		return
	}

	item := &equipment.Item{
		Code:      req.Code,
		Name:      req.Name,
		Kind:      req.Kind,
		Total:     req.Total,
		Available: req.Available,
		Active:    true,
	}
	if item.Kind == "" {
		item.Kind = "other"
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if err := h.equipment.Create(r.Context(), item); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	item, err := h.equipment.Get(r.Context(), chi.URLParam(r, "equipmentId"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	items, err := h.equipment.List(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) UpdateEquipment(w http.ResponseWriter, r *http.Request) {
	var req equipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Name == "" || req.Total < 1 || req.Available < 0 || req.Available > req.Total {
		http.Error(w, "code, name and 0 <= available <= totalQuantity are required", http.StatusBadRequest)
		return
	}

	item := &equipment.Item{
		ID:        chi.URLParam(r, "equipmentId"),
		Code:      req.Code,
		Name:      req.Name,
		Kind:      req.Kind,
		Total:     req.Total,
		Available: req.Available,
		Active:    true,
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if err := h.equipment.Update(r.Context(), item); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) DeleteEquipment(w http.ResponseWriter, r *http.Request) {
	if err := h.equipment.Delete(r.Context(), chi.URLParam(r, "equipmentId")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type professorRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (h *Handler) CreateProfessor(w http.ResponseWriter, r *http.Request) {
	var req professorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Name == "" {
		http.Error(w, "email and name are required", http.StatusBadRequest)
		return
	}

	p := &catalog.Professor{Email: req.Email, Name: req.Name, Role: req.Role}
	if err := h.professors.Create(r.Context(), p); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) GetProfessor(w http.ResponseWriter, r *http.Request) {
	p, err := h.professors.GetByID(r.Context(), chi.URLParam(r, "professorId"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ListProfessors(w http.ResponseWriter, r *http.Request) {
	professors, err := h.professors.List(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, professors)
}

func (h *Handler) ListProfessorBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListByProfessor(r.Context(), chi.URLParam(r, "professorId"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// writeEngineError maps engine error kinds to status codes. Anything outside
// the expected taxonomy is an internal fault and stays generic.
func writeEngineError(w http.ResponseWriter, err error) {
	var stockErr *equipment.InsufficientStockError
	switch {
	case errors.Is(err, booking.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, equipment.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrConflict):
		http.Error(w, "time window conflicts with an existing booking", http.StatusConflict)
	case errors.Is(err, booking.ErrInvalidWindow):
		http.Error(w, "start time must be before end time", http.StatusBadRequest)
	case errors.As(err, &stockErr):
		http.Error(w, stockErr.Error(), http.StatusBadRequest)
	case errors.Is(err, catalog.ErrDuplicateCode), errors.Is(err, equipment.ErrDuplicateCode):
		http.Error(w, "code already exists", http.StatusBadRequest)
	case errors.Is(err, equipment.ErrInvalidStock):
		http.Error(w, equipment.ErrInvalidStock.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
