package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", h.Health)

	r.Route("/api/bookings", func(r chi.Router) {
		r.Get("/", h.ListBookings)
		r.Post("/", h.CreateBooking)
		r.Get("/{bookingId}", h.GetBooking)
		r.Put("/{bookingId}", h.UpdateBooking)
		r.Delete("/{bookingId}", h.DeleteBooking)
	})

	r.Route("/api/allocations", func(r chi.Router) {
		r.Get("/", h.ListAllocations)
		r.Post("/", h.CreateAllocation)
		r.Get("/{allocationId}", h.GetAllocation)
		r.Put("/{allocationId}", h.UpdateAllocation)
		r.Delete("/{allocationId}", h.DeleteAllocation)
	})

	r.Route("/api/spaces", func(r chi.Router) {
		r.Get("/", h.ListSpaces)
		r.Post("/", h.CreateSpace)
		r.Get("/{spaceId}", h.GetSpace)
		r.Put("/{spaceId}", h.UpdateSpace)
		r.Delete("/{spaceId}", h.DeleteSpace)
	})

	r.Route("/api/equipment", func(r chi.Router) {
		r.Get("/", h.ListEquipment)
		r.Post("/", h.CreateEquipment)
		r.Get("/{equipmentId}", h.GetEquipment)
		r.Put("/{equipmentId}", h.UpdateEquipment)
		r.Delete("/{equipmentId}", h.DeleteEquipment)
	})

	r.Route("/api/professors", func(r chi.Router) {
		r.Get("/", h.ListProfessors)
		r.Post("/", h.CreateProfessor)
		r.Get("/{professorId}", h.GetProfessor)
		r.Get("/{professorId}/bookings", h.ListProfessorBookings)
	})

	return r
}
