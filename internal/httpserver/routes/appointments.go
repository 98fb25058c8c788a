package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/fieldops/scheduler/internal/httpserver/deps"
	"github.com/fieldops/scheduler/internal/httpserver/handlers"
)

func init() { Register(registerAppointments) }

func registerAppointments(r chi.Router, d deps.Deps) {
	r.Post("/appointments", handlers.CreateAppointment(d))
}
