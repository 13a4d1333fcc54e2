package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/yyds352/hospital-appointment/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	Checks  []Check
	Logger  zerolog.Logger
	Env     string
	Version string
	Now     func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	svc := cfg.Service

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(svc))
		r.Get("/", listAppointmentsHandler(svc))
		r.Get("/{id}", getAppointmentHandler(svc))
		r.Get("/{id}/conflicts", checkAppointmentHandler(svc))
		r.Post("/{id}/cancel", transitionHandler(svc, appointment.StatusCancelled))
		r.Post("/{id}/confirm", transitionHandler(svc, appointment.StatusConfirmed))
		r.Post("/{id}/complete", transitionHandler(svc, appointment.StatusCompleted))
		r.Put("/{id}/status", updateStatusHandler(svc))
	})

	r.Get("/conflicts", analyzeConflictsHandler(svc))
	r.Get("/availability", availabilityHandler(svc))
	r.Get("/suggestions", suggestionsHandler(svc))

	r.Post("/slots", createSlotHandler(svc))
	r.Put("/slots/status", slotStatusHandler(svc))
	r.Get("/doctors/{id}/slots", listSlotsHandler(svc, cfg.Now))
	r.Get("/doctors/{id}/appointments", doctorAppointmentsHandler(svc))
	r.Get("/departments/{id}/schedules", departmentSchedulesHandler(svc))

	r.Post("/symptoms/analyze", analyzeSymptomsHandler(svc))
	r.Post("/symptoms/match-score", symptomMatchScoreHandler(svc))

	r.Get("/patients/{id}/reminders", remindersHandler(svc))
	r.Get("/patients/{id}/conflicts", patientConflictsHandler(svc))

	return r
}
