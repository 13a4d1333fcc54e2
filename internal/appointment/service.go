package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentReminded      = "APPOINTMENT_REMINDED"
	// EventSlotReleaseLost marks a cancelled appointment whose unit of
	// capacity was never returned to its slot.
	EventSlotReleaseLost = "SLOT_RELEASE_LOST"
)

// maxTransitionAttempts bounds how often a status change is retried after
// losing a compare-and-set race.
const maxTransitionAttempts = 3

// Dependencies are the stores and directories a Service is built on.
type Dependencies struct {
	Repo        Repository
	Slots       SlotRegistry
	Departments DepartmentDirectory
	Doctors     DoctorDirectory
	Patients    PatientDirectory
	Notifier    NotificationSink
}

type Service struct {
	repo        Repository
	slots       SlotRegistry
	departments DepartmentDirectory
	doctors     DoctorDirectory
	patients    PatientDirectory
	notifier    NotificationSink

	detector  *ConflictDetector
	suggester *SuggestionEngine
	selector  *DoctorSelector
	symptoms  *SymptomAnalyzer

	rules     Rules
	log       zerolog.Logger
	now       func() time.Time
	newNumber func(now time.Time) string
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNumberGenerator replaces the random appointment number generator.
func WithNumberGenerator(gen func(now time.Time) string) Option {
	return func(s *Service) { s.newNumber = gen }
}

func NewService(deps Dependencies, rules Rules, logger zerolog.Logger, opts ...Option) *Service {
	rules = rules.withDefaults()
	s := &Service{
		repo:        deps.Repo,
		slots:       deps.Slots,
		departments: deps.Departments,
		doctors:     deps.Doctors,
		patients:    deps.Patients,
		notifier:    deps.Notifier,
		rules:       rules,
		log:         logger.With().Str("component", "appointment").Logger(),
		now:         time.Now,
	}
	s.newNumber = s.randomNumber
	for _, opt := range opts {
		opt(s)
	}

	s.detector = NewConflictDetector(s.repo, s.slots, rules)
	s.suggester = NewSuggestionEngine(s.detector, s.repo, s.doctors, s.slots, rules, s.now)
	s.selector = NewDoctorSelector(s.repo, s.doctors, s.slots, rules)
	s.symptoms = NewSymptomAnalyzer(s.departments, nil)
	return s
}

func (s *Service) Rules() Rules { return s.rules }

// randomNumber formats "A" + yyyyMMdd + four random digits.
func (s *Service) randomNumber(now time.Time) string {
	return fmt.Sprintf("A%s%04d", now.In(s.rules.Location).Format("20060102"), rand.IntN(10000))
}

type CreateRequest struct {
	PatientID uuid.UUID
	// DoctorID may be uuid.Nil, in which case the least loaded doctor of
	// DepartmentID with open capacity is chosen.
	DoctorID uuid.UUID
	// DepartmentID may be uuid.Nil when Symptoms is set; the best matching
	// department is used instead.
	DepartmentID uuid.UUID
	Time         time.Time
	Symptoms     string
}

type CreateResult struct {
	Appointment Appointment
	Analysis    ConflictAnalysis
	// Recommendation is set when the department was chosen from symptoms.
	Recommendation *DepartmentRecommendation
}

func (s *Service) validateCreate(req CreateRequest) (Period, error) {
	switch {
	case req.PatientID == uuid.Nil:
		return "", ErrMissingPatient
	case req.DepartmentID == uuid.Nil && strings.TrimSpace(req.Symptoms) == "":
		return "", ErrMissingDepartment
	case req.Time.IsZero():
		return "", ErrMissingTime
	case req.Time.Before(s.now()):
		return "", ErrPastTime
	}
	return s.rules.PeriodOf(req.Time)
}

// CreateAppointment books a patient into a doctor's slot. Capacity is
// reserved before the appointment is stored and released again if storing
// fails. Conflict analysis is advisory and never rejects the booking.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	period, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, wrapInfra("load patient", err)
	}
	var rec *DepartmentRecommendation
	if req.DepartmentID == uuid.Nil {
		if rec, err = s.recommendDepartment(ctx, req.Symptoms); err != nil {
			return nil, err
		}
		req.DepartmentID = rec.Department.ID
	} else if _, err := s.departments.GetDepartment(ctx, req.DepartmentID); err != nil {
		return nil, wrapInfra("load department", err)
	}

	doctorID := req.DoctorID
	if doctorID == uuid.Nil {
		doctorID, err = s.selector.SelectBestDoctor(ctx, req.DepartmentID, req.Time)
		if err != nil {
			return nil, err
		}
	}
	doctor, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, wrapInfra("load doctor", err)
	}
	if doctor.DepartmentID != req.DepartmentID {
		return nil, ErrDoctorNotInDepartment
	}

	key := NewSlotKey(doctorID, s.rules.DateOf(req.Time), period)
	if _, err := s.slots.Reserve(ctx, key); err != nil {
		return nil, wrapInfra("reserve slot", err)
	}

	analysis, err := s.detector.Analyze(ctx, req.PatientID, doctorID, req.Time, uuid.Nil)
	if err != nil {
		s.releaseReservation(ctx, key)
		return nil, err
	}

	created, err := s.insertWithNumber(ctx, Appointment{
		ID:            uuid.New(),
		PatientID:     req.PatientID,
		DoctorID:      doctorID,
		DepartmentID:  req.DepartmentID,
		Time:          req.Time,
		Period:        period,
		Status:        StatusPending,
		ConflictLevel: analysis.Risk,
		Symptoms:      req.Symptoms,
	})
	if err != nil {
		s.releaseReservation(ctx, key)
		return nil, err
	}

	if analysis.Risk != ConflictNone {
		sugg, err := s.suggester.Suggest(ctx, req.PatientID, doctorID, req.DepartmentID, req.Time)
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", created.ID.String()).Msg("compute suggestions")
		} else {
			analysis.Suggestions = sugg
		}
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"appointment_number": created.Number,
		"patient_id":         created.PatientID.String(),
		"doctor_id":          created.DoctorID.String(),
		"slot":               key.String(),
		"conflict_level":     created.ConflictLevel,
		"score":              analysis.Score,
	})
	s.notify(ctx, created.ID, fmt.Sprintf("%s, your appointment %s with %s at %s is booked",
		patient.Name, created.Number, doctor.Name, s.localTime(created.Time)))

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("appointment_number", created.Number).
		Str("doctor_id", doctorID.String()).
		Str("conflict_level", string(created.ConflictLevel)).
		Msg("appointment created")

	return &CreateResult{Appointment: *created, Analysis: *analysis, Recommendation: rec}, nil
}

func (s *Service) insertWithNumber(ctx context.Context, appt Appointment) (*Appointment, error) {
	for attempt := 0; attempt < s.rules.NumberAttempts; attempt++ {
		appt.Number = s.newNumber(s.now())
		created, err := s.repo.CreateAppointment(ctx, appt)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, ErrDuplicateAppointmentNumber) {
			return nil, wrapInfra("create appointment", err)
		}
		s.log.Debug().Str("appointment_number", appt.Number).Int("attempt", attempt+1).Msg("appointment number collision")
	}
	return nil, ErrNumberGeneration
}

func (s *Service) releaseReservation(ctx context.Context, key SlotKey) {
	if _, err := s.slots.Release(ctx, key); err != nil {
		s.log.Error().Err(err).Str("slot", key.String()).Msg("release reservation after failed booking")
	}
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionAppointment changes an appointment's status. Entering CANCELLED
// releases the slot exactly once; cancelling a cancelled appointment is a no-op.
func (s *Service) TransitionAppointment(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return nil, wrapInfra("load appointment", err)
		}
		if appt.Status == StatusCancelled && to == StatusCancelled {
			return appt, nil
		}
		if !CanTransition(appt.Status, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, to)
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
		if errors.Is(err, ErrAppointmentNotFound) {
			continue
		}
		if err != nil {
			return nil, wrapInfra("update appointment status", err)
		}

		if to == StatusCancelled {
			if err := s.releaseFor(ctx, appt); err != nil {
				if _, revertErr := s.repo.UpdateAppointmentStatus(ctx, id, to, appt.Status); revertErr != nil {
					s.log.Error().Err(revertErr).Str("appointment_id", id.String()).Msg("revert cancelled status")
					s.logEvent(ctx, id, EventSlotReleaseLost, map[string]any{
						"slot":          s.slotKeyOf(appt).String(),
						"previous":      appt.Status,
						"release_error": err.Error(),
						"revert_error":  revertErr.Error(),
					})
				}
				return nil, err
			}
		}

		s.logEvent(ctx, id, EventAppointmentStatusChanged, map[string]any{
			"from": appt.Status,
			"to":   to,
		})
		s.notify(ctx, id, fmt.Sprintf("appointment %s is now %s", updated.Number, updated.Status))
		s.log.Info().
			Str("appointment_id", id.String()).
			Str("from", string(appt.Status)).
			Str("to", string(to)).
			Msg("appointment status changed")

		return updated, nil
	}

	return nil, ErrConcurrentUpdate
}

// slotKeyOf falls back to the period of the appointment time for rows
// stored without one.
func (s *Service) slotKeyOf(appt *Appointment) SlotKey {
	period := appt.Period
	if period == "" {
		period, _ = s.rules.PeriodOf(appt.Time)
	}
	return NewSlotKey(appt.DoctorID, s.rules.DateOf(appt.Time), period)
}

func (s *Service) releaseFor(ctx context.Context, appt *Appointment) error {
	key := s.slotKeyOf(appt)
	if key.Period == "" {
		return fmt.Errorf("resolve slot of appointment %s: %w", appt.ID, ErrOutsideWorkingHours)
	}
	if _, err := s.slots.Release(ctx, key); err != nil {
		return wrapInfra("release slot", err)
	}
	return nil
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.TransitionAppointment(ctx, id, StatusCancelled)
}

func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.TransitionAppointment(ctx, id, StatusConfirmed)
}

func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.TransitionAppointment(ctx, id, StatusCompleted)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, wrapInfra("get appointment", err)
	}
	return appt, nil
}

// ListAppointmentsByPatient retrieves a patient's appointments, newest first.
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, wrapInfra("list appointments by patient", err)
	}
	return appointments, nil
}

func (s *Service) localTime(t time.Time) string {
	return t.In(s.rules.Location).Format("2006-01-02 15:04")
}

func (s *Service) notify(ctx context.Context, appointmentID uuid.UUID, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, appointmentID, message); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appointmentID.String()).Msg("notification failed")
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
