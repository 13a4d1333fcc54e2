package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnalyzeConflicts scores a prospective booking without reserving anything.
// Suggestions are attached when the risk is not NONE.
func (s *Service) AnalyzeConflicts(ctx context.Context, patientID, doctorID uuid.UUID, t time.Time) (*ConflictAnalysis, error) {
	if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
		return nil, wrapInfra("load patient", err)
	}
	doctor, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, wrapInfra("load doctor", err)
	}

	analysis, err := s.detector.Analyze(ctx, patientID, doctorID, t, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if analysis.Risk != ConflictNone {
		sugg, err := s.suggester.Suggest(ctx, patientID, doctorID, doctor.DepartmentID, t)
		if err != nil {
			return nil, err
		}
		analysis.Suggestions = sugg
	}
	return analysis, nil
}

// CheckAppointment re-analyzes a stored appointment against everything else.
func (s *Service) CheckAppointment(ctx context.Context, id uuid.UUID) (*ConflictAnalysis, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, wrapInfra("load appointment", err)
	}
	return s.detector.AnalyzeExisting(ctx, appt)
}

type AppointmentConflicts struct {
	Appointment Appointment
	Analysis    ConflictAnalysis
}

// PatientConflictReport analyzes every active appointment of a patient.
func (s *Service) PatientConflictReport(ctx context.Context, patientID uuid.UUID) ([]AppointmentConflicts, error) {
	if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
		return nil, wrapInfra("load patient", err)
	}
	appts, err := s.repo.ListPatientAppointmentsBetween(ctx, patientID, time.Time{}, farFuture, activeStatuses...)
	if err != nil {
		return nil, wrapInfra("list patient appointments", err)
	}

	report := make([]AppointmentConflicts, 0, len(appts))
	for i := range appts {
		analysis, err := s.detector.AnalyzeExisting(ctx, &appts[i])
		if err != nil {
			return nil, err
		}
		report = append(report, AppointmentConflicts{Appointment: appts[i], Analysis: *analysis})
	}
	return report, nil
}

var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// AvailabilityQuery selects a doctor's slot, or the aggregate of a whole
// department when DoctorID is uuid.Nil.
type AvailabilityQuery struct {
	DoctorID     uuid.UUID
	DepartmentID uuid.UUID
	Date         time.Time
	Period       Period
}

type Availability struct {
	DoctorID       uuid.UUID
	DepartmentID   uuid.UUID
	Date           time.Time
	Period         Period
	Available      bool
	AvailableCount int
	MaxCapacity    int
	Congestion     Congestion
}

// GetTimeSlotAvailability reports remaining capacity. Missing and suspended
// slots count as zero capacity.
func (s *Service) GetTimeSlotAvailability(ctx context.Context, q AvailabilityQuery) (*Availability, error) {
	if _, err := ParsePeriod(string(q.Period)); err != nil {
		return nil, err
	}

	var doctorIDs []uuid.UUID
	switch {
	case q.DoctorID != uuid.Nil:
		doc, err := s.doctors.GetDoctor(ctx, q.DoctorID)
		if err != nil {
			return nil, wrapInfra("load doctor", err)
		}
		q.DepartmentID = doc.DepartmentID
		doctorIDs = []uuid.UUID{q.DoctorID}
	case q.DepartmentID != uuid.Nil:
		if _, err := s.departments.GetDepartment(ctx, q.DepartmentID); err != nil {
			return nil, wrapInfra("load department", err)
		}
		ids, err := s.doctors.ListDoctorsInDepartment(ctx, q.DepartmentID)
		if err != nil {
			return nil, wrapInfra("list department doctors", err)
		}
		doctorIDs = ids
	default:
		return nil, ErrMissingDepartment
	}

	agg := ScheduleSlot{}
	for _, id := range doctorIDs {
		slot, err := s.slots.GetSlot(ctx, NewSlotKey(id, q.Date, q.Period))
		if errors.Is(err, ErrSlotNotFound) {
			continue
		}
		if err != nil {
			return nil, wrapInfra("get slot", err)
		}
		if slot.Status != SlotActive {
			continue
		}
		agg.MaxCapacity += slot.MaxCapacity
		agg.AvailableCapacity += slot.AvailableCapacity
	}

	return &Availability{
		DoctorID:       q.DoctorID,
		DepartmentID:   q.DepartmentID,
		Date:           civilDate(q.Date),
		Period:         q.Period,
		Available:      agg.AvailableCapacity > 0,
		AvailableCount: agg.AvailableCapacity,
		MaxCapacity:    agg.MaxCapacity,
		Congestion:     s.rules.Congestion(&agg),
	}, nil
}

type SmartSuggestionQuery struct {
	PatientID     uuid.UUID
	PreferredTime time.Time
	// DoctorID is optional; without it the best doctor of DepartmentID is used.
	DoctorID     uuid.UUID
	DepartmentID uuid.UUID
	// Symptoms picks the department when both ids are missing.
	Symptoms string
}

type SmartSuggestions struct {
	Suggestions
	DoctorID uuid.UUID
	// HasUpcoming is set when the patient already has an active appointment
	// within the upcoming window.
	HasUpcoming bool
	// Recommendation is set when the department was chosen from symptoms.
	Recommendation *DepartmentRecommendation
}

func (s *Service) GetSmartSuggestions(ctx context.Context, q SmartSuggestionQuery) (*SmartSuggestions, error) {
	if q.PatientID == uuid.Nil {
		return nil, ErrMissingPatient
	}
	if q.PreferredTime.IsZero() {
		return nil, ErrMissingTime
	}
	if _, err := s.patients.GetPatient(ctx, q.PatientID); err != nil {
		return nil, wrapInfra("load patient", err)
	}

	var rec *DepartmentRecommendation
	if q.DoctorID != uuid.Nil {
		doc, err := s.doctors.GetDoctor(ctx, q.DoctorID)
		if err != nil {
			return nil, wrapInfra("load doctor", err)
		}
		q.DepartmentID = doc.DepartmentID
	} else {
		if q.DepartmentID == uuid.Nil {
			if strings.TrimSpace(q.Symptoms) == "" {
				return nil, ErrMissingDepartment
			}
			var err error
			if rec, err = s.recommendDepartment(ctx, q.Symptoms); err != nil {
				return nil, err
			}
			q.DepartmentID = rec.Department.ID
		}
		id, err := s.selector.SelectBestDoctor(ctx, q.DepartmentID, q.PreferredTime)
		if err != nil && !errors.Is(err, ErrSelection) && !errors.Is(err, ErrValidation) {
			return nil, err
		}
		q.DoctorID = id
	}

	out := &SmartSuggestions{DoctorID: q.DoctorID, Recommendation: rec}

	if q.DoctorID != uuid.Nil {
		times, err := s.suggester.RecommendedTimes(ctx, q.PatientID, q.DoctorID, q.PreferredTime, 0)
		if err != nil {
			return nil, err
		}
		out.RecommendedTimes = times
	}
	doctors, err := s.suggester.AlternativeDoctors(ctx, q.DoctorID, q.DepartmentID, q.PreferredTime, 0)
	if err != nil {
		return nil, err
	}
	out.AlternativeDoctors = doctors

	now := s.now()
	upcoming, err := s.repo.ListPatientAppointmentsBetween(ctx, q.PatientID, now, now.Add(s.rules.UpcomingWindow), activeStatuses...)
	if err != nil {
		return nil, wrapInfra("list upcoming appointments", err)
	}
	out.HasUpcoming = len(upcoming) > 0

	return out, nil
}

func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, period Period, maxCapacity int) (*ScheduleSlot, error) {
	if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
		return nil, wrapInfra("load doctor", err)
	}
	slot, err := s.slots.CreateSlot(ctx, doctorID, date, period, maxCapacity)
	if err != nil {
		return nil, wrapInfra("create slot", err)
	}
	s.log.Info().Str("slot", slot.Key().String()).Int("max_capacity", maxCapacity).Msg("slot created")
	return slot, nil
}

func (s *Service) SetSlotStatus(ctx context.Context, key SlotKey, status SlotStatus) (*ScheduleSlot, error) {
	slot, err := s.slots.SetSlotStatus(ctx, key, status)
	if err != nil {
		return nil, wrapInfra("set slot status", err)
	}
	s.log.Info().Str("slot", key.String()).Str("status", string(status)).Msg("slot status changed")
	return slot, nil
}

func (s *Service) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]ScheduleSlot, error) {
	slots, err := s.slots.ListSlots(ctx, doctorID, from, to)
	if err != nil {
		return nil, wrapInfra("list slots", err)
	}
	return slots, nil
}

// DoctorAppointmentsQuery pages through a doctor's appointments. A zero Date
// spans every day and an empty Status matches every status.
type DoctorAppointmentsQuery struct {
	DoctorID uuid.UUID
	Date     time.Time
	Status   Status
	Limit    int
	Offset   int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListDoctorAppointments returns a doctor's appointments ordered by time.
func (s *Service) ListDoctorAppointments(ctx context.Context, q DoctorAppointmentsQuery) ([]Appointment, error) {
	if _, err := s.doctors.GetDoctor(ctx, q.DoctorID); err != nil {
		return nil, wrapInfra("load doctor", err)
	}
	statuses := allStatuses
	if q.Status != "" {
		st, err := ParseStatus(string(q.Status))
		if err != nil {
			return nil, err
		}
		statuses = []Status{st}
	}
	from, to := time.Time{}, farFuture
	if !q.Date.IsZero() {
		from = s.rules.LocalDay(q.Date)
		to = from.AddDate(0, 0, 1)
	}

	appts, err := s.repo.ListDoctorAppointmentsBetween(ctx, q.DoctorID, from, to, statuses...)
	if err != nil {
		return nil, wrapInfra("list doctor appointments", err)
	}
	return page(appts, q.Limit, q.Offset), nil
}

func page(appts []Appointment, limit, offset int) []Appointment {
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset = max(offset, 0)
	if offset >= len(appts) {
		return []Appointment{}
	}
	return appts[offset:min(offset+limit, len(appts))]
}

type DoctorSchedule struct {
	Doctor Doctor
	Slots  []ScheduleSlot
}

// DepartmentSchedules lists the slots of every department doctor on date.
// Doctors without slots that day are left out.
func (s *Service) DepartmentSchedules(ctx context.Context, departmentID uuid.UUID, date time.Time) ([]DoctorSchedule, error) {
	if departmentID == uuid.Nil {
		return nil, ErrMissingDepartment
	}
	if _, err := s.departments.GetDepartment(ctx, departmentID); err != nil {
		return nil, wrapInfra("load department", err)
	}
	ids, err := s.doctors.ListDoctorsInDepartment(ctx, departmentID)
	if err != nil {
		return nil, wrapInfra("list department doctors", err)
	}

	day := civilDate(date)
	out := make([]DoctorSchedule, 0, len(ids))
	for _, id := range ids {
		slots, err := s.slots.ListSlots(ctx, id, day, day)
		if err != nil {
			return nil, wrapInfra("list slots", err)
		}
		if len(slots) == 0 {
			continue
		}
		doc, err := s.doctors.GetDoctor(ctx, id)
		if err != nil {
			return nil, wrapInfra("load doctor", err)
		}
		out = append(out, DoctorSchedule{Doctor: *doc, Slots: slots})
	}
	return out, nil
}
