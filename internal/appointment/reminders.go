package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ReminderRun struct {
	Due    int
	Sent   int
	Failed int
}

// SendDueReminders notifies every active, not yet reminded appointment
// starting within window and marks it reminded. A failed notification
// leaves the appointment unmarked so the next run retries it.
func (s *Service) SendDueReminders(ctx context.Context, window time.Duration) (ReminderRun, error) {
	if window <= 0 {
		window = s.rules.UpcomingWindow
	}
	now := s.now()

	due, err := s.repo.FindDueReminders(ctx, now, now.Add(window))
	if err != nil {
		return ReminderRun{}, wrapInfra("find due reminders", err)
	}

	run := ReminderRun{Due: len(due)}
	for _, appt := range due {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		if err := s.remind(ctx, appt); err != nil {
			run.Failed++
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("reminder failed")
			continue
		}
		run.Sent++
	}
	return run, nil
}

func (s *Service) remind(ctx context.Context, appt Appointment) error {
	doctorName := appt.DoctorID.String()
	if doc, err := s.doctors.GetDoctor(ctx, appt.DoctorID); err == nil {
		doctorName = doc.Name
	}
	msg := fmt.Sprintf("reminder: appointment %s with %s at %s", appt.Number, doctorName, s.localTime(appt.Time))

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, appt.ID, msg); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
	}
	if err := s.repo.MarkReminded(ctx, appt.ID); err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	s.logEvent(ctx, appt.ID, EventAppointmentReminded, map[string]any{
		"appointment_time": appt.Time,
	})
	return nil
}

// UpcomingReminders builds the patient-facing reminder messages for the
// upcoming window: imminent visits and overlapping bookings.
func (s *Service) UpcomingReminders(ctx context.Context, patientID uuid.UUID) ([]string, error) {
	if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
		return nil, wrapInfra("load patient", err)
	}
	now := s.now()
	upcoming, err := s.repo.ListPatientAppointmentsBetween(ctx, patientID, now, now.Add(s.rules.UpcomingWindow), activeStatuses...)
	if err != nil {
		return nil, wrapInfra("list upcoming appointments", err)
	}

	var msgs []string
	for _, a := range upcoming {
		until := a.Time.Sub(now)
		if until > 0 && until <= s.rules.ImminentWindow {
			msgs = append(msgs, fmt.Sprintf("appointment %s starts in %d minutes", a.Number, int(until.Minutes())))
		}
	}
	for i := 0; i < len(upcoming); i++ {
		for j := i + 1; j < len(upcoming); j++ {
			gap := absDuration(upcoming[j].Time.Sub(upcoming[i].Time))
			if gap < s.rules.PatientGap {
				msgs = append(msgs, fmt.Sprintf("appointments %s and %s are only %d minutes apart",
					upcoming[i].Number, upcoming[j].Number, int(gap.Minutes())))
			}
		}
	}
	return msgs, nil
}
