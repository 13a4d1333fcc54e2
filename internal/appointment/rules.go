package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PeriodWindow is a working period expressed as offsets from local midnight.
// Both bounds are exclusive.
type PeriodWindow struct {
	Period Period
	Start  time.Duration
	End    time.Duration
}

// Rules holds the tunable constants of scheduling and conflict analysis.
type Rules struct {
	Location *time.Location
	Periods  []PeriodWindow

	PatientGap time.Duration
	DoctorGap  time.Duration

	SuggestionStep        time.Duration
	SuggestionSteps       int
	MaxSuggestions        int
	MaxAlternativeDoctors int

	CongestionMedium float64
	CongestionHigh   float64

	PatientConflictWeight int
	DoctorConflictWeight  int
	SlotUnavailableWeight int
	HighRiskScore         int
	MediumRiskScore       int
	LowRiskScore          int

	NumberAttempts int

	// UpcomingWindow bounds the "upcoming appointments" look-ahead used by
	// smart suggestions and patient reminders.
	UpcomingWindow time.Duration
	// ImminentWindow selects which upcoming appointments get a reminder message.
	ImminentWindow time.Duration
}

func DefaultRules() Rules {
	return Rules{
		Location: time.Local,
		Periods: []PeriodWindow{
			{Period: PeriodMorning, Start: 8 * time.Hour, End: 12 * time.Hour},
			{Period: PeriodAfternoon, Start: 14 * time.Hour, End: 17 * time.Hour},
		},
		PatientGap:            30 * time.Minute,
		DoctorGap:             15 * time.Minute,
		SuggestionStep:        15 * time.Minute,
		SuggestionSteps:       2,
		MaxSuggestions:        3,
		MaxAlternativeDoctors: 3,
		CongestionMedium:      0.5,
		CongestionHigh:        0.8,
		PatientConflictWeight: 3,
		DoctorConflictWeight:  2,
		SlotUnavailableWeight: 5,
		HighRiskScore:         8,
		MediumRiskScore:       4,
		LowRiskScore:          1,
		NumberAttempts:        5,
		UpcomingWindow:        24 * time.Hour,
		ImminentWindow:        2 * time.Hour,
	}
}

// withDefaults fills every zero field from DefaultRules.
func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.Location == nil {
		r.Location = d.Location
	}
	if len(r.Periods) == 0 {
		r.Periods = d.Periods
	}
	setDuration(&r.PatientGap, d.PatientGap)
	setDuration(&r.DoctorGap, d.DoctorGap)
	setDuration(&r.SuggestionStep, d.SuggestionStep)
	setDuration(&r.UpcomingWindow, d.UpcomingWindow)
	setDuration(&r.ImminentWindow, d.ImminentWindow)
	setInt(&r.SuggestionSteps, d.SuggestionSteps)
	setInt(&r.MaxSuggestions, d.MaxSuggestions)
	setInt(&r.MaxAlternativeDoctors, d.MaxAlternativeDoctors)
	setInt(&r.PatientConflictWeight, d.PatientConflictWeight)
	setInt(&r.DoctorConflictWeight, d.DoctorConflictWeight)
	setInt(&r.SlotUnavailableWeight, d.SlotUnavailableWeight)
	setInt(&r.HighRiskScore, d.HighRiskScore)
	setInt(&r.MediumRiskScore, d.MediumRiskScore)
	setInt(&r.LowRiskScore, d.LowRiskScore)
	setInt(&r.NumberAttempts, d.NumberAttempts)
	if r.CongestionMedium <= 0 {
		r.CongestionMedium = d.CongestionMedium
	}
	if r.CongestionHigh <= 0 {
		r.CongestionHigh = d.CongestionHigh
	}
	return r
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// PeriodOf returns the working period containing t's local clock time.
func (r Rules) PeriodOf(t time.Time) (Period, error) {
	lt := t.In(r.Location)
	clock := time.Duration(lt.Hour())*time.Hour +
		time.Duration(lt.Minute())*time.Minute +
		time.Duration(lt.Second())*time.Second +
		time.Duration(lt.Nanosecond())
	for _, w := range r.Periods {
		if clock > w.Start && clock < w.End {
			return w.Period, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideWorkingHours, lt.Format("15:04"))
}

// DateOf returns the clinic-local civil date of t.
func (r Rules) DateOf(t time.Time) time.Time {
	return civilDate(t.In(r.Location))
}

// SlotKeyFor returns the slot an appointment at t with doctorID binds to.
func (r Rules) SlotKeyFor(doctorID uuid.UUID, t time.Time) (SlotKey, error) {
	period, err := r.PeriodOf(t)
	if err != nil {
		return SlotKey{}, err
	}
	return SlotKey{DoctorID: doctorID, Date: r.DateOf(t), Period: period}, nil
}

// DayBounds returns the local midnight starting t's date and the next one.
func (r Rules) DayBounds(t time.Time) (time.Time, time.Time) {
	lt := t.In(r.Location)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, r.Location)
	return start, start.AddDate(0, 0, 1)
}

// LocalDay converts a civil date to local midnight.
func (r Rules) LocalDay(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.Location)
}

func (r Rules) Congestion(slot *ScheduleSlot) Congestion {
	if slot.MaxCapacity <= 0 || slot.AvailableCapacity <= 0 {
		return CongestionFull
	}
	ratio := float64(slot.Booked()) / float64(slot.MaxCapacity)
	switch {
	case ratio >= 1:
		return CongestionFull
	case ratio >= r.CongestionHigh:
		return CongestionHigh
	case ratio >= r.CongestionMedium:
		return CongestionMedium
	}
	return CongestionLow
}

func (r Rules) Risk(score int) ConflictLevel {
	switch {
	case score >= r.HighRiskScore:
		return ConflictHigh
	case score >= r.MediumRiskScore:
		return ConflictMedium
	case score >= r.LowRiskScore:
		return ConflictLow
	}
	return ConflictNone
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
