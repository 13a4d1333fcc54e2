package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// active statuses occupy the patient's and the doctor's time.
var activeStatuses = []Status{StatusPending, StatusConfirmed}

// loadStatuses count towards a doctor's daily load.
var loadStatuses = []Status{StatusPending, StatusConfirmed, StatusCompleted}

var allStatuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

type ConflictLevel string

const (
	ConflictNone   ConflictLevel = "NONE"
	ConflictLow    ConflictLevel = "LOW"
	ConflictMedium ConflictLevel = "MEDIUM"
	ConflictHigh   ConflictLevel = "HIGH"
)

type Period string

const (
	PeriodMorning   Period = "MORNING"
	PeriodAfternoon Period = "AFTERNOON"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodMorning, PeriodAfternoon:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

type SlotStatus string

const (
	SlotActive    SlotStatus = "ACTIVE"
	SlotSuspended SlotStatus = "SUSPENDED"
)

func ParseSlotStatus(s string) (SlotStatus, error) {
	switch st := SlotStatus(s); st {
	case SlotActive, SlotSuspended:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSlotStatus, s)
}

type Congestion string

const (
	CongestionLow    Congestion = "LOW"
	CongestionMedium Congestion = "MEDIUM"
	CongestionHigh   Congestion = "HIGH"
	CongestionFull   Congestion = "FULL"
)

type Appointment struct {
	ID            uuid.UUID
	Number        string
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	DepartmentID  uuid.UUID
	Time          time.Time
	Period        Period
	Status        Status
	ConflictLevel ConflictLevel
	Reminded      bool
	Symptoms      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SlotKey identifies a doctor's capacity for one period of one civil date.
// Date is always midnight UTC; use NewSlotKey to build one.
type SlotKey struct {
	DoctorID uuid.UUID
	Date     time.Time
	Period   Period
}

func NewSlotKey(doctorID uuid.UUID, date time.Time, period Period) SlotKey {
	return SlotKey{DoctorID: doctorID, Date: civilDate(date), Period: period}
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.DoctorID, k.Date.Format(time.DateOnly), k.Period)
}

type ScheduleSlot struct {
	ID                uuid.UUID
	DoctorID          uuid.UUID
	Date              time.Time
	Period            Period
	MaxCapacity       int
	AvailableCapacity int
	Status            SlotStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (s ScheduleSlot) Key() SlotKey {
	return NewSlotKey(s.DoctorID, s.Date, s.Period)
}

// Booked is the number of non-cancelled appointments bound to the slot.
func (s ScheduleSlot) Booked() int {
	return s.MaxCapacity - s.AvailableCapacity
}

type Department struct {
	ID       uuid.UUID
	Name     string
	Location string
}

type Doctor struct {
	ID           uuid.UUID
	Name         string
	Title        string
	Specialty    string
	DepartmentID uuid.UUID
}

type Patient struct {
	ID    uuid.UUID
	Name  string
	Phone string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
