package appointment

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below matches exactly one of them
// through errors.Is, so callers can branch on the category or the cause.
var (
	ErrValidation  = errors.New("validation error")
	ErrCapacity    = errors.New("capacity error")
	ErrState       = errors.New("state error")
	ErrSelection   = errors.New("selection error")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("dependency unavailable")
)

var (
	ErrPastTime              = categorized(ErrValidation, "appointment time is in the past")
	ErrOutsideWorkingHours   = categorized(ErrValidation, "appointment time is outside working hours")
	ErrMissingPatient        = categorized(ErrValidation, "patient id is required")
	ErrMissingDepartment     = categorized(ErrValidation, "department id is required")
	ErrMissingTime           = categorized(ErrValidation, "appointment time is required")
	ErrDoctorNotInDepartment = categorized(ErrValidation, "doctor does not belong to department")
	ErrInvalidCapacity       = categorized(ErrValidation, "max capacity must be positive")
	ErrInvalidPeriod         = categorized(ErrValidation, "unknown period")
	ErrInvalidSlotStatus     = categorized(ErrValidation, "unknown slot status")
	ErrInvalidStatus         = categorized(ErrValidation, "unknown appointment status")
	ErrMissingSymptoms       = categorized(ErrValidation, "symptoms are required")

	ErrSlotFull      = categorized(ErrCapacity, "slot is full")
	ErrSlotNotFound  = categorized(ErrCapacity, "slot not found")
	ErrSlotSuspended = categorized(ErrCapacity, "slot is suspended")
	ErrDuplicateSlot = categorized(ErrCapacity, "slot already exists")
	ErrOverRelease   = categorized(ErrCapacity, "release would exceed max capacity")

	ErrInvalidStatusTransition = categorized(ErrState, "invalid status transition")
	ErrConcurrentUpdate        = categorized(ErrState, "appointment changed concurrently, please retry")

	ErrNoAvailableDoctor = categorized(ErrSelection, "no doctor with available capacity")
	ErrNoDepartmentMatch = categorized(ErrSelection, "no department matches the symptoms")

	ErrPatientNotFound     = categorized(ErrNotFound, "patient not found")
	ErrDoctorNotFound      = categorized(ErrNotFound, "doctor not found")
	ErrDepartmentNotFound  = categorized(ErrNotFound, "department not found")
	ErrAppointmentNotFound = categorized(ErrNotFound, "appointment not found")

	ErrDuplicateAppointmentNumber = categorized(ErrUnavailable, "appointment number already taken")
	ErrNumberGeneration           = categorized(ErrUnavailable, "could not generate a unique appointment number")
)

type categoryError struct {
	category error
	msg      string
}

func categorized(category error, msg string) error {
	return &categoryError{category: category, msg: msg}
}

func (e *categoryError) Error() string { return e.msg }

func (e *categoryError) Is(target error) bool { return target == e.category }

// isDomain reports whether err already carries one of the categories above.
func isDomain(err error) bool {
	for _, c := range []error{ErrValidation, ErrCapacity, ErrState, ErrSelection, ErrNotFound, ErrUnavailable} {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

// wrapInfra annotates err with op. Errors that are not domain errors are
// treated as store or directory failures and marked ErrUnavailable.
func wrapInfra(op string, err error) error {
	if isDomain(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
