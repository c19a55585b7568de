package schedule

import "errors"

// Domain errors for schedule operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when a rule ID does not exist.
	ErrNotFound = errors.New("schedule: rule not found")

	// ErrInvalidRule is returned when a rule fails validation.
	ErrInvalidRule = errors.New("schedule: invalid rule")

	// ErrInvalidAction is returned when a rule's action is not "on" or "off".
	ErrInvalidAction = errors.New("schedule: action must be \"on\" or \"off\"")

	// ErrInvalidTime is returned when a rule's time is not HH:MM.
	ErrInvalidTime = errors.New("schedule: time must be HH:MM")

	// ErrInvalidDays is returned when a rule's day list is empty or contains
	// an unknown abbreviation.
	ErrInvalidDays = errors.New("schedule: days must be a non-empty subset of Mon..Sun")
)
