package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TargetGroup is the rule target that expands to every managed device.
// "all" is accepted as an alias.
const (
	TargetGroup = "group"
	TargetAll   = "all"
)

// validDays are the accepted weekday abbreviations, matching
// time.Weekday.String()[:3].
var validDays = map[string]struct{}{
	"Mon": {}, "Tue": {}, "Wed": {}, "Thu": {},
	"Fri": {}, "Sat": {}, "Sun": {},
}

// Rule is one calendar automation entry: switch a target on or off at a
// wall-clock time on selected weekdays.
type Rule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TargetID  string    `json:"target_id"`
	Action    string    `json:"action"`
	Time      string    `json:"time"`
	Days      []string  `json:"days"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewID generates a rule identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the rule's user-supplied fields.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if strings.TrimSpace(r.TargetID) == "" {
		return fmt.Errorf("%w: target_id is required", ErrInvalidRule)
	}
	if r.Action != "on" && r.Action != "off" {
		return fmt.Errorf("%w: got %q", ErrInvalidAction, r.Action)
	}
	if err := validateTime(r.Time); err != nil {
		return err
	}
	if len(r.Days) == 0 {
		return ErrInvalidDays
	}
	for _, d := range r.Days {
		if _, ok := validDays[d]; !ok {
			return fmt.Errorf("%w: got %q", ErrInvalidDays, d)
		}
	}
	return nil
}

// validateTime checks a HH:MM string with minute resolution.
func validateTime(s string) error {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return fmt.Errorf("%w: got %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return fmt.Errorf("%w: got %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return fmt.Errorf("%w: got %q", ErrInvalidTime, s)
	}
	return nil
}

// expandsToGroup reports whether the rule targets the whole device set.
func (r *Rule) expandsToGroup() bool {
	return r.TargetID == TargetGroup || r.TargetID == TargetAll
}

// matchesAt reports whether the rule should fire at the given moment.
func (r *Rule) matchesAt(now time.Time) bool {
	if r.Time != now.Format("15:04") {
		return false
	}
	day := now.Weekday().String()[:3]
	for _, d := range r.Days {
		if d == day {
			return true
		}
	}
	return false
}
