package schedule

import (
	"errors"
	"testing"
	"time"
)

func validRule() Rule {
	return Rule{
		Name:     "Evening lights",
		TargetID: "dev-1",
		Action:   "on",
		Time:     "18:30",
		Days:     []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
		Enabled:  true,
	}
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Rule)
		wantErr error
	}{
		{name: "valid", mutate: func(*Rule) {}},
		{name: "midnight", mutate: func(r *Rule) { r.Time = "00:00" }},
		{name: "last minute", mutate: func(r *Rule) { r.Time = "23:59" }},
		{
			name:    "empty name",
			mutate:  func(r *Rule) { r.Name = "  " },
			wantErr: ErrInvalidRule,
		},
		{
			name:    "empty target",
			mutate:  func(r *Rule) { r.TargetID = "" },
			wantErr: ErrInvalidRule,
		},
		{
			name:    "bad action",
			mutate:  func(r *Rule) { r.Action = "toggle" },
			wantErr: ErrInvalidAction,
		},
		{
			name:    "uppercase action",
			mutate:  func(r *Rule) { r.Action = "ON" },
			wantErr: ErrInvalidAction,
		},
		{
			name:    "hour out of range",
			mutate:  func(r *Rule) { r.Time = "24:00" },
			wantErr: ErrInvalidTime,
		},
		{
			name:    "minute out of range",
			mutate:  func(r *Rule) { r.Time = "12:60" },
			wantErr: ErrInvalidTime,
		},
		{
			name:    "missing padding",
			mutate:  func(r *Rule) { r.Time = "7:30" },
			wantErr: ErrInvalidTime,
		},
		{
			name:    "not a time",
			mutate:  func(r *Rule) { r.Time = "noon" },
			wantErr: ErrInvalidTime,
		},
		{
			name:    "no days",
			mutate:  func(r *Rule) { r.Days = nil },
			wantErr: ErrInvalidDays,
		},
		{
			name:    "unknown day",
			mutate:  func(r *Rule) { r.Days = []string{"Mon", "Funday"} },
			wantErr: ErrInvalidDays,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.mutate(&rule)
			err := rule.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuleMatchesAt(t *testing.T) {
	rule := validRule() // 18:30 Mon-Fri

	// 2026-08-03 is a Monday.
	monday := time.Date(2026, 8, 3, 18, 30, 45, 0, time.UTC)
	if !rule.matchesAt(monday) {
		t.Error("expected match on Monday 18:30")
	}

	saturday := time.Date(2026, 8, 8, 18, 30, 0, 0, time.UTC)
	if rule.matchesAt(saturday) {
		t.Error("unexpected match on Saturday")
	}

	wrongMinute := time.Date(2026, 8, 3, 18, 31, 0, 0, time.UTC)
	if rule.matchesAt(wrongMinute) {
		t.Error("unexpected match at 18:31")
	}
}

func TestRuleExpandsToGroup(t *testing.T) {
	for target, want := range map[string]bool{
		"group": true,
		"all":   true,
		"dev-1": false,
	} {
		r := Rule{TargetID: target}
		if got := r.expandsToGroup(); got != want {
			t.Errorf("expandsToGroup(%q) = %v, want %v", target, got, want)
		}
	}
}
