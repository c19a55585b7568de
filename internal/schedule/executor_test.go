package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voltguard/voltguard-core/internal/platform"
)

type staticSource struct {
	rules []Rule
}

func (s *staticSource) EnabledRules(context.Context) ([]Rule, error) {
	return s.rules, nil
}

type countingDispatcher struct {
	mu    sync.Mutex
	calls []struct {
		deviceID string
		action   platform.Action
	}
}

func (d *countingDispatcher) Send(_ context.Context, deviceID string, action platform.Action) (platform.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, struct {
		deviceID string
		action   platform.Action
	}{deviceID, action})
	return platform.Result{DeviceID: deviceID, Action: action, Success: true}, nil
}

func (d *countingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Broadcast(event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == event {
			n++
		}
	}
	return n
}

// mondayAt builds a fixed Monday timestamp (2026-08-03 is a Monday).
func mondayAt(hhmm string) time.Time {
	tm, _ := time.Parse("15:04", hhmm)
	return time.Date(2026, 8, 3, tm.Hour(), tm.Minute(), 12, 0, time.UTC)
}

func newTestExecutor(src RuleSource, d Dispatcher, pub Publisher, at time.Time) *Executor {
	e := NewExecutor(src, d, func(context.Context) ([]string, error) {
		return []string{"dev-a", "dev-b"}, nil
	}, pub, time.Second, 0, nil)
	e.now = func() time.Time { return at }
	return e
}

func TestRunCycle_FiresMatchingRule(t *testing.T) {
	rule := validRule()
	rule.ID = NewID()
	rule.Time = "18:30"

	d := &countingDispatcher{}
	pub := &recordingPublisher{}
	e := newTestExecutor(&staticSource{rules: []Rule{rule}}, d, pub, mondayAt("18:30"))

	e.RunCycle(context.Background())

	if d.count() != 1 {
		t.Fatalf("dispatched %d commands, want 1", d.count())
	}
	if d.calls[0].deviceID != "dev-1" || d.calls[0].action != platform.ActionOn {
		t.Errorf("dispatch = %+v", d.calls[0])
	}
	if pub.count("schedule.executed") != 1 || pub.count("activity.log") != 1 {
		t.Errorf("events = %v, want one executed + one activity", pub.events)
	}
}

func TestRunCycle_AtMostOncePerDay(t *testing.T) {
	rule := validRule()
	rule.ID = NewID()

	d := &countingDispatcher{}
	e := newTestExecutor(&staticSource{rules: []Rule{rule}}, d, &recordingPublisher{}, mondayAt("18:30"))

	// Overlapping poll cycles within the same minute.
	e.RunCycle(context.Background())
	e.RunCycle(context.Background())
	e.RunCycle(context.Background())

	if d.count() != 1 {
		t.Errorf("dispatched %d commands, want exactly 1 across overlapping cycles", d.count())
	}
}

func TestRunCycle_LedgerResetsNextDay(t *testing.T) {
	rule := validRule()
	rule.ID = NewID()
	rule.Days = []string{"Mon", "Tue"}

	d := &countingDispatcher{}
	e := newTestExecutor(&staticSource{rules: []Rule{rule}}, d, &recordingPublisher{}, mondayAt("18:30"))

	e.RunCycle(context.Background())

	// Same time next day: ledger entry for Monday must be pruned.
	e.now = func() time.Time { return mondayAt("18:30").Add(24 * time.Hour) }
	e.RunCycle(context.Background())

	if d.count() != 2 {
		t.Errorf("dispatched %d commands, want 2 (one per day)", d.count())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.ledger) != 1 {
		t.Errorf("ledger holds %d keys, want 1 after pruning", len(e.ledger))
	}
}

func TestRunCycle_NoMatchOutsideWindow(t *testing.T) {
	rule := validRule()
	rule.ID = NewID()

	d := &countingDispatcher{}
	e := newTestExecutor(&staticSource{rules: []Rule{rule}}, d, &recordingPublisher{}, mondayAt("18:31"))

	e.RunCycle(context.Background())

	if d.count() != 0 {
		t.Errorf("dispatched %d commands, want 0", d.count())
	}
}

func TestRunCycle_GroupExpansion(t *testing.T) {
	rule := validRule()
	rule.ID = NewID()
	rule.TargetID = "group"
	rule.Action = "off"

	d := &countingDispatcher{}
	e := newTestExecutor(&staticSource{rules: []Rule{rule}}, d, &recordingPublisher{}, mondayAt("18:30"))

	e.RunCycle(context.Background())

	if d.count() != 2 {
		t.Fatalf("dispatched %d commands, want 2 (group expansion)", d.count())
	}
	for _, c := range d.calls {
		if c.action != platform.ActionOff {
			t.Errorf("action = %q, want OFF", c.action)
		}
	}
}

type failingDispatcher struct {
	countingDispatcher
	failFor map[string]bool
}

func (d *failingDispatcher) Send(ctx context.Context, deviceID string, action platform.Action) (platform.Result, error) {
	res, _ := d.countingDispatcher.Send(ctx, deviceID, action)
	if d.failFor[deviceID] {
		return res, platform.ErrDeviceNotResponding
	}
	return res, nil
}

func TestRunCycle_PartialFailureStillMarksLedger(t *testing.T) {
	rule := validRule()
	rule.ID = NewID()
	rule.TargetID = "group"

	d := &failingDispatcher{failFor: map[string]bool{"dev-a": true}}
	pub := &recordingPublisher{}
	e := newTestExecutor(&staticSource{rules: []Rule{rule}}, d, pub, mondayAt("18:30"))

	e.RunCycle(context.Background())
	e.RunCycle(context.Background()) // Must not re-fire despite the failure.

	if d.count() != 2 {
		t.Errorf("dispatched %d commands, want 2 (no scheduler-level retry)", d.count())
	}
	if pub.count("schedule.executed") != 1 {
		t.Errorf("executed events = %d, want 1", pub.count("schedule.executed"))
	}
}
