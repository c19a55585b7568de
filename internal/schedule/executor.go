package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/voltguard/voltguard-core/internal/platform"
)

// Logger defines the logging interface this package depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RuleSource supplies the enabled rules each poll cycle. Satisfied by
// Repository.
type RuleSource interface {
	EnabledRules(ctx context.Context) ([]Rule, error)
}

// Dispatcher delivers rule actions. Satisfied by *platform.Dispatcher.
type Dispatcher interface {
	Send(ctx context.Context, deviceID string, action platform.Action) (platform.Result, error)
}

// Enumerator resolves the full device set for group-targeted rules.
type Enumerator func(ctx context.Context) ([]string, error)

// Publisher broadcasts schedule lifecycle events. Satisfied by the API
// layer's websocket hub.
type Publisher interface {
	Broadcast(event string, payload any)
}

// ExecutedEvent is the payload broadcast after a rule fires.
type ExecutedEvent struct {
	RuleID    string   `json:"rule_id"`
	Name      string   `json:"name"`
	Action    string   `json:"action"`
	Targets   []string `json:"targets"`
	Failed    []string `json:"failed,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Executor fires automation rules on a fixed polling cadence.
//
// Each cycle it compares every enabled rule against the wall clock at
// minute resolution. A matched rule is recorded in the execution ledger
// keyed by (date, rule, time) before any dispatch happens, so a second
// cycle overlapping the same minute can never fire it again. Ledger keys
// from previous days are pruned at the start of every cycle.
//
// A rule is "fired", not "fully successful": per-device dispatch failures
// are logged and reported in the executed event, never retried.
//
// Thread Safety: Run is a single goroutine; the ledger lock exists
// because RunCycle is also callable directly (tests, manual trigger).
type Executor struct {
	source     RuleSource
	dispatcher Dispatcher
	enumerate  Enumerator
	publisher  Publisher
	logger     Logger

	pollInterval time.Duration
	deviceDelay  time.Duration

	ledger map[string]struct{}
	mu     sync.Mutex

	// now is swapped out in tests.
	now func() time.Time
}

// NewExecutor creates a schedule executor. A nil logger is replaced with
// a no-op implementation.
func NewExecutor(
	source RuleSource,
	dispatcher Dispatcher,
	enumerate Enumerator,
	publisher Publisher,
	pollInterval, deviceDelay time.Duration,
	logger Logger,
) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Executor{
		source:       source,
		dispatcher:   dispatcher,
		enumerate:    enumerate,
		publisher:    publisher,
		logger:       logger,
		pollInterval: pollInterval,
		deviceDelay:  deviceDelay,
		ledger:       make(map[string]struct{}),
		now:          time.Now,
	}
}

// Run polls until the context is cancelled.
func (e *Executor) Run(ctx context.Context) {
	e.logger.Info("schedule executor started", "poll_interval", e.pollInterval.String())
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("schedule executor stopped")
			return
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// RunCycle executes one poll cycle against the current wall clock.
func (e *Executor) RunCycle(ctx context.Context) {
	now := e.now()
	today := now.Format("2006-01-02")

	rules, err := e.source.EnabledRules(ctx)
	if err != nil {
		e.logger.Error("fetching enabled rules failed", "error", err)
		return
	}

	// Claim matched rules under the lock; dispatch happens after release.
	var due []Rule
	e.mu.Lock()
	for key := range e.ledger {
		if !strings.HasPrefix(key, today+"_") {
			delete(e.ledger, key)
		}
	}
	for _, rule := range rules {
		if !rule.matchesAt(now) {
			continue
		}
		key := ledgerKey(today, rule.ID, rule.Time)
		if _, done := e.ledger[key]; done {
			continue
		}
		e.ledger[key] = struct{}{}
		due = append(due, rule)
	}
	e.mu.Unlock()

	for _, rule := range due {
		e.execute(ctx, rule, now)
	}
}

// execute resolves a rule's targets and dispatches its action to each.
func (e *Executor) execute(ctx context.Context, rule Rule, now time.Time) {
	action, err := platform.ParseAction(rule.Action)
	if err != nil {
		e.logger.Error("rule has unusable action", "rule_id", rule.ID, "action", rule.Action)
		return
	}

	targets := []string{rule.TargetID}
	if rule.expandsToGroup() {
		ids, err := e.enumerate(ctx)
		if err != nil {
			e.logger.Error("device enumeration failed for group rule",
				"rule_id", rule.ID, "error", err)
			return
		}
		targets = ids
	}

	e.logger.Info("executing rule",
		"rule_id", rule.ID, "name", rule.Name, "action", rule.Action, "targets", len(targets))

	var failed []string
	for i, deviceID := range targets {
		if i > 0 && e.deviceDelay > 0 {
			time.Sleep(e.deviceDelay)
		}
		if _, err := e.dispatcher.Send(ctx, deviceID, action); err != nil {
			e.logger.Warn("rule dispatch failed",
				"rule_id", rule.ID, "device_id", deviceID, "error", err)
			failed = append(failed, deviceID)
		}
	}

	if e.publisher != nil {
		ts := now.UnixMilli()
		e.publisher.Broadcast("schedule.executed", ExecutedEvent{
			RuleID:    rule.ID,
			Name:      rule.Name,
			Action:    rule.Action,
			Targets:   targets,
			Failed:    failed,
			Timestamp: ts,
		})
		e.publisher.Broadcast("activity.log", map[string]any{
			"message":   fmt.Sprintf("Schedule %q turned %s %d device(s)", rule.Name, rule.Action, len(targets)-len(failed)),
			"timestamp": ts,
		})
	}
}

// ledgerKey builds the at-most-once execution key.
func ledgerKey(date, ruleID, hhmm string) string {
	return date + "_" + ruleID + "_" + hhmm
}
