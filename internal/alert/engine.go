package alert

import (
	"context"
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

// Dispatcher delivers the auto-shutdown command. Satisfied by
// *platform.Dispatcher.
type Dispatcher interface {
	Send(ctx context.Context, deviceID string, action platform.Action) (platform.Result, error)
}

// Notifier delivers alert events to individual clients. Satisfied by the
// API layer's websocket hub.
type Notifier interface {
	SendTo(clientID, event string, payload any) bool
}

// Event is the payload of a targeted over-current alert.
type Event struct {
	DeviceID  string  `json:"device_id"`
	Current   float64 `json:"current"`
	Threshold float64 `json:"threshold"`
	Action    string  `json:"action"`
	Timestamp int64   `json:"timestamp"`
}

// Engine evaluates per-client current thresholds against live readings
// and cuts power to a device the moment any threshold is breached.
//
// Each connected client may register at most one threshold; registration
// is upsert semantics and a disconnect always removes it. Evaluation
// order across clients is unspecified. With single-trigger enabled the
// first breach wins: one targeted alert, one shutdown, then the reading
// is done. With it disabled every breached client is alerted, but the
// shutdown is still issued only once per reading.
//
// Thread Safety: all methods are safe for concurrent use. The shutdown
// dispatch runs outside the registry lock.
type Engine struct {
	thresholds    map[string]float64
	singleTrigger bool
	dispatcher    Dispatcher
	notifier      Notifier
	logger        Logger
	mu            sync.Mutex

	// now is swapped out in tests.
	now func() time.Time
}

// New creates an alert engine. A nil logger is replaced with a no-op
// implementation.
func New(dispatcher Dispatcher, notifier Notifier, singleTrigger bool, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		thresholds:    make(map[string]float64),
		singleTrigger: singleTrigger,
		dispatcher:    dispatcher,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

// SetNotifier binds the client-facing notifier after construction.
// The websocket hub is built with a reference to the engine, so the
// notifier can only be attached once both sides exist.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	e.notifier = n
	e.mu.Unlock()
}

// SetThreshold registers or replaces a client's current threshold in amps.
func (e *Engine) SetThreshold(clientID string, amps float64) {
	e.mu.Lock()
	e.thresholds[clientID] = amps
	e.mu.Unlock()
	e.logger.Info("threshold registered", "client_id", clientID, "amps", amps)
}

// OnDisconnect removes a client's threshold registration. Required on
// every client disconnect so stale registrations cannot accumulate.
func (e *Engine) OnDisconnect(clientID string) {
	e.mu.Lock()
	_, existed := e.thresholds[clientID]
	delete(e.thresholds, clientID)
	e.mu.Unlock()
	if existed {
		e.logger.Debug("threshold removed", "client_id", clientID)
	}
}

// Thresholds returns a copy of the current registrations.
func (e *Engine) Thresholds() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float64, len(e.thresholds))
	for k, v := range e.thresholds {
		out[k] = v
	}
	return out
}

// breach pairs a client with the threshold it breached.
type breach struct {
	clientID  string
	threshold float64
}

// OnCurrentReading evaluates a live current reading for one device.
// At most one auto-shutdown command is issued per reading regardless of
// how many thresholds it breaches.
func (e *Engine) OnCurrentReading(ctx context.Context, deviceID string, amps float64) {
	e.mu.Lock()
	var breached []breach
	for clientID, threshold := range e.thresholds {
		if amps > threshold {
			breached = append(breached, breach{clientID: clientID, threshold: threshold})
			if e.singleTrigger {
				break
			}
		}
	}
	notifier := e.notifier
	e.mu.Unlock()

	if len(breached) == 0 {
		return
	}

	ts := e.now().UnixMilli()
	for _, b := range breached {
		e.logger.Warn("current threshold breached",
			"device_id", deviceID,
			"client_id", b.clientID,
			"current", amps,
			"threshold", b.threshold)
		if notifier != nil {
			notifier.SendTo(b.clientID, "alert", Event{
				DeviceID:  deviceID,
				Current:   amps,
				Threshold: b.threshold,
				Action:    "auto_shutdown",
				Timestamp: ts,
			})
		}
	}

	// Exactly one shutdown per reading, no matter how many clients fired.
	if _, err := e.dispatcher.Send(ctx, deviceID, platform.ActionOff); err != nil {
		e.logger.Error("auto-shutdown dispatch failed",
			"device_id", deviceID, "error", err)
	}
}
