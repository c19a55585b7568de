package energy

import (
	"sync"
	"time"
)

// retentionHours bounds the in-memory sample window. A month of hourly
// samples per device is enough to serve every report period.
const retentionHours = 31 * 24

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

// Sink persists completed hourly samples. Satisfied by the InfluxDB
// client; a nil sink keeps samples in memory only.
type Sink interface {
	WriteHourlyEnergy(deviceID string, hour time.Time, kwh, cost float64)
}

// Feedback receives completed hourly samples for model correction.
// Satisfied by the forecast client.
type Feedback interface {
	SendFeedback(deviceID string, hour time.Time, kwh float64)
}

// Sample is one completed hour of consumption for a device.
type Sample struct {
	DeviceID string    `json:"device_id"`
	Hour     time.Time `json:"hour"`
	KWh      float64   `json:"kwh"`
	Cost     float64   `json:"cost"`
}

// Report aggregates consumption over a period.
type Report struct {
	Period      string  `json:"period"`
	TotalKWh    float64 `json:"total_kwh"`
	TotalCost   float64 `json:"total_cost"`
	PricePerKWh float64 `json:"price_per_kwh"`
	Devices     int     `json:"devices"`
}

// deviceState is the per-device accumulation cursor.
type deviceState struct {
	hour      time.Time // Start of the hour currently accumulating.
	lastTotal float64   // Last ENERGY-Total meter reading seen.
	accum     float64   // kWh accumulated within the current hour.
	primed    bool
}

// Tracker turns the plugs' cumulative ENERGY-Total meter readings into
// per-hour consumption samples.
//
// Each reading is diffed against the previous one; the delta accrues to
// the hour the reading arrived in. When a reading lands in a new hour the
// finished hour is sealed: persisted to the sink, handed to the feedback
// hook and kept in memory for reports. A meter reading below its
// predecessor means the device reset its counter; the new reading is then
// taken as consumption since the reset rather than producing a negative
// delta.
//
// Thread Safety: all methods are safe for concurrent use.
type Tracker struct {
	states   map[string]*deviceState
	samples  []Sample
	priceKWh float64
	sink     Sink
	feedback Feedback
	logger   Logger
	mu       sync.Mutex
}

// NewTracker creates an energy tracker. Sink and feedback may be nil.
func NewTracker(pricePerKWh float64, sink Sink, feedback Feedback, logger Logger) *Tracker {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Tracker{
		states:   make(map[string]*deviceState),
		priceKWh: pricePerKWh,
		sink:     sink,
		feedback: feedback,
		logger:   logger,
	}
}

// OnTotalSample records one ENERGY-Total meter reading for a device.
func (t *Tracker) OnTotalSample(deviceID string, totalKWh float64, at time.Time) {
	hour := at.Truncate(time.Hour)

	t.mu.Lock()
	st, ok := t.states[deviceID]
	if !ok {
		// First reading only primes the cursor; there is no delta yet.
		t.states[deviceID] = &deviceState{hour: hour, lastTotal: totalKWh, primed: true}
		t.mu.Unlock()
		return
	}

	var sealed *Sample
	if !hour.Equal(st.hour) {
		sealed = &Sample{
			DeviceID: deviceID,
			Hour:     st.hour,
			KWh:      st.accum,
			Cost:     st.accum * t.priceKWh,
		}
		t.appendSampleLocked(*sealed)
		st.hour = hour
		st.accum = 0
	}

	delta := totalKWh - st.lastTotal
	if delta < 0 {
		// Meter reset: the counter restarted from zero and climbed to the
		// new reading.
		t.logger.Warn("energy meter reset detected",
			"device_id", deviceID, "previous", st.lastTotal, "current", totalKWh)
		delta = totalKWh
	}
	st.accum += delta
	st.lastTotal = totalKWh
	t.mu.Unlock()

	if sealed != nil {
		t.logger.Debug("hourly energy sealed",
			"device_id", deviceID, "hour", sealed.Hour, "kwh", sealed.KWh)
		if t.sink != nil {
			t.sink.WriteHourlyEnergy(deviceID, sealed.Hour, sealed.KWh, sealed.Cost)
		}
		if t.feedback != nil {
			t.feedback.SendFeedback(deviceID, sealed.Hour, sealed.KWh)
		}
	}
}

// appendSampleLocked stores a sealed sample, evicting those past the
// retention window. Caller must hold the lock.
func (t *Tracker) appendSampleLocked(s Sample) {
	t.samples = append(t.samples, s)
	cutoff := s.Hour.Add(-retentionHours * time.Hour)
	i := 0
	for i < len(t.samples) && t.samples[i].Hour.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.samples = append(t.samples[:0], t.samples[i:]...)
	}
}

// periodCutoff resolves a report period name to its window start.
// Unknown periods fall back to a day.
func periodCutoff(period string, now time.Time) (string, time.Time) {
	switch period {
	case "week":
		return "week", now.Add(-7 * 24 * time.Hour)
	case "month":
		return "month", now.Add(-30 * 24 * time.Hour)
	default:
		return "day", now.Add(-24 * time.Hour)
	}
}

// Summarize aggregates sealed samples plus the in-progress hour into a
// consumption report for the period ("day", "week" or "month").
func (t *Tracker) Summarize(period string, now time.Time) Report {
	name, cutoff := periodCutoff(period, now)

	t.mu.Lock()
	defer t.mu.Unlock()

	var kwh float64
	devices := make(map[string]struct{})
	for _, s := range t.samples {
		if s.Hour.Before(cutoff) {
			continue
		}
		kwh += s.KWh
		devices[s.DeviceID] = struct{}{}
	}
	for id, st := range t.states {
		if st.primed && !st.hour.Before(cutoff) && st.accum > 0 {
			kwh += st.accum
			devices[id] = struct{}{}
		}
	}

	return Report{
		Period:      name,
		TotalKWh:    kwh,
		TotalCost:   kwh * t.priceKWh,
		PricePerKWh: t.priceKWh,
		Devices:     len(devices),
	}
}

// Samples returns a copy of the sealed hourly samples for a device,
// newest last. An empty deviceID returns samples for all devices.
func (t *Tracker) Samples(deviceID string) []Sample {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Sample, 0, len(t.samples))
	for _, s := range t.samples {
		if deviceID == "" || s.DeviceID == deviceID {
			out = append(out, s)
		}
	}
	return out
}
