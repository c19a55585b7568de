package energy

import (
	"sync"
	"testing"
	"time"
)

type mockSink struct {
	mu      sync.Mutex
	samples []Sample
}

func (m *mockSink) WriteHourlyEnergy(deviceID string, hour time.Time, kwh, cost float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, Sample{DeviceID: deviceID, Hour: hour, KWh: kwh, Cost: cost})
}

type mockFeedback struct {
	mu    sync.Mutex
	calls int
}

func (m *mockFeedback) SendFeedback(string, time.Time, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

var hourZero = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

func TestOnTotalSample_AccumulatesWithinHour(t *testing.T) {
	tr := NewTracker(2500, nil, nil, nil)

	tr.OnTotalSample("dev-1", 100.0, hourZero.Add(5*time.Minute))
	tr.OnTotalSample("dev-1", 100.2, hourZero.Add(20*time.Minute))
	tr.OnTotalSample("dev-1", 100.5, hourZero.Add(40*time.Minute))

	rep := tr.Summarize("day", hourZero.Add(50*time.Minute))
	if diff := rep.TotalKWh - 0.5; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("TotalKWh = %v, want 0.5", rep.TotalKWh)
	}
	if rep.Devices != 1 {
		t.Errorf("Devices = %d, want 1", rep.Devices)
	}
}

func TestOnTotalSample_SealsOnHourBoundary(t *testing.T) {
	sink := &mockSink{}
	fb := &mockFeedback{}
	tr := NewTracker(2500, sink, fb, nil)

	tr.OnTotalSample("dev-1", 100.0, hourZero.Add(10*time.Minute))
	tr.OnTotalSample("dev-1", 100.4, hourZero.Add(50*time.Minute))
	// Crosses into the next hour: the 10:00 sample must seal with 0.4 kWh.
	tr.OnTotalSample("dev-1", 100.6, hourZero.Add(70*time.Minute))

	if len(sink.samples) != 1 {
		t.Fatalf("sealed %d samples, want 1", len(sink.samples))
	}
	got := sink.samples[0]
	if !got.Hour.Equal(hourZero) {
		t.Errorf("sealed hour = %v, want %v", got.Hour, hourZero)
	}
	if diff := got.KWh - 0.4; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("sealed kwh = %v, want 0.4", got.KWh)
	}
	if want := 0.4 * 2500; got.Cost != want {
		t.Errorf("sealed cost = %v, want %v", got.Cost, want)
	}
	if fb.calls != 1 {
		t.Errorf("feedback calls = %d, want 1", fb.calls)
	}

	// The 0.2 delta that crossed the boundary accrues to the new hour.
	rep := tr.Summarize("day", hourZero.Add(80*time.Minute))
	if diff := rep.TotalKWh - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("TotalKWh = %v, want 0.6", rep.TotalKWh)
	}
}

func TestOnTotalSample_MeterReset(t *testing.T) {
	tr := NewTracker(1, nil, nil, nil)

	tr.OnTotalSample("dev-1", 500.0, hourZero.Add(5*time.Minute))
	tr.OnTotalSample("dev-1", 500.3, hourZero.Add(15*time.Minute))
	// Counter restarted from zero and climbed to 0.1.
	tr.OnTotalSample("dev-1", 0.1, hourZero.Add(25*time.Minute))

	rep := tr.Summarize("day", hourZero.Add(30*time.Minute))
	if diff := rep.TotalKWh - 0.4; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("TotalKWh = %v, want 0.4 (0.3 before reset + 0.1 after)", rep.TotalKWh)
	}
}

func TestOnTotalSample_FirstReadingPrimesOnly(t *testing.T) {
	tr := NewTracker(1, nil, nil, nil)

	tr.OnTotalSample("dev-1", 9999.0, hourZero)

	rep := tr.Summarize("day", hourZero.Add(time.Minute))
	if rep.TotalKWh != 0 {
		t.Errorf("TotalKWh = %v, want 0 after priming read", rep.TotalKWh)
	}
}

func TestSummarize_Periods(t *testing.T) {
	tr := NewTracker(1000, nil, nil, nil)
	now := hourZero.Add(10 * 24 * time.Hour)

	// One sealed sample 3 days old, one 20 days old.
	tr.mu.Lock()
	tr.samples = []Sample{
		{DeviceID: "dev-1", Hour: now.Add(-3 * 24 * time.Hour), KWh: 1.0, Cost: 1000},
		{DeviceID: "dev-2", Hour: now.Add(-20 * 24 * time.Hour), KWh: 2.0, Cost: 2000},
	}
	tr.mu.Unlock()

	tests := []struct {
		period      string
		wantName    string
		wantKWh     float64
		wantDevices int
	}{
		{period: "day", wantName: "day", wantKWh: 0, wantDevices: 0},
		{period: "week", wantName: "week", wantKWh: 1.0, wantDevices: 1},
		{period: "month", wantName: "month", wantKWh: 3.0, wantDevices: 2},
		{period: "bogus", wantName: "day", wantKWh: 0, wantDevices: 0},
	}

	for _, tt := range tests {
		rep := tr.Summarize(tt.period, now)
		if rep.Period != tt.wantName {
			t.Errorf("period %q: name = %q, want %q", tt.period, rep.Period, tt.wantName)
		}
		if rep.TotalKWh != tt.wantKWh {
			t.Errorf("period %q: TotalKWh = %v, want %v", tt.period, rep.TotalKWh, tt.wantKWh)
		}
		if rep.Devices != tt.wantDevices {
			t.Errorf("period %q: Devices = %d, want %d", tt.period, rep.Devices, tt.wantDevices)
		}
		if want := rep.TotalKWh * 1000; rep.TotalCost != want {
			t.Errorf("period %q: TotalCost = %v, want %v", tt.period, rep.TotalCost, want)
		}
	}
}

func TestSamples_FilterByDevice(t *testing.T) {
	sink := &mockSink{}
	tr := NewTracker(1, sink, nil, nil)

	tr.OnTotalSample("dev-1", 1.0, hourZero)
	tr.OnTotalSample("dev-2", 5.0, hourZero)
	tr.OnTotalSample("dev-1", 1.5, hourZero.Add(time.Hour))
	tr.OnTotalSample("dev-2", 5.2, hourZero.Add(time.Hour))

	if got := len(tr.Samples("")); got != 2 {
		t.Errorf("all samples = %d, want 2", got)
	}
	one := tr.Samples("dev-1")
	if len(one) != 1 || one[0].DeviceID != "dev-1" {
		t.Errorf("dev-1 samples = %+v, want one sample", one)
	}
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker(1, &mockSink{}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%2))
			for j := 0; j < 20; j++ {
				tr.OnTotalSample(id, float64(j), hourZero.Add(time.Duration(j)*7*time.Minute))
				tr.Summarize("day", hourZero)
				tr.Samples(id)
			}
		}(i)
	}
	wg.Wait()
}
