package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/voltguard/voltguard-core/internal/device"
)

type fakeRest struct {
	mu        sync.Mutex
	verifyErr error
	telemetry map[string]map[string]string
	power     map[string]string
	fetchErr  map[string]error
}

func (f *fakeRest) VerifyToken(context.Context) error {
	return f.verifyErr
}

func (f *fakeRest) FetchTelemetry(_ context.Context, deviceID string, _ []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[deviceID]; err != nil {
		return nil, err
	}
	return f.telemetry[deviceID], nil
}

func (f *fakeRest) FetchPowerAttribute(_ context.Context, deviceID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.power[deviceID], nil
}

func staticEnum(ids ...string) Enumerator {
	return func(context.Context) ([]string, error) {
		return ids, nil
	}
}

func TestSweep_PopulatesStore(t *testing.T) {
	store := device.NewStore([]string{"ENERGY-Voltage"}, nil, nil)
	pub := &recordingPublisher{}
	rest := &fakeRest{
		telemetry: map[string]map[string]string{
			"dev-1": {"ENERGY-Voltage": "229"},
			"dev-2": {"ENERGY-Voltage": "232"},
		},
		power: map[string]string{"dev-1": "ON"},
	}

	ref := NewRefresher(rest, staticEnum("dev-1", "dev-2"), store, pub, []string{"ENERGY-Voltage"}, 0, nil)
	ref.Sweep(context.Background())

	rec, ok := store.Snapshot("dev-1")
	if !ok || rec.Telemetry["ENERGY-Voltage"] != "229" {
		t.Errorf("dev-1 = %+v", rec)
	}
	if rec.Attributes[device.AttrPower] != "ON" {
		t.Errorf("dev-1 power = %q, want ON", rec.Attributes[device.AttrPower])
	}

	rec, _ = store.Snapshot("dev-2")
	if rec.Attributes[device.AttrPower] != device.Unavailable {
		t.Errorf("dev-2 power = %q, want unavailable (none recorded)", rec.Attributes[device.AttrPower])
	}

	if pub.count("device.state") != 2 {
		t.Errorf("snapshots broadcast = %d, want 2", pub.count("device.state"))
	}
}

func TestSweep_SkipsOnBadCredential(t *testing.T) {
	store := device.NewStore(nil, nil, nil)
	rest := &fakeRest{verifyErr: errors.New("401")}

	ref := NewRefresher(rest, staticEnum("dev-1"), store, nil, nil, 0, nil)
	ref.Sweep(context.Background())

	if len(store.AllSnapshots()) != 0 {
		t.Error("sweep ran despite invalid credential")
	}
}

func TestSweep_PerDeviceFailureIsolated(t *testing.T) {
	store := device.NewStore([]string{"ENERGY-Voltage"}, nil, nil)
	rest := &fakeRest{
		telemetry: map[string]map[string]string{
			"dev-2": {"ENERGY-Voltage": "230"},
		},
		fetchErr: map[string]error{"dev-1": errors.New("boom")},
	}

	ref := NewRefresher(rest, staticEnum("dev-1", "dev-2"), store, nil, []string{"ENERGY-Voltage"}, 0, nil)
	ref.Sweep(context.Background())

	rec, ok := store.Snapshot("dev-2")
	if !ok || rec.Telemetry["ENERGY-Voltage"] != "230" {
		t.Errorf("dev-2 not refreshed after dev-1 failure: %+v", rec)
	}
}
