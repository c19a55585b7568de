package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/voltguard/voltguard-core/internal/alert"
	"github.com/voltguard/voltguard-core/internal/device"
	"github.com/voltguard/voltguard-core/internal/infrastructure/config"
	"github.com/voltguard/voltguard-core/internal/infrastructure/database"
	"github.com/voltguard/voltguard-core/internal/infrastructure/logging"
	"github.com/voltguard/voltguard-core/internal/platform"
	"github.com/voltguard/voltguard-core/internal/schedule"
	_ "github.com/voltguard/voltguard-core/migrations"
)

// fakeDispatcher returns scripted outcomes per device ID.
type fakeDispatcher struct {
	mu       sync.Mutex
	failWith map[string]error // deviceID -> error to return
	calls    []string
}

func (d *fakeDispatcher) Send(_ context.Context, deviceID string, action platform.Action) (platform.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, deviceID)

	if err, ok := d.failWith[deviceID]; ok && err != nil {
		return platform.Result{DeviceID: deviceID, Action: action, Attempts: 1, Error: err.Error()}, err
	}
	return platform.Result{DeviceID: deviceID, Action: action, Attempts: 1, Success: true}, nil
}

func (d *fakeDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// fakeFetcher serves on-demand device detail requests.
type fakeFetcher struct {
	telemetry map[string]map[string]string
	power     map[string]string
	err       error
}

func (f *fakeFetcher) FetchTelemetry(_ context.Context, deviceID string, _ []string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	values, ok := f.telemetry[deviceID]
	if !ok {
		return nil, platform.ErrRequestFailed
	}
	return values, nil
}

func (f *fakeFetcher) FetchPowerAttribute(_ context.Context, deviceID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.power[deviceID], nil
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func testStore() *device.Store {
	return device.NewStore([]string{"ENERGY-Current", "ENERGY-Total"}, device.NewAssigner(), nil)
}

func testRules(t *testing.T) schedule.Repository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return schedule.NewSQLiteRepository(db.DB)
}

// testDeps builds a minimal working dependency set. Tests mutate the
// returned value before constructing the server.
func testDeps(t *testing.T) Deps {
	t.Helper()
	logger := testLogger()
	dispatcher := &fakeDispatcher{}
	return Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:     logger,
		Store:      testStore(),
		Dispatcher: dispatcher,
		Alerts:     alert.New(dispatcher, nil, true, logger),
		Rules:      testRules(t),
		Keys:       []string{"ENERGY-Current", "ENERGY-Total"},
		Version:    "test",
	}
}

// newTestServer builds a server and an httptest listener around its router.
func newTestServer(t *testing.T, deps Deps) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)
	return srv, ts
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	if err := json.Unmarshal(body, into); err != nil {
		t.Fatalf("decoding response %q: %v", body, err)
	}
}

func TestNew_RequiresCoreDependencies(t *testing.T) {
	deps := testDeps(t)
	deps.Store = nil
	if _, err := New(deps); err == nil {
		t.Fatal("New() with nil store should fail")
	}

	deps = testDeps(t)
	deps.Dispatcher = nil
	if _, err := New(deps); err == nil {
		t.Fatal("New() with nil dispatcher should fail")
	}

	deps = testDeps(t)
	deps.Logger = nil
	if _, err := New(deps); err == nil {
		t.Fatal("New() with nil logger should fail")
	}
}

func TestNew_HubCreatedEagerly(t *testing.T) {
	srv, err := New(testDeps(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	hub := srv.Hub()
	if hub == nil {
		t.Fatal("Hub() is nil before Start()")
	}

	// Concurrent accessors must all observe the same instance.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if srv.Hub() != hub {
				t.Error("Hub() returned a different instance")
			}
		}()
	}
	wg.Wait()
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t, testDeps(t))

	resp, err := http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	decodeBody(t, resp, &body)
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Version != "test" {
		t.Errorf("version = %q, want %q", body.Version, "test")
	}
}

func TestRequestID_Propagated(t *testing.T) {
	_, ts := newTestServer(t, testDeps(t))

	resp, err := http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}
