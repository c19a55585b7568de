package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voltguard/voltguard-core/internal/device"
	"github.com/voltguard/voltguard-core/internal/infrastructure/config"
	"github.com/voltguard/voltguard-core/internal/platform"
)

// Telemetry keys with dedicated consumers downstream of the store.
const (
	keyCurrent = "ENERGY-Current"
	keyTotal   = "ENERGY-Total"
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

// TokenValidator confirms the platform credential before dialing.
// Satisfied by *platform.Client.
type TokenValidator interface {
	VerifyToken(ctx context.Context) error
}

// Enumerator resolves the device set to subscribe to.
type Enumerator func(ctx context.Context) ([]string, error)

// AlertSink receives live current readings. Satisfied by *alert.Engine.
type AlertSink interface {
	OnCurrentReading(ctx context.Context, deviceID string, amps float64)
}

// EnergySink receives cumulative meter readings. Satisfied by
// *energy.Tracker.
type EnergySink interface {
	OnTotalSample(deviceID string, totalKWh float64, at time.Time)
}

// MetricsSink persists live telemetry points. Satisfied by the InfluxDB
// client; nil disables persistence.
type MetricsSink interface {
	WriteDeviceMetric(deviceID, measurement string, value float64)
}

// Publisher broadcasts state events to connected clients.
type Publisher interface {
	Broadcast(event string, payload any)
}

// Router is the telemetry ingestion pipeline: it maintains the
// subscription socket to the platform and fans inbound frames out to the
// state store, the alert engine, the energy tracker and the event hub.
//
// Lifecycle per connection attempt: validate credential, dial, clear and
// rebuild the route table, send one combined subscribe message, then read
// frames sequentially until the socket dies. Any failure drops back to a
// fixed-interval wait and the cycle restarts; Run only returns when the
// context is cancelled.
type Router struct {
	wsURL     string
	token     string
	keys      []string
	reconnect time.Duration

	validator TokenValidator
	enumerate Enumerator
	store     *device.Store
	alerts    AlertSink
	energy    EnergySink
	metrics   MetricsSink
	publisher Publisher
	routes    *RouteTable
	dialer    *websocket.Dialer
	logger    Logger

	// now is swapped out in tests.
	now func() time.Time
}

// NewRouter creates the ingestion router. Alert, energy and metrics sinks
// may be nil; a nil logger is replaced with a no-op implementation.
func NewRouter(
	cfg config.PlatformConfig,
	validator TokenValidator,
	enumerate Enumerator,
	store *device.Store,
	alerts AlertSink,
	energySink EnergySink,
	metrics MetricsSink,
	publisher Publisher,
	logger Logger,
) *Router {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Router{
		wsURL:     SocketURL(cfg.URL, cfg.Token),
		token:     cfg.Token,
		keys:      cfg.TelemetryKeys,
		reconnect: cfg.GetReconnectInterval(),
		validator: validator,
		enumerate: enumerate,
		store:     store,
		alerts:    alerts,
		energy:    energySink,
		metrics:   metrics,
		publisher: publisher,
		routes:    NewRouteTable(),
		dialer:    websocket.DefaultDialer,
		logger:    logger,
		now:       time.Now,
	}
}

// SocketURL derives the subscription socket endpoint from the platform's
// base URL: https becomes wss and the credential rides as a query
// parameter, which is how the platform authenticates socket sessions.
func SocketURL(baseURL, token string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/ws/plugins/telemetry?token=" + url.QueryEscape(token)
}

// Run drives the connect/subscribe/stream cycle until the context is
// cancelled. The loop never terminates on its own.
func (r *Router) Run(ctx context.Context) {
	r.logger.Info("ingestion router started", "reconnect_interval", r.reconnect.String())
	for {
		if err := r.connectAndStream(ctx); err != nil {
			r.logger.Warn("ingestion cycle ended", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Info("ingestion router stopped")
			return
		case <-time.After(r.reconnect):
		}
	}
}

// connectAndStream performs one full connection cycle.
func (r *Router) connectAndStream(ctx context.Context) error {
	// Credential pre-validation: a dead token means skip the dial entirely.
	if err := platform.CheckToken(r.token, r.now()); err != nil {
		return err
	}
	if err := r.validator.VerifyToken(ctx); err != nil {
		return err
	}

	conn, _, err := r.dialer.DialContext(ctx, r.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing platform socket: %w", err)
	}
	defer conn.Close() //nolint:errcheck // Socket teardown

	// Cancellation unblocks the read loop by closing the socket.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := r.subscribe(ctx, conn); err != nil {
		return err
	}

	r.logger.Info("streaming telemetry", "routes", r.routes.Len())
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("socket read: %w", err)
		}
		r.handleFrame(ctx, raw)
	}
}

// subscribe enumerates devices, rebuilds the route table and sends the
// combined subscribe message.
func (r *Router) subscribe(ctx context.Context, conn *websocket.Conn) error {
	ids, err := r.enumerate(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	if len(ids) == 0 {
		return ErrNoDevices
	}

	r.routes.Reset()
	msg := subscribeMessage{}
	keys := strings.Join(r.keys, ",")
	for _, id := range ids {
		r.store.Ensure(id)
		msg.TsSubCmds = append(msg.TsSubCmds, subCmd{
			EntityType: "DEVICE",
			EntityID:   id,
			Scope:      scopeLatestTelemetry,
			Keys:       keys,
			CmdID:      r.routes.Add(id, routeTelemetry),
		})
		msg.AttrSubCmds = append(msg.AttrSubCmds, subCmd{
			EntityType: "DEVICE",
			EntityID:   id,
			Scope:      scopeClientAttrs,
			Keys:       device.AttrPower,
			CmdID:      r.routes.Add(id, routeAttribute),
		})
	}

	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	r.logger.Info("subscribed", "devices", len(ids))
	return nil
}

// handleFrame routes one inbound frame to its consumers. Frames that
// cannot be attributed to a live subscription are dropped.
func (r *Router) handleFrame(ctx context.Context, raw []byte) {
	msg, err := decodeInbound(raw)
	if err != nil {
		r.logger.Warn("dropping undecodable frame", "error", err)
		return
	}

	if msg.SubscriptionID == nil {
		if msg.ErrorCode != 0 {
			r.logger.Error("platform error frame",
				"error_code", msg.ErrorCode, "error_msg", msg.ErrorMsg)
		}
		return
	}

	rt, ok := r.routes.Resolve(*msg.SubscriptionID)
	if !ok {
		// Stale subscription from a previous connection, or platform noise.
		if msg.ErrorCode != 0 {
			r.logger.Error("platform error for unknown subscription",
				"subscription_id", *msg.SubscriptionID,
				"error_code", msg.ErrorCode, "error_msg", msg.ErrorMsg)
		}
		return
	}

	values := msg.latestValues()
	if len(values) == 0 {
		return
	}

	switch rt.kind {
	case routeTelemetry:
		// Energy accounting buckets by hour, so the total must carry the
		// frame's own timestamp, not the arrival clock.
		totalAt, ok := msg.latestSampleTime(keyTotal)
		if !ok {
			totalAt = r.now()
		}
		r.handleTelemetry(ctx, rt.deviceID, values, totalAt)
	case routeAttribute:
		r.handleAttribute(rt.deviceID, values)
	}
}

func (r *Router) handleTelemetry(ctx context.Context, deviceID string, values map[string]string, totalAt time.Time) {
	rec := r.store.UpsertTelemetry(deviceID, values)

	if r.metrics != nil {
		for key, v := range values {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				r.metrics.WriteDeviceMetric(deviceID, key, f)
			}
		}
	}

	if amps, ok := parseFloat(values[keyCurrent]); ok && r.alerts != nil {
		r.alerts.OnCurrentReading(ctx, deviceID, amps)
	}
	if total, ok := parseFloat(values[keyTotal]); ok && r.energy != nil {
		r.energy.OnTotalSample(deviceID, total, totalAt)
	}

	r.publishSnapshot(rec)
}

func (r *Router) handleAttribute(deviceID string, values map[string]string) {
	v, ok := values[device.AttrPower]
	if !ok {
		return
	}

	rec, prev := r.store.UpsertAttribute(deviceID, device.AttrPower, v)
	if prev != device.Unavailable && prev != v && r.publisher != nil {
		r.publisher.Broadcast("activity.log", map[string]any{
			"message":   fmt.Sprintf("%s (%s) turned %s", rec.Metadata.Name, deviceID, v),
			"device_id": deviceID,
			"timestamp": r.now().UnixMilli(),
		})
	}

	r.publishSnapshot(rec)
}

// publishSnapshot hands the full current record to the event hub.
// Snapshots go out unconditionally after every update.
func (r *Router) publishSnapshot(rec device.Record) {
	if r.publisher != nil {
		r.publisher.Broadcast("device.state", rec)
	}
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
