package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voltguard/voltguard-core/internal/infrastructure/config"
)

// Domain errors for the forecast client.
var (
	// ErrDisabled indicates forecasting is switched off in config.
	ErrDisabled = errors.New("forecast: disabled in configuration")

	// ErrNotConnected is returned when an operation requires a connection
	// but Connect has not succeeded.
	ErrNotConnected = errors.New("forecast: not connected")

	// ErrRequestFailed is returned when a prediction exchange fails.
	ErrRequestFailed = errors.New("forecast: request failed")
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

// Prediction is the forecast service's answer for one device: expected
// consumption per upcoming hour.
type Prediction struct {
	DeviceID string    `json:"device_id"`
	Hours    []float64 `json:"hours"`
}

// request is the wire shape of both client message types.
type request struct {
	Type     string  `json:"type"`
	DeviceID string  `json:"device_id"`
	Hour     string  `json:"hour,omitempty"`
	KWh      float64 `json:"kwh,omitempty"`
}

// Client talks to the external consumption-forecast service over a
// persistent websocket.
//
// The ML ensemble lives in its own service; this client only carries two
// message types: a request/response Predict, and fire-and-forget
// SendFeedback delivering sealed hourly consumption so the service can
// correct its models.
//
// Thread Safety: all methods are safe for concurrent use; exchanges are
// serialized over the single socket.
type Client struct {
	url     string
	timeout time.Duration
	logger  Logger

	conn *websocket.Conn
	mu   sync.Mutex
}

// New creates a forecast client from config. Returns ErrDisabled when
// forecasting is off; call Connect before use.
func New(cfg config.ForecastConfig, logger Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = noopLogger{}
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:     cfg.URL,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Connect dials the forecast service.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrRequestFailed, err)
	}
	c.conn = conn
	c.logger.Info("forecast service connected", "url", c.url)
	return nil
}

// Close shuts the socket down. Safe to call repeatedly.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Predict requests the hourly consumption forecast for a device.
func (c *Client) Predict(ctx context.Context, deviceID string) (*Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	if err := c.conn.WriteJSON(request{Type: "predict", DeviceID: deviceID}); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	var pred Prediction
	if err := c.conn.ReadJSON(&pred); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return &pred, nil
}

// SendFeedback delivers one sealed hourly consumption sample.
// Fire-and-forget: failures are logged, never surfaced, so the energy
// tracker's seal path stays non-blocking.
func (c *Client) SendFeedback(deviceID string, hour time.Time, kwh float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	err := c.conn.WriteJSON(request{
		Type:     "feedback",
		DeviceID: deviceID,
		Hour:     hour.Format(time.RFC3339),
		KWh:      kwh,
	})
	if err != nil {
		c.logger.Warn("forecast feedback dropped", "device_id", deviceID, "error", err)
		c.dropLocked()
	}
}

// dropLocked abandons a broken socket so the next Connect can redial.
// Caller must hold the lock.
func (c *Client) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
