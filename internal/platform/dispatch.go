package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voltguard/voltguard-core/internal/infrastructure/config"
)

// rpcMethod is the device-side RPC handler for power control.
const rpcMethod = "POWER"

// Action is a normalized power command.
type Action string

const (
	ActionOn  Action = "ON"
	ActionOff Action = "OFF"
)

// ParseAction normalizes user input ("on", "ON", "off") into an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON":
		return ActionOn, nil
	case "OFF":
		return ActionOff, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrRequestFailed, s)
	}
}

// Result records the outcome of a single command delivery.
type Result struct {
	DeviceID string `json:"device_id"`
	Action   Action `json:"action"`
	Attempts int    `json:"attempts"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Dispatcher delivers power commands to devices through the platform's
// one-way RPC endpoint.
//
// Delivery semantics:
//   - Timeouts are retried with exponential backoff up to the attempt
//     budget; after the budget is spent the device is reported as not
//     responding.
//   - A 401 aborts immediately with ErrUnauthorized; retrying a dead
//     credential cannot succeed.
//   - Any other platform error aborts without retry.
//
// Thread Safety: all methods are safe for concurrent use.
type Dispatcher struct {
	baseURL string
	token   string
	httpc   httpDoer
	policy  RetryPolicy
	logger  Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a command dispatcher for the configured platform.
func NewDispatcher(cfg config.PlatformConfig, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	policy := RetryPolicy{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Dispatch.BaseDelay) * time.Second,
	}
	if policy.MaxAttempts < 1 {
		policy = DefaultRetryPolicy()
	}
	return &Dispatcher{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: cfg.GetRequestTimeout()},
		policy:  policy,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Send delivers a power command to one device and returns the delivery
// outcome. The returned Result always echoes the device and action so
// callers can aggregate group dispatches; on failure Result.Error carries
// the reason and the error return classifies it.
func (d *Dispatcher) Send(ctx context.Context, deviceID string, action Action) (Result, error) {
	res := Result{DeviceID: deviceID, Action: action}

	var lastErr error
	for attempt := 0; attempt < d.policy.MaxAttempts; attempt++ {
		res.Attempts = attempt + 1

		err := d.post(ctx, deviceID, action)
		if err == nil {
			res.Success = true
			d.logger.Info("command delivered",
				"device_id", deviceID, "action", string(action), "attempts", res.Attempts)
			return res, nil
		}

		if errors.Is(err, ErrUnauthorized) {
			res.Error = err.Error()
			return res, err
		}
		if !isTimeout(err) {
			res.Error = err.Error()
			return res, err
		}

		lastErr = err
		d.logger.Warn("command timed out, retrying",
			"device_id", deviceID, "action", string(action), "attempt", res.Attempts)

		if attempt < d.policy.MaxAttempts-1 {
			if serr := d.sleep(ctx, d.policy.Backoff(attempt)); serr != nil {
				res.Error = serr.Error()
				return res, serr
			}
		}
	}

	err := fmt.Errorf("%w: after %d attempts: %w", ErrDeviceNotResponding, res.Attempts, lastErr)
	res.Error = err.Error()
	d.logger.Error("command delivery failed",
		"device_id", deviceID, "action", string(action), "attempts", res.Attempts)
	return res, err
}

// post issues one RPC delivery attempt.
func (d *Dispatcher) post(ctx context.Context, deviceID string, action Action) error {
	body, err := json.Marshal(map[string]any{
		"method": rpcMethod,
		"params": string(action),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	endpoint := d.baseURL + "/api/rpc/oneway/" + url.PathEscape(deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set(authHeader, "Bearer "+d.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpc.Do(req)
	if err != nil {
		return err
	}
	defer drainBody(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusGatewayTimeout:
		return &timeoutStatusError{status: resp.StatusCode}
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: rpc returned %d", ErrRequestFailed, resp.StatusCode)
	}
	return nil
}

// timeoutStatusError marks gateway-level timeout statuses as retryable.
type timeoutStatusError struct {
	status int
}

func (e *timeoutStatusError) Error() string {
	return fmt.Sprintf("platform: rpc timed out with status %d", e.status)
}

func (e *timeoutStatusError) Timeout() bool { return true }

// isTimeout reports whether a delivery attempt failed due to a timeout,
// either at the transport layer or as a gateway timeout status.
func isTimeout(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var terr *timeoutStatusError
	if errors.As(err, &terr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// sleepCtx waits for the duration or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
