package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/voltguard/voltguard-core/internal/infrastructure/config"
)

// authHeader is the platform's bearer credential header.
const authHeader = "X-Authorization"

// discoveryPageSize bounds a single enumeration page. The deployments this
// serves are a handful of plugs; paging beyond the first page is not needed.
const discoveryPageSize = 200

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

// httpDoer abstracts the HTTP transport for testability.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the platform's REST API: credential validation, device
// discovery and on-demand state reads.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	httpc   httpDoer
	logger  Logger
}

// NewClient creates a REST client for the configured platform.
func NewClient(cfg config.PlatformConfig, logger Logger) *Client {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: cfg.GetRequestTimeout()},
		logger:  logger,
	}
}

// VerifyToken validates the credential against the platform.
//
// It first checks the token's embedded expiry locally, then confirms the
// session with GET /api/auth/user.
//
// Returns ErrTokenExpired, ErrTokenMalformed or ErrUnauthorized when the
// credential is unusable.
func (c *Client) VerifyToken(ctx context.Context) error {
	if err := CheckToken(c.token, time.Now()); err != nil {
		return err
	}

	resp, err := c.get(ctx, "/api/auth/user")
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // Response body close

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: auth check returned %d", ErrRequestFailed, resp.StatusCode)
	}
	return nil
}

// entityRef is the platform's nested entity identifier.
type entityRef struct {
	ID struct {
		EntityType string `json:"entityType"`
		ID         string `json:"id"`
	} `json:"id"`
	Name string `json:"name"`
}

type entityPage struct {
	Data []entityRef `json:"data"`
}

// ListDevices enumerates the devices to manage.
//
// Discovery is a three-step fallback:
//  1. The configured device group, if any.
//  2. The tenant's full device list.
//  3. The statically configured device identifier.
//
// A 401 at any step aborts discovery with ErrUnauthorized.
func (c *Client) ListDevices(ctx context.Context, groupID, fallbackID string) ([]string, error) {
	if groupID != "" {
		ids, err := c.listEntities(ctx,
			fmt.Sprintf("/api/entityGroup/%s/entities", url.PathEscape(groupID)))
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		if err != nil {
			c.logger.Warn("group enumeration failed, falling back to tenant list",
				"group_id", groupID, "error", err)
		} else if len(ids) > 0 {
			return ids, nil
		}
	}

	ids, err := c.listEntities(ctx, "/api/tenant/devices")
	if errors.Is(err, ErrUnauthorized) {
		return nil, err
	}
	if err != nil {
		c.logger.Warn("tenant enumeration failed, falling back to configured device",
			"error", err)
	} else if len(ids) > 0 {
		return ids, nil
	}

	if fallbackID == "" {
		return nil, ErrNoDevices
	}
	return []string{fallbackID}, nil
}

func (c *Client) listEntities(ctx context.Context, path string) ([]string, error) {
	resp, err := c.get(ctx, path+"?pageSize="+strconv.Itoa(discoveryPageSize)+"&page=0")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Response body close

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s returned %d", ErrRequestFailed, path, resp.StatusCode)
	}

	var page entityPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, e := range page.Data {
		if e.ID.ID != "" {
			ids = append(ids, e.ID.ID)
		}
	}
	return ids, nil
}

// FetchTelemetry reads the latest value of each requested time-series key
// for a device. Keys the platform has no data for are absent from the
// returned map.
func (c *Client) FetchTelemetry(ctx context.Context, deviceID string, keys []string) (map[string]string, error) {
	path := fmt.Sprintf("/api/plugins/telemetry/DEVICE/%s/values/timeseries?keys=%s",
		url.PathEscape(deviceID), url.QueryEscape(strings.Join(keys, ",")))

	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Response body close

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: timeseries returned %d", ErrRequestFailed, resp.StatusCode)
	}

	// Shape: {"ENERGY-Voltage": [{"ts": 1700000000000, "value": "231"}], ...}
	var raw map[string][]struct {
		TS    int64 `json:"ts"`
		Value any   `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	out := make(map[string]string, len(raw))
	for key, points := range raw {
		if len(points) == 0 {
			continue
		}
		out[key] = formatValue(points[0].Value)
	}
	return out, nil
}

// FetchPowerAttribute reads the device's current POWER attribute.
// Returns an empty string if the platform has never recorded one.
func (c *Client) FetchPowerAttribute(ctx context.Context, deviceID string) (string, error) {
	path := fmt.Sprintf("/api/plugins/telemetry/DEVICE/%s/values/attributes?keys=POWER",
		url.PathEscape(deviceID))

	resp, err := c.get(ctx, path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // Response body close

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: attributes returned %d", ErrRequestFailed, resp.StatusCode)
	}

	var attrs []struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&attrs); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	for _, a := range attrs {
		if a.Key == "POWER" {
			return formatValue(a.Value), nil
		}
	}
	return "", nil
}

// get issues an authenticated GET and returns the raw response.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set(authHeader, "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return resp, nil
}

// formatValue renders a decoded JSON telemetry value as the string form
// used throughout the state store. The platform mixes strings, numbers
// and booleans across firmware versions.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "ON"
		}
		return "OFF"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// drainBody discards and closes a response body so the underlying
// connection can be reused.
func drainBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
