package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Subscription scopes understood by the platform socket.
const (
	scopeLatestTelemetry = "LATEST_TELEMETRY"
	scopeClientAttrs     = "CLIENT_SCOPE"
)

// subCmd is one subscription request within a subscribe message.
type subCmd struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Scope      string `json:"scope"`
	Keys       string `json:"keys"`
	CmdID      int    `json:"cmdId"`
}

// subscribeMessage is the single combined message sent after connecting:
// one telemetry batch and one attribute batch per device.
type subscribeMessage struct {
	TsSubCmds   []subCmd `json:"tsSubCmds"`
	AttrSubCmds []subCmd `json:"attrSubCmds"`
}

// inboundMessage is a data or error frame from the platform socket.
//
// Data values arrive as [[timestamp, value], ...] per key, newest first.
// The platform answers a subscription with frames carrying the cmdId it
// was registered under as subscriptionId.
type inboundMessage struct {
	SubscriptionID *int               `json:"subscriptionId"`
	Data           map[string][][]any `json:"data"`
	ErrorCode      int                `json:"errorCode"`
	ErrorMsg       string             `json:"errorMsg"`
}

// decodeInbound parses a raw socket frame.
func decodeInbound(raw []byte) (*inboundMessage, error) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return &msg, nil
}

// latestValues flattens the frame's per-key sample lists to the newest
// value of each key, rendered as a string.
func (m *inboundMessage) latestValues() map[string]string {
	out := make(map[string]string, len(m.Data))
	for key, samples := range m.Data {
		if len(samples) == 0 || len(samples[0]) < 2 {
			continue
		}
		out[key] = renderValue(samples[0][1])
	}
	return out
}

// latestSampleTime returns the timestamp the platform embedded in the
// newest sample for a key (epoch milliseconds). A delayed or replayed
// frame carries the moment the device reported, not the moment it
// arrived, so consumers that bucket by time must use this over the wall
// clock.
func (m *inboundMessage) latestSampleTime(key string) (time.Time, bool) {
	samples := m.Data[key]
	if len(samples) == 0 || len(samples[0]) < 2 {
		return time.Time{}, false
	}
	ms, ok := samples[0][0].(float64)
	if !ok || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

// renderValue converts a decoded JSON sample value to its string form.
func renderValue(v any) string {
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
