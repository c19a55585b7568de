package ingest

import "sync"

// routeKind distinguishes what a subscription was registered for.
type routeKind int

const (
	routeTelemetry routeKind = iota
	routeAttribute
)

// route maps one subscription back to its device.
type route struct {
	deviceID string
	kind     routeKind
}

// RouteTable resolves platform subscription identifiers to devices.
//
// Command identifiers increase monotonically for the process lifetime and
// are never reused, so a frame that belonged to a previous connection's
// subscription can never resolve against the current one: Reset clears
// the routes but leaves the counter running.
//
// Thread Safety: all methods are safe for concurrent use.
type RouteTable struct {
	routes map[int]route
	nextID int
	mu     sync.Mutex
}

// NewRouteTable creates an empty route table.
func NewRouteTable() *RouteTable {
	return &RouteTable{routes: make(map[int]route)}
}

// Reset drops every registered route. Called before resubscribing on a
// fresh connection.
func (t *RouteTable) Reset() {
	t.mu.Lock()
	t.routes = make(map[int]route)
	t.mu.Unlock()
}

// Add registers a subscription for a device and returns the command
// identifier to subscribe with.
func (t *RouteTable) Add(deviceID string, kind routeKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.routes[t.nextID] = route{deviceID: deviceID, kind: kind}
	return t.nextID
}

// Resolve looks up a subscription identifier.
func (t *RouteTable) Resolve(cmdID int) (route, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.routes[cmdID]
	return r, ok
}

// Len returns the number of registered routes.
func (t *RouteTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.routes)
}
