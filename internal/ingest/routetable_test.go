package ingest

import "testing"

func TestRouteTable_AddResolve(t *testing.T) {
	rt := NewRouteTable()

	tsID := rt.Add("dev-1", routeTelemetry)
	attrID := rt.Add("dev-1", routeAttribute)

	if tsID == attrID {
		t.Fatalf("command identifiers collide: %d", tsID)
	}

	r, ok := rt.Resolve(tsID)
	if !ok || r.deviceID != "dev-1" || r.kind != routeTelemetry {
		t.Errorf("Resolve(%d) = %+v, %v", tsID, r, ok)
	}
	r, ok = rt.Resolve(attrID)
	if !ok || r.kind != routeAttribute {
		t.Errorf("Resolve(%d) = %+v, %v", attrID, r, ok)
	}
}

func TestRouteTable_MonotonicAcrossReset(t *testing.T) {
	rt := NewRouteTable()

	first := rt.Add("dev-1", routeTelemetry)
	rt.Reset()
	second := rt.Add("dev-2", routeTelemetry)

	if second <= first {
		t.Errorf("identifier %d not greater than pre-reset %d", second, first)
	}
}

func TestRouteTable_StaleIDNeverResolves(t *testing.T) {
	rt := NewRouteTable()

	stale := rt.Add("dev-old", routeTelemetry)
	rt.Reset()
	rt.Add("dev-new", routeTelemetry)

	// The identifier from the previous connection must be gone, not
	// remapped to the new device.
	if _, ok := rt.Resolve(stale); ok {
		t.Errorf("stale identifier %d resolved after reset", stale)
	}
}

func TestRouteTable_ResolveUnknown(t *testing.T) {
	rt := NewRouteTable()
	if _, ok := rt.Resolve(42); ok {
		t.Error("unknown identifier resolved")
	}
	if rt.Len() != 0 {
		t.Errorf("Len() = %d, want 0", rt.Len())
	}
}
