package device

import "testing"

func TestAssign_Deterministic(t *testing.T) {
	a := NewAssigner()
	b := NewAssigner()

	ids := []string{
		"3fa85f64-5717-4562-b3fc-2c963f66afa6",
		"plug-kitchen-01",
		"",
	}

	for _, id := range ids {
		first := a.Assign(id)
		second := a.Assign(id)
		if first != second {
			t.Errorf("Assign(%q) not stable within assigner: %+v != %+v", id, first, second)
		}

		other := b.Assign(id)
		if first != other {
			t.Errorf("Assign(%q) differs across assigners: %+v != %+v", id, first, other)
		}
	}
}

func TestAssign_ValuesFromPools(t *testing.T) {
	a := NewAssigner()

	meta := a.Assign("device-under-test")

	if !contains(deviceTypes, meta.Type) {
		t.Errorf("type %q not in pool %v", meta.Type, deviceTypes)
	}
	if !contains(deviceLocations, meta.Location) {
		t.Errorf("location %q not in pool %v", meta.Location, deviceLocations)
	}
	if meta.Name == "" {
		t.Error("expected a non-empty display name")
	}
}

func TestAssign_NameMatchesType(t *testing.T) {
	a := NewAssigner()

	// Exercise enough identifiers to cover every type bucket.
	for i := 0; i < 64; i++ {
		meta := a.Assign(string(rune('a' + i)))
		want, ok := deviceDisplayNames[meta.Type]
		if !ok {
			t.Fatalf("type %q has no display name", meta.Type)
		}
		if meta.Name != want {
			t.Errorf("name for type %q = %q, want %q", meta.Type, meta.Name, want)
		}
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
