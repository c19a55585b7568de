package device

// Unavailable is the sentinel value for telemetry keys and attributes that
// have never been observed for a device.
const Unavailable = "unavailable"

// AttrPower is the power-state attribute key reported by the platform.
const AttrPower = "POWER"

// Power attribute values as reported by the platform.
const (
	PowerOn  = "ON"
	PowerOff = "OFF"
)

// Metadata is the stable display metadata assigned to a device.
// It is computed at most once per device identifier and never changes
// for the process lifetime.
type Metadata struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Record is the live view of a single device: the last-known value per
// telemetry key, the last-known attributes, and the assigned metadata.
type Record struct {
	ID         string            `json:"id"`
	Telemetry  map[string]string `json:"telemetry"`
	Attributes map[string]string `json:"attributes"`
	Metadata   Metadata          `json:"metadata"`
}

// Clone creates an independent copy of the Record.
// Map fields are cloned so modifications to the copy do not affect the
// original. This is essential for store isolation.
func (r *Record) Clone() Record {
	cpy := *r
	cpy.Telemetry = make(map[string]string, len(r.Telemetry))
	for k, v := range r.Telemetry {
		cpy.Telemetry[k] = v
	}
	cpy.Attributes = make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		cpy.Attributes[k] = v
	}
	return cpy
}
