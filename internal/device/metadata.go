package device

import (
	"crypto/md5" //nolint:gosec // Not used for security; stable bucketing only
	"encoding/binary"
	"sync"
)

// Display metadata pools. The hash of a device identifier indexes into
// these lists, so the same identifier always resolves to the same entry
// across restarts.
var (
	deviceTypes = []string{"light", "fan", "ac", "sensor", "camera"}

	deviceLocations = []string{
		"Living Room", "Bedroom", "Home Office", "Dining Room", "Balcony",
	}

	deviceDisplayNames = map[string]string{
		"light":  "Smart Light",
		"fan":    "Ceiling Fan",
		"ac":     "Air Conditioner",
		"sensor": "Sensor",
		"camera": "Camera",
	}
)

// Assigner maps device identifiers to stable display metadata.
//
// The first call for an identifier hashes it into an unsigned integer and
// reduces it modulo the fixed type and location lists; the result is cached
// and returned unconditionally on subsequent calls.
//
// Thread Safety: all methods are safe for concurrent use.
type Assigner struct {
	cache map[string]Metadata
	mu    sync.Mutex
}

// NewAssigner creates an empty metadata assigner.
func NewAssigner() *Assigner {
	return &Assigner{
		cache: make(map[string]Metadata),
	}
}

// Assign returns the display metadata for a device identifier,
// computing and caching it on first use.
func (a *Assigner) Assign(deviceID string) Metadata {
	a.mu.Lock()
	defer a.mu.Unlock()

	if meta, ok := a.cache[deviceID]; ok {
		return meta
	}

	meta := computeMetadata(deviceID)
	a.cache[deviceID] = meta
	return meta
}

// computeMetadata derives metadata deterministically from the identifier.
func computeMetadata(deviceID string) Metadata {
	sum := md5.Sum([]byte(deviceID)) //nolint:gosec // Stable bucketing, not security
	hash := binary.BigEndian.Uint64(sum[:8])

	deviceType := deviceTypes[hash%uint64(len(deviceTypes))]
	location := deviceLocations[hash%uint64(len(deviceLocations))]

	name, ok := deviceDisplayNames[deviceType]
	if !ok {
		name = deviceType
	}

	return Metadata{
		Type:     deviceType,
		Name:     name,
		Location: location,
	}
}
