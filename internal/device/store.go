package device

import "sync"

// Logger defines the logging interface the store depends on.
// This abstraction keeps the package decoupled from any specific
// logging implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store holds the in-memory live state of every known device.
//
// Records are created lazily on first write or read: a fresh record has
// every configured telemetry key and the power attribute pre-seeded with
// the Unavailable sentinel, so readers never see a partially-initialised
// map. Writes merge into the existing record and never remove keys, which
// makes repeated delivery of the same update a no-op.
//
// Thread Safety: all methods are safe for concurrent use. Returned
// records are deep copies; callers may mutate them freely.
type Store struct {
	records       map[string]*Record
	telemetryKeys []string
	assigner      *Assigner
	logger        Logger
	mu            sync.RWMutex
}

// NewStore creates a device store seeding new records with the given
// telemetry keys. A nil logger is replaced with a no-op implementation.
func NewStore(telemetryKeys []string, assigner *Assigner, logger Logger) *Store {
	if logger == nil {
		logger = noopLogger{}
	}
	if assigner == nil {
		assigner = NewAssigner()
	}
	keys := make([]string, len(telemetryKeys))
	copy(keys, telemetryKeys)
	return &Store{
		records:       make(map[string]*Record),
		telemetryKeys: keys,
		assigner:      assigner,
		logger:        logger,
	}
}

// Ensure creates the record for a device if it does not exist yet and
// returns a copy of it. Used when a device is discovered before any
// telemetry or attribute arrives.
func (s *Store) Ensure(deviceID string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureLocked(deviceID)
	return rec.Clone()
}

// UpsertTelemetry merges telemetry values into a device record and
// returns a copy of the updated record. Keys absent from the update
// keep their previous values.
func (s *Store) UpsertTelemetry(deviceID string, values map[string]string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureLocked(deviceID)
	for k, v := range values {
		rec.Telemetry[k] = v
	}
	s.logger.Debug("telemetry updated", "device_id", deviceID, "keys", len(values))
	return rec.Clone()
}

// UpsertAttribute sets a single attribute on a device record. It returns
// a copy of the updated record together with the attribute's previous
// value, which callers use to detect state transitions such as a power
// flip.
func (s *Store) UpsertAttribute(deviceID, key, value string) (Record, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureLocked(deviceID)
	prev := rec.Attributes[key]
	rec.Attributes[key] = value
	s.logger.Debug("attribute updated",
		"device_id", deviceID, "key", key, "value", value, "previous", prev)
	return rec.Clone(), prev
}

// Snapshot returns a copy of the record for a device, or false if the
// device has never been seen.
func (s *Store) Snapshot(deviceID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[deviceID]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// AllSnapshots returns copies of every known device record.
func (s *Store) AllSnapshots() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out
}

// IDs returns the identifiers of every known device.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.records))
	for id := range s.records {
		out = append(out, id)
	}
	return out
}

// ensureLocked returns the live record for a device, creating and seeding
// it on first access. Caller must hold the write lock.
func (s *Store) ensureLocked(deviceID string) *Record {
	if rec, ok := s.records[deviceID]; ok {
		return rec
	}

	rec := &Record{
		ID:         deviceID,
		Telemetry:  make(map[string]string, len(s.telemetryKeys)),
		Attributes: map[string]string{AttrPower: Unavailable},
		Metadata:   s.assigner.Assign(deviceID),
	}
	for _, k := range s.telemetryKeys {
		rec.Telemetry[k] = Unavailable
	}
	s.records[deviceID] = rec
	s.logger.Info("device registered",
		"device_id", deviceID,
		"type", rec.Metadata.Type,
		"location", rec.Metadata.Location)
	return rec
}
