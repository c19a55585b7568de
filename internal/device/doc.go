// Package device maintains the in-memory live state of every power plug
// known to VoltGuard.
//
// The package has two responsibilities:
//
//   - Store: a concurrency-safe map of device records, created lazily on
//     first contact with all telemetry keys and the power attribute seeded
//     to the "unavailable" sentinel. Updates merge into existing records;
//     reads return deep copies so callers can never corrupt shared state.
//
//   - Assigner: deterministic display metadata. Device identifiers carry
//     no human-friendly information, so the assigner hashes each identifier
//     into a stable type, name and location. The same identifier always
//     resolves to the same metadata, across restarts and processes.
//
// The package is a pure domain layer: no I/O, no platform knowledge.
// Ingestion and API layers compose on top of it.
package device
