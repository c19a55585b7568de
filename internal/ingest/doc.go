// Package ingest streams live device state from the platform into
// VoltGuard.
//
// The router owns the platform's subscription socket. Each connection
// cycle validates the credential, dials, rebuilds the subscription route
// table with fresh command identifiers, and sends one combined subscribe
// message covering telemetry keys and the power attribute for every
// enumerated device. Inbound frames are processed strictly sequentially;
// a frame whose subscription identifier does not resolve in the current
// route table is dropped, which is what makes reconnects safe - stale
// identifiers from a previous connection can never be misattributed.
//
// Resolved frames update the device store, feed current readings to the
// alert engine, feed cumulative meter readings to the energy tracker,
// persist numeric telemetry to InfluxDB, and always broadcast the full
// device snapshot to connected clients.
//
// The refresh poller complements the stream with a periodic REST sweep so
// devices that changed while the socket was down do not stay stale.
package ingest
