// Package energy converts cumulative meter readings into hourly
// consumption accounting.
//
// Smart plugs report a monotonically increasing ENERGY-Total counter.
// The tracker diffs successive readings, accrues the deltas into the
// current wall-clock hour, and seals a sample whenever a reading crosses
// an hour boundary. Sealed samples are persisted to InfluxDB, offered to
// the forecast feedback hook, and aggregated into day/week/month cost
// reports at the configured tariff.
//
// Counter resets (firmware restart, factory reset) are detected as a
// reading below its predecessor and treated as consumption since zero.
package energy
