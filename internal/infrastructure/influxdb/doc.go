// Package influxdb persists VoltGuard's time-series data to InfluxDB v2.
//
// Two measurement families are written:
//
//   - device_metrics: live plug telemetry (voltage, current, power) as it
//     streams in from the platform.
//   - energy_hourly: one point per device per completed hour with the kWh
//     consumed and its cost at the configured tariff.
//
// Writes are batched and non-blocking; a failed InfluxDB never stalls
// ingestion. The integration is optional and disabled by default - when
// disabled, Connect returns ErrDisabled and callers run without
// persistence.
package influxdb
