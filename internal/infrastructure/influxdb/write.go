package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceMetric records one live telemetry reading for a plug.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteDeviceMetric("3fa85f64-...", "ENERGY-Power", 42.5)
//	client.WriteDeviceMetric("3fa85f64-...", "ENERGY-Current", 0.19)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_metrics",
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteHourlyEnergy records one completed hour of consumption for a plug.
//
// Parameters:
//   - deviceID: device identifier
//   - hour: start of the hour the sample covers
//   - kwh: energy consumed during that hour
//   - cost: kwh priced at the configured tariff
func (c *Client) WriteHourlyEnergy(deviceID string, hour time.Time, kwh, cost float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"energy_hourly",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"kwh":  kwh,
			"cost": cost,
		},
		hour,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
