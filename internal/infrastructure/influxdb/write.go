package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the Insteon service.
const (
	// MeasurementDeviceMetrics holds one numeric value per device and
	// measurement, e.g. measurement=level for a light's brightness.
	MeasurementDeviceMetrics = "device_metrics"
)

// WriteDeviceMetric records one numeric device value. The write is
// non-blocking; points are batched and sent asynchronously.
//
// Example:
//
//	client.WriteDeviceMetric("light-kitchen", "level", 51)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	c.write(write.NewPoint(
		MeasurementDeviceMetrics,
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	))
}

// WritePoint records a point with caller-supplied tags and fields,
// e.g. the per-event counters the bridge emits.
//
// Example:
//
//	client.WritePoint("insteon_event",
//	    map[string]string{"device_id": "light-kitchen", "event": "turnOn"},
//	    map[string]interface{}{"count": 1})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime is WritePoint with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	c.write(write.NewPoint(measurement, tags, fields, timestamp))
}

// write drops the point when the client is closed.
func (c *Client) write(point *write.Point) {
	if !c.IsConnected() || c.writeAPI == nil {
		return
	}
	c.writeAPI.WritePoint(point)
}
