// Package influxdb writes Insteon light metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library: a ping on connect,
// the non-blocking batching write API, and an error callback for the
// failures that batching makes asynchronous.
//
// Two kinds of point are written:
//   - device_metrics (device_id, measurement=level) with the light's brightness
//   - insteon_event (device_id, event, origin) with count=1 per emitted event
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	client.WriteDeviceMetric("light-kitchen", "level", 51)
//
// Writes are batched according to batch_size and flush_interval.
package influxdb
