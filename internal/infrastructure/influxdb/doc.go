// Package influxdb provides InfluxDB connectivity for the sensor network proxy.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, point writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Numeric sensor readings (measurement "sensor_reading")
//   - Node battery levels (measurement "node_battery")
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "home",
//	    Bucket:  "sensornet",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSensorReading(12, 1, "V_TEMP", "192.168.1.50:5003", 21.5, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
