package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the proxy.
const (
	MeasurementSensorReading = "sensor_reading"
	MeasurementNodeBattery   = "node_battery"
)

// WriteSensorReading records a numeric value reported by a sensor child.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - nodeID, childID: MySensors addressing of the reporting sensor
//   - valueType: Variable type name (e.g., "V_TEMP")
//   - gateway: Address of the gateway that relayed the reading
//   - value: The numeric reading
//   - ts: When the reading was received
//
// Example:
//
//	client.WriteSensorReading(12, 1, "V_TEMP", "192.168.1.50:5003", 21.5, time.Now())
func (c *Client) WriteSensorReading(nodeID, childID int, valueType, gateway string, value float64, ts time.Time) {
	c.WritePointWithTime(MeasurementSensorReading,
		map[string]string{
			"node_id":    strconv.Itoa(nodeID),
			"child_id":   strconv.Itoa(childID),
			"value_type": valueType,
			"gateway":    gateway,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)
}

// WriteBatteryLevel records a node's reported battery level in percent.
func (c *Client) WriteBatteryLevel(nodeID int, gateway string, percent float64, ts time.Time) {
	c.WritePointWithTime(MeasurementNodeBattery,
		map[string]string{
			"node_id": strconv.Itoa(nodeID),
			"gateway": gateway,
		},
		map[string]interface{}{
			"percent": percent,
		},
		ts,
	)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("proxy_stats",
//	    map[string]string{"interface": "eth0"},
//	    map[string]interface{}{"datagrams": 1024, "gateways": 2})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., the receive time of a
// datagram that was processed later).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writer.WritePoint(point)
}
