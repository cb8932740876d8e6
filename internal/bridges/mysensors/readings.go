package mysensors

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
)

// ReadingWriter stores numeric sensor data in a time-series database.
// influxdb.Client satisfies it.
type ReadingWriter interface {
	WriteSensorReading(nodeID, childID int, valueType, gateway string, value float64, ts time.Time)
	WriteBatteryLevel(nodeID int, gateway string, percent float64, ts time.Time)
}

// ReadingSink turns inbound messages carrying numeric values into
// time-series points. Everything else is ignored.
type ReadingSink struct {
	writer ReadingWriter
}

// NewReadingSink creates a sink writing to w.
func NewReadingSink(w ReadingWriter) *ReadingSink {
	return &ReadingSink{writer: w}
}

// Publish implements Sink. Writes are buffered by the writer so this never
// blocks on the network.
func (s *ReadingSink) Publish(_ context.Context, in Inbound) error {
	msg := in.Message
	ts := in.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	switch msg.Type {
	case MessageTypeSet:
		vt := SetReqType(msg.SubType)
		if !vt.Numeric() {
			return nil
		}
		value, ok := parseReading(msg.Payload)
		if !ok {
			return nil
		}
		s.writer.WriteSensorReading(msg.NodeID, msg.ChildID, vt.String(), gatewayName(in), value, ts)

	case MessageTypeInternal:
		if InternalType(msg.SubType) != InternalBatteryLevel {
			return nil
		}
		value, ok := parseReading(msg.Payload)
		if !ok {
			return nil
		}
		s.writer.WriteBatteryLevel(msg.NodeID, gatewayName(in), value, ts)
	}
	return nil
}

// parseReading accepts finite decimal payloads, plus "on"/"off" style
// booleans some sketches send for binary sensors. NaN and infinities are
// refused; InfluxDB rejects them.
func parseReading(payload string) (float64, bool) {
	p := strings.TrimSpace(payload)
	if v, err := strconv.ParseFloat(p, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	switch strings.ToLower(p) {
	case "on", "true":
		return 1, true
	case "off", "false":
		return 0, true
	}
	return 0, false
}

func gatewayName(in Inbound) string {
	if in.Gateway == nil {
		return ""
	}
	return in.Gateway.String()
}
