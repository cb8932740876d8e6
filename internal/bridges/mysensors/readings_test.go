package mysensors

import (
	"context"
	"testing"
	"time"
)

type recordedPoint struct {
	measurement string
	nodeID      int
	childID     int
	valueType   string
	gateway     string
	value       float64
}

type fakeReadingWriter struct {
	points []recordedPoint
}

func (w *fakeReadingWriter) WriteSensorReading(nodeID, childID int, valueType, gateway string, value float64, _ time.Time) {
	w.points = append(w.points, recordedPoint{"sensor_reading", nodeID, childID, valueType, gateway, value})
}

func (w *fakeReadingWriter) WriteBatteryLevel(nodeID int, gateway string, percent float64, _ time.Time) {
	w.points = append(w.points, recordedPoint{"node_battery", nodeID, 0, "", gateway, percent})
}

func TestReadingSink(t *testing.T) {
	gw := udpAddr("192.168.1.50:5003")

	tests := []struct {
		name string
		line string
		want []recordedPoint
	}{
		{"temperature", "12;1;1;0;0;21.5", []recordedPoint{{"sensor_reading", 12, 1, "V_TEMP", "192.168.1.50:5003", 21.5}}},
		{"binary on", "12;2;1;0;16;on", []recordedPoint{{"sensor_reading", 12, 2, "V_TRIPPED", "192.168.1.50:5003", 1}}},
		{"battery", "12;255;3;0;0;87", []recordedPoint{{"node_battery", 12, 0, "", "192.168.1.50:5003", 87}}},
		{"text variable ignored", "12;1;1;0;24;hello", nil},
		{"non numeric payload ignored", "12;1;1;0;0;warm", nil},
		{"nan ignored", "12;1;1;0;0;NaN", nil},
		{"infinity ignored", "12;1;1;0;0;+Inf", nil},
		{"negative infinity battery ignored", "12;255;3;0;0;-inf", nil},
		{"overflow ignored", "12;1;1;0;0;1e999", nil},
		{"unknown value type ignored", "12;1;1;0;99;1", nil},
		{"presentation ignored", "12;1;0;0;6;", nil},
		{"other internal ignored", "12;255;3;0;11;Weather", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage(tt.line)
			if err != nil {
				t.Fatalf("ParseMessage(%q) error = %v", tt.line, err)
			}
			w := &fakeReadingWriter{}
			sink := NewReadingSink(w)

			if err := sink.Publish(context.Background(), Inbound{Message: msg, Gateway: gw, ReceivedAt: time.Now()}); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			if len(w.points) != len(tt.want) {
				t.Fatalf("points = %+v, want %+v", w.points, tt.want)
			}
			for i := range tt.want {
				if w.points[i] != tt.want[i] {
					t.Errorf("point[%d] = %+v, want %+v", i, w.points[i], tt.want[i])
				}
			}
		})
	}
}

func TestReadingSink_NoGateway(t *testing.T) {
	w := &fakeReadingWriter{}
	msg, _ := ParseMessage("3;1;1;0;1;55")

	if err := NewReadingSink(w).Publish(context.Background(), Inbound{Message: msg}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(w.points) != 1 || w.points[0].gateway != "" || w.points[0].valueType != "V_HUM" {
		t.Errorf("points = %+v", w.points)
	}
}
