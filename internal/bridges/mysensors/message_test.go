package mysensors

import (
	"errors"
	"testing"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Message
		wantErr bool
	}{
		{
			name:  "set temperature",
			input: "12;6;1;0;0;36.5\n",
			want:  Message{NodeID: 12, ChildID: 6, Type: MessageTypeSet, SubType: int(SetReqTemp), Payload: "36.5"},
		},
		{
			name:  "discovery request",
			input: "0;0;3;0;15;\n",
			want:  Message{Type: MessageTypeInternal, SubType: int(InternalControllerDiscovery)},
		},
		{
			name:  "no terminator",
			input: "1;255;3;0;11;Garage Sensor",
			want:  Message{NodeID: 1, ChildID: 255, Type: MessageTypeInternal, SubType: int(InternalSketchName), Payload: "Garage Sensor"},
		},
		{
			name:  "crlf",
			input: "5;1;0;1;6;1.4\r\n",
			want:  Message{NodeID: 5, ChildID: 1, Type: MessageTypePresentation, Ack: true, SubType: int(SensorTemp), Payload: "1.4"},
		},
		{
			name:  "unknown type is carried",
			input: "1;1;9;0;0;x\n",
			want:  Message{NodeID: 1, ChildID: 1, Type: MessageType(9), Payload: "x"},
		},
		{
			name:  "trailing space",
			input: "5;1;1;0;0;23.5 \n",
			want:  Message{NodeID: 5, ChildID: 1, Type: MessageTypeSet, Payload: "23.5"},
		},
		{
			name:  "doubled terminator",
			input: "5;1;1;0;0;23.5\n\n",
			want:  Message{NodeID: 5, ChildID: 1, Type: MessageTypeSet, Payload: "23.5"},
		},
		{
			name:  "padded line",
			input: " \t5;1;1;0;0;23.5\r\n ",
			want:  Message{NodeID: 5, ChildID: 1, Type: MessageTypeSet, Payload: "23.5"},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "blank line", input: " \r\n", wantErr: true},
		{name: "negative node", input: "-5;1;1;0;0;x\n", wantErr: true},
		{name: "signed child", input: "5;+1;1;0;0;x\n", wantErr: true},
		{name: "negative sub-type", input: "5;1;1;0;-2;x\n", wantErr: true},
		{name: "five fields", input: "1;2;3;0;15\n", wantErr: true},
		{name: "seven fields", input: "1;2;1;0;0;a;b\n", wantErr: true},
		{name: "non-integer node", input: "x;2;1;0;0;a\n", wantErr: true},
		{name: "non-integer sub-type", input: "1;2;1;0;temp;a\n", wantErr: true},
		{name: "invalid utf-8", input: "1;2;1;0;0;\xff\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("ParseMessage(%q) error = %v, want ErrMalformed", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMessage(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMessage(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMessageEncodeRoundTrip(t *testing.T) {
	msgs := []Message{
		{NodeID: 0, ChildID: 0, Type: MessageTypeInternal, SubType: 15},
		{NodeID: 12, ChildID: 6, Type: MessageTypeSet, Ack: true, SubType: 0, Payload: "21.5"},
		{NodeID: 254, ChildID: 255, Type: MessageTypeStream, SubType: 2, Payload: "0A0B0C"},
		{NodeID: 3, ChildID: 1, Type: MessageType(42), SubType: 99, Payload: "héllo wörld"},
	}

	for _, m := range msgs {
		encoded := m.Encode()
		if encoded[len(encoded)-1] != '\n' {
			t.Errorf("Encode(%+v) missing terminator", m)
		}
		got, err := ParseMessage(string(encoded))
		if err != nil {
			t.Fatalf("ParseMessage(Encode(%+v)) error = %v", m, err)
		}
		if got != m {
			t.Errorf("round trip = %+v, want %+v", got, m)
		}
	}
}

func TestMessageString(t *testing.T) {
	m := Message{NodeID: 1, ChildID: 2, Type: MessageTypeReq, Ack: true, SubType: 3, Payload: "p"}
	if got := m.String(); got != "1;2;2;1;3;p" {
		t.Errorf("String() = %q", got)
	}
	if got := string(m.Encode()); got != "1;2;2;1;3;p\n" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		payload string
		wantErr bool
	}{
		{"", false},
		{"192.168.1.10", false},
		{"a;b", true},
		{"line\nbreak", true},
		{"23.5 ", true},
		{"\tx", true},
		{"two words", false},
	}
	for _, tt := range tests {
		err := Message{Payload: tt.payload}.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrMalformed) {
			t.Errorf("Validate(%q) error = %v, want ErrMalformed", tt.payload, err)
		}
	}
}

func TestMessageValidate_NegativeFields(t *testing.T) {
	for _, m := range []Message{
		{NodeID: -1},
		{ChildID: -1},
		{Type: MessageType(-1)},
		{SubType: -1},
	} {
		if err := m.Validate(); !errors.Is(err, ErrMalformed) {
			t.Errorf("Validate(%+v) = %v, want ErrMalformed", m, err)
		}
	}
}

func TestMessageTypeString(t *testing.T) {
	tests := []struct {
		typ  MessageType
		want string
	}{
		{MessageTypePresentation, "Presentation"},
		{MessageTypeSet, "Set"},
		{MessageTypeReq, "Req"},
		{MessageTypeInternal, "Internal"},
		{MessageTypeStream, "Stream"},
		{MessageType(5), "Bogus type"},
		{MessageType(-1), "Bogus type"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("MessageType(%d).String() = %q, want %q", int(tt.typ), got, tt.want)
		}
	}
}

func TestInternalTypeString(t *testing.T) {
	tests := []struct {
		typ  InternalType
		want string
	}{
		{InternalBatteryLevel, "Battery level"},
		{InternalIDRequest, "ID Request"},
		{InternalFindParentResponse, "Find parent response"},
		{InternalGatewayReady, "Gateway ready"},
		{InternalControllerDiscovery, "Controller Discovery"},
		{InternalType(16), "Bogus type"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("InternalType(%d).String() = %q, want %q", int(tt.typ), got, tt.want)
		}
	}
}

func TestEnumTableSizes(t *testing.T) {
	if !SetReqCurrent.Known() || SetReqType(40).Known() {
		t.Error("SetReqType should cover 0..39")
	}
	if !SensorSceneController.Known() || SensorType(26).Known() {
		t.Error("SensorType should cover 0..25")
	}
	if !StreamImage.Known() || StreamType(6).Known() {
		t.Error("StreamType should cover 0..5")
	}
	if !PayloadFloat32.Known() || PayloadType(8).Known() {
		t.Error("PayloadType should cover 0..7")
	}
	if SetReqLockStatus.String() != "V_LOCK_STATUS" {
		t.Errorf("SetReqLockStatus = %q", SetReqLockStatus.String())
	}
	if SensorArduinoRepeaterNode.String() != "S_ARDUINO_REPEATER_NODE" {
		t.Errorf("SensorArduinoRepeaterNode = %q", SensorArduinoRepeaterNode.String())
	}
}

func TestSubTypeName(t *testing.T) {
	tests := []struct {
		msg  Message
		want string
	}{
		{Message{Type: MessageTypePresentation, SubType: int(SensorMotion)}, "S_MOTION"},
		{Message{Type: MessageTypeSet, SubType: int(SetReqHum)}, "V_HUM"},
		{Message{Type: MessageTypeReq, SubType: int(SetReqDimmer)}, "V_DIMMER"},
		{Message{Type: MessageTypeInternal, SubType: int(InternalSketchVersion)}, "Sketch version"},
		{Message{Type: MessageTypeStream, SubType: int(StreamFirmwareRequest)}, "ST_FIRMWARE_REQUEST"},
		{Message{Type: MessageType(7), SubType: 0}, "Bogus type"},
	}
	for _, tt := range tests {
		if got := tt.msg.SubTypeName(); got != tt.want {
			t.Errorf("SubTypeName(%v) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestIsDiscovery(t *testing.T) {
	if !(Message{Type: MessageTypeInternal, SubType: 15}).IsDiscovery() {
		t.Error("Internal/15 should be a discovery request")
	}
	if (Message{Type: MessageTypeInternal, SubType: 14}).IsDiscovery() {
		t.Error("Internal/14 is not a discovery request")
	}
	if (Message{Type: MessageTypeSet, SubType: 15}).IsDiscovery() {
		t.Error("Set/15 is not a discovery request")
	}
}
