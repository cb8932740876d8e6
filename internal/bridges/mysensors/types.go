package mysensors

// bogusType is the display name of any code outside a known table.
const bogusType = "Bogus type"

// MessageType is the command field of a MySensors message.
// Codes outside 0..4 are carried verbatim and report Known() == false.
type MessageType int

// MySensors 1.4 message types.
const (
	MessageTypePresentation MessageType = 0
	MessageTypeSet          MessageType = 1
	MessageTypeReq          MessageType = 2
	MessageTypeInternal     MessageType = 3
	MessageTypeStream       MessageType = 4
)

// Reserved addresses.
const (
	// GatewayNodeID is the node ID of the gateway itself.
	GatewayNodeID = 0
	// UnassignedNodeID is used by nodes that have not been given an ID yet.
	UnassignedNodeID = 255
	// NodeChildID addresses the node itself rather than one of its sensors.
	NodeChildID = 255
)

var messageTypeNames = map[MessageType]string{
	MessageTypePresentation: "Presentation",
	MessageTypeSet:          "Set",
	MessageTypeReq:          "Req",
	MessageTypeInternal:     "Internal",
	MessageTypeStream:       "Stream",
}

// Known reports whether t is one of the five defined message types.
func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t]
	return ok
}

// String returns the display name, or "Bogus type" for unknown codes.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return bogusType
}

// SetReqType is the sub-type of Set and Req messages (the variable type).
type SetReqType int

// MySensors 1.4 variable types.
const (
	SetReqTemp       SetReqType = 0
	SetReqHum        SetReqType = 1
	SetReqLight      SetReqType = 2
	SetReqDimmer     SetReqType = 3
	SetReqPressure   SetReqType = 4
	SetReqForecast   SetReqType = 5
	SetReqRain       SetReqType = 6
	SetReqRainRate   SetReqType = 7
	SetReqWind       SetReqType = 8
	SetReqGust       SetReqType = 9
	SetReqDirection  SetReqType = 10
	SetReqUV         SetReqType = 11
	SetReqWeight     SetReqType = 12
	SetReqDistance   SetReqType = 13
	SetReqImpedance  SetReqType = 14
	SetReqArmed      SetReqType = 15
	SetReqTripped    SetReqType = 16
	SetReqWatt       SetReqType = 17
	SetReqKWH        SetReqType = 18
	SetReqSceneOn    SetReqType = 19
	SetReqSceneOff   SetReqType = 20
	SetReqHeater     SetReqType = 21
	SetReqHeaterSw   SetReqType = 22
	SetReqLightLevel SetReqType = 23
	SetReqVar1       SetReqType = 24
	SetReqVar2       SetReqType = 25
	SetReqVar3       SetReqType = 26
	SetReqVar4       SetReqType = 27
	SetReqVar5       SetReqType = 28
	SetReqUp         SetReqType = 29
	SetReqDown       SetReqType = 30
	SetReqStop       SetReqType = 31
	SetReqIRSend     SetReqType = 32
	SetReqIRReceive  SetReqType = 33
	SetReqFlow       SetReqType = 34
	SetReqVolume     SetReqType = 35
	SetReqLockStatus SetReqType = 36
	SetReqDustLevel  SetReqType = 37
	SetReqVoltage    SetReqType = 38
	SetReqCurrent    SetReqType = 39
)

var setReqNames = [...]string{
	"V_TEMP", "V_HUM", "V_LIGHT", "V_DIMMER", "V_PRESSURE", "V_FORECAST",
	"V_RAIN", "V_RAINRATE", "V_WIND", "V_GUST", "V_DIRECTION", "V_UV",
	"V_WEIGHT", "V_DISTANCE", "V_IMPEDANCE", "V_ARMED", "V_TRIPPED",
	"V_WATT", "V_KWH", "V_SCENE_ON", "V_SCENE_OFF", "V_HEATER",
	"V_HEATER_SW", "V_LIGHT_LEVEL", "V_VAR1", "V_VAR2", "V_VAR3", "V_VAR4",
	"V_VAR5", "V_UP", "V_DOWN", "V_STOP", "V_IR_SEND", "V_IR_RECEIVE",
	"V_FLOW", "V_VOLUME", "V_LOCK_STATUS", "V_DUST_LEVEL", "V_VOLTAGE",
	"V_CURRENT",
}

// Known reports whether t is a defined variable type.
func (t SetReqType) Known() bool { return t >= 0 && int(t) < len(setReqNames) }

func (t SetReqType) String() string {
	if t.Known() {
		return setReqNames[t]
	}
	return bogusType
}

// Numeric reports whether values of this variable type are numeric readings
// suitable for a time series. Text and command types return false.
func (t SetReqType) Numeric() bool {
	switch t {
	case SetReqForecast, SetReqSceneOn, SetReqSceneOff, SetReqHeater,
		SetReqVar1, SetReqVar2, SetReqVar3, SetReqVar4, SetReqVar5,
		SetReqUp, SetReqDown, SetReqStop, SetReqIRSend, SetReqIRReceive:
		return false
	}
	return t.Known()
}

// InternalType is the sub-type of Internal messages.
type InternalType int

// MySensors 1.4 internal message types.
const (
	InternalBatteryLevel        InternalType = 0
	InternalTime                InternalType = 1
	InternalVersion             InternalType = 2
	InternalIDRequest           InternalType = 3
	InternalIDResponse          InternalType = 4
	InternalInclusionMode       InternalType = 5
	InternalConfig              InternalType = 6
	InternalFindParent          InternalType = 7
	InternalFindParentResponse  InternalType = 8
	InternalLogMessage          InternalType = 9
	InternalChildren            InternalType = 10
	InternalSketchName          InternalType = 11
	InternalSketchVersion       InternalType = 12
	InternalReboot              InternalType = 13
	InternalGatewayReady        InternalType = 14
	InternalControllerDiscovery InternalType = 15
)

var internalNames = [...]string{
	"Battery level", "Time", "Version", "ID Request", "ID Response",
	"Inclusion mode", "Config", "Find parent", "Find parent response",
	"Log message", "Children", "Sketch name", "Sketch version", "Reboot",
	"Gateway ready", "Controller Discovery",
}

// Known reports whether t is a defined internal type.
func (t InternalType) Known() bool { return t >= 0 && int(t) < len(internalNames) }

// String returns the display name, or "Bogus type" for unknown codes.
func (t InternalType) String() string {
	if t.Known() {
		return internalNames[t]
	}
	return bogusType
}

// SensorType is the sub-type of Presentation messages.
type SensorType int

// MySensors 1.4 sensor types.
const (
	SensorDoor                SensorType = 0
	SensorMotion              SensorType = 1
	SensorSmoke               SensorType = 2
	SensorLight               SensorType = 3
	SensorDimmer              SensorType = 4
	SensorCover               SensorType = 5
	SensorTemp                SensorType = 6
	SensorHum                 SensorType = 7
	SensorBaro                SensorType = 8
	SensorWind                SensorType = 9
	SensorRain                SensorType = 10
	SensorUV                  SensorType = 11
	SensorWeight              SensorType = 12
	SensorPower               SensorType = 13
	SensorHeater              SensorType = 14
	SensorDistance            SensorType = 15
	SensorLightLevel          SensorType = 16
	SensorArduinoNode         SensorType = 17
	SensorArduinoRepeaterNode SensorType = 18
	SensorLock                SensorType = 19
	SensorIR                  SensorType = 20
	SensorWater               SensorType = 21
	SensorAirQuality          SensorType = 22
	SensorCustom              SensorType = 23
	SensorDust                SensorType = 24
	SensorSceneController     SensorType = 25
)

var sensorNames = [...]string{
	"S_DOOR", "S_MOTION", "S_SMOKE", "S_LIGHT", "S_DIMMER", "S_COVER",
	"S_TEMP", "S_HUM", "S_BARO", "S_WIND", "S_RAIN", "S_UV", "S_WEIGHT",
	"S_POWER", "S_HEATER", "S_DISTANCE", "S_LIGHT_LEVEL", "S_ARDUINO_NODE",
	"S_ARDUINO_REPEATER_NODE", "S_LOCK", "S_IR", "S_WATER", "S_AIR_QUALITY",
	"S_CUSTOM", "S_DUST", "S_SCENE_CONTROLLER",
}

// Known reports whether t is a defined sensor type.
func (t SensorType) Known() bool { return t >= 0 && int(t) < len(sensorNames) }

func (t SensorType) String() string {
	if t.Known() {
		return sensorNames[t]
	}
	return bogusType
}

// StreamType is the sub-type of Stream messages (firmware and media).
type StreamType int

// MySensors 1.4 stream types.
const (
	StreamFirmwareConfigRequest  StreamType = 0
	StreamFirmwareConfigResponse StreamType = 1
	StreamFirmwareRequest        StreamType = 2
	StreamFirmwareResponse       StreamType = 3
	StreamSound                  StreamType = 4
	StreamImage                  StreamType = 5
)

var streamNames = [...]string{
	"ST_FIRMWARE_CONFIG_REQUEST", "ST_FIRMWARE_CONFIG_RESPONSE",
	"ST_FIRMWARE_REQUEST", "ST_FIRMWARE_RESPONSE", "ST_SOUND", "ST_IMAGE",
}

// Known reports whether t is a defined stream type.
func (t StreamType) Known() bool { return t >= 0 && int(t) < len(streamNames) }

func (t StreamType) String() string {
	if t.Known() {
		return streamNames[t]
	}
	return bogusType
}

// PayloadType describes how a radio payload is encoded.
type PayloadType int

// MySensors 1.4 payload types.
const (
	PayloadString  PayloadType = 0
	PayloadByte    PayloadType = 1
	PayloadInt16   PayloadType = 2
	PayloadUInt16  PayloadType = 3
	PayloadLong32  PayloadType = 4
	PayloadULong32 PayloadType = 5
	PayloadCustom  PayloadType = 6
	PayloadFloat32 PayloadType = 7
)

var payloadNames = [...]string{
	"P_STRING", "P_BYTE", "P_INT16", "P_UINT16", "P_LONG32", "P_ULONG32",
	"P_CUSTOM", "P_FLOAT32",
}

// Known reports whether t is a defined payload type.
func (t PayloadType) Known() bool { return t >= 0 && int(t) < len(payloadNames) }

func (t PayloadType) String() string {
	if t.Known() {
		return payloadNames[t]
	}
	return bogusType
}
