package mysensors

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Wire format constants.
const (
	// fieldCount is the number of ';' separated fields in a message.
	fieldCount = 6

	// fieldSeparator separates message fields on the wire.
	fieldSeparator = ";"

	// lineTerminator ends every serialised message.
	lineTerminator = "\n"
)

// Message is one decoded MySensors 1.4 message.
//
// SubType is interpreted according to Type: a SensorType for Presentation,
// a SetReqType for Set and Req, an InternalType for Internal and a
// StreamType for Stream.
type Message struct {
	NodeID  int         `json:"node_id"`
	ChildID int         `json:"child_id"`
	Type    MessageType `json:"type"`
	Ack     bool        `json:"ack"`
	SubType int         `json:"sub_type"`
	Payload string      `json:"payload"`
}

// ParseMessage decodes one wire line.
//
// Surrounding whitespace, line terminators included, is stripped from the
// line, then it is split on ';' into exactly six fields. The numeric fields
// must be unsigned decimal integers.
// Unknown type codes are not an error; they are carried verbatim and report
// Known() == false.
//
// Parameters:
//   - text: One line as received from a gateway
//
// Returns:
//   - Message: The decoded message
//   - error: ErrMalformed (wrapped) on a bad field count or non-integer field
func ParseMessage(text string) (Message, error) {
	if !utf8.ValidString(text) {
		return Message{}, fmt.Errorf("%w: not valid UTF-8", ErrMalformed)
	}

	line := strings.TrimSpace(text)

	fields := strings.Split(line, fieldSeparator)
	if len(fields) != fieldCount {
		return Message{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformed, len(fields), fieldCount)
	}

	var nums [5]int
	for i := range nums {
		n, ok := parseUint(fields[i])
		if !ok {
			return Message{}, fmt.Errorf("%w: field %d %q is not a non-negative integer", ErrMalformed, i, fields[i])
		}
		nums[i] = n
	}

	return Message{
		NodeID:  nums[0],
		ChildID: nums[1],
		Type:    MessageType(nums[2]),
		Ack:     nums[3] != 0,
		SubType: nums[4],
		Payload: fields[5],
	}, nil
}

// parseUint accepts digits only; signs are rejected.
func parseUint(field string) (int, bool) {
	f := strings.TrimSpace(field)
	if f == "" || f[0] < '0' || f[0] > '9' {
		return 0, false
	}
	n, err := strconv.Atoi(f)
	return n, err == nil
}

// ParseDatagram decodes a raw datagram as received from a socket.
func ParseDatagram(data []byte) (Message, error) {
	return ParseMessage(string(data))
}

// Encode serialises the message to its wire form, terminated by a single
// newline.
func (m Message) Encode() []byte {
	return []byte(m.String() + lineTerminator)
}

// String returns the wire form without the line terminator.
func (m Message) String() string {
	ack := 0
	if m.Ack {
		ack = 1
	}
	return strconv.Itoa(m.NodeID) + fieldSeparator +
		strconv.Itoa(m.ChildID) + fieldSeparator +
		strconv.Itoa(int(m.Type)) + fieldSeparator +
		strconv.Itoa(ack) + fieldSeparator +
		strconv.Itoa(m.SubType) + fieldSeparator +
		m.Payload
}

// Validate reports whether the message can be represented on the wire.
// A payload containing ';' or a newline cannot.
func (m Message) Validate() error {
	if m.NodeID < 0 || m.ChildID < 0 || m.Type < 0 || m.SubType < 0 {
		return fmt.Errorf("%w: negative numeric field", ErrMalformed)
	}
	if strings.TrimSpace(m.Payload) != m.Payload {
		return fmt.Errorf("%w: payload has leading or trailing whitespace", ErrMalformed)
	}
	if strings.ContainsAny(m.Payload, fieldSeparator+lineTerminator+"\r") {
		return fmt.Errorf("%w: payload contains a field separator or line break", ErrMalformed)
	}
	if !utf8.ValidString(m.Payload) {
		return fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformed)
	}
	return nil
}

// WithPayload returns a copy of m carrying payload.
func (m Message) WithPayload(payload string) Message {
	m.Payload = payload
	return m
}

// IsDiscovery reports whether m is a controller-discovery request.
func (m Message) IsDiscovery() bool {
	return m.Type == MessageTypeInternal && InternalType(m.SubType) == InternalControllerDiscovery
}

// SubTypeName resolves SubType against the table selected by Type.
func (m Message) SubTypeName() string {
	switch m.Type {
	case MessageTypePresentation:
		return SensorType(m.SubType).String()
	case MessageTypeSet, MessageTypeReq:
		return SetReqType(m.SubType).String()
	case MessageTypeInternal:
		return InternalType(m.SubType).String()
	case MessageTypeStream:
		return StreamType(m.SubType).String()
	default:
		return bogusType
	}
}
