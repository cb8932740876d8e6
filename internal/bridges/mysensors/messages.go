package mysensors

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MQTT message types exchanged between the proxy and the rest of the system.

// Protocol is the protocol segment used in every bus topic.
const Protocol = "mysensors"

// DefaultTopicPrefix is the root of every topic when none is configured.
const DefaultTopicPrefix = "sensornet"

// StateMessage is published for every message received from a gateway.
// Topic: {prefix}/state/mysensors/{node}/{child}
type StateMessage struct {
	// ID uniquely identifies this publication.
	ID string `json:"id"`

	// Timestamp is when the datagram was received (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Protocol is always "mysensors".
	Protocol string `json:"protocol"`

	// Gateway is the UDP address of the gateway that relayed the message.
	Gateway string `json:"gateway"`

	NodeID   int    `json:"node_id"`
	ChildID  int    `json:"child_id"`
	Type     string `json:"type"`
	TypeCode int    `json:"type_code"`
	Ack      bool   `json:"ack"`
	SubType  string `json:"sub_type"`
	SubCode  int    `json:"sub_type_code"`
	Payload  string `json:"payload"`

	// Raw is the message in wire form.
	Raw string `json:"raw"`
}

// NewStateMessage builds the bus representation of an inbound message.
func NewStateMessage(in Inbound) StateMessage {
	gw := ""
	if in.Gateway != nil {
		gw = in.Gateway.String()
	}
	ts := in.ReceivedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	m := in.Message
	return StateMessage{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Protocol:  Protocol,
		Gateway:   gw,
		NodeID:    m.NodeID,
		ChildID:   m.ChildID,
		Type:      m.Type.String(),
		TypeCode:  int(m.Type),
		Ack:       m.Ack,
		SubType:   m.SubTypeName(),
		SubCode:   m.SubType,
		Payload:   m.Payload,
		Raw:       m.String(),
	}
}

// CommandMessage asks the proxy to send a message to every gateway.
// Topic: {prefix}/command/mysensors/{node}/{child}
//
// Node and child come from the topic. When Raw is set it is parsed as a wire
// line and the other fields are ignored.
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Generated if empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	Type    int    `json:"type"`
	Ack     bool   `json:"ack"`
	SubType int    `json:"sub_type"`
	Payload string `json:"payload"`

	// Raw is an optional complete wire line.
	Raw string `json:"raw,omitempty"`

	// Source indicates where the command originated ("mqtt", "api").
	Source string `json:"source,omitempty"`
}

// ToMessage builds the wire message for the given node and child.
func (c CommandMessage) ToMessage(nodeID, childID int) (Message, error) {
	if c.Raw != "" {
		return ParseMessage(c.Raw)
	}
	m := Message{
		NodeID:  nodeID,
		ChildID: childID,
		Type:    MessageType(c.Type),
		Ack:     c.Ack,
		SubType: c.SubType,
		Payload: c.Payload,
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// AckStatus represents the outcome of a command.
type AckStatus string

const (
	// AckAccepted indicates the message was sent to at least one gateway.
	AckAccepted AckStatus = "accepted"

	// AckNoGateways indicates no gateway has been discovered yet.
	AckNoGateways AckStatus = "no_gateways"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// Error codes carried in failed acknowledgements.
const (
	ErrCodeInvalidCommand = "INVALID_COMMAND"
	ErrCodeSendFailed     = "SEND_FAILED"
	ErrCodeUnavailable    = "UNAVAILABLE"
)

// AckMessage reports the outcome of a command.
// Topic: {prefix}/ack/mysensors/{command_id}
type AckMessage struct {
	CommandID string     `json:"command_id"`
	Timestamp time.Time  `json:"timestamp"`
	Status    AckStatus  `json:"status"`
	Gateways  int        `json:"gateways"`
	Error     *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains error details for failed commands.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage creates an acknowledgement for cmd.
func NewAckMessage(cmd CommandMessage, status AckStatus, gateways int) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Status:    status,
		Gateways:  gateways,
	}
}

// NewAckError creates a failed acknowledgement for cmd.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	ack := NewAckMessage(cmd, AckFailed, 0)
	ack.Error = &ErrorInfo{Code: code, Message: message}
	return ack
}

// HealthStatus represents the operational status of the proxy.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the operational status of the proxy.
// Topic: {prefix}/health/mysensors
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Interface     string       `json:"interface,omitempty"`
	Port          int          `json:"port,omitempty"`
	Statistics    *LoopStats   `json:"statistics,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}

// NewLWTMessage creates the Last Will and Testament health message.
func NewLWTMessage() HealthMessage {
	return HealthMessage{
		Bridge:    Protocol,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// Topics builds bus topics under a configurable prefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// State returns the topic for messages from a node's child sensor.
func (t Topics) State(nodeID, childID int) string {
	return fmt.Sprintf("%s/state/%s/%d/%d", t.prefix(), Protocol, nodeID, childID)
}

// Command returns the topic for commands to a node's child sensor.
func (t Topics) Command(nodeID, childID int) string {
	return fmt.Sprintf("%s/command/%s/%d/%d", t.prefix(), Protocol, nodeID, childID)
}

// CommandSubscription returns the wildcard matching every command topic.
func (t Topics) CommandSubscription() string {
	return fmt.Sprintf("%s/command/%s/#", t.prefix(), Protocol)
}

// Ack returns the topic for a command acknowledgement.
func (t Topics) Ack(commandID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", t.prefix(), Protocol, commandID)
}

// Health returns the topic for proxy health.
func (t Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", t.prefix(), Protocol)
}

// ParseCommandTopic extracts node and child IDs from a command topic.
func (t Topics) ParseCommandTopic(topic string) (nodeID, childID int, err error) {
	base := fmt.Sprintf("%s/command/%s/", t.prefix(), Protocol)
	rest, ok := strings.CutPrefix(topic, base)
	if !ok {
		return 0, 0, fmt.Errorf("topic %q is not a command topic", topic)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 { //nolint:mnd // node/child
		return 0, 0, fmt.Errorf("topic %q: want {node}/{child}", topic)
	}
	if nodeID, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("topic %q: node id: %w", topic, err)
	}
	if childID, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("topic %q: child id: %w", topic, err)
	}
	return nodeID, childID, nil
}
