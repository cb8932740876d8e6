package mysensors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Bridge operation constants.
const (
	// commandTimeout bounds forwarding a bus command to the gateways.
	commandTimeout = 5 * time.Second

	// defaultQoS is used for state and acknowledgement publications.
	defaultQoS byte = 1
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Forwarder sends a message to every known gateway. *Loop implements it.
type Forwarder interface {
	Submit(ctx context.Context, msg Message) (int, error)
}

// StatsSource provides event loop statistics. *Loop implements it.
type StatsSource interface {
	Stats() LoopStats
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// MQTTClient is the MQTT client implementation. Required.
	MQTTClient MQTTClient

	// Forwarder receives bus commands. Required.
	Forwarder Forwarder

	// Stats feeds health reports. Optional.
	Stats StatsSource

	// TopicPrefix roots every topic. Defaults to DefaultTopicPrefix.
	TopicPrefix string

	// QoS for state publications. Defaults to 1.
	QoS byte

	// RetainState publishes Set messages retained so late subscribers see
	// the last reading.
	RetainState bool

	// Version is reported in health messages.
	Version string

	// HealthInterval is how often health is published. Default: 30 seconds.
	HealthInterval time.Duration

	// Interface and Port are reported in health messages.
	Interface string
	Port      int

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge connects the proxy to the MQTT bus. It is the Sink for inbound
// messages and turns command topics into messages forwarded to every
// gateway.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt        MQTTClient
	forwarder   Forwarder
	topics      Topics
	qos         byte
	retainState bool
	health      *HealthReporter
	logger      Logger

	// Shutdown coordination. Commands arrive on their own goroutines;
	// gateMu orders wg.Add against Stop's wg.Wait.
	wg        sync.WaitGroup
	gateMu    sync.Mutex
	stopping  bool
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewBridge creates a new bridge instance.
// Call Start() to subscribe to commands and begin health reporting.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Forwarder == nil {
		return nil, fmt.Errorf("forwarder is required")
	}

	qos := opts.QoS
	if qos == 0 {
		qos = defaultQoS
	}

	ctx, ctxCancel := context.WithCancel(context.Background())
	topics := Topics{Prefix: opts.TopicPrefix}
	logger := loggerOrNoop(opts.Logger)

	b := &Bridge{
		mqtt:        opts.MQTTClient,
		forwarder:   opts.Forwarder,
		topics:      topics,
		qos:         qos,
		retainState: opts.RetainState,
		logger:      logger,
		ctx:         ctx,
		ctxCancel:   ctxCancel,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Stats:     opts.Stats,
		Topics:    topics,
		Interface: opts.Interface,
		Port:      opts.Port,
		Logger:    logger,
	})

	return b, nil
}

// Start subscribes to command topics and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Warn("failed to publish starting status", "error", err)
	}

	topic := b.topics.CommandSubscription()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", topic)

	b.health.Start(ctx)
	return nil
}

// Stop cancels in-flight commands and stops health reporting.
// Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.gateMu.Lock()
		b.stopping = true
		b.gateMu.Unlock()

		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// Topics returns the topic builder used by the bridge.
func (b *Bridge) Topics() Topics {
	return b.topics
}

// Publish implements Sink by publishing the message as JSON on its state topic.
func (b *Bridge) Publish(ctx context.Context, in Inbound) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := NewStateMessage(in)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling state message: %w", err)
	}
	retained := b.retainState && in.Message.Type == MessageTypeSet
	topic := b.topics.State(in.Message.NodeID, in.Message.ChildID)
	if err := b.mqtt.Publish(topic, payload, b.qos, retained); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// handleCommand processes a command message from the bus.
// Commands received once Stop has begun are dropped.
func (b *Bridge) handleCommand(topic string, payload []byte) {
	if !b.enterCommand() {
		b.logger.Debug("bridge stopping, command dropped", "topic", topic)
		return
	}
	defer b.wg.Done()

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Warn("invalid command payload", "topic", topic, "error", err)
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	nodeID, childID, err := b.topics.ParseCommandTopic(topic)
	if err != nil && cmd.Raw == "" {
		b.publishAck(NewAckError(cmd, ErrCodeInvalidCommand, err.Error()))
		return
	}

	msg, err := cmd.ToMessage(nodeID, childID)
	if err != nil {
		b.publishAck(NewAckError(cmd, ErrCodeInvalidCommand, err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	sent, err := b.forwarder.Submit(ctx, msg)
	switch {
	case errors.Is(err, ErrLoopStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		b.publishAck(NewAckError(cmd, ErrCodeUnavailable, err.Error()))
	case err != nil && sent == 0:
		b.publishAck(NewAckError(cmd, ErrCodeSendFailed, err.Error()))
	case sent == 0:
		b.publishAck(NewAckMessage(cmd, AckNoGateways, 0))
	default:
		if err != nil {
			b.logger.Warn("command reached some gateways", "command_id", cmd.ID, "sent", sent, "error", err)
		}
		b.publishAck(NewAckMessage(cmd, AckAccepted, sent))
	}
}

func (b *Bridge) enterCommand() bool {
	b.gateMu.Lock()
	defer b.gateMu.Unlock()
	if b.stopping {
		return false
	}
	b.wg.Add(1)
	return true
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("marshalling ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(ack.CommandID), payload, b.qos, false); err != nil {
		b.logger.Error("failed to publish ack", "command_id", ack.CommandID, "error", err)
	}
}
