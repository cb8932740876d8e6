package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one inbound message. paho calls it from its own
// goroutine; a returned error is logged and the message is still acked.
type MessageHandler func(topic string, payload []byte) error

// Client is the proxy's broker connection. It announces itself on the
// retained system status topic, reconnects on its own and replays its
// subscriptions after every reconnect. All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	connected atomic.Bool

	subMu sync.Mutex
	subs  map[string]subscription

	hookMu       sync.RWMutex
	logger       Logger
	onConnect    func()
	onDisconnect func(error)
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker described by cfg and waits up to connectTimeout
// for the session. On every (re)connect the client publishes a retained
// online status; the broker publishes the offline will if the process dies.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.TopicPrefix),
		subs:   make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connectionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if l := c.log(); l != nil {
			l.Warn("mqtt reconnecting", "broker", cfg.Broker.Host, "port", cfg.Broker.Port)
		}
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}
	// The on-connect handler runs asynchronously; mark the session up now
	// so callers see IsConnected straight after Connect returns.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) connectionUp() {
	c.connected.Store(true)

	c.subMu.Lock()
	for topic, sub := range c.subs {
		c.paho.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.subMu.Unlock()

	c.paho.Publish(c.topics.SystemStatus(), c.qos(), true,
		statusPayload(statusOnline, c.cfg.Broker.ClientID, ""))

	c.hookMu.RLock()
	hook := c.onConnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) connectionDown(err error) {
	c.connected.Store(false)

	c.hookMu.RLock()
	hook := c.onDisconnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

// Close publishes a graceful offline status, when still connected, and
// disconnects. Closing an unconnected client is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		tok := c.paho.Publish(c.topics.SystemStatus(), c.qos(), true,
			statusPayload(statusOffline, c.cfg.Broker.ClientID, reasonShutdown))
		tok.WaitTimeout(opTimeout)
	}
	c.paho.Disconnect(quiesceMillis)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// IsConnected reports the last known session state.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.connected.Load() && c.paho.IsConnected()
}

// SetOnConnect sets a hook run after the initial connect and every reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.hookMu.Lock()
	c.onConnect = fn
	c.hookMu.Unlock()
}

// SetOnDisconnect sets a hook run when the session drops.
func (c *Client) SetOnDisconnect(fn func(error)) {
	c.hookMu.Lock()
	c.onDisconnect = fn
	c.hookMu.Unlock()
}

// SetLogger sets where handler errors and recovered panics are reported.
// Without one they are dropped.
func (c *Client) SetLogger(l Logger) {
	c.hookMu.Lock()
	c.logger = l
	c.hookMu.Unlock()
}

func (c *Client) log() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.logger
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS)
}

// wrapHandler adapts h to paho, logging its errors and recovering panics so
// one bad message cannot take down paho's router goroutine.
func (c *Client) wrapHandler(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.log(); l != nil {
					l.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			if l := c.log(); l != nil {
				l.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}

// await waits for tok, wrapping a timeout or broker error in sentinel.
func await(tok pahomqtt.Token, timeout time.Duration, sentinel error) error {
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("%w: no response after %v", sentinel, timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
