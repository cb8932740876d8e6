package mqtt

import (
	"fmt"
	"sort"
)

// Publish sends payload to topic and waits for the broker's acknowledgement
// (for QoS 0, for the write). Topics must be concrete: wildcards are
// rejected, as are payloads over maxPayloadSize.
//
//	topic := client.Topics().Join("state", "mysensors", "12", "1")
//	err := client.Publish(topic, []byte("21.5"), 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if n := len(payload); n > maxPayloadSize {
		return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrPublishFailed, n, maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Publish(topic, qos, retained, payload), opTimeout, ErrPublishFailed)
}

// Subscribe routes messages matching the topic filter to h. The filter may
// use + and # wildcards. The subscription is remembered and replayed after
// a reconnect; subscribing to the same filter again replaces its handler.
func (c *Client) Subscribe(filter string, qos byte, h MessageHandler) error {
	switch {
	case filter == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case h == nil:
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.subMu.Lock()
	if c.subs == nil {
		c.subs = make(map[string]subscription)
	}
	c.subs[filter] = subscription{qos: qos, handler: h}
	c.subMu.Unlock()

	if err := await(c.paho.Subscribe(filter, qos, c.wrapHandler(h)), opTimeout, ErrSubscribeFailed); err != nil {
		c.forget(filter)
		return err
	}
	return nil
}

// Unsubscribe drops the filter. Messages already in flight may still arrive.
func (c *Client) Unsubscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.forget(filter)
	return await(c.paho.Unsubscribe(filter), opTimeout, ErrUnsubscribeFailed)
}

// Subscriptions lists the active topic filters in sorted order.
func (c *Client) Subscriptions() []string {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	out := make([]string, 0, len(c.subs))
	for f := range c.subs {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (c *Client) forget(filter string) {
	c.subMu.Lock()
	delete(c.subs, filter)
	c.subMu.Unlock()
}
