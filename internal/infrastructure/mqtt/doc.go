// Package mqtt is the proxy's broker connection, built on paho.
//
// A Client reconnects by itself, replays its subscriptions after each
// reconnect and keeps a retained online/offline document on
// {prefix}/system/status, with the offline form registered as the
// connection's will.
//
// # Architecture
//
// The proxy publishes every sensor message it receives from a gateway onto
// the broker, and accepts outbound commands from it:
//
//	Gateways ↔ UDP event loop ↔ MQTT bridge ↔ Broker ↔ Consumers
//
// All topics live under a configurable prefix (default "sensornet").
// The client itself only owns {prefix}/system/status; the MySensors bridge
// builds its state, command, ack and health topics on top of Topics.
//
// # Security Considerations
//
//   - Enable TLS when the broker is not on the local host (cfg.Broker.TLS=true)
//   - Credentials should come from SENSORNET_MQTT_USERNAME and SENSORNET_MQTT_PASSWORD
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().Join("command", "mysensors", "#"), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
