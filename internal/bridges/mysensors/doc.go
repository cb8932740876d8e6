// Package mysensors implements the MySensors 1.4 UDP gateway proxy.
//
// Ethernet and WiFi MySensors gateways forward radio traffic from the sensor
// network as UDP datagrams. This package binds the sockets those gateways talk
// to, answers their controller-discovery broadcasts, decodes inbound sensor
// messages onto the message bus and forwards outbound messages back to every
// known gateway.
//
// # Architecture
//
//	┌──────────┐  broadcast   ┌────────────────────┐
//	│          │─────────────►│ DiscoveryResponder │──┐ register
//	│          │◄─────────────│                    │  │
//	│ Gateways │  reply       └────────────────────┘  ▼
//	│  (UDP)   │              ┌────────────────────┐ ┌─────────────────┐
//	│          │─────────────►│ InboundDispatcher  │ │ GatewayRegistry │
//	│          │  unicast     └─────────┬──────────┘ └────────┬────────┘
//	│          │◄───────────────────────┼─────────────────────┘ forward
//	└──────────┘                        ▼
//	                              Sink (MQTT, InfluxDB, inventory)
//
// # Wire Format
//
// Every message is one UTF-8 line of six semicolon separated fields:
//
//	node-id;child-sensor-id;message-type;ack;sub-type;payload\n
//
// Example:
//
//	msg, err := mysensors.ParseMessage("12;6;1;0;0;36.5\n")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(msg.Type, msg.SubTypeName()) // "Set V_TEMP"
//
// # Discovery
//
// A gateway that does not know its controller broadcasts an Internal message
// with sub-type Controller Discovery. The proxy answers from the unicast socket
// paired with the broadcast socket that received the request, carrying the
// unicast IPv4 address as payload, and records the sender as a gateway.
//
// # Concurrency
//
// Each bound socket has a reader goroutine that only receives datagrams. All
// decoding, registry mutation and socket writes happen on the single dispatch
// goroutine owned by Loop, so handlers never run concurrently with each other.
// Outbound messages from other goroutines are handed to the loop with Submit.
//
// # References
//
//   - MySensors serial API 1.4: https://www.mysensors.org/download/serial_api_14
package mysensors
