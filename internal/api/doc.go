// Package api implements the HTTP status API and WebSocket message stream
// for the sensor network proxy.
//
// This package provides:
//   - Read-only endpoints for health, metrics, gateways and the node inventory
//   - POST /api/v1/messages to forward a message to every gateway
//   - A WebSocket hub that streams inbound sensor messages
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server sits beside the event loop, never in front of it. Outbound
// messages are handed to the loop with Submit so socket writes stay on the
// dispatch goroutine. The Hub implements mysensors.Sink and is added to the
// inbound fan-out, so every decoded message reaches subscribed clients on the
// "messages" channel and on "node.{id}".
//
// # Graceful Degradation
//
// The inventory is optional. Without it the node endpoints answer 503 and
// everything else keeps working.
package api
