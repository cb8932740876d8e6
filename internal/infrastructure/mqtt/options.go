package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second

	// opTimeout bounds every publish, subscribe and unsubscribe round trip.
	opTimeout = 5 * time.Second

	// quiesceMillis is how long Disconnect lets in-flight work drain.
	quiesceMillis = 1000

	keepAlive = 60 * time.Second

	maxQoS = 2

	// maxPayloadSize matches the default message limit of common brokers.
	maxPayloadSize = 1 << 20

	tlsMinVersion = tls.VersionTLS12
)

// Values of the status field on the system status topic.
const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// Reasons attached to offline status messages.
const (
	reasonUnexpected = "unexpected_disconnect"
	reasonShutdown   = "graceful_shutdown"
)

// statusMessage is the retained payload on {prefix}/system/status.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// statusPayload encodes a status message stamped with the current time.
func statusPayload(status, clientID, reason string) []byte {
	b, err := json.Marshal(statusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Only string fields; Marshal cannot fail.
		panic(err)
	}
	return b
}

// buildClientOptions maps the mqtt section of config.yaml onto paho options.
// Sessions are clean and the client reconnects on its own with the
// configured backoff bounds.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	addr := net.JoinHostPort(cfg.Broker.Host, strconv.Itoa(cfg.Broker.Port))

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s", scheme, addr)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(secondsOr(cfg.Reconnect.InitialDelay, time.Second)).
		SetMaxReconnectInterval(secondsOr(cfg.Reconnect.MaxDelay, time.Minute)).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		// Each message gets its own goroutine, so a handler waiting on a
		// gateway send or an ack publish does not hold up the router.
		SetOrderMatters(false)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion, ServerName: cfg.Broker.Host})
	}
	return opts
}

// configureLWT registers a retained offline status that the broker
// publishes if the proxy vanishes without calling Close.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, clientID string) {
	opts.SetBinaryWill(topics.SystemStatus(), statusPayload(statusOffline, clientID, reasonUnexpected), 1, true)
}

func secondsOr(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}
