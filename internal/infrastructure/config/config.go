package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the sensor network proxy.
// It maps directly to the YAML configuration file structure.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies this proxy installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// GatewayConfig contains the UDP gateway proxy settings.
type GatewayConfig struct {
	// Interface is the network interface whose IPv4 addresses are bound.
	Interface string `yaml:"interface"`

	// Port is the UDP port shared by unicast and broadcast sockets.
	Port int `yaml:"port"`

	// DynamicDiscovery binds broadcast sockets and answers controller
	// discovery requests.
	DynamicDiscovery bool `yaml:"dynamic_discovery"`

	// ReadBufferSize is the largest datagram accepted, in bytes.
	ReadBufferSize int `yaml:"read_buffer_size"`

	// WriteTimeout bounds each reply or forwarded message, in milliseconds.
	WriteTimeout int `yaml:"write_timeout"`

	// HandlerTimeout bounds publishing one inbound message, in milliseconds.
	HandlerTimeout int `yaml:"handler_timeout"`

	// DedupeGateways keeps one registry entry per gateway instead of one
	// per discovery request.
	DedupeGateways bool `yaml:"dedupe_gateways"`

	// HealthInterval is how often health is published to MQTT, in seconds.
	HealthInterval int `yaml:"health_interval"`
}

// DatabaseConfig contains SQLite settings for the node inventory.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"` // seconds
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	RetainState bool                `yaml:"retain_state"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnection behaviour settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"` // seconds
	MaxDelay     int `yaml:"max_delay"`     // seconds
	MaxAttempts  int `yaml:"max_attempts"`  // 0 = infinite
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains live message stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"` // seconds
	PongTimeout    int    `yaml:"pong_timeout"`  // seconds
}

// InfluxDBConfig contains time-series database settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`  // debug, info, warn, error
	Format string            `yaml:"format"` // json, text
	Output string            `yaml:"output"` // stdout, stderr
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig enables a debug log file written alongside the console.
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file and applies environment overrides.
//
// The loading process:
//  1. Start from built-in defaults
//  2. Overlay the YAML file (skipped when path is empty)
//  3. Apply SENSORNET_* environment variable overrides
//  4. Validate the result
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If reading, parsing, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible default values.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "sensornet-001",
			Name: "Sensor Net Proxy",
		},
		Gateway: GatewayConfig{
			Interface:        "lo",
			Port:             5003,
			DynamicDiscovery: true,
			ReadBufferSize:   1 << 16,
			WriteTimeout:     1000,
			HandlerTimeout:   5000,
			HealthInterval:   30,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/sensornet.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sensor-net-proxy",
			},
			QoS:         1,
			TopicPrefix: "sensornet",
			RetainState: true,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "sensornet",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies SENSORNET_* environment variables.
// Secrets should be supplied this way rather than in the YAML file.
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("SENSORNET_INTERFACE"); v != "" {
		cfg.Gateway.Interface = v
	}
	if v := os.Getenv("SENSORNET_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("SENSORNET_DYNAMIC_DISCOVERY"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Gateway.DynamicDiscovery = enabled
		}
	}

	// Database
	if v := os.Getenv("SENSORNET_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SENSORNET_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SENSORNET_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SENSORNET_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SENSORNET_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("SENSORNET_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SENSORNET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Gateway validation
	if c.Gateway.Interface == "" {
		errs = append(errs, "gateway.interface is required")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 1 and 65535")
	}
	if c.Gateway.ReadBufferSize < 1 || c.Gateway.ReadBufferSize > 1<<16 {
		errs = append(errs, "gateway.read_buffer_size must be between 1 and 65536")
	}
	if c.Gateway.WriteTimeout < 0 || c.Gateway.HandlerTimeout < 0 {
		errs = append(errs, "gateway timeouts must not be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if strings.ContainsAny(c.MQTT.TopicPrefix, "#+") {
		errs = append(errs, "mqtt.topic_prefix must not contain wildcards")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetGatewayWriteTimeout returns the per-send deadline for gateway sockets.
func (c *Config) GetGatewayWriteTimeout() time.Duration {
	return time.Duration(c.Gateway.WriteTimeout) * time.Millisecond
}

// GetHandlerTimeout returns the per-message publish deadline.
func (c *Config) GetHandlerTimeout() time.Duration {
	return time.Duration(c.Gateway.HandlerTimeout) * time.Millisecond
}

// GetHealthInterval returns the health reporting interval.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Gateway.HealthInterval) * time.Second
}
