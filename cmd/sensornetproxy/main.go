// Sensor Net Proxy - MySensors UDP gateway proxy
//
// This is the main entry point for the proxy. It binds the UDP sockets of one
// network interface, answers controller-discovery broadcasts from MySensors
// Ethernet gateways, and relays every decoded message to the MQTT bus, the
// node inventory, InfluxDB and WebSocket clients. Commands from the bus and
// the HTTP API are forwarded to every discovered gateway.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	_ "github.com/nerrad567/sensor-net-proxy/migrations"

	"github.com/nerrad567/sensor-net-proxy/internal/api"
	"github.com/nerrad567/sensor-net-proxy/internal/bridges/mysensors"
	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/config"
	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/database"
	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/influxdb"
	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/logging"
	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/mqtt"
	"github.com/nerrad567/sensor-net-proxy/internal/inventory"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// configEnvVar names the config file when -c is not given.
const configEnvVar = "SENSORNET_CONFIG"

// cliOptions holds the command-line flags. They override the config file.
type cliOptions struct {
	configPath  string
	verbose     bool
	iface       string
	port        int
	noDiscovery bool
}

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the sensornetproxy command.
func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:           "sensornetproxy",
		Short:         "Proxy between MySensors Ethernet gateways and an MQTT bus",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	bindFlags(cmd.Flags(), opts)
	return cmd
}

func bindFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (default $"+configEnvVar+")")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	fs.StringVarP(&opts.iface, "interface", "i", "lo", "network interface to listen on")
	fs.IntVarP(&opts.port, "port", "p", 5003, "UDP port shared with the gateways")
	fs.BoolVar(&opts.noDiscovery, "no-dynamic-discovery", false, "do not answer controller discovery broadcasts")
}

// loadConfig loads the config file and applies the flags that were set on
// the command line. An unset flag never overrides the file.
func loadConfig(fs *pflag.FlagSet, opts *cliOptions) (*config.Config, error) {
	path := opts.configPath
	if !fs.Changed("config") {
		path = os.Getenv(configEnvVar)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if fs.Changed("interface") {
		cfg.Gateway.Interface = opts.iface
	}
	if fs.Changed("port") {
		cfg.Gateway.Port = opts.port
	}
	if opts.noDiscovery {
		cfg.Gateway.DynamicDiscovery = false
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating flags: %w", err)
	}
	return cfg, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cfg: Validated configuration
//
// Returns:
//   - error: nil on interrupt, or the startup or event loop failure
func run(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Logging, version)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	defer log.Close() //nolint:errcheck // Nothing useful to do on a close failure at exit

	log.Info("starting sensor network proxy",
		"version", version,
		"commit", commit,
		"build_date", date,
		"interface", cfg.Gateway.Interface,
		"port", cfg.Gateway.Port,
		"dynamic_discovery", cfg.Gateway.DynamicDiscovery,
	)

	bound, err := mysensors.NewBinder(log).Bind(ctx, cfg.Gateway.Interface, cfg.Gateway.Port, cfg.Gateway.DynamicDiscovery)
	if err != nil {
		return fmt.Errorf("binding gateway sockets: %w", err)
	}
	// The loop closes the sockets when it exits; this covers startup failures.
	defer bound.Close() //nolint:errcheck // Sockets are closed at most once

	registry := mysensors.NewRegistry(bound, mysensors.RegistryOptions{
		Dedupe:       cfg.Gateway.DedupeGateways,
		WriteTimeout: cfg.GetGatewayWriteTimeout(),
		Logger:       log,
	})

	// Sinks are appended as their backends come up and must be complete
	// before the loop starts.
	var sinks mysensors.MultiSink
	checks := make(map[string]api.HealthChecker)

	loop, err := mysensors.NewLoop(mysensors.LoopOptions{
		Bound:          bound,
		Registry:       registry,
		Discovery:      mysensors.NewDiscoveryResponder(registry, cfg.GetGatewayWriteTimeout(), log),
		Inbound:        mysensors.NewInboundDispatcher(&sinks, cfg.GetHandlerTimeout(), log),
		ReadBufferSize: cfg.Gateway.ReadBufferSize,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating event loop: %w", err)
	}

	// Node inventory (optional)
	var nodes api.NodeStore
	var dbStats func() sql.DBStats
	if cfg.Database.Enabled {
		db, inv, invErr := openInventory(ctx, cfg, log)
		if invErr != nil {
			return invErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		sinks = append(sinks, inv)
		nodes = inv
		dbStats = db.Stats
		checks["sqlite"] = db
	} else {
		log.Info("node inventory disabled")
	}

	// MQTT bus (optional)
	if cfg.MQTT.Enabled {
		mqttClient, bridge, mqttErr := startBridge(ctx, cfg, loop, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
		}()
		sinks = append(sinks, bridge)
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT bus disabled")
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		sinks = append(sinks, mysensors.NewReadingSink(influxClient))
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API and WebSocket stream (optional)
	if cfg.API.Enabled {
		hub := api.NewHub(cfg.WebSocket, log)
		srv, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			Loop:     loop,
			Gateways: registry,
			Nodes:    nodes,
			Checks:   checks,
			DBStats:  dbStats,
			Hub:      hub,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		sinks = append(sinks, hub)
	} else {
		log.Info("HTTP API disabled")
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete", "sinks", len(sinks))

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("event loop: %w", err)
	}

	log.Info("interrupted, shutting down")
	return nil
}

// openInventory opens the SQLite database, applies migrations and loads the
// node registry.
func openInventory(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, *inventory.Registry, error) {
	db, err := database.Open(database.ConfigFrom(cfg.Database))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	inv := inventory.NewRegistry(inventory.NewSQLiteRepository(db.DB))
	inv.SetLogger(log)
	if err := inv.RefreshCache(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, nil, fmt.Errorf("loading node inventory: %w", err)
	}
	log.Info("node inventory initialised", "nodes", inv.Count())

	return db, inv, nil
}

// startBridge connects to the broker and starts the MySensors bridge.
func startBridge(ctx context.Context, cfg *config.Config, loop *mysensors.Loop, log *logging.Logger) (*mqtt.Client, *mysensors.Bridge, error) {
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bridge, err := mysensors.NewBridge(mysensors.BridgeOptions{
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Forwarder:      loop,
		Stats:          loop,
		TopicPrefix:    cfg.MQTT.TopicPrefix,
		QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		RetainState:    cfg.MQTT.RetainState,
		Version:        version,
		HealthInterval: cfg.GetHealthInterval(),
		Interface:      cfg.Gateway.Interface,
		Port:           cfg.Gateway.Port,
		Logger:         log,
	})
	if err != nil {
		mqttClient.Close() //nolint:errcheck // Already failing
		return nil, nil, fmt.Errorf("creating MQTT bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		mqttClient.Close() //nolint:errcheck // Already failing
		return nil, nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	log.Info("MQTT bridge started", "prefix", cfg.MQTT.TopicPrefix)

	return mqttClient, bridge, nil
}

// healthCheck verifies every enabled backend is reachable before the loop
// starts.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - MySensors bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements mysensors.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements mysensors.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements mysensors.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
