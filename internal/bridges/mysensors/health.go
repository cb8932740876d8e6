package mysensors

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// defaultHealthInterval is used when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// HealthReporter publishes the proxy status to MQTT at regular intervals.
type HealthReporter struct {
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	stats     StatsSource
	topics    Topics
	iface     string
	port      int
	logger    Logger

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// HealthPublisher is the interface for publishing health messages.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	Version   string
	Interval  time.Duration
	Publisher HealthPublisher
	Stats     StatsSource
	Topics    Topics
	Interface string
	Port      int
	Logger    Logger
}

// NewHealthReporter creates a new health reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthReporter{
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		stats:     cfg.Stats,
		topics:    cfg.Topics,
		iface:     cfg.Interface,
		port:      cfg.Port,
		logger:    loggerOrNoop(cfg.Logger),
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "proxy starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Error("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.stats != nil && !h.stats.Stats().Running {
		return HealthDegraded, "event loop not running"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	msg := HealthMessage{
		Bridge:        Protocol,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Interface:     h.iface,
		Port:          h.port,
		Reason:        reason,
	}
	if h.stats != nil {
		st := h.stats.Stats()
		msg.Statistics = &st
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(h.topics.Health(), payload, 1, true)
}
