package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// pointWriter is the part of api.WriteAPI the client writes through.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Client stores sensor readings in an InfluxDB v2 bucket. Writes go through
// the library's non-blocking batching API, so failures surface later on the
// SetOnError callback rather than from the Write methods.
type Client struct {
	influx influxdb2.Client
	writer pointWriter
	open   atomic.Bool

	errMu   sync.Mutex
	onError func(error)
}

// Connect pings the server at cfg.URL and returns a client writing to
// cfg.Org/cfg.Bucket. It returns ErrDisabled when the section is switched off.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, influx); err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	writeAPI := influx.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{influx: influx, writer: writeAPI}
	c.open.Store(true)
	go c.handleWriteErrors(writeAPI.Errors())
	return c, nil
}

// clientOptions applies the batch settings, substituting defaults for
// unset or negative values.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
}

func ping(ctx context.Context, influx influxdb2.Client) error {
	ok, err := influx.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("ping: server reports unhealthy")
	}
	return nil
}

// handleWriteErrors forwards asynchronous batch failures to the callback
// until the write API closes ch.
func (c *Client) handleWriteErrors(ch <-chan error) {
	for err := range ch {
		c.errMu.Lock()
		fn := c.onError
		c.errMu.Unlock()
		if fn != nil {
			fn(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// Close flushes buffered points and releases the client. Later writes are
// dropped.
func (c *Client) Close() error {
	if c.influx == nil || !c.open.Swap(false) {
		return nil
	}
	c.writer.Flush()
	c.influx.Close()
	return nil
}

// HealthCheck pings the server, bounded by pingTimeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() || c.influx == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.influx); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether Connect succeeded and Close has not run.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// SetOnError sets the callback for asynchronous write failures. Errors
// passed to it wrap ErrWriteFailed.
func (c *Client) SetOnError(fn func(error)) {
	c.errMu.Lock()
	c.onError = fn
	c.errMu.Unlock()
}

// Flush blocks until buffered points are sent. It is a no-op once closed.
func (c *Client) Flush() {
	if c.writer == nil || !c.IsConnected() {
		return
	}
	c.writer.Flush()
}
