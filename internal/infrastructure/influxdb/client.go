package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/cenkalti/backoff/v4"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize    = 100
	defaultFlushSeconds = 10

	// Telemetry is optional, so startup does not wait on it for long.
	connectRetries = 4
)

// Client batches controller telemetry into an InfluxDB v2 bucket. Writes
// never block the caller. Safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected atomic.Bool
	onError   atomic.Pointer[func(error)]
}

// Connect pings the server and sets up the batching write API.
// It returns ErrDisabled when telemetry is switched off.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize, flushMs := batchOptions(cfg)
	opts := influxdb2.DefaultOptions().SetBatchSize(batchSize).SetFlushInterval(flushMs)
	c := &Client{client: influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts), cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := c.ping(ctx); err != nil {
		c.client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.writeAPI = c.client.WriteAPI(cfg.Org, cfg.Bucket)
	c.connected.Store(true)
	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

// ConnectWithRetry calls Connect with exponential backoff, giving up after a
// few attempts or when ctx is cancelled. ErrDisabled is returned at once.
func ConnectWithRetry(ctx context.Context, cfg config.InfluxDBConfig, warn func(msg string, args ...any)) (*Client, error) {
	var client *Client
	attempt := 0
	op := func() error {
		attempt++
		c, err := Connect(cfg)
		switch {
		case errors.Is(err, ErrDisabled):
			return backoff.Permanent(err)
		case err != nil:
			if warn != nil {
				warn("influxdb connect failed", "attempt", attempt, "error", err)
			}
			return err
		}
		client = c
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectRetries)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return client, nil
}

// batchOptions maps the configured batch size and flush period (seconds)
// onto the client's unsigned options. Non-positive values take defaults.
func batchOptions(cfg config.InfluxDBConfig) (batchSize, flushMs uint) {
	batchSize, err := safecast.ToUint(cfg.BatchSize)
	if err != nil || batchSize == 0 {
		batchSize = defaultBatchSize
	}
	flush, err := safecast.ToUint(cfg.FlushInterval)
	if err != nil || flush == 0 {
		flush = defaultFlushSeconds
	}
	return batchSize, flush * uint(time.Second/time.Millisecond)
}

func (c *Client) ping(ctx context.Context) error {
	healthy, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return errors.New("server not healthy")
	}
	return nil
}

// forwardErrors drains the write API's error channel until the client closes.
func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		if fn := c.onError.Load(); fn != nil {
			(*fn)(err)
		}
	}
}

// Close flushes pending writes and closes the client.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.connected.Store(false)
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := c.ping(ctx); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// SetOnError sets a callback for asynchronous write errors. Nil clears it.
func (c *Client) SetOnError(fn func(err error)) {
	if fn == nil {
		c.onError.Store(nil)
		return
	}
	c.onError.Store(&fn)
}

// Flush blocks until buffered points are written. It is a no-op after Close.
func (c *Client) Flush() {
	if c.writeAPI != nil && c.IsConnected() {
		c.writeAPI.Flush()
	}
}
