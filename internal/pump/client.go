package pump

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// Client defaults. Each is independently tunable via Config.
const (
	// DefaultReadTimeout bounds a single read request.
	DefaultReadTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds a single write request. Writes get a longer
	// budget because the gateway applies them synchronously.
	DefaultWriteTimeout = 15 * time.Second

	// DefaultMaxRetries is the total attempt budget per operation,
	// identical for reads and writes.
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the first backoff delay; it doubles per
	// attempt.
	DefaultRetryBaseDelay = 200 * time.Millisecond

	// maxIdleConns keeps the connection to the single gateway reusable
	// without holding a pool sized for many hosts.
	maxIdleConns = 2
)

// Logger is the interface for optional structured logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds Device Client settings.
type Config struct {
	// Host is the gateway host (name or IP, optionally with port).
	Host string

	// ReadTimeout and WriteTimeout are per-operation, not global.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxRetries and RetryBaseDelay shape the exponential backoff applied
	// to transient failures.
	MaxRetries     int
	RetryBaseDelay time.Duration

	// Governor holds the scheduling and cache tunables.
	Governor GovernorConfig
}

// withDefaults fills zero fields with the package defaults.
func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return c
}

// operation describes one gateway access to the middleware chain.
type operation struct {
	// name identifies the operation in logs.
	name string

	// write selects the write scheduling path (priority, cooldown stamp,
	// cache invalidation).
	write bool

	// deviceID scopes cache invalidation after a successful write.
	deviceID string

	// cacheKey is the "deviceID:dataID" cache key. Empty disables caching
	// for the operation.
	cacheKey string

	// timeout bounds each individual HTTP attempt.
	timeout time.Duration
}

// handler executes one step of an operation.
type handler func(ctx context.Context) (any, error)

// middleware wraps the next step of an operation. The client applies a small
// ordered chain uniformly to every read and write instead of per-method
// scheduling, caching and retry logic.
type middleware func(op *operation, next handler) handler

// Client owns all typed network operations against the gateway. It is the
// only component that performs I/O.
//
// The underlying HTTP client is created lazily on first use and reuses its
// connection across operations. Close releases it and is safe to call more
// than once.
type Client struct {
	cfg     Config
	baseURL string
	gov     *Governor
	chain   []middleware
	logger  Logger

	mu     sync.Mutex
	http   *http.Client
	uuid   string
	closed bool
}

// NewClient creates a Device Client for the configured gateway host.
func NewClient(cfg Config, logger Logger) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:     cfg,
		baseURL: "http://" + cfg.Host,
		gov:     NewGovernor(cfg.Governor),
		logger:  logger,
	}
	c.chain = []middleware{
		c.scheduleMiddleware,
		c.cacheMiddleware,
		c.retryMiddleware,
	}
	return c
}

// Governor exposes the client's governor for consumers that need debounce or
// cache control (e.g. tests and the diagnostics API).
func (c *Client) Governor() *Governor {
	return c.gov
}

// Close releases the HTTP transport. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.http != nil {
		c.http.CloseIdleConnections()
	}
}

// httpClient returns the shared HTTP client, creating it on first use.
func (c *Client) httpClient() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.http == nil {
		c.http = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConns,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return c.http, nil
}

// SystemUUID returns the gateway system UUID, discovering it lazily via the
// monitoring endpoint. A non-empty result is cached for the process lifetime.
// Discovery runs through the scheduled read path, so cold-start callers share
// the governor's pacing and the retry budget with every other read. Callers
// invoke it before entering their own operation, never from inside one.
func (c *Client) SystemUUID(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.uuid
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	op := &operation{
		name:    "system_uuid",
		timeout: c.cfg.ReadTimeout,
	}
	v, err := c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		var info MonitoringInfo
		if err := c.doJSON(ctx, http.MethodGet, "/monitoring/ping", nil, op.timeout, &info); err != nil {
			return nil, err
		}
		return &info, nil
	})
	if err != nil {
		return "", err
	}
	info := v.(*MonitoringInfo)
	if info.UUID == "" {
		return "", ErrNoUUID
	}

	c.mu.Lock()
	if c.uuid == "" {
		c.uuid = info.UUID
	}
	cached = c.uuid
	c.mu.Unlock()
	return cached, nil
}

// invoke runs op's handler through the middleware chain.
func (c *Client) invoke(ctx context.Context, op *operation, h handler) (any, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	for i := len(c.chain) - 1; i >= 0; i-- {
		h = c.chain[i](op, h)
	}
	return h(ctx)
}

// scheduleMiddleware passes every operation through the governor. Reads
// yield to queued writes, then wait for a read slot. Writes mark themselves
// pending before waiting so reads defer to them, and stamp the cooldown and
// invalidate the device's cached values on success.
func (c *Client) scheduleMiddleware(op *operation, next handler) handler {
	return func(ctx context.Context) (any, error) {
		if op.write {
			c.gov.BeginWrite()
			defer c.gov.FinishWrite()

			if err := c.gov.WaitForSlot(ctx, true); err != nil {
				return nil, err
			}
			v, err := next(ctx)
			if err != nil {
				return nil, err
			}
			c.gov.SignalWriteComplete()
			if op.deviceID != "" {
				c.gov.InvalidateDevice(op.deviceID)
			}
			return v, nil
		}

		if err := c.gov.YieldToWrites(ctx, 0); err != nil {
			return nil, err
		}
		if err := c.gov.WaitForSlot(ctx, false); err != nil {
			return nil, err
		}
		return next(ctx)
	}
}

// cacheMiddleware serves reads from the TTL cache and stores fresh results.
func (c *Client) cacheMiddleware(op *operation, next handler) handler {
	if op.write || op.cacheKey == "" {
		return next
	}
	return func(ctx context.Context) (any, error) {
		if v, ok := c.gov.CacheGet(op.cacheKey); ok {
			return v, nil
		}
		v, err := next(ctx)
		if err != nil {
			return nil, err
		}
		c.gov.CacheSet(op.cacheKey, v)
		return v, nil
	}
}

// retryMiddleware retries transient failures with exponential backoff.
// Validation errors are never retried; reads and writes get the identical
// attempt budget.
func (c *Client) retryMiddleware(op *operation, next handler) handler {
	return func(ctx context.Context) (any, error) {
		delay := c.cfg.RetryBaseDelay
		var lastErr error

		for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
			v, err := next(ctx)
			if err == nil {
				return v, nil
			}
			if errors.Is(err, ErrValidation) || ctx.Err() != nil {
				return nil, err
			}
			lastErr = err

			if attempt == c.cfg.MaxRetries {
				break
			}
			c.logDebug("retrying operation",
				"op", op.name,
				"attempt", attempt,
				"delay", delay,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		return nil, lastErr
	}
}

// doJSON performs a single HTTP attempt with its own timeout and decodes a
// JSON response into out (when out is non-nil). Failures are classified into
// the package error taxonomy.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, timeout time.Duration, out any) error {
	client, err := c.httpClient()
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encoding request body: %v", ErrValidation, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrValidation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close on read path

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s returned status %d", ErrDevice, method, path, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrDevice, path, err)
	}
	return nil
}

// classifyTransportError maps a transport failure into the error taxonomy.
// The caller's own cancellation passes through unchanged.
func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}

// degradeRead converts a failed read into "no data". One unreachable sensor
// must not break dashboard or telemetry batches, so reads log at warning
// level and report an empty result; only the caller's own cancellation and
// validation errors propagate.
func (c *Client) degradeRead(ctx context.Context, opName string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, ErrValidation) || errors.Is(err, ErrClosed) {
		return err
	}
	c.logWarn("read failed, reporting no data", "op", opName, "error", err)
	return nil
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
