package poll

import (
	"context"
	"sync"
	"time"

	"github.com/arvenwood/heatlink/internal/infrastructure/config"
	"github.com/arvenwood/heatlink/internal/pump"
)

// Outcome classifies a completed poll cycle.
type Outcome string

const (
	// OutcomeSuccess means every fetch in the cycle succeeded.
	OutcomeSuccess Outcome = "success"

	// OutcomePartial means some keys failed but the cycle completed.
	// For batched coordinators this is the normal case, not exceptional.
	OutcomePartial Outcome = "partial_failure"

	// OutcomeFailure means nothing usable was fetched. Stale data from
	// earlier cycles stays readable but is flagged unavailable.
	OutcomeFailure Outcome = "total_failure"
)

// Status describes a coordinator's last completed cycle.
type Status struct {
	Outcome   Outcome
	LastCycle time.Time
	Available bool
}

// Logger defines the logging interface for the coordinators.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// cycleState tracks availability across cycles. Embedded by each coordinator.
//
// cycleMu serialises whole cycles: Refresh is called both by the ticker loop
// and on demand after writes, and a slow earlier cycle must never land its
// snapshot after a later one.
type cycleState struct {
	cycleMu sync.Mutex

	mu        sync.RWMutex
	outcome   Outcome
	lastCycle time.Time
	available bool
}

// record stores the outcome of a completed cycle. A total failure keeps the
// previous data readable but marks the coordinator unavailable.
func (s *cycleState) record(outcome Outcome) {
	s.mu.Lock()
	s.outcome = outcome
	s.lastCycle = time.Now().UTC()
	s.available = outcome != OutcomeFailure
	s.mu.Unlock()
}

// Status returns the state of the last completed cycle.
func (s *cycleState) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Outcome:   s.outcome,
		LastCycle: s.lastCycle,
		Available: s.available,
	}
}

// Coordinators owns the six periodic pollers and their shared lifecycle.
//
// Each enabled coordinator runs on its own goroutine with its own interval;
// a cycle that is still running when the next tick arrives absorbs the tick,
// so no two cycles of the same coordinator overlap.
type Coordinators struct {
	client *pump.Client
	cfg    config.PollingConfig
	logger Logger

	Dashboard      *DashboardCoordinator
	ThermalProfile *ThermalProfileCoordinator
	Monitoring     *MonitoringCoordinator
	Definitions    *DefinitionsCoordinator
	Telemetry      *TelemetryCoordinator
	Property       *PropertyCoordinator

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates the coordinator set for one gateway client.
// Intervals come from cfg; an interval of 0 disables that coordinator.
func New(client *pump.Client, cfg config.PollingConfig) *Coordinators {
	c := &Coordinators{
		client: client,
		cfg:    cfg,
		logger: noopLogger{},
	}
	c.Dashboard = &DashboardCoordinator{parent: c}
	c.ThermalProfile = &ThermalProfileCoordinator{parent: c}
	c.Monitoring = &MonitoringCoordinator{parent: c}
	c.Definitions = &DefinitionsCoordinator{
		parent:      c,
		modelID:     cfg.DefinitionModelID,
		definitions: make(map[string]*pump.DeviceDefinition),
	}
	c.Telemetry = &TelemetryCoordinator{
		parent:  c,
		keys:    make(map[string]TelemetryKey),
		results: make(map[string]*pump.ScaledReading),
	}
	c.Property = &PropertyCoordinator{
		parent:  c,
		keys:    make(map[string]PropertyKey),
		results: make(map[string]*pump.ScaledReading),
	}
	return c
}

// SetLogger sets the logger used by all coordinators.
func (c *Coordinators) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Start launches the enabled coordinators. Each runs a first refresh
// immediately so consumers have data before the first interval elapses.
func (c *Coordinators) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.launch(runCtx, "dashboard", c.cfg.DashboardInterval, c.Dashboard.Refresh)
	c.launch(runCtx, "thermal_profile", c.cfg.ThermalInterval, c.ThermalProfile.Refresh)
	c.launch(runCtx, "monitoring", c.cfg.MonitoringInterval, c.Monitoring.Refresh)
	c.launch(runCtx, "definitions", c.cfg.DefinitionsInterval, c.Definitions.Refresh)
	c.launch(runCtx, "telemetry", c.cfg.TelemetryInterval, c.Telemetry.Refresh)
	c.launch(runCtx, "property", c.cfg.PropertyInterval, c.Property.Refresh)

	return nil
}

// Stop cancels all poll loops and waits for in-flight cycles to finish.
// Safe to call multiple times.
func (c *Coordinators) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

// launch starts one poll loop. Disabled coordinators (interval <= 0) are
// skipped entirely.
func (c *Coordinators) launch(ctx context.Context, name string, intervalSeconds int, cycle func(context.Context) Outcome) {
	if intervalSeconds <= 0 {
		c.logger.Info("poll coordinator disabled", "coordinator", name)
		return
	}

	interval := time.Duration(intervalSeconds) * time.Second

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.runCycle(ctx, name, cycle)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.runCycle(ctx, name, cycle)
			}
		}
	}()
}

// runCycle executes one cycle and logs its outcome.
func (c *Coordinators) runCycle(ctx context.Context, name string, cycle func(context.Context) Outcome) {
	start := time.Now()
	outcome := cycle(ctx)
	elapsed := time.Since(start)

	switch outcome {
	case OutcomeFailure:
		c.logger.Warn("poll cycle failed",
			"coordinator", name,
			"duration_ms", elapsed.Milliseconds(),
		)
	case OutcomePartial:
		c.logger.Debug("poll cycle partially failed",
			"coordinator", name,
			"duration_ms", elapsed.Milliseconds(),
		)
	default:
		c.logger.Debug("poll cycle completed",
			"coordinator", name,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}
