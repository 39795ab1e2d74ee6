package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/arvenwood/heatlink/internal/history"
	"github.com/arvenwood/heatlink/internal/infrastructure/config"
	"github.com/arvenwood/heatlink/internal/infrastructure/database"
	"github.com/arvenwood/heatlink/internal/infrastructure/logging"
	"github.com/arvenwood/heatlink/internal/infrastructure/mqtt"
	"github.com/arvenwood/heatlink/internal/poll"
	"github.com/arvenwood/heatlink/internal/pump"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Pump    *pump.Client
	Coords  *poll.Coordinators
	History *history.Repository // optional; history endpoints return 503 when nil
	MQTT    *mqtt.Client        // optional; used for connection state in metrics
	DB      *database.DB        // optional; used for pool stats in metrics
	Version string
}

// Server is the HTTP API server for Heatlink.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	pump      *pump.Client
	coords    *poll.Coordinators
	history   *history.Repository
	mqtt      *mqtt.Client
	db        *database.DB
	version   string
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
	startTime time.Time
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Pump == nil {
		return nil, fmt.Errorf("pump client is required")
	}
	if deps.Coords == nil {
		return nil, fmt.Errorf("poll coordinators are required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		pump:      deps.Pump,
		coords:    deps.Coords,
		history:   deps.History,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It creates the WebSocket hub, attaches coordinator hooks so poll cycle
// results are broadcast to connected clients, and launches the HTTP listener
// in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop the hub independently of the
	// parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	s.attachBroadcasts()

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// attachBroadcasts wires each coordinator's hooks to WebSocket broadcast
// channels. Clients subscribe to channels by name (e.g. "dashboard").
func (s *Server) attachBroadcasts() {
	s.coords.Dashboard.OnUpdate(func(snap *pump.DashboardSnapshot) {
		s.hub.Broadcast("dashboard", dashboardResponse(snap, true))
	})
	s.coords.ThermalProfile.OnUpdate(func(snap *pump.ThermalProfileSnapshot) {
		s.hub.Broadcast("thermalprofile", thermalProfileResponse(snap, true))
	})
	s.coords.Monitoring.OnUpdate(func(info *pump.MonitoringInfo) {
		s.hub.Broadcast("monitoring", info)
	})
	s.coords.Definitions.OnUpdate(func(devices []pump.DeviceInfo) {
		s.hub.Broadcast("devices", map[string]any{"devices": devices})
	})
	s.coords.Telemetry.OnValue(func(key poll.TelemetryKey, reading *pump.ScaledReading) {
		s.hub.Broadcast("telemetry", readingResponse(key.DeviceID, string(key.Channel), reading))
	})
	s.coords.Property.OnValue(func(key poll.PropertyKey, reading *pump.ScaledReading) {
		s.hub.Broadcast("property", readingResponse(key.DeviceID, key.Address.Key(), reading))
	})
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
