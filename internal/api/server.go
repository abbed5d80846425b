package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/am43-core/internal/audit"
	"github.com/nerrad567/am43-core/internal/device"
	"github.com/nerrad567/am43-core/internal/discovery"
	"github.com/nerrad567/am43-core/internal/dispatch"
	"github.com/nerrad567/am43-core/internal/infrastructure/config"
	"github.com/nerrad567/am43-core/internal/infrastructure/logging"
	"github.com/nerrad567/am43-core/internal/link"
	"github.com/nerrad567/am43-core/internal/schedule"
	"github.com/nerrad567/am43-core/internal/statepub"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Dispatcher runs blind actions.
// *dispatch.Dispatcher satisfies this interface.
type Dispatcher interface {
	Execute(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
	Stats() dispatch.Stats
}

// Registry lists the configured drives.
// *device.Registry satisfies this interface.
type Registry interface {
	Len() int
	Groups() []device.Group
	Addresses() []link.Address
	Lookup(addr link.Address) (device.Device, bool)
}

// Prober scans for configured drives.
// *discovery.Probe satisfies this interface.
type Prober interface {
	Run(ctx context.Context, expected []link.Address) discovery.Report
	Last() discovery.Report
}

// StateSource returns the last known state of a drive.
// *statepub.Publisher satisfies this interface.
type StateSource interface {
	State(address string) (statepub.DriveState, bool)
}

// ScheduleLister lists scheduled jobs.
// *schedule.Scheduler satisfies this interface.
type ScheduleLister interface {
	Entries() []schedule.Entry
}

// LinkStats reports link-layer counters.
// *link.Dialer satisfies this interface.
type LinkStats interface {
	Stats() link.Stats
}

// GatewayStats reports BLE gateway counters.
// *link.MQTTTransport satisfies this interface.
type GatewayStats interface {
	Stats() link.GatewayStats
}

// HealthChecker reports the health of an infrastructure component.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

var (
	_ Dispatcher     = (*dispatch.Dispatcher)(nil)
	_ Registry       = (*device.Registry)(nil)
	_ Prober         = (*discovery.Probe)(nil)
	_ StateSource    = (*statepub.Publisher)(nil)
	_ ScheduleLister = (*schedule.Scheduler)(nil)
	_ LinkStats      = (*link.Dialer)(nil)
	_ GatewayStats   = (*link.MQTTTransport)(nil)
)

// Deps holds the dependencies required by the API server.
// Optional dependencies may be left nil; their endpoints then answer 503.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Dispatcher Dispatcher
	Registry   Registry

	Link      LinkStats        // optional
	Gateway   GatewayStats     // optional, gateway transport only
	Prober    Prober           // optional
	Audit     audit.Repository // optional
	States    StateSource      // optional
	Schedules ScheduleLister   // optional
	MQTT      HealthChecker    // optional
	Database  HealthChecker    // optional

	// Transport names the drive transport for the health endpoint.
	Transport string
	Version   string
}

// Server is the HTTP API server of the AM43 drive service.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	dispatcher Dispatcher
	registry   Registry
	link       LinkStats
	gateway    GatewayStats
	prober     Prober
	auditRepo  audit.Repository
	states     StateSource
	schedules  ScheduleLister
	mqtt       HealthChecker
	db         HealthChecker
	transport  string
	version    string
	startTime  time.Time
	limiter    *rateLimiter

	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, dispatcher, registry)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	s := &Server{
		cfg:        deps.Config,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		dispatcher: deps.Dispatcher,
		registry:   deps.Registry,
		link:       deps.Link,
		gateway:    deps.Gateway,
		prober:     deps.Prober,
		auditRepo:  deps.Audit,
		states:     deps.States,
		schedules:  deps.Schedules,
		mqtt:       deps.MQTT,
		db:         deps.Database,
		transport:  deps.Transport,
		version:    deps.Version,
		startTime:  time.Now(),
	}
	if rl := deps.Security.RateLimit; rl.Enabled && rl.RequestsPerMinute > 0 {
		s.limiter = newRateLimiter(rl.RequestsPerMinute)
	}
	return s, nil
}

// Start begins listening for HTTP connections.
//
// The listener is opened before Start returns, so a port already in use is
// reported here. Requests are served from a background goroutine until
// Close is called.
//
// Parameters:
//   - ctx: Context for the listen call
//
// Returns:
//   - error: If the listener cannot be opened
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
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
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
