package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/audit"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/cardstore"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/config"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/logging"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/rtc"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Engine is the controller surface the API reads from and applies config to.
type Engine interface {
	Layout() card.Layout
	Latest() *control.Snapshot
	ApplyConfig(ctx context.Context, cards []card.Card) error
}

// CommandSubmitter submits a command on behalf of a caller.
type CommandSubmitter interface {
	Submit(ctx context.Context, cmd control.Command, source, actor string) (string, error)
}

// Schedules holds the RTC channels in force.
type Schedules interface {
	Channels() []rtc.Channel
	SetChannels(chs []rtc.Channel)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Engine    Engine
	Commands  CommandSubmitter
	Configs   *cardstore.Registry
	Schedules Schedules
	Audit     audit.Repository // optional
	Clock     clockwork.Clock  // optional
	Version   string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	engine    Engine
	commands  CommandSubmitter
	configs   *cardstore.Registry
	schedules Schedules
	auditRepo audit.Repository
	version   string
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command submitter is required")
	}
	if deps.Configs == nil || deps.Schedules == nil {
		return nil, fmt.Errorf("config registry and schedules are required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		engine:    deps.Engine,
		commands:  deps.Commands,
		configs:   deps.Configs,
		schedules: deps.Schedules,
		auditRepo: deps.Audit,
		version:   deps.Version,
		hub:       NewHub(deps.WS, deps.Logger, deps.Engine, deps.Clock),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
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

// HealthCheck verifies the API server is running.
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
