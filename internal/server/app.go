package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/auth"
	"github.com/desertthunder/spotremote/internal/repositories"
	"github.com/desertthunder/spotremote/internal/services"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/desertthunder/spotremote/internal/web"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 5 * time.Second
	janitorInterval = 10 * time.Minute
)

// Options are the collaborators of a [Server].
type Options struct {
	Config   *shared.Config
	Store    repositories.SessionStore
	Endpoint auth.TokenEndpoint
	Player   services.Player
	Logger   *log.Logger
	// Now replaces time.Now for token expiry and session timestamps.
	Now func() time.Time
}

// Server is the web application: routes, session handling and the authorization flow.
type Server struct {
	addr       string
	trustProxy bool
	flow       *auth.Flow
	refresher  *auth.Refresher
	sessions   *SessionManager
	player     services.Player
	router     *BasicRouter
	logger     *log.Logger
}

// New wires a [Server]. The session secret must be set (see [shared.Config.EnsureSessionSecret]).
func New(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Store == nil || opts.Endpoint == nil || opts.Player == nil {
		return nil, fmt.Errorf("%w: config, store, endpoint and player are required", shared.ErrMissingArgument)
	}
	if opts.Config.Session.Secret == "" {
		return nil, fmt.Errorf("%w: session secret is empty", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cfg := opts.Config
	s := &Server{
		addr:       cfg.Server.Addr(),
		trustProxy: cfg.Server.TrustProxy,
		flow:       auth.NewFlow(opts.Endpoint, opts.Logger, auth.WithFlowClock(opts.Now)),
		refresher:  auth.NewRefresher(opts.Endpoint, opts.Logger, opts.Now),
		sessions:   NewSessionManager(opts.Store, cfg.Session, opts.Logger, opts.Now),
		player:     opts.Player,
		router:     NewBasicRouter(),
		logger:     shared.WithLogger(opts.Logger, "component", "server"),
	}
	s.routes(opts.Logger)

	return s, nil
}

func (s *Server) routes(logger *log.Logger) {
	r := s.router
	r.Use(Recovery(s.logger), Logging(shared.Slog(logger)), RequestID)

	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(handleHealth))
	r.Handler(web.NewAssets())

	r.Use(s.sessions.Load)

	r.Handle(http.MethodGet, "/{$}", web.Index())
	r.Handle(http.MethodGet, "/login", http.HandlerFunc(s.handleLogin))
	r.Handle(http.MethodGet, "/callback", http.HandlerFunc(s.handleCallback))
	r.Handle(http.MethodGet, "/dashboard", web.Dashboard(), requirePage)
	r.Handle(http.MethodPost, "/logout", http.HandlerFunc(s.handleLogout))
	r.Handle(http.MethodGet, "/get_access_token", http.HandlerFunc(s.handleAccessToken))

	r.Handle(http.MethodGet, "/api/devices", s.proxy(s.player.Devices), RequireToken)
	r.Handle(http.MethodPut, "/api/play", http.HandlerFunc(s.handlePlay), RequireToken)
	r.Handle(http.MethodPut, "/api/pause", s.proxy(s.player.Pause), RequireToken)
	r.Handle(http.MethodPost, "/api/next", s.proxy(s.player.Next), RequireToken)
	r.Handle(http.MethodPost, "/api/previous", s.proxy(s.player.Previous), RequireToken)
	r.Handle(http.MethodGet, "/api/search", http.HandlerFunc(s.handleSearch), RequireToken)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully.
//
// Expired sessions are purged in the background while serving.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := s.sessions.PurgeExpired()
				if err != nil {
					s.logger.Error("failed to purge sessions", "error", err)
					continue
				}
				if n > 0 {
					s.logger.Debug("purged expired sessions", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
