package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/desertthunder/spotremote/internal/repositories"
	"github.com/desertthunder/spotremote/internal/server"
	"github.com/desertthunder/spotremote/internal/services"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the web server until the context is canceled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("host") {
		config.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		config.Server.Port = int(cmd.Int("port"))
	}

	srv, closeStore, err := r.buildServer(config)
	if err != nil {
		return err
	}
	defer closeStore()

	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr(), err)
	}

	url := fmt.Sprintf("http://%s/", displayAddr(ln.Addr()))
	r.writePlain("%s", banner(url, config))

	if cmd.Bool("open") {
		if err := r.openBrowser(url); err != nil {
			r.logger.Warn("could not open browser", "error", err)
		}
	}

	return srv.Serve(ctx, ln)
}

// buildServer validates config and wires the session store, OAuth client and player into a server.
//
// The returned func releases the session store.
func (r *Runner) buildServer(config *shared.Config) (*server.Server, func() error, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	if config.EnsureSessionSecret() {
		r.logger.Warn("session.secret is empty, using a random secret; sessions end on restart")
	}

	store, closeStore, err := openStore(config.Database)
	if err != nil {
		return nil, nil, err
	}

	forwarder := services.NewForwarder(services.ForwarderOptions{
		BaseURL:   config.API.BaseURL,
		Client:    &http.Client{Timeout: config.API.Timeout},
		RateLimit: config.API.RateLimit,
		Logger:    r.logger,
	})

	srv, err := server.New(server.Options{
		Config:   config,
		Store:    store,
		Endpoint: services.NewOAuthConfig(config.Credentials.Spotify),
		Player:   services.NewSpotifyPlayer(forwarder),
		Logger:   r.logger,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	return srv, closeStore, nil
}

// openStore picks the session store: SQLite when a database path is configured, memory otherwise.
func openStore(cfg shared.DatabaseConfig) (repositories.SessionStore, func() error, error) {
	if cfg.Path == "" {
		return repositories.NewMemorySessionRepository(), func() error { return nil }, nil
	}

	db, err := shared.OpenSessionDatabase(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session database: %w", err)
	}
	return repositories.NewSessionRepository(db), db.Close, nil
}

func displayAddr(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || !tcp.IP.IsUnspecified() {
		return addr.String()
	}
	return fmt.Sprintf("localhost:%d", tcp.Port)
}
