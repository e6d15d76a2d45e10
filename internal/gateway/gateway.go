// ABOUTME: Gateway orchestrator that exposes the mailbox device over HTTP
// ABOUTME: Manages TCP, unix socket and tailnet listeners plus graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/coven-mailbox/internal/auth"
	"github.com/2389/coven-mailbox/internal/config"
	"github.com/2389/coven-mailbox/internal/device"
	"github.com/2389/coven-mailbox/internal/identity"
	"github.com/2389/coven-mailbox/internal/mailbox"
	"github.com/2389/coven-mailbox/internal/metrics"
	"github.com/2389/coven-mailbox/internal/store"
)

// shutdownTimeout bounds graceful shutdown after the run context is canceled.
const shutdownTimeout = 5 * time.Second

// Gateway serves one mailbox device to local and remote callers.
type Gateway struct {
	config      *config.Config
	mailbox     *mailbox.Store
	device      *device.Device
	metrics     *metrics.Metrics
	users       store.UserStore
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
	startTime   time.Time
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	mb, err := mailbox.New(mailbox.Config{
		Capacity:   cfg.Mailbox.Capacity,
		Visibility: cfg.VisibilityPolicy(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating mailbox: %w", err)
	}

	resolver, users, err := buildResolver(cfg)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(mb, startTime)
	}

	dev, err := device.New(mb, resolver, device.Options{
		RejectUnknownRecipients: cfg.Mailbox.RejectUnknownRecipients,
		Logger:                  logger,
		Metrics:                 m,
	})
	if err != nil {
		closeUsers(users)
		return nil, fmt.Errorf("creating device: %w", err)
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			closeUsers(users)
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
	}

	gw := &Gateway{
		config:    cfg,
		mailbox:   mb,
		device:    dev,
		metrics:   m,
		users:     users,
		logger:    logger.With("component", "gateway"),
		startTime: startTime,
	}

	mux := http.NewServeMux()

	// Health endpoint - no auth required
	mux.HandleFunc("GET /health", gw.handleHealth)

	callers := auth.CallerMiddleware(verifier)
	mux.Handle("GET /device", callers(http.HandlerFunc(gw.handleRead)))
	mux.Handle("POST /device", callers(http.HandlerFunc(gw.handleWrite)))
	mux.Handle("GET /api/stats", callers(http.HandlerFunc(gw.handleStats)))

	if m != nil {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	gw.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ConnContext: auth.PeerCredentials(func(err error) {
			gw.logger.Warn("reading peer credentials", "error", err)
		}),
	}

	return gw, nil
}

// buildResolver creates the uid→name resolver selected by identity.source.
// Names listed in identity.users take precedence over the selected source.
func buildResolver(cfg *config.Config) (identity.Resolver, store.UserStore, error) {
	var static *identity.StaticDirectory
	if len(cfg.Identity.Users) > 0 {
		table := make(map[identity.UID]string, len(cfg.Identity.Users))
		for _, u := range cfg.Identity.Users {
			table[identity.UID(u.UID)] = u.Name
		}
		var err error
		static, err = identity.NewStaticDirectory(table)
		if err != nil {
			return nil, nil, fmt.Errorf("identity.users: %w", err)
		}
	}

	var primary identity.Resolver
	var users store.UserStore
	switch cfg.Identity.Source {
	case config.IdentityStatic:
		if static == nil {
			return nil, nil, errors.New("identity.users is required for the static source")
		}
		primary = static
		static = nil
	case config.IdentitySQLite:
		s, err := openUserStore(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		users = s
		primary = store.Directory{Users: s}
	default:
		primary = identity.NewSystemDirectory()
	}

	resolver := primary
	if static != nil {
		resolver = identity.Chain{static, primary}
	}

	if cfg.Identity.CacheTTL > 0 && cfg.Identity.CacheSize > 0 {
		resolver = identity.NewCachingResolver(resolver, cfg.Identity.CacheTTL, cfg.Identity.CacheSize)
	}

	return resolver, users, nil
}

// openUserStore opens the SQLite user table.
func openUserStore(path string) (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening user store: %w", err)
	}
	return s, nil
}

func closeUsers(users store.UserStore) {
	if users != nil {
		_ = users.Close()
	}
}

// Handler returns the HTTP handler serving the device.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Device returns the device served by this gateway.
func (g *Gateway) Device() *device.Device {
	return g.device
}

// setupListeners creates every configured listener.
func (g *Gateway) setupListeners(ctx context.Context) ([]net.Listener, error) {
	var listeners []net.Listener
	fail := func(err error) ([]net.Listener, error) {
		for _, ln := range listeners {
			_ = ln.Close()
		}
		return nil, err
	}

	if addr := g.config.Server.HTTPAddr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fail(fmt.Errorf("listening on HTTP address: %w", err))
		}
		listeners = append(listeners, ln)
	}

	if path := g.config.Server.SocketPath; path != "" {
		ln, err := listenUnix(path)
		if err != nil {
			return fail(err)
		}
		listeners = append(listeners, ln)
	}

	if g.config.Tailscale.Enabled {
		ln, err := g.setupTailscaleListener(ctx)
		if err != nil {
			return fail(err)
		}
		listeners = append(listeners, ln)
	}

	return listeners, nil
}

// listenUnix binds a world-connectable unix socket, replacing a stale one.
// Access control comes from the peer credentials of each connection.
func listenUnix(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on unix socket: %w", err)
	}
	if err := os.Chmod(path, 0666); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return ln, nil
}

// startServers serves HTTP on every listener, returning the error channel.
func (g *Gateway) startServers(listeners []net.Listener) chan error {
	errCh := make(chan error, len(listeners))

	for _, ln := range listeners {
		go func(ln net.Listener) {
			g.logger.Info("HTTP server listening", "network", ln.Addr().Network(), "addr", ln.Addr().String())
			if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("HTTP server on %s: %w", ln.Addr(), err)
			}
		}(ln)
	}

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	for {
		select {
		case additionalErr := <-errCh:
			g.logger.Error("additional server error", "error", additionalErr)
		default:
			return
		}
	}
}

// Run starts the servers and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	listeners, err := g.setupListeners(ctx)
	if err != nil {
		_ = g.closeResources()
		return err
	}

	errCh := g.startServers(listeners)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "coven-mailbox", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :80.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		g.tsnetServer = nil
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	g.logTailscaleStatus(tsCfg.Hostname, status)

	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = g.tsnetServer.Close()
		g.tsnetServer = nil
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeResources tears down the mailbox and the user store.
func (g *Gateway) closeResources() error {
	var errs []error
	errs = appendCloseError(errs, "mailbox close", g.mailbox.Close())
	if g.users != nil {
		errs = appendCloseError(errs, "user store close", g.users.Close())
	}
	return errors.Join(errs...)
}

// Shutdown gracefully stops the servers and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	if path := g.config.Server.SocketPath; path != "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("socket cleanup: %w", err))
		}
	}
	errs = appendCloseError(errs, "resources", g.closeResources())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
