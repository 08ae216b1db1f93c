// ABOUTME: Server orchestrator that wires backend, stores, guard and router into an HTTP server
// ABOUTME: Manages TCP or tailscale listeners and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/famlink/internal/api"
	"github.com/2389/famlink/internal/auth"
	"github.com/2389/famlink/internal/blob"
	"github.com/2389/famlink/internal/config"
	"github.com/2389/famlink/internal/family"
	"github.com/2389/famlink/internal/metrics"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/sheet"
)

// Server runs the famlink API.
type Server struct {
	config      *config.Config
	backend     sheet.Backend
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	closers     []namedCloser
	logger      *slog.Logger

	// serverID identifies this server instance in logs
	serverID string
}

type namedCloser struct {
	label string
	c     io.Closer
}

// New creates a Server from cfg. Remote clients are dialed here; listeners
// are opened by Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		config:   cfg,
		serverID: "famlink-" + uuid.NewString()[:8],
	}
	s.logger = logger.With("component", "server", "server_id", s.serverID)

	backend, err := s.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	s.backend = backend

	blobs, err := s.openBlobStore(ctx)
	if err != nil {
		s.closeAll()
		return nil, err
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	var reg *metrics.Registry
	var obs sheet.Observer
	metricsPath := ""
	if cfg.Metrics.Enabled {
		reg = metrics.New()
		obs = reg
		metricsPath = cfg.Metrics.Path
	}

	instrumented := sheet.Instrument(backend, cfg.Backend.RemoteTimeout, obs, logger)
	wb := sheet.NewWorkbook(instrumented, logger)
	store := records.NewStore(wb, logger)
	svc := family.NewService(store, blobs, logger)
	guard := auth.NewGuard(auth.NewSheetGrants(store), logger)

	handler := api.NewHandler(store, svc, verifier, guard, reg, logger)
	router := api.NewRouter(handler, api.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		MetricsPath:    metricsPath,
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// openBackend dials the configured workbook backend.
func (s *Server) openBackend(ctx context.Context) (sheet.Backend, error) {
	cfg := s.config
	switch cfg.Backend.Kind {
	case config.BackendGoogle:
		b, err := sheet.NewGoogleBackend(ctx, cfg.Backend.SpreadsheetID, cfg.Backend.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("opening google sheets backend: %w", err)
		}
		s.logger.Info("using google sheets backend", "spreadsheet_id", cfg.Backend.SpreadsheetID)
		return b, nil
	case config.BackendSQLite:
		b, err := sheet.NewSQLiteBackend(cfg.Database.Path, cfg.Database.Driver)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite backend: %w", err)
		}
		s.closers = append(s.closers, namedCloser{"sqlite backend", b})
		s.logger.Info("using sqlite backend", "path", cfg.Database.Path, "driver", cfg.Database.Driver)
		return b, nil
	case config.BackendMemory:
		s.logger.Warn("using in-memory backend; data is lost on exit")
		return sheet.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}

// openBlobStore creates the configured photo store.
func (s *Server) openBlobStore(ctx context.Context) (blob.Store, error) {
	cfg := s.config.Blob
	switch cfg.Kind {
	case config.BlobGCS:
		g, err := blob.NewGCSStore(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("opening gcs store: %w", err)
		}
		s.closers = append(s.closers, namedCloser{"gcs store", g})
		return g, nil
	case config.BlobMemory:
		return blob.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob kind %q", cfg.Kind)
	}
}

// Backend returns the raw, uninstrumented workbook backend.
func (s *Server) Backend() sheet.Backend {
	return s.backend
}

// Handler returns the HTTP handler served by Run.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		s.closeAll()
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until the context is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The run context is already canceled; shutdown gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
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
	return filepath.Join(homeDir, ".local", "share", "famlink", "tailscale"), nil
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

// setupTailscaleListener starts a tsnet node and listens on its port 80.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

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

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	ln, err := s.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func (s *Server) closeAll() []error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = appendCloseError(errs, s.closers[i].label+" close", s.closers[i].c.Close())
	}
	s.closers = nil
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = append(errs, s.closeAll()...)

	return errors.Join(errs...)
}
