// Package server provides the GoStego HTTP API: role-gated embed and
// extract endpoints, stego messaging with live notifications, and an
// audit trail.
package server

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/xob0t/GoStego/internal/config"
	"github.com/xob0t/GoStego/internal/logging"
	"github.com/xob0t/GoStego/pkg/token"
)

const (
	logLimit        = 500
	shutdownTimeout = 10 * time.Second
	minSecretLen    = 16
)

// Server holds the API state. Create one with New.
type Server struct {
	cfg      config.Config
	log      zerolog.Logger
	sealer   *token.Sealer
	auth     *authenticator
	files    *fileStore
	messages *messageStore
	audit    *auditLog
	users    *userStore
	hub      *hub
	now      func() time.Time
	handler  http.Handler
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithBcryptCost sets the cost used for newly registered passwords.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.users.cost = cost }
}

// New validates cfg and builds a Server. The seal key and JWT secret are
// required.
func New(cfg config.Config, logger zerolog.Logger, opts ...Option) (*Server, error) {
	if cfg.SealKey == "" {
		return nil, fmt.Errorf("seal key is required (seal_key or %s)", config.EnvSealKey)
	}
	key, err := token.ParseKey(cfg.SealKey)
	if err != nil {
		return nil, fmt.Errorf("seal key: %w", err)
	}
	sealer, err := token.NewSealer(key)
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < minSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes (jwt_secret or %s)", minSecretLen, config.EnvJWTSecret)
	}

	s := &Server{
		cfg:      cfg,
		log:      logger,
		sealer:   sealer,
		files:    newFileStore(),
		messages: newMessageStore(),
		audit:    newAuditLog(),
		users:    newUserStore(bcrypt.DefaultCost),
		hub:      newHub(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.auth = &authenticator{secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL, now: s.now}
	s.users.seed(cfg.Users)
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Auth.
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	// Codec.
	mux.HandleFunc("POST /api/hide", s.requireAuth(s.handleHide, config.RoleDoctor))
	mux.HandleFunc("POST /api/retrieve", s.requireAuth(s.handleRetrieve, config.RoleDoctor, config.RoleAdmin))

	// Messaging.
	mux.HandleFunc("POST /api/messages/send", s.requireAuth(s.handleSend))
	mux.HandleFunc("GET /api/messages/inbox", s.requireAuth(s.handleInbox))
	mux.HandleFunc("GET /api/messages/sent", s.requireAuth(s.handleSent))
	mux.HandleFunc("POST /api/messages/{id}/decrypt", s.requireAuth(s.handleDecrypt))
	mux.HandleFunc("GET /api/files/{id}", s.requireAuth(s.handleGetFile))

	// Audit and notifications.
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleLogs))
	mux.HandleFunc("GET /api/ws", s.requireAuth(s.handleWS))

	return s.logRequests(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", s.cfg.Listen).Msg("GoStego API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info().Msg("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// RunServe parses serve flags, loads configuration and runs the API until
// SIGINT or SIGTERM.
func RunServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var (
		configPath string
		listen     string
		port       string
		logLevel   string
	)
	fs.StringVar(&configPath, "config", "", "Path to TOML config file")
	fs.StringVar(&listen, "listen", "", "Listen address (overrides config)")
	fs.StringVar(&port, "port", "", "Listen port (shorthand for --listen :<port>)")
	fs.StringVar(&port, "p", "", "Listen port")
	fs.StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Listen = ":" + port
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := logging.Init("gostego", cfg.Log)
	s, err := New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// ── Middleware ──

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes through to the underlying writer for websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		ev := s.log.Info()
		if status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
