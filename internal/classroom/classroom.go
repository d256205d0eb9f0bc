// SPDX-License-Identifier: MPL-2.0

package classroom

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
)

const (
	// StateCreated indicates the server has been created but not started.
	StateCreated State = iota
	// StateStarting indicates the server is binding its listener.
	StateStarting
	// StateRunning indicates the server is accepting learner connections.
	StateRunning
	// StateStopping indicates the server is shutting down.
	StateStopping
	// StateStopped indicates the server has stopped (terminal).
	StateStopped
	// StateFailed indicates the server failed to start or serve (terminal).
	StateFailed
)

type (
	// State is the lifecycle state of the classroom server.
	State int32

	// ArgvFunc resolves a lesson command into a spawnable argv. The session
	// driver provides one that prepares the selected backend first.
	ArgvFunc func(ctx context.Context, lesson string) (bin string, args []string, err error)

	// Config holds the immutable classroom server configuration.
	Config struct {
		// Host is the address to bind to (default 127.0.0.1).
		Host string
		// Port to listen on; 0 auto-selects.
		Port int
		// TokenTTL is how long learner tokens stay valid (default 4h, the
		// length of a workshop day half).
		TokenTTL time.Duration
		// DefaultLesson runs when a learner connects without a command
		// (default "python").
		DefaultLesson string
		// WorkDir is the working directory for lesson processes.
		WorkDir string
		// ShutdownTimeout bounds graceful shutdown (default 10s).
		ShutdownTimeout time.Duration
		// StartupTimeout bounds the wait for the listener (default 5s).
		StartupTimeout time.Duration
	}

	// Option configures a Server.
	Option func(*Server)

	// Server is the single-use SSH classroom server.
	Server struct {
		cfg    Config
		argv   ArgvFunc
		logger *log.Logger
		now    func() time.Time

		state atomic.Int32

		mu       sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string

		ctx     context.Context
		cancel  context.CancelFunc
		wg      sync.WaitGroup
		readyCh chan struct{}
		errCh   chan error
		lastErr error

		tokenMu sync.RWMutex
		tokens  map[string]*Token
	}
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultConfig returns the default classroom configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            0,
		TokenTTL:        4 * time.Hour,
		DefaultLesson:   "python",
		ShutdownTimeout: 10 * time.Second,
		StartupTimeout:  5 * time.Second,
	}
}

// WithLogger sets the server's logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a classroom server. It is not started; call Start.
func New(cfg Config, argv ArgvFunc, opts ...Option) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 4 * time.Hour
	}
	if cfg.DefaultLesson == "" {
		cfg.DefaultLesson = "python"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 5 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		argv:    argv,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "classroom"}),
		now:     time.Now,
		tokens:  make(map[string]*Token),
		readyCh: make(chan struct{}),
		errCh:   make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(int32(StateCreated))
	return s
}

// Start binds the listener and begins accepting learner connections. It
// blocks until the server is ready, fails, or the startup timeout elapses.
// After a nil return, monitor Err() for runtime failures.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		s.fail(fmt.Errorf("context cancelled before start: %w", ctx.Err()))
		return s.lastErr
	default:
	}

	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start classroom server in state %s", State(s.state.Load()))
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	startupCtx, startupCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer startupCancel()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		s.fail(fmt.Errorf("failed to listen on %s: %w", addr, err))
		return s.lastErr
	}

	srv, err := wish.NewServer(
		wish.WithAddress(addr),
		wish.WithPublicKeyAuth(s.rejectPublicKey),
		wish.WithPasswordAuth(s.authenticateToken),
		wish.WithMiddleware(
			activeterm.Middleware(),
			s.lessonMiddleware(),
		),
	)
	if err != nil {
		_ = listener.Close()
		s.fail(fmt.Errorf("failed to create SSH server: %w", err))
		return s.lastErr
	}

	s.mu.Lock()
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srv = srv
	s.mu.Unlock()

	s.wg.Add(2)
	go s.serve()
	go s.expireTokens()

	select {
	case <-s.readyCh:
		s.logger.Info("classroom server started", "address", s.addr)
		return nil
	case err := <-s.errCh:
		s.fail(err)
		return err
	case <-startupCtx.Done():
		s.cancel()
		s.fail(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return s.lastErr
	}
}

// Stop shuts the server down gracefully. Safe to call more than once.
func (s *Server) Stop() error {
	for {
		switch current := State(s.state.Load()); current {
		case StateStopped, StateFailed:
			return nil
		case StateCreated:
			if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return nil
			}
		case StateStopping:
			s.wg.Wait()
			return nil
		case StateStarting, StateRunning:
			if !s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				continue
			}
			return s.shutdown()
		default:
			return fmt.Errorf("unknown classroom server state: %d", current)
		}
	}
}

// Err receives fatal server errors after Start returns. Closed on stop.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// IsRunning reports whether learners can connect right now.
func (s *Server) IsRunning() bool {
	return s.State() == StateRunning
}

// Address returns the bound host:port. Blocks until started or failed;
// empty when the server never came up.
func (s *Server) Address() string {
	select {
	case <-s.readyCh:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.addr
	case <-s.ctx.Done():
		return ""
	}
}

// Port returns the listening port, 0 when the server never came up.
func (s *Server) Port() int {
	addr := s.Address()
	if addr == "" {
		return 0
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return 0
	}
	return port
}

// Wait blocks until the server stops; returns the fatal error if it failed.
func (s *Server) Wait() error {
	s.wg.Wait()
	if s.State() == StateFailed {
		return s.lastErr
	}
	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()

	if s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(s.readyCh)
	}

	s.mu.Lock()
	srv, listener := s.srv, s.listener
	s.mu.Unlock()
	if srv == nil || listener == nil {
		return
	}

	if err := srv.Serve(listener); err != nil {
		if errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return
		}
		select {
		case s.errCh <- fmt.Errorf("serve error: %w", err):
		default:
			s.logger.Error("classroom server error (channel full)", "error", err)
		}
	}
}

func (s *Server) shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	s.mu.Lock()
	if s.srv != nil {
		shutdownErr = s.srv.Shutdown(shutdownCtx)
		if shutdownErr != nil && !isClosedConnError(shutdownErr) {
			s.logger.Error("shutdown error", "error", shutdownErr)
		} else {
			shutdownErr = nil
		}
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.state.Store(int32(StateStopped))
	s.logger.Info("classroom server stopped")
	close(s.errCh)

	return shutdownErr
}

func (s *Server) fail(err error) {
	s.lastErr = err
	s.state.Store(int32(StateFailed))
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case s.errCh <- err:
	default:
	}
}

// isClosedConnError reports the "use of closed network connection" error
// that a closing listener produces.
func isClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Err.Error() == "use of closed network connection"
	}
	return false
}
