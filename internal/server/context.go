package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/timeslotseeker/internal/finder"
	"github.com/teemow/timeslotseeker/internal/google"
	"github.com/teemow/timeslotseeker/internal/instrumentation"
)

// SourceFactory builds the busy source used for searches on behalf of account.
type SourceFactory func(ctx context.Context, account string) (finder.BusySource, error)

// ServerContext holds the state shared by the HTTP API and the MCP tools.
type ServerContext struct {
	ctx            context.Context
	cancel         context.CancelFunc
	factory        SourceFactory
	finderConfig   finder.Config
	defaultAccount string
	display        *time.Location
	metrics        *instrumentation.Metrics
	logger         *slog.Logger
	services       map[string]*finder.Service // account -> finder
	mu             sync.RWMutex
	shutdown       bool
}

// ContextOption configures a ServerContext.
type ContextOption func(*ServerContext)

// WithMetrics records tool, HTTP and search metrics on m.
func WithMetrics(m *instrumentation.Metrics) ContextOption {
	return func(sc *ServerContext) { sc.metrics = m }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) ContextOption {
	return func(sc *ServerContext) {
		if l != nil {
			sc.logger = l
		}
	}
}

// WithDefaultAccount sets the account used when a request names none.
func WithDefaultAccount(account string) ContextOption {
	return func(sc *ServerContext) {
		if account != "" {
			sc.defaultAccount = account
		}
	}
}

// WithDisplayLocation sets the zone used when rendering local times. It
// defaults to the work-hours zone of the finder configuration.
func WithDisplayLocation(loc *time.Location) ContextOption {
	return func(sc *ServerContext) {
		if loc != nil {
			sc.display = loc
		}
	}
}

// NewServerContext creates a server context. Finder services are created
// lazily per account from factory and cached.
func NewServerContext(ctx context.Context, factory SourceFactory, cfg finder.Config, opts ...ContextOption) (*ServerContext, error) {
	if factory == nil {
		return nil, fmt.Errorf("source factory is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid finder config: %w", err)
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:            shutdownCtx,
		cancel:         cancel,
		factory:        factory,
		finderConfig:   cfg,
		defaultAccount: google.DefaultAccount,
		display:        cfg.Slots.Location,
		logger:         slog.Default(),
		services:       make(map[string]*finder.Service),
	}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.display == nil {
		sc.display = time.UTC
	}
	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// FinderForAccount returns the finder for account, creating and caching it on
// first use. An empty account means the default account.
func (sc *ServerContext) FinderForAccount(account string) (*finder.Service, error) {
	if account == "" {
		account = sc.defaultAccount
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil, fmt.Errorf("server is shutting down")
	}
	if svc, ok := sc.services[account]; ok {
		return svc, nil
	}

	source, err := sc.factory(sc.ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to create busy source for account %s: %w", account, err)
	}

	cfg := sc.finderConfig
	cfg.Metrics = sc.metrics
	cfg.Logger = sc.logger
	svc, err := finder.NewService(source, cfg)
	if err != nil {
		return nil, err
	}

	sc.services[account] = svc
	return svc, nil
}

// Finder returns the finder for the default account.
func (sc *ServerContext) Finder() (*finder.Service, error) {
	return sc.FinderForAccount("")
}

// SetFinderForAccount replaces the cached finder of account.
func (sc *ServerContext) SetFinderForAccount(account string, svc *finder.Service) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.services[account] = svc
}

// FinderConfig returns the configuration every finder is built with.
func (sc *ServerContext) FinderConfig() finder.Config {
	return sc.finderConfig
}

// DefaultAccount returns the account used when a request names none.
func (sc *ServerContext) DefaultAccount() string {
	return sc.defaultAccount
}

// Location returns the zone used to render local times.
func (sc *ServerContext) Location() *time.Location {
	return sc.display
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and drops cached finders.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.services = make(map[string]*finder.Service)
	sc.cancel()
	return nil
}
