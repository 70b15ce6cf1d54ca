package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/timeslotseeker/internal/config"
	"github.com/teemow/timeslotseeker/internal/instrumentation"
	"github.com/teemow/timeslotseeker/internal/logging"
	"github.com/teemow/timeslotseeker/internal/resources"
	"github.com/teemow/timeslotseeker/internal/server"
	"github.com/teemow/timeslotseeker/internal/tools/calendar_tools"
)

// Transports of the serve command.
const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

// startupTimeout bounds the wait for a listener to come up.
const startupTimeout = 5 * time.Second

type serveOptions struct {
	transport        string
	disableStreaming bool
	metrics          bool
	source           sourceOptions
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{transport: transportStreamableHTTP, metrics: true}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and MCP server",
		Long: `Start the free slot search as a service.

With the streamable-http transport (default) the HTTP API is served on
--http-addr with these endpoints:
  POST /find-timeslot   full search result
  POST /test-slots      first slots of a search in UTC and local time
  /mcp                  MCP streamable HTTP endpoint
  GET  /healthz, /readyz, /healthz/detailed

Prometheus metrics are served separately on --metrics-addr.

With the stdio transport only the MCP server runs, reading requests from
stdin, for use by AI assistants that launch it as a subprocess.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, settings, opts)
		},
	}

	d := config.Defaults()
	cmd.Flags().StringVar(&opts.transport, "transport", opts.transport, "Transport type: stdio or streamable-http")
	cmd.Flags().BoolVar(&opts.disableStreaming, "disable-streaming", false, "Disable streaming for the MCP HTTP endpoint (for compatibility with certain clients)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", opts.metrics, "Serve Prometheus metrics on --metrics-addr")
	cmd.Flags().BoolVar(&opts.source.offline, "offline", false, "Read busy time from a local fixture instead of Google Calendar")
	cmd.Flags().StringVar(&opts.source.busyFile, "busy-file", "", "JSON busy fixture used with --offline")
	cmd.Flags().String(config.KeyHTTPAddr, d.HTTPAddr, "HTTP API address (for streamable-http transport)")
	cmd.Flags().String(config.KeyMetricsAddr, d.MetricsAddr, "Metrics server address")
	cmd.Flags().Int(config.KeyRateLimit, d.RateLimit, "Requests allowed per client IP per minute (0 disables the limit)")
	cmd.Flags().StringSlice(config.KeyCORSOrigins, d.CORSOrigins, "Allowed CORS origins")
	addSearchFlags(cmd.Flags())

	return cmd
}

// addSearchFlags declares the request bounds and lookup tuning shared by
// find and serve.
func addSearchFlags(fs *pflag.FlagSet) {
	d := config.Defaults()
	fs.Int(config.KeyMinSlotLength, d.MinSlotLength, "Shortest accepted slot length in minutes")
	fs.Int(config.KeyMaxSlotLength, d.MaxSlotLength, "Longest accepted slot length in minutes")
	fs.Int(config.KeyMinWeeks, d.MinWeeks, "Fewest accepted weeks")
	fs.Int(config.KeyMaxWeeks, d.MaxWeeks, "Most accepted weeks")
	fs.Duration(config.KeyLookupTimeout, d.LookupTimeout, "Timeout of one busy lookup")
	fs.Int(config.KeyLookupConcurrency, d.LookupConcurrency, "Concurrent free/busy queries per lookup")
	fs.Float64(config.KeyLookupQPS, d.LookupQPS, "Free/busy queries per second (0 disables the limit)")
}

func runServe(ctx context.Context, s config.Settings, opts serveOptions) error {
	if opts.transport != transportStdio && opts.transport != transportStreamableHTTP {
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)", opts.transport, transportStdio, transportStreamableHTTP)
	}
	logger := logging.WithOperation(slog.Default(), "serve")

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	if opts.transport != transportStdio && opts.metrics && provider.ServesPrometheus() {
		metricsServer, err := startMetricsServer(s.MetricsAddr, provider)
		if err != nil {
			return err
		}
		logger.Info("metrics server started", "addr", metricsServer.Addr())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	factory, err := newSourceFactory(s, opts.source, provider.Metrics(), slog.Default())
	if err != nil {
		return err
	}
	finderConfig, err := s.FinderConfig()
	if err != nil {
		return err
	}
	finderConfig.SourceName = opts.source.sourceName()

	serverContext, err := server.NewServerContext(ctx, factory, finderConfig,
		server.WithMetrics(provider.Metrics()),
		server.WithLogger(slog.Default()),
		server.WithDefaultAccount(s.Account),
	)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", logging.Err(err))
		}
	}()

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}

	switch opts.transport {
	case transportStdio:
		return runStdioServer(mcpSrv)
	default:
		logger.Info("starting timeslotseeker server",
			"transport", opts.transport,
			"source", finderConfig.SourceName,
			"timezone", finderConfig.Slots.Location.String())
		return runStreamableHTTPServer(ctx, serverContext, mcpSrv, s, opts.disableStreaming)
	}
}

// newMCPServer creates the MCP server with every tool group registered.
func newMCPServer(sc *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("timeslotseeker", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)
	if err := registerAllTools(mcpSrv, sc); err != nil {
		return nil, err
	}
	return mcpSrv, nil
}

// registerAllTools registers all MCP tools and resources.
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Calendar Tools",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, sc)
			},
		},
		{
			name: "Settings Resources",
			register: func() error {
				return resources.RegisterSettingsResources(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}
	return nil
}

func startMetricsServer(addr string, provider *instrumentation.Provider) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	ready := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(ready); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-ready:
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(startupTimeout):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// runStreamableHTTPServer serves the HTTP API with the MCP endpoint mounted
// at /mcp until ctx is done.
func runStreamableHTTPServer(ctx context.Context, sc *server.ServerContext, mcpSrv *mcpserver.MCPServer, s config.Settings, disableStreaming bool) error {
	var mcpHandler *mcpserver.StreamableHTTPServer
	if disableStreaming {
		mcpHandler = mcpserver.NewStreamableHTTPServer(mcpSrv,
			mcpserver.WithEndpointPath("/mcp"),
			mcpserver.WithDisableStreaming(true),
		)
	} else {
		mcpHandler = mcpserver.NewStreamableHTTPServer(mcpSrv,
			mcpserver.WithEndpointPath("/mcp"),
		)
	}

	health := server.NewHealthChecker(sc)
	health.SetReady(false)

	api, err := server.NewAPIServer(sc, health, server.APIConfig{
		Addr:        s.HTTPAddr,
		RateLimit:   s.RateLimit,
		CORSOrigins: s.CORSOrigins,
		MCPHandler:  mcpHandler,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	ready := make(chan struct{})
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := api.StartWithReadySignal(ready); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ready:
		health.SetReady(true)
	case err := <-serverDone:
		return fmt.Errorf("API server failed to start: %w", err)
	case <-time.After(startupTimeout):
		return fmt.Errorf("API server startup timed out")
	}

	select {
	case <-ctx.Done():
		health.SetReady(false)
		sc.Logger().Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
