package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teemow/timeslotseeker/internal/calendar"
	"github.com/teemow/timeslotseeker/internal/config"
	"github.com/teemow/timeslotseeker/internal/finder"
	"github.com/teemow/timeslotseeker/internal/google"
	"github.com/teemow/timeslotseeker/internal/instrumentation"
	"github.com/teemow/timeslotseeker/internal/server"
)

// sourceOptions selects where busy time comes from.
type sourceOptions struct {
	offline  bool
	busyFile string
}

// sourceName labels metrics and logs for the selected source.
func (o sourceOptions) sourceName() string {
	if o.offline {
		return instrumentation.SourceStatic
	}
	return instrumentation.SourceGoogle
}

// newSourceFactory returns a factory building busy sources per account.
// Offline sources are loaded once and shared by every account.
func newSourceFactory(s config.Settings, opts sourceOptions, metrics *instrumentation.Metrics, logger *slog.Logger) (server.SourceFactory, error) {
	if opts.offline {
		static, err := loadStaticSource(opts.busyFile)
		if err != nil {
			return nil, err
		}
		return func(context.Context, string) (finder.BusySource, error) {
			return static, nil
		}, nil
	}

	tokens := google.NewFileTokenProvider()
	return func(ctx context.Context, account string) (finder.BusySource, error) {
		client, err := calendar.NewClient(ctx, account, tokens,
			calendar.WithConcurrency(s.LookupConcurrency),
			calendar.WithRateLimit(s.LookupQPS, s.LookupConcurrency),
			calendar.WithMetrics(metrics),
			calendar.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	}, nil
}

// loadStaticSource reads a busy fixture, or returns an empty source when path
// is empty.
func loadStaticSource(path string) (*finder.StaticSource, error) {
	if path == "" {
		return finder.NewStaticSource(nil), nil
	}
	static, err := finder.LoadStaticSource(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load busy fixture: %w", err)
	}
	return static, nil
}
