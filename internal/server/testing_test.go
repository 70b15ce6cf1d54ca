package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teemow/timeslotseeker/internal/finder"
	"github.com/teemow/timeslotseeker/internal/slots"
)

// Monday 2025-01-06 08:00 UTC: searches start at 09:00 the same day.
var testNow = time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFinderConfig() finder.Config {
	cfg := finder.DefaultConfig()
	cfg.SourceName = "static"
	cfg.Now = func() time.Time { return testNow }
	return cfg
}

// newStaticContext returns a server context whose every account reads busy
// time from source.
func newStaticContext(t *testing.T, source *finder.StaticSource, opts ...ContextOption) *ServerContext {
	t.Helper()
	factory := func(context.Context, string) (finder.BusySource, error) { return source, nil }
	opts = append([]ContextOption{WithLogger(quietLogger())}, opts...)
	sc, err := NewServerContext(context.Background(), factory, testFinderConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func newFailingContext(t *testing.T) *ServerContext {
	t.Helper()
	factory := func(context.Context, string) (finder.BusySource, error) {
		return nil, errors.New("no token")
	}
	sc, err := NewServerContext(context.Background(), factory, testFinderConfig(), WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func aliceBusy() *finder.StaticSource {
	return finder.NewStaticSource(map[string][]slots.Interval{
		"alice@example.com": {{
			Start: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 1, 6, 11, 0, 0, 0, time.UTC),
		}},
	})
}

func intervalOf(start, end time.Time) slots.Interval {
	return slots.Interval{Start: start, End: end}
}
