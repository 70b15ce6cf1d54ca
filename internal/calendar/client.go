package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/timeslotseeker/internal/google"
	"github.com/teemow/timeslotseeker/internal/instrumentation"
	"github.com/teemow/timeslotseeker/internal/logging"
	"github.com/teemow/timeslotseeker/internal/slots"
)

const (
	// MaxCalendarsPerQuery is the free/busy API limit on items per request.
	MaxCalendarsPerQuery = 50

	// DefaultConcurrency is the number of batches queried in parallel.
	DefaultConcurrency = 4
)

// Client queries Google Calendar free/busy data.
type Client struct {
	svc         *calendar.Service
	account     string
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
	metrics     *instrumentation.Metrics
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records Google API metrics on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBatchSize caps the calendars sent in one request. Values outside
// [1, MaxCalendarsPerQuery] are ignored.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n >= 1 && n <= MaxCalendarsPerQuery {
			c.batchSize = n
		}
	}
}

// WithConcurrency sets the number of batches queried in parallel.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n >= 1 {
			c.concurrency = n
		}
	}
}

// WithRateLimit caps outgoing free/busy requests at qps per second with the
// given burst. A non-positive qps leaves requests unthrottled.
func WithRateLimit(qps float64, burst int) Option {
	return func(c *Client) {
		if qps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Calendar client authenticated as account with a token
// from provider.
func NewClient(ctx context.Context, account string, provider google.TokenProvider, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	ts, err := provider.TokenSourceForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	// HTTP/1.1 only; the calendar API intermittently resets HTTP/2 streams.
	base := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
	}
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(&oauth2.Transport{Source: ts, Base: base}),
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return NewClientWithService(svc, account, opts...), nil
}

// NewClientWithService wraps an existing calendar service.
func NewClientWithService(svc *calendar.Service, account string, opts ...Option) *Client {
	c := &Client{
		svc:         svc,
		account:     account,
		batchSize:   MaxCalendarsPerQuery,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithOperation(c.logger, "calendar.freebusy")
	return c
}

// Account returns the account name this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// QueryFreeBusy runs one free/busy request for up to MaxCalendarsPerQuery
// calendars. Busy times are returned in UTC.
func (c *Client) QueryFreeBusy(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]FreeBusyInfo, error) {
	if len(calendarIDs) > MaxCalendarsPerQuery {
		return nil, fmt.Errorf("too many calendars in one free/busy query: %d > %d", len(calendarIDs), MaxCalendarsPerQuery)
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationFreeBusy,
		attribute.Int(instrumentation.SpanAttrParticipants, len(calendarIDs)))
	defer span.End()

	start := time.Now()
	var infos []FreeBusyInfo
	err := c.wait(ctx)
	if err == nil {
		infos, err = c.queryFreeBusy(ctx, timeMin, timeMax, calendarIDs)
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, instrumentation.OperationFreeBusy, status, time.Since(start))

	return infos, err
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("free/busy rate limit: %w", err)
	}
	return nil
}

func (c *Client) queryFreeBusy(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]FreeBusyInfo, error) {
	items := make([]*calendar.FreeBusyRequestItem, len(calendarIDs))
	for i, id := range calendarIDs {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}

	query := &calendar.FreeBusyRequest{
		TimeMin:  timeMin.UTC().Format(time.RFC3339),
		TimeMax:  timeMax.UTC().Format(time.RFC3339),
		TimeZone: "UTC",
		Items:    items,
	}

	result, err := c.svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}

	infos := make([]FreeBusyInfo, 0, len(calendarIDs))
	for _, id := range calendarIDs {
		info := FreeBusyInfo{Calendar: id}

		cal, ok := result.Calendars[id]
		if !ok {
			info.Errors = append(info.Errors, "missing from response")
			infos = append(infos, info)
			continue
		}

		for _, busy := range cal.Busy {
			iv, err := parseTimePeriod(busy)
			if err != nil {
				return nil, fmt.Errorf("calendar %s: %w", id, err)
			}
			info.Busy = append(info.Busy, iv)
		}
		for _, e := range cal.Errors {
			info.Errors = append(info.Errors, e.Reason)
		}
		infos = append(infos, info)
	}

	return infos, nil
}

func parseTimePeriod(p *calendar.TimePeriod) (slots.Interval, error) {
	start, err := time.Parse(time.RFC3339, p.Start)
	if err != nil {
		return slots.Interval{}, fmt.Errorf("invalid busy start %q: %w", p.Start, err)
	}
	end, err := time.Parse(time.RFC3339, p.End)
	if err != nil {
		return slots.Interval{}, fmt.Errorf("invalid busy end %q: %w", p.End, err)
	}
	if end.Before(start) {
		return slots.Interval{}, fmt.Errorf("busy period ends before it starts: %s > %s", p.Start, p.End)
	}
	return slots.Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Lookup returns the busy intervals of each participant inside window. The
// participants are split into batches of at most MaxCalendarsPerQuery that are
// queried concurrently. Any failed batch or any per-calendar error fails the
// whole lookup.
func (c *Client) Lookup(ctx context.Context, window slots.Window, participants []string) (map[string][]slots.Interval, error) {
	batches := chunk(participants, c.batchSize)
	results := make([][]FreeBusyInfo, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			infos, err := c.QueryFreeBusy(gctx, window.Start, window.End, batch)
			if err != nil {
				return fmt.Errorf("free/busy batch %d of %d: %w", i+1, len(batches), err)
			}
			results[i] = infos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	busy := make(map[string][]slots.Interval, len(participants))
	calErrs := &CalendarErrors{Reasons: make(map[string][]string)}
	for _, infos := range results {
		for _, info := range infos {
			if len(info.Errors) > 0 {
				calErrs.Reasons[info.Calendar] = info.Errors
				continue
			}
			busy[info.Calendar] = append(busy[info.Calendar], info.Busy...)
		}
	}
	if len(calErrs.Reasons) > 0 {
		return nil, calErrs
	}

	c.logger.DebugContext(ctx, "free/busy lookup complete",
		slog.Int("batches", len(batches)),
		slog.Int("calendars", len(participants)))

	return busy, nil
}

func chunk(ids []string, size int) [][]string {
	if size < 1 {
		size = MaxCalendarsPerQuery
	}
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
