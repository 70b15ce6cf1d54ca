package finder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/timeslotseeker/internal/instrumentation"
	"github.com/teemow/timeslotseeker/internal/logging"
	"github.com/teemow/timeslotseeker/internal/slots"
)

// BusySource returns the busy intervals of each participant inside window.
//
// Implementations must return either a complete result for every requested
// participant or an error. A participant missing from the map has no busy time.
// Map keys are matched to participants case-insensitively.
type BusySource interface {
	Lookup(ctx context.Context, window slots.Window, participants []string) (map[string][]slots.Interval, error)
}

// Default request bounds and lookup timeout.
const (
	DefaultMinSlotLengthMinutes = 5
	DefaultMaxSlotLengthMinutes = 480
	DefaultMinSpanWeeks         = 1
	DefaultMaxSpanWeeks         = 4
	DefaultLookupTimeout        = 30 * time.Second
)

// Config controls how a Service validates requests and evaluates slots.
type Config struct {
	// Slots is the work-hour regime passed to the slot computation.
	Slots slots.Config

	// Inclusive bounds for Request.SlotLengthMinutes and Request.SpanWeeks.
	MinSlotLengthMinutes int
	MaxSlotLengthMinutes int
	MinSpanWeeks         int
	MaxSpanWeeks         int

	// LookupTimeout bounds a single busy lookup. Zero disables the timeout.
	LookupTimeout time.Duration

	// SourceName labels metrics and logs (google, static).
	SourceName string

	// Now returns the current instant (default: time.Now).
	Now func() time.Time

	// Metrics records slot search metrics. Nil disables recording.
	Metrics *instrumentation.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the 09:00-17:00 UTC regime with [5,480] minute slots
// over [1,4] weeks.
func DefaultConfig() Config {
	return Config{
		Slots:                slots.DefaultConfig(),
		MinSlotLengthMinutes: DefaultMinSlotLengthMinutes,
		MaxSlotLengthMinutes: DefaultMaxSlotLengthMinutes,
		MinSpanWeeks:         DefaultMinSpanWeeks,
		MaxSpanWeeks:         DefaultMaxSpanWeeks,
		LookupTimeout:        DefaultLookupTimeout,
	}
}

// Validate checks the bounds and the work-hour regime.
func (c Config) Validate() error {
	if err := c.Slots.Validate(); err != nil {
		return err
	}
	if c.MinSlotLengthMinutes < 1 || c.MinSlotLengthMinutes > c.MaxSlotLengthMinutes {
		return fmt.Errorf("invalid slot length bounds [%d,%d]: %w", c.MinSlotLengthMinutes, c.MaxSlotLengthMinutes, slots.ErrInvalidArgument)
	}
	if c.MinSpanWeeks < 1 || c.MinSpanWeeks > c.MaxSpanWeeks {
		return fmt.Errorf("invalid span bounds [%d,%d]: %w", c.MinSpanWeeks, c.MaxSpanWeeks, slots.ErrInvalidArgument)
	}
	if c.LookupTimeout < 0 {
		return fmt.Errorf("lookup timeout must not be negative: %w", slots.ErrInvalidArgument)
	}
	return nil
}

// Request is one free slot search.
type Request struct {
	Participants      []string
	SlotLengthMinutes int
	SpanWeeks         int
}

// Result is the outcome of a successful search. An empty Slots list is a
// valid result.
type Result struct {
	SearchID      string
	Window        slots.Window
	Slots         []slots.Slot
	Participants  []string
	BusyIntervals int
}

// Service finds common free slots for a set of participants.
type Service struct {
	source BusySource
	cfg    Config
	logger *slog.Logger
}

// NewService returns a Service reading busy time from source.
func NewService(source BusySource, cfg Config) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("busy source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid finder config: %w", err)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		source: source,
		cfg:    cfg,
		logger: logging.WithOperation(logger, "find_free_slots"),
	}, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() Config {
	return s.cfg
}

// FindFreeSlots validates req, aligns the query window to now, looks up busy
// time for every participant and derives the common free slots.
//
// Errors are *Error values: KindInvalidArgument for rejected input and
// KindUpstreamUnavailable when the busy lookup fails, times out or returns a
// malformed interval.
func (s *Service) FindFreeSlots(ctx context.Context, req Request) (res Result, err error) {
	start := time.Now()
	searchID := uuid.NewString()

	ctx = logging.AppendCtx(ctx, logging.SearchID(searchID))
	ctx, span := instrumentation.StartSpan(ctx, "finder.find_free_slots",
		instrumentation.NewSpanAttributeBuilder().
			WithSearchID(searchID).
			WithSource(s.cfg.SourceName).
			WithRequest(len(req.Participants), req.SlotLengthMinutes, req.SpanWeeks).
			Build()...,
	)
	defer span.End()

	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		s.cfg.Metrics.RecordSlotSearch(ctx, instrumentation.SlotSearch{
			Source:            s.cfg.SourceName,
			Status:            status,
			SlotLengthMinutes: req.SlotLengthMinutes,
			SpanWeeks:         req.SpanWeeks,
			Participants:      len(res.Participants),
			BusyIntervals:     res.BusyIntervals,
			SlotsFound:        len(res.Slots),
			Duration:          time.Since(start),
		})
	}()

	participants, err := s.validate(req)
	if err != nil {
		s.logger.WarnContext(ctx, "rejected slot search", logging.Err(err))
		return Result{}, err
	}

	window, err := slots.AlignWindow(s.cfg.Slots, s.cfg.Now(), req.SlotLengthMinutes, req.SpanWeeks)
	if err != nil {
		return Result{}, newInvalidArgument("cannot align query window", err)
	}

	busy, err := s.lookup(ctx, window, participants)
	if err != nil {
		s.logger.ErrorContext(ctx, "busy lookup failed",
			logging.Source(s.cfg.SourceName),
			logging.Participants(participants),
			logging.Err(err))
		return Result{}, err
	}

	found, err := slots.DeriveSlots(s.cfg.Slots, window, req.SlotLengthMinutes, busy)
	if err != nil {
		return Result{}, newInvalidArgument("cannot derive slots", err)
	}

	s.logger.InfoContext(ctx, "slot search complete",
		logging.Source(s.cfg.SourceName),
		slog.Int("participant_count", len(participants)),
		slog.Int("busy_intervals", len(busy)),
		slog.Int("slots", len(found)),
		logging.Duration(time.Since(start)))

	return Result{
		SearchID:      searchID,
		Window:        window,
		Slots:         found,
		Participants:  participants,
		BusyIntervals: len(busy),
	}, nil
}

// validate checks the request bounds and returns the normalized participant
// list: trimmed, de-duplicated case-insensitively, first spelling kept.
func (s *Service) validate(req Request) ([]string, error) {
	if req.SlotLengthMinutes < s.cfg.MinSlotLengthMinutes || req.SlotLengthMinutes > s.cfg.MaxSlotLengthMinutes {
		return nil, newInvalidArgument(fmt.Sprintf("slot length must be between %d and %d minutes, got %d",
			s.cfg.MinSlotLengthMinutes, s.cfg.MaxSlotLengthMinutes, req.SlotLengthMinutes))
	}
	if req.SpanWeeks < s.cfg.MinSpanWeeks || req.SpanWeeks > s.cfg.MaxSpanWeeks {
		return nil, newInvalidArgument(fmt.Sprintf("weeks must be between %d and %d, got %d",
			s.cfg.MinSpanWeeks, s.cfg.MaxSpanWeeks, req.SpanWeeks))
	}

	seen := make(map[string]bool, len(req.Participants))
	participants := make([]string, 0, len(req.Participants))
	for _, p := range req.Participants {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, " \t\r\n") {
			return nil, newInvalidArgument(fmt.Sprintf("participant %q contains whitespace", p))
		}
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		participants = append(participants, p)
	}
	if len(participants) == 0 {
		return nil, newInvalidArgument("at least one participant is required")
	}
	return participants, nil
}

// lookup queries the source under the configured timeout and pools the busy
// intervals of all participants in participant order.
func (s *Service) lookup(ctx context.Context, window slots.Window, participants []string) ([]slots.Interval, error) {
	if s.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LookupTimeout)
		defer cancel()
	}

	byParticipant, err := s.source.Lookup(ctx, window, participants)
	if err != nil {
		return nil, newUpstreamUnavailable("busy lookup failed", err)
	}
	// A source that ignored cancellation must not leak a late result.
	if err := ctx.Err(); err != nil {
		return nil, newUpstreamUnavailable("busy lookup did not complete", err)
	}

	// Addresses are case-insensitive; a source may echo a different spelling.
	folded := make(map[string][]slots.Interval, len(byParticipant))
	for k, ivs := range byParticipant {
		key := strings.ToLower(strings.TrimSpace(k))
		folded[key] = append(folded[key], ivs...)
	}

	var pooled []slots.Interval
	for _, p := range participants {
		for _, iv := range folded[strings.ToLower(p)] {
			if iv.End.Before(iv.Start) {
				return nil, newUpstreamUnavailable(fmt.Sprintf("busy source returned an interval ending before it starts (%s > %s)",
					iv.Start.UTC().Format(time.RFC3339), iv.End.UTC().Format(time.RFC3339)))
			}
			pooled = append(pooled, iv)
		}
	}
	return pooled, nil
}
