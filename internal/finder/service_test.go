package finder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/timeslotseeker/internal/slots"
)

// Monday 2025-01-06 08:00 UTC; the aligned window starts at 09:00.
var testNow = time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 1, day, hour, minute, 0, 0, time.UTC)
}

func newTestService(t *testing.T, source BusySource, mutate ...func(*Config)) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SourceName = "static"
	cfg.Now = func() time.Time { return testNow }
	for _, m := range mutate {
		m(&cfg)
	}
	svc, err := NewService(source, cfg)
	require.NoError(t, err)
	return svc
}

func TestFindFreeSlots_PoolsParticipants(t *testing.T) {
	source := NewStaticSource(nil)
	source.SetBusy("alice@example.com", slots.Interval{Start: at(6, 10, 0), End: at(6, 11, 0)})
	source.SetBusy("bob@example.com", slots.Interval{Start: at(6, 10, 30), End: at(6, 12, 0)})

	svc := newTestService(t, source)
	res, err := svc.FindFreeSlots(context.Background(), Request{
		Participants:      []string{"alice@example.com", "bob@example.com"},
		SlotLengthMinutes: 60,
		SpanWeeks:         1,
	})
	require.NoError(t, err)

	assert.True(t, at(6, 9, 0).Equal(res.Window.Start))
	assert.True(t, at(13, 9, 0).Equal(res.Window.End))
	assert.Equal(t, 2, res.BusyIntervals)

	// Monday loses 10:00-12:00; Tuesday to Friday are free all day.
	require.Len(t, res.Slots, 6+4*8)
	assert.True(t, at(6, 9, 0).Equal(res.Slots[0].Start))
	assert.True(t, at(6, 12, 0).Equal(res.Slots[1].Start))
	assert.True(t, at(10, 16, 0).Equal(res.Slots[len(res.Slots)-1].Start))

	_, err = uuid.Parse(res.SearchID)
	assert.NoError(t, err, "search id should be a UUID")
}

func TestFindFreeSlots_QueriesAlignedWindow(t *testing.T) {
	source := NewStaticSource(nil)
	svc := newTestService(t, source, func(c *Config) {
		c.Now = func() time.Time { return at(7, 13, 7) }
	})

	_, err := svc.FindFreeSlots(context.Background(), Request{
		Participants:      []string{"alice@example.com"},
		SlotLengthMinutes: 30,
		SpanWeeks:         2,
	})
	require.NoError(t, err)

	calls := source.Calls()
	require.Len(t, calls, 1)
	assert.True(t, at(7, 13, 30).Equal(calls[0].Window.Start))
	assert.Equal(t, 2*slots.Week, calls[0].Window.Duration())
}

func TestFindFreeSlots_NormalizesParticipants(t *testing.T) {
	source := NewStaticSource(nil)
	svc := newTestService(t, source)

	res, err := svc.FindFreeSlots(context.Background(), Request{
		Participants:      []string{"alice@example.com", " Alice@Example.com ", "", "bob@example.com"},
		SlotLengthMinutes: 30,
		SpanWeeks:         1,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, res.Participants)
	require.Len(t, source.Calls(), 1)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, source.Calls()[0].Participants)
}

// echoSource returns busy as-is, whatever spelling the participants were requested in.
type echoSource map[string][]slots.Interval

func (e echoSource) Lookup(context.Context, slots.Window, []string) (map[string][]slots.Interval, error) {
	return e, nil
}

func TestFindFreeSlots_MatchesParticipantsCaseInsensitively(t *testing.T) {
	mondayBusy := []slots.Interval{{Start: at(6, 9, 0), End: at(6, 17, 0)}}

	tests := []struct {
		name         string
		source       BusySource
		participants []string
	}{
		{
			name:         "mixed-case request against lower-case source",
			source:       NewStaticSource(map[string][]slots.Interval{"alice@example.com": mondayBusy}),
			participants: []string{"Alice@Example.com"},
		},
		{
			name:         "lower-case request against mixed-case source",
			source:       NewStaticSource(map[string][]slots.Interval{"Alice@Example.com": mondayBusy}),
			participants: []string{"alice@example.com"},
		},
		{
			name:         "source echoes a different spelling",
			source:       echoSource{"ALICE@EXAMPLE.COM": mondayBusy},
			participants: []string{"Alice@Example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.source)
			res, err := svc.FindFreeSlots(context.Background(), Request{
				Participants:      tt.participants,
				SlotLengthMinutes: 60,
				SpanWeeks:         1,
			})
			require.NoError(t, err)

			assert.Equal(t, 1, res.BusyIntervals)
			require.Len(t, res.Slots, 4*8, "Monday is fully busy")
			assert.True(t, at(7, 9, 0).Equal(res.Slots[0].Start))
		})
	}
}

func TestFindFreeSlots_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"slot length below minimum", Request{Participants: []string{"a@x"}, SlotLengthMinutes: 4, SpanWeeks: 1}},
		{"slot length above maximum", Request{Participants: []string{"a@x"}, SlotLengthMinutes: 481, SpanWeeks: 1}},
		{"zero slot length", Request{Participants: []string{"a@x"}, SlotLengthMinutes: 0, SpanWeeks: 1}},
		{"zero weeks", Request{Participants: []string{"a@x"}, SlotLengthMinutes: 30, SpanWeeks: 0}},
		{"too many weeks", Request{Participants: []string{"a@x"}, SlotLengthMinutes: 30, SpanWeeks: 5}},
		{"no participants", Request{SlotLengthMinutes: 30, SpanWeeks: 1}},
		{"blank participants", Request{Participants: []string{" ", ""}, SlotLengthMinutes: 30, SpanWeeks: 1}},
		{"participant with inner space", Request{Participants: []string{"a b@x"}, SlotLengthMinutes: 30, SpanWeeks: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := NewStaticSource(nil)
			svc := newTestService(t, source)

			_, err := svc.FindFreeSlots(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, KindInvalidArgument, KindOf(err))
			assert.True(t, IsInvalidArgument(err))
			assert.Empty(t, source.Calls(), "source must not be queried for rejected input")
		})
	}
}

func TestFindFreeSlots_AcceptsBounds(t *testing.T) {
	tests := []struct {
		slot, weeks int
		wantSlots   int
	}{
		{5, 1, 5 * 96},
		{480, 1, 5},
		{480, 4, 20},
	}

	for _, tt := range tests {
		source := NewStaticSource(nil)
		svc := newTestService(t, source)

		res, err := svc.FindFreeSlots(context.Background(), Request{
			Participants:      []string{"a@example.com"},
			SlotLengthMinutes: tt.slot,
			SpanWeeks:         tt.weeks,
		})
		require.NoError(t, err, "slot=%d weeks=%d", tt.slot, tt.weeks)
		assert.Len(t, res.Slots, tt.wantSlots, "slot=%d weeks=%d", tt.slot, tt.weeks)
	}
}

func TestFindFreeSlots_UpstreamFailure(t *testing.T) {
	errBackend := errors.New("backend down")
	source := NewStaticSource(nil)
	source.FailWith(errBackend)
	svc := newTestService(t, source)

	_, err := svc.FindFreeSlots(context.Background(), Request{
		Participants:      []string{"a@example.com"},
		SlotLengthMinutes: 30,
		SpanWeeks:         1,
	})
	require.Error(t, err)
	assert.True(t, IsUpstreamUnavailable(err))
	assert.ErrorIs(t, err, errBackend)
}

type blockingSource struct{}

func (blockingSource) Lookup(ctx context.Context, _ slots.Window, _ []string) (map[string][]slots.Interval, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFindFreeSlots_LookupTimeout(t *testing.T) {
	svc := newTestService(t, blockingSource{}, func(c *Config) {
		c.LookupTimeout = 20 * time.Millisecond
	})

	_, err := svc.FindFreeSlots(context.Background(), Request{
		Participants:      []string{"a@example.com"},
		SlotLengthMinutes: 30,
		SpanWeeks:         1,
	})
	require.Error(t, err)
	assert.Equal(t, KindUpstreamUnavailable, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFindFreeSlots_CallerCancellation(t *testing.T) {
	svc := newTestService(t, blockingSource{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.FindFreeSlots(ctx, Request{
		Participants:      []string{"a@example.com"},
		SlotLengthMinutes: 30,
		SpanWeeks:         1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindFreeSlots_MalformedInterval(t *testing.T) {
	source := NewStaticSource(nil)
	source.SetBusy("a@example.com", slots.Interval{Start: at(6, 12, 0), End: at(6, 11, 0)})
	svc := newTestService(t, source)

	_, err := svc.FindFreeSlots(context.Background(), Request{
		Participants:      []string{"a@example.com"},
		SlotLengthMinutes: 30,
		SpanWeeks:         1,
	})
	require.Error(t, err)
	assert.True(t, IsUpstreamUnavailable(err))
}

func TestFindFreeSlots_EmptyResultIsNotAnError(t *testing.T) {
	source := NewStaticSource(nil)
	source.SetBusy("a@example.com", slots.Interval{Start: at(1, 0, 0), End: at(31, 0, 0)})
	svc := newTestService(t, source)

	res, err := svc.FindFreeSlots(context.Background(), Request{
		Participants:      []string{"a@example.com"},
		SlotLengthMinutes: 30,
		SpanWeeks:         1,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Slots)
	assert.NotEmpty(t, res.SearchID)
}

func TestFindFreeSlots_ConfiguredZone(t *testing.T) {
	berlin := time.FixedZone("CET", 60*60)
	source := NewStaticSource(nil)
	svc := newTestService(t, source, func(c *Config) {
		c.Slots.Location = berlin
	})

	res, err := svc.FindFreeSlots(context.Background(), Request{
		Participants:      []string{"a@example.com"},
		SlotLengthMinutes: 60,
		SpanWeeks:         1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Slots)

	// 08:00 UTC is 09:00 CET.
	assert.True(t, at(6, 8, 0).Equal(res.Slots[0].Start), "got %s", res.Slots[0].Start)
	for _, s := range res.Slots {
		local := s.Start.In(berlin)
		assert.GreaterOrEqual(t, local.Hour(), 9)
		assert.LessOrEqual(t, s.End.In(berlin).Hour(), 17)
	}
}

func TestNewService(t *testing.T) {
	_, err := NewService(nil, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.MinSpanWeeks = 3
	cfg.MaxSpanWeeks = 2
	_, err = NewService(NewStaticSource(nil), cfg)
	assert.ErrorIs(t, err, slots.ErrInvalidArgument)

	cfg = DefaultConfig()
	cfg.Slots.WorkStartHour = 18
	_, err = NewService(NewStaticSource(nil), cfg)
	assert.ErrorIs(t, err, slots.ErrInvalidArgument)

	svc, err := NewService(NewStaticSource(nil), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSlotLengthMinutes, svc.Config().MaxSlotLengthMinutes)
}
