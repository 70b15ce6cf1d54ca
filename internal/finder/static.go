package finder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/teemow/timeslotseeker/internal/slots"
)

// StaticSource is an in-memory BusySource. It serves the offline mode of the
// CLI and stands in for the calendar API in tests.
type StaticSource struct {
	mu    sync.Mutex
	busy  map[string][]slots.Interval
	err   error
	calls []StaticCall
}

// StaticCall records one Lookup made against a StaticSource.
type StaticCall struct {
	Window       slots.Window
	Participants []string
}

// NewStaticSource returns a source serving busy. Participant keys match
// case-insensitively. Lookups for unknown participants return no busy time.
func NewStaticSource(busy map[string][]slots.Interval) *StaticSource {
	folded := make(map[string][]slots.Interval, len(busy))
	for participant, intervals := range busy {
		key := participantKey(participant)
		folded[key] = append(folded[key], intervals...)
	}
	return &StaticSource{busy: folded}
}

// SetBusy replaces the busy intervals of one participant.
func (s *StaticSource) SetBusy(participant string, intervals ...slots.Interval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy[participantKey(participant)] = intervals
}

// FailWith makes every subsequent Lookup return err. A nil err clears it.
func (s *StaticSource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the lookups made so far.
func (s *StaticSource) Calls() []StaticCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StaticCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Lookup returns the stored intervals of each participant that overlap window,
// keyed by the spelling the caller asked for.
func (s *StaticSource) Lookup(ctx context.Context, window slots.Window, participants []string) (map[string][]slots.Interval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, StaticCall{
		Window:       window,
		Participants: append([]string(nil), participants...),
	})
	if s.err != nil {
		return nil, s.err
	}

	out := make(map[string][]slots.Interval, len(participants))
	for _, p := range participants {
		for _, iv := range s.busy[participantKey(p)] {
			if iv.End.Before(window.Start) || iv.Start.After(window.End) {
				continue
			}
			out[p] = append(out[p], iv)
		}
	}
	return out, nil
}

func participantKey(participant string) string {
	return strings.ToLower(strings.TrimSpace(participant))
}

// staticFile is the JSON layout read by LoadStaticSource:
//
//	{"busy": {"alice@example.com": [{"start": "2025-01-06T10:00:00Z", "end": "2025-01-06T11:00:00Z"}]}}
type staticFile struct {
	Busy map[string][]staticInterval `json:"busy"`
}

type staticInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ReadStaticSource decodes a JSON busy fixture from r.
func ReadStaticSource(r io.Reader) (*StaticSource, error) {
	var f staticFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode busy fixture: %w", err)
	}

	busy := make(map[string][]slots.Interval, len(f.Busy))
	for participant, intervals := range f.Busy {
		for i, iv := range intervals {
			if iv.End.Before(iv.Start) {
				return nil, fmt.Errorf("busy interval %d of %s ends before it starts", i, participant)
			}
			busy[participant] = append(busy[participant], slots.Interval{Start: iv.Start, End: iv.End})
		}
	}
	return NewStaticSource(busy), nil
}

// LoadStaticSource reads a JSON busy fixture from path.
func LoadStaticSource(path string) (*StaticSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open busy fixture: %w", err)
	}
	defer f.Close()

	return ReadStaticSource(f)
}
