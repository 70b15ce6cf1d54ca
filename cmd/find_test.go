package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/timeslotseeker/internal/config"
)

// Monday 2025-01-06 08:00 UTC: searches start at 09:00 the same day.
func fixedNow() time.Time {
	return time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
}

func writeBusyFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "busy.json")
	fixture := `{"busy": {"alice@example.com": [{"start": "2025-01-06T10:00:00Z", "end": "2025-01-06T11:00:00Z"}]}}`
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))
	return path
}

func offlineFind(t *testing.T, output string) findOptions {
	return findOptions{
		participants: "alice@example.com, bob@example.com",
		slotLength:   60,
		weeks:        1,
		output:       output,
		source:       sourceOptions{offline: true, busyFile: writeBusyFixture(t)},
		now:          fixedNow,
	}
}

func TestFindCmd_WindowStartsAtSlotBoundary(t *testing.T) {
	help := newFindCmd().Long
	assert.Contains(t, help, "next slot boundary")
	assert.NotContains(t, help, "whole hour")

	tests := []struct {
		name       string
		slotLength int
		want       string
	}{
		{name: "half-hour slots", slotLength: 30, want: "2025-01-06T09:30:00Z"},
		{name: "quarter-hour slots", slotLength: 15, want: "2025-01-06T09:15:00Z"},
		{name: "hour slots", slotLength: 60, want: "2025-01-06T10:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := offlineFind(t, outputJSON)
			opts.slotLength = tt.slotLength
			opts.now = func() time.Time { return time.Date(2025, 1, 6, 9, 10, 0, 0, time.UTC) }

			var out bytes.Buffer
			require.NoError(t, runFind(context.Background(), &out, config.Defaults(), opts))

			var got findOutput
			require.NoError(t, json.Unmarshal(out.Bytes(), &got))
			assert.Equal(t, tt.want, got.WindowStart)
		})
	}
}

func TestRunFind_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runFind(context.Background(), &out, config.Defaults(), offlineFind(t, outputJSON)))

	var got findOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))

	assert.NotEmpty(t, got.SearchID)
	assert.Equal(t, "2025-01-06T09:00:00Z", got.WindowStart)
	assert.Equal(t, "2025-01-13T09:00:00Z", got.WindowEnd)
	// Monday loses the busy hour; Tuesday to Friday have eight slots each.
	require.Len(t, got.Slots, 39)
	assert.Equal(t, "2025-01-06T09:00:00Z", got.Slots[0].Start)
	assert.Equal(t, "2025-01-06T11:00:00Z", got.Slots[1].Start)
}

func TestRunFind_Table(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runFind(context.Background(), &out, config.Defaults(), offlineFind(t, outputTable)))

	text := out.String()
	assert.Contains(t, text, "DATE")
	assert.Contains(t, text, "Monday")
	assert.Contains(t, text, "01/06/25")
	assert.Contains(t, text, "39 slot(s) between")
}

func TestRunFind_NoSlots(t *testing.T) {
	opts := offlineFind(t, outputTable)
	opts.slotLength = 480

	// An eight hour slot never fits a seven hour working day.
	s := config.Defaults()
	s.WorkEndHour = 16

	var out bytes.Buffer
	require.NoError(t, runFind(context.Background(), &out, s, opts))
	assert.Contains(t, out.String(), "No common free slots found.")
}

func TestRunFind_Errors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*findOptions)
		wantErr string
	}{
		{
			name:    "unsupported output",
			modify:  func(o *findOptions) { o.output = "xml" },
			wantErr: "unsupported output format: xml",
		},
		{
			name:    "no participants",
			modify:  func(o *findOptions) { o.participants = " , " },
			wantErr: "at least one participant is required",
		},
		{
			name:    "slot length out of range",
			modify:  func(o *findOptions) { o.slotLength = 3 },
			wantErr: "slot length must be between 5 and 480 minutes",
		},
		{
			name:    "too many weeks",
			modify:  func(o *findOptions) { o.weeks = 5 },
			wantErr: "weeks must be between 1 and 4",
		},
		{
			name:    "missing fixture",
			modify:  func(o *findOptions) { o.source.busyFile = filepath.Join(t.TempDir(), "missing.json") },
			wantErr: "failed to load busy fixture",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := offlineFind(t, outputJSON)
			tt.modify(&opts)

			var out bytes.Buffer
			err := runFind(context.Background(), &out, config.Defaults(), opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, out.String())
		})
	}
}
