package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/timeslotseeker/internal/slots"
)

func hourSlots(start time.Time, n int) []slots.Slot {
	out := make([]slots.Slot, n)
	for i := range out {
		s := start.Add(time.Duration(i) * time.Hour)
		out[i] = slots.Slot{Start: s, End: s.Add(time.Hour)}
	}
	return out
}

var monday = time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC)

func TestJSON(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	found := []slots.Slot{{Start: monday.In(berlin), End: monday.Add(30 * time.Minute).In(berlin)}}

	got := JSON(found)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-01-06T14:00:00Z", got[0].Start)
	assert.Equal(t, "2025-01-06T14:30:00Z", got[0].End)

	raw, err := json.Marshal(JSON(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestPreview(t *testing.T) {
	east := time.FixedZone("EST", -5*3600)
	found := hourSlots(monday, 12)

	rows := Preview(found, east, 0)
	require.Len(t, rows, DefaultPreviewLimit)
	assert.Equal(t, PreviewRow{
		UTCStart:   "2025-01-06T14:00:00Z",
		UTCEnd:     "2025-01-06T15:00:00Z",
		LocalStart: "2025-01-06 09:00 AM",
		LocalEnd:   "2025-01-06 10:00 AM",
	}, rows[0])

	assert.Len(t, Preview(found, east, 3), 3)
	assert.Len(t, Preview(found[:2], east, 10), 2)
	assert.Empty(t, Preview(nil, east, 10))
}

func TestRows(t *testing.T) {
	rows := Rows(hourSlots(monday.Add(-2*time.Hour), 1), time.UTC)
	require.Len(t, rows, 1)
	assert.Equal(t, TableRow{Date: "01/06/25", Day: "Monday", Time: "12:00 PM - 01:00 PM"}, rows[0])
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, hourSlots(monday, 2), time.UTC))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"DATE", "DAY", "TIME"}, strings.Fields(lines[0]))
	assert.Contains(t, lines[1], "01/06/25")
	assert.Contains(t, lines[1], "02:00 PM - 03:00 PM")
	assert.Contains(t, lines[2], "03:00 PM - 04:00 PM")
}

func TestText(t *testing.T) {
	assert.Equal(t, "No common free slots found.", Text(nil, time.UTC))
	assert.Equal(t,
		"1. Monday 01/06/25 02:00 PM - 03:00 PM\n2. Monday 01/06/25 03:00 PM - 04:00 PM\n",
		Text(hourSlots(monday, 2), time.UTC))
}
