package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/timeslotseeker/internal/format"
	"github.com/teemow/timeslotseeker/internal/slots"
)

// Simulated free interval, local time of day.
const (
	simulateStartHour   = 16
	simulateStartMinute = 15
	simulateLength      = time.Hour
)

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run the work-hours rule on a simulated free interval",
		Long: `Slice a free interval from 16:15 to 17:15 local time today into 60-minute
slots and print the slots that pass the weekday and working-hours rules.

No calendar is queried. With the default 09:00-17:00 working day the only
candidate ends after 17:00, so no slot is listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := settings.SlotsConfig()
			if err != nil {
				return err
			}
			_, err = runSimulate(cmd.OutOrStdout(), cfg, time.Now())
			return err
		},
	}
}

// runSimulate slices the simulated interval of the day containing now and
// prints the surviving slots.
func runSimulate(w io.Writer, cfg slots.Config, now time.Time) ([]slots.Slot, error) {
	local := cfg.Local(now)
	start := time.Date(local.Year(), local.Month(), local.Day(),
		simulateStartHour, simulateStartMinute, 0, 0, local.Location())
	free := slots.Interval{Start: start.UTC(), End: start.Add(simulateLength).UTC()}

	found := slots.Slice(cfg, []slots.Interval{free}, simulateLength)

	loc := local.Location()
	if _, err := fmt.Fprintf(w, "Simulated free interval: %s to %s (%s)\n",
		free.Start.In(loc).Format(format.PreviewLayout),
		free.End.In(loc).Format(format.ClockLayout),
		loc); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintln(w, format.Text(found, loc)); err != nil {
		return nil, err
	}
	return found, nil
}
