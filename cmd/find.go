package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/teemow/timeslotseeker/internal/config"
	"github.com/teemow/timeslotseeker/internal/finder"
	"github.com/teemow/timeslotseeker/internal/format"
	"github.com/teemow/timeslotseeker/internal/slots"
)

// Output formats of the find command.
const (
	outputTable = "table"
	outputJSON  = "json"
)

type findOptions struct {
	participants string
	slotLength   int
	weeks        int
	output       string
	source       sourceOptions

	// now overrides the clock in tests.
	now func() time.Time
}

// findOutput is the JSON document printed by find --output json.
type findOutput struct {
	SearchID    string            `json:"search_id"`
	WindowStart string            `json:"window_start"`
	WindowEnd   string            `json:"window_end"`
	Slots       []format.SlotJSON `json:"slots"`
}

func newFindCmd() *cobra.Command {
	var opts findOptions

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find common free meeting slots",
		Long: `Find the slots of the given length in which every participant is free.

The search starts at the next slot boundary, or the next day when that is past
the end of the working day, and spans the given number of weeks. Only slots on
a weekday inside working hours are listed.

Examples:
  timeslotseeker find --participants alice@example.com,bob@example.com
  timeslotseeker find --participants alice@example.com --slot-length 60 --weeks 2 --output json
  timeslotseeker find --participants alice@example.com --offline --busy-file busy.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd.Context(), cmd.OutOrStdout(), settings, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.participants, "participants", "p", "", "Comma-separated participant email addresses (required)")
	cmd.Flags().IntVar(&opts.slotLength, "slot-length", 30, "Slot length in minutes")
	cmd.Flags().IntVar(&opts.weeks, "weeks", 1, "Number of weeks to search")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputTable, "Output format: table or json")
	cmd.Flags().BoolVar(&opts.source.offline, "offline", false, "Read busy time from a local fixture instead of Google Calendar")
	cmd.Flags().StringVar(&opts.source.busyFile, "busy-file", "", "JSON busy fixture used with --offline")
	addSearchFlags(cmd.Flags())
	_ = cmd.MarkFlagRequired("participants")

	return cmd
}

func runFind(ctx context.Context, w io.Writer, s config.Settings, opts findOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.output != outputTable && opts.output != outputJSON {
		return fmt.Errorf("unsupported output format: %s (supported: table, json)", opts.output)
	}

	participants := parseCommaSeparatedList(opts.participants)
	if len(participants) == 0 {
		return fmt.Errorf("at least one participant is required")
	}

	cfg, err := s.FinderConfig()
	if err != nil {
		return err
	}
	cfg.SourceName = opts.source.sourceName()
	cfg.Now = opts.now

	factory, err := newSourceFactory(s, opts.source, nil, nil)
	if err != nil {
		return err
	}
	source, err := factory(ctx, s.Account)
	if err != nil {
		return err
	}

	svc, err := finder.NewService(source, cfg)
	if err != nil {
		return err
	}

	res, err := svc.FindFreeSlots(ctx, finder.Request{
		Participants:      participants,
		SlotLengthMinutes: opts.slotLength,
		SpanWeeks:         opts.weeks,
	})
	if err != nil {
		return err
	}

	if opts.output == outputJSON {
		return writeFindJSON(w, res)
	}
	return writeFindTable(w, res, cfg.Slots)
}

func writeFindJSON(w io.Writer, res finder.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(findOutput{
		SearchID:    res.SearchID,
		WindowStart: res.Window.Start.UTC().Format(time.RFC3339),
		WindowEnd:   res.Window.End.UTC().Format(time.RFC3339),
		Slots:       format.JSON(res.Slots),
	})
}

func writeFindTable(w io.Writer, res finder.Result, cfg slots.Config) error {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	if len(res.Slots) == 0 {
		_, err := fmt.Fprintln(w, format.Text(nil, loc))
		return err
	}
	if err := format.Table(w, res.Slots, loc); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d slot(s) between %s and %s (%s)\n", len(res.Slots),
		res.Window.Start.In(loc).Format(format.PreviewLayout),
		res.Window.End.In(loc).Format(format.PreviewLayout),
		loc)
	return err
}
