package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	exportStartDate string
	exportEndDate   string
	exportOutput    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the planned prayer times to an iCalendar file without touching any calendar",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := resolveRange(exportStartDate, exportEndDate, cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}

		planner, err := NewPlanner(appConfig)
		if err != nil {
			return err
		}
		tt, err := OpenTimetable(resolvePath(appConfig.PrayerTimesDir))
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOutput, err)
			}
			defer f.Close()
			out = f
		}

		n, err := exportICS(out, tt, planner, start, end)
		if err != nil {
			return err
		}
		log.Info().Int("events", n).Str("file", exportOutput).Msg("📤 Export finished")
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportStartDate, "start-date", "", "first day to export (DD/MM/YYYY)")
	exportCmd.Flags().StringVar(&exportEndDate, "end-date", "", "last day to export (DD/MM/YYYY)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "prayer-times.ics", "output file, - for stdout")
}

// exportICS plans [start, end] and encodes every event as a VEVENT.
func exportICS(w io.Writer, tt *Timetable, planner *Planner, start, end time.Time) (int, error) {
	cal := newICalendar()
	setRawProp(cal.Props, "X-WR-TIMEZONE", planner.Location().String())

	var vevents []*ical.Component
	var first, last time.Time
	_, err := planRange(tt, planner, start, end, func(day time.Time, events []*Event) error {
		for _, event := range events {
			uid := icalUIDPrefix + uuid.NewString()
			vevents = append(vevents, newICalEvent(uid, event).Component)
			if first.IsZero() || event.Start.Before(first) {
				first = event.Start
			}
			if event.End.After(last) {
				last = event.End
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(vevents) > 0 {
		if tz := newVTimezone(planner.Location(), first, last); tz != nil {
			cal.Children = append(cal.Children, tz)
		}
	}
	cal.Children = append(cal.Children, vevents...)
	count := len(vevents)

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return 0, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return count, nil
}
