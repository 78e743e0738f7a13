package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cleanupStartDate string
	cleanupEndDate   string
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete every event carrying the prayersync marker, even ones missing from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := appConfig.Location()
		if err != nil {
			return err
		}

		start, end, limited, err := optionalRange(cleanupStartDate, cleanupEndDate)
		if err != nil {
			return err
		}
		if !limited {
			start, end = cleanupRange(time.Now(), loc)
		}

		store, err := openStore(dbFileName)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		provider, err := NewCalendarFactory(appConfig, store).ConfiguredProvider(ctx)
		if err != nil {
			return err
		}

		timeMin := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		timeMax := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		deleted, err := cleanupCalendar(ctx, provider, store, appConfig.CalendarID, timeMin, timeMax)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %d events cleaned up\n", deleted)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupStartDate, "start-date", "", "first day to scan (DD/MM/YYYY)")
	cleanupCmd.Flags().StringVar(&cleanupEndDate, "end-date", "", "last day to scan (DD/MM/YYYY)")
}

// cleanupRange defaults to this month and the next, as seen in loc.
func cleanupRange(now time.Time, loc *time.Location) (time.Time, time.Time) {
	start := firstOfMonth(now.In(loc))
	return start, lastOfMonth(start.AddDate(0, 1, 0))
}

func isOurEvent(event *Event) bool {
	return event.Key != "" || strings.Contains(event.Description, eventMarker)
}

func cleanupCalendar(ctx context.Context, provider CalendarProvider, store *Store, calendarID string, timeMin, timeMax time.Time) (int, error) {
	events, err := provider.ListEvents(ctx, calendarID, timeMin, timeMax)
	if err != nil {
		return 0, fmt.Errorf("error retrieving events: %w", err)
	}

	deleted := 0
	for _, event := range events {
		if !isOurEvent(event) || event.Status == "cancelled" {
			continue
		}
		if err := provider.DeleteEvent(ctx, calendarID, event.ID); err != nil && !isNotFound(err) {
			return deleted, fmt.Errorf("error deleting event %s: %w", event.ID, err)
		}
		if store != nil {
			if err := store.DeletePublished(calendarID, event.ID); err != nil {
				log.Warn().Err(err).Str("event_id", event.ID).Msg("Error deleting event from database")
			}
		}
		log.Debug().Str("event", event.Summary).Time("start", event.Start).Msg("Event cleaned up")
		deleted++
	}
	return deleted, nil
}
