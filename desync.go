package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/api/googleapi"
)

var (
	desyncStartDate string
	desyncEndDate   string
)

var desyncCmd = &cobra.Command{
	Use:   "desync",
	Short: "Delete the events this tool published, as recorded in the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, limited, err := optionalRange(desyncStartDate, desyncEndDate)
		if err != nil {
			return err
		}

		store, err := openStore(dbFileName)
		if err != nil {
			return err
		}
		defer store.Close()

		published, err := store.Published(appConfig.CalendarID, start, end, limited)
		if err != nil {
			return fmt.Errorf("error retrieving published events from database: %w", err)
		}
		if len(published) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to desync")
			return nil
		}

		ctx := cmd.Context()
		provider, err := NewCalendarFactory(appConfig, store).ConfiguredProvider(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "🚀 Starting calendar desynchronization...")
		deleted, failed := desyncEvents(ctx, provider, store, published)
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %d events removed\n", deleted)
		if failed > 0 {
			return fmt.Errorf("%d events could not be deleted", failed)
		}
		return nil
	},
}

func init() {
	desyncCmd.Flags().StringVar(&desyncStartDate, "start-date", "", "first day to remove (DD/MM/YYYY)")
	desyncCmd.Flags().StringVar(&desyncEndDate, "end-date", "", "last day to remove (DD/MM/YYYY)")
}

// desyncEvents deletes published events from the calendar and the ledger. Events
// already gone from the calendar are dropped from the ledger too.
func desyncEvents(ctx context.Context, provider CalendarProvider, store *Store, published []PublishedEvent) (deleted, failed int) {
	for _, p := range published {
		err := provider.DeleteEvent(ctx, p.CalendarID, p.EventID)
		switch {
		case err == nil:
			log.Info().Str("event", p.Summary).Str("date", p.EventDate).Msg("🗑 Event deleted")
		case isNotFound(err):
			log.Warn().Str("event_id", p.EventID).Msg("Event not found in calendar")
		default:
			log.Error().Err(err).Str("event_id", p.EventID).Msg("Error deleting event")
			failed++
			continue
		}

		if err := store.DeletePublished(p.CalendarID, p.EventID); err != nil {
			log.Error().Err(err).Str("event_id", p.EventID).Msg("Error deleting event from database")
			failed++
			continue
		}
		deleted++
	}
	return deleted, failed
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	msg := err.Error()
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}
