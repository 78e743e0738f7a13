package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show how many events were published per calendar and month",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(dbFileName)
		if err != nil {
			return err
		}
		defer store.Close()

		return listPublished(store, cmd.OutOrStdout())
	},
}

func listPublished(store *Store, out io.Writer) error {
	counts, err := store.PublishedSummary()
	if err != nil {
		return fmt.Errorf("error retrieving published events from database: %w", err)
	}
	if len(counts) == 0 {
		fmt.Fprintln(out, "📋 No prayer times published yet")
		return nil
	}

	fmt.Fprintln(out, "📋 Here's what has been published:")
	for _, c := range counts {
		fmt.Fprintf(out, "  👤 %s (📅 %s) %s - %d\n", c.AccountName, c.CalendarID, c.Month, c.NumEvents)
	}
	return nil
}
