package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "time/tzdata"
)

var (
	appConfig  *Config
	configPath string
	verbose    bool
	closeLog   = func() {}
)

var rootCmd = &cobra.Command{
	Use:           "prayersync",
	Short:         "Publish mosque prayer times to Google Calendar",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		config, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		closer, err := setupLogging(config, verbose)
		if err != nil {
			return err
		}
		appConfig = config
		closeLog = closer
		return nil
	},
	// Without a subcommand behave like `sync` and ask for the dates.
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default .prayersync.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug output")
	rootCmd.AddCommand(syncCmd, authCmd, listCmd, desyncCmd, cleanupCmd, exportCmd, serveCmd)
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	closeLog()
	if err != nil {
		log.Error().Err(err).Msg("❌ prayersync failed")
		os.Exit(1)
	}
}
