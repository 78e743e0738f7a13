package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	configFileName = ".prayersync.toml"
	dbFileName     = ".prayersync.db"
)

type Config struct {
	ClientID         string  `toml:"client_id"`
	ClientSecret     string  `toml:"client_secret"`
	CredentialsFile  string  `toml:"credentials_file"`
	AccountName      string  `toml:"account_name"`
	Provider         string  `toml:"provider"`
	CalDAVServer     string  `toml:"caldav_server"`
	CalendarID       string  `toml:"calendar_id"`
	TimeZone         string  `toml:"time_zone"`
	PrayerTimesDir   string  `toml:"prayer_times_dir"`
	ColorID          string  `toml:"color_id"`
	DisableReminders bool    `toml:"disable_reminders"`
	RateLimit        float64 `toml:"rate_limit"`
	VerbosityLevel   int     `toml:"verbosity_level"`
	LogFile          string  `toml:"log_file"`

	Events    map[string]EventSettings `toml:"events"`
	Overrides []Override               `toml:"overrides"`
	CalDAVs   map[string]CalDAVConfig  `toml:"caldav"`
	Schedule  ScheduleConfig           `toml:"schedule"`
}

type CalDAVConfig struct {
	Name      string `toml:"name"`
	ServerURL string `toml:"server_url"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

type ScheduleConfig struct {
	Cron        string `toml:"cron"`
	MonthsAhead int    `toml:"months_ahead"`
}

var configDir string

func defaultConfig() *Config {
	return &Config{
		CredentialsFile: "credentials.json",
		AccountName:     "default",
		Provider:        "google",
		CalendarID:      "primary",
		TimeZone:        "Europe/London",
		PrayerTimesDir:  "prayer-times",
		ColorID:         "1",
		RateLimit:       5,
		VerbosityLevel:  1,
		LogFile:         "calendar_sync.log",
		Schedule: ScheduleConfig{
			Cron:        "0 3 25 * *",
			MonthsAhead: 1,
		},
	}
}

func readConfig(filename string) (*Config, error) {
	// Try first current dir, then `$HOME/.config/prayersync/`
	data, err := os.ReadFile(filename)
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return nil, err
		}
		dir := filepath.Join(home, ".config", "prayersync")
		data, err = os.ReadFile(filepath.Join(dir, filepath.Base(filename)))
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	config := defaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return config, nil
}

// loadConfig reads the config file, falling back to defaults when no file exists
// and the path was not given explicitly, then applies PRAYERSYNC_* overrides.
func loadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = configFileName
	}

	config, err := readConfig(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		config = defaultConfig()
	}
	applyEnv(config)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv("PRAYERSYNC_CLIENT_ID"); v != "" {
		config.ClientID = v
	}
	if v := os.Getenv("PRAYERSYNC_CLIENT_SECRET"); v != "" {
		config.ClientSecret = v
	}
	if v := os.Getenv("PRAYERSYNC_TIME_ZONE"); v != "" {
		config.TimeZone = v
	}
	if v := os.Getenv("PRAYERSYNC_CALENDAR_ID"); v != "" {
		config.CalendarID = v
	}
}

func (c *Config) validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Provider {
	case "google":
	case "caldav":
		if _, ok := c.CalDAVs[c.CalDAVServer]; !ok {
			return fmt.Errorf("CalDAV server '%s' not found in configuration", c.CalDAVServer)
		}
	default:
		return fmt.Errorf("unsupported provider type: %s (must be 'google' or 'caldav')", c.Provider)
	}
	for key := range c.Events {
		if !isKnownEvent(key) {
			return fmt.Errorf("unknown event '%s' in [events]", key)
		}
	}
	for i, o := range c.Overrides {
		if err := o.validate(); err != nil {
			return fmt.Errorf("overrides[%d]: %w", i, err)
		}
	}
	return nil
}

// Location returns the configured timezone. It must be a valid IANA identifier.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return nil, fmt.Errorf("time_zone is not set")
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// resolvePath looks for a relative path in the working directory first and then
// next to the config file.
func resolvePath(name string) string {
	if filepath.IsAbs(name) || configDir == "" {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	candidate := filepath.Join(configDir, name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return name
}

// verbosity_level from the config file:
// 0 - warnings and errors only
// 1 - progress per run and per created event
// 2..4 - debug output (skipped events, token handling)
// 5 - everything
func verbosityToLevel(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity < 5:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// levelSink drops events below level before they reach w.
func levelSink(w io.Writer, level zerolog.Level) zerolog.LevelWriter {
	return &zerolog.FilteredLevelWriter{Writer: zerolog.LevelWriterAdapter{Writer: w}, Level: level}
}

// setupLogging sends human readable output to stderr and a detailed log to the
// configured log file. The returned func closes the log file.
func setupLogging(config *Config, verbose bool) (func(), error) {
	consoleLevel := verbosityToLevel(config.VerbosityLevel)
	if verbose && consoleLevel > zerolog.DebugLevel {
		consoleLevel = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	writers := []io.Writer{levelSink(console, consoleLevel)}
	rootLevel := consoleLevel

	var file *os.File
	if config.LogFile != "" {
		var err error
		file, err = os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, levelSink(file, zerolog.DebugLevel))
		if rootLevel > zerolog.DebugLevel {
			rootLevel = zerolog.DebugLevel
		}
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(rootLevel).
		With().
		Timestamp().
		Logger()

	return func() {
		if file != nil {
			file.Close()
		}
	}, nil
}
