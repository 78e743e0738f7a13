package main

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"
)

// CalendarFactory handles creation of calendar providers
type CalendarFactory struct {
	config *Config
	store  *Store

	// Test hooks. httpClient skips the OAuth flow, clientOptions point the
	// Google client at a fake server.
	httpClient    *http.Client
	clientOptions []option.ClientOption
}

// NewCalendarFactory creates a new calendar factory instance
func NewCalendarFactory(config *Config, store *Store) *CalendarFactory {
	return &CalendarFactory{
		config: config,
		store:  store,
	}
}

// CreateCalendarProvider creates a specific calendar provider. Credentials are
// checked before any network call is made.
func (cf *CalendarFactory) CreateCalendarProvider(ctx context.Context, providerType, accountName, serverName string) (CalendarProvider, error) {
	switch providerType {
	case "google":
		client := cf.httpClient
		if client == nil {
			oauthConfig, err := loadOAuthConfig(cf.config)
			if err != nil {
				return nil, err
			}
			client, err = getClient(ctx, oauthConfig, cf.store, accountName)
			if err != nil {
				return nil, err
			}
		}
		return NewGoogleCalendarProvider(ctx, client, cf.clientOptions...)

	case "caldav":
		if serverName == "" {
			return nil, fmt.Errorf("no server name provided for CalDAV provider")
		}
		server, ok := cf.config.CalDAVs[serverName]
		if !ok {
			return nil, fmt.Errorf("CalDAV server '%s' not found in configuration", serverName)
		}
		return NewCalDAVProvider(ctx, server.ServerURL, server.Username, server.Password)

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// ConfiguredProvider builds the provider named in the config file.
func (cf *CalendarFactory) ConfiguredProvider(ctx context.Context) (CalendarProvider, error) {
	return cf.CreateCalendarProvider(ctx, cf.config.Provider, cf.config.AccountName, cf.config.CalDAVServer)
}

// ValidateCalendarAccess checks if the provided calendar ID is accessible
func (cf *CalendarFactory) ValidateCalendarAccess(ctx context.Context, provider CalendarProvider, calendarID string) error {
	if err := provider.GetCalendar(ctx, calendarID); err != nil {
		return fmt.Errorf("calendar '%s' is not accessible: %w", calendarID, err)
	}
	return nil
}
