package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

var errMissingCredentials = errors.New("missing OAuth client credentials")

// loadOAuthConfig reads the OAuth client downloaded from the Cloud Console. When
// no credentials file exists, client_id/client_secret from the config are used.
func loadOAuthConfig(config *Config) (*oauth2.Config, error) {
	path := resolvePath(config.CredentialsFile)
	data, err := os.ReadFile(path)
	if err == nil {
		oauthConfig, err := google.ConfigFromJSON(data, calendar.CalendarScope)
		if err != nil {
			return nil, fmt.Errorf("invalid credentials file %s: %w", path, err)
		}
		return oauthConfig, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("%w: %s not found and client_id/client_secret are not set", errMissingCredentials, path)
	}
	return &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarScope},
	}, nil
}

// getClient returns an authorized HTTP client for the account, running the
// consent flow when no usable token is stored. Refreshed tokens are saved.
func getClient(ctx context.Context, oauthConfig *oauth2.Config, store *Store, accountName string) (*http.Client, error) {
	token, err := store.LoadToken(accountName)
	if errors.Is(err, sql.ErrNoRows) {
		log.Info().Str("account", accountName).Msg("No token found, obtaining a new one")
		return authorize(ctx, oauthConfig, store, accountName)
	}
	if err != nil {
		return nil, fmt.Errorf("error retrieving token from database: %w", err)
	}

	newToken, err := oauthConfig.TokenSource(ctx, token).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			log.Warn().Str("account", accountName).Msg("Token expired or revoked, obtaining a new one")
			return authorize(ctx, oauthConfig, store, accountName)
		}
		return nil, fmt.Errorf("error refreshing token: %w", err)
	}

	if newToken.AccessToken != token.AccessToken {
		log.Debug().Str("account", accountName).Msg("Token refreshed")
		if err := store.SaveToken(accountName, newToken); err != nil {
			log.Error().Err(err).Msg("Failed to save credentials")
		}
	}

	return oauthConfig.Client(ctx, newToken), nil
}

func authorize(ctx context.Context, oauthConfig *oauth2.Config, store *Store, accountName string) (*http.Client, error) {
	token, err := getTokenFromWeb(ctx, oauthConfig, os.Stderr)
	if err != nil {
		return nil, err
	}
	if err := store.SaveToken(accountName, token); err != nil {
		log.Error().Err(err).Msg("Failed to save credentials")
	}
	log.Info().Str("account", accountName).Msg("Authentication successful")
	return oauthConfig.Client(ctx, token), nil
}

// getTokenFromWeb runs the installed-app flow with a loopback redirect on a
// random local port.
func getTokenFromWeb(ctx context.Context, oauthConfig *oauth2.Config, out io.Writer) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start local callback listener: %w", err)
	}

	flow := *oauthConfig
	flow.RedirectURL = fmt.Sprintf("http://%s/", listener.Addr().String())

	state, err := randomState()
	if err != nil {
		listener.Close()
		return nil, err
	}

	codes := make(chan string, 1)
	errs := make(chan error, 1)
	server := &http.Server{
		Handler:           callbackHandler(state, codes, errs),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go server.Serve(listener)
	defer server.Close()

	authURL := flow.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Go to the following link in your browser to authorize access:\n%v\n", authURL)

	select {
	case code := <-codes:
		token, err := flow.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
		}
		return token, nil
	case err := <-errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func callbackHandler(state string, codes chan<- string, errs chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization failed: "+e, http.StatusBadRequest)
			select {
			case errs <- fmt.Errorf("authorization failed: %s", e):
			default:
			}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		select {
		case codes <- code:
		default:
		}
	})
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to Google Calendar and store the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		oauthConfig, err := loadOAuthConfig(appConfig)
		if err != nil {
			return err
		}

		store, err := openStore(dbFileName)
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := authorize(cmd.Context(), oauthConfig, store, appConfig.AccountName); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Token stored for account %s\n", appConfig.AccountName)
		return nil
	},
}
