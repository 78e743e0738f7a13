package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const installedCredentials = `{"installed":{
	"client_id":"id.apps.googleusercontent.com",
	"client_secret":"secret",
	"redirect_uris":["http://localhost"],
	"auth_uri":"https://accounts.google.com/o/oauth2/auth",
	"token_uri":"https://oauth2.googleapis.com/token"}}`

func configWithCredentials(t *testing.T, content string) *Config {
	t.Helper()
	config := defaultConfig()
	config.CredentialsFile = filepath.Join(t.TempDir(), "credentials.json")
	if content != "" {
		require.NoError(t, os.WriteFile(config.CredentialsFile, []byte(content), 0o600))
	}
	return config
}

func TestLoadOAuthConfigFromFile(t *testing.T) {
	oauthConfig, err := loadOAuthConfig(configWithCredentials(t, installedCredentials))
	require.NoError(t, err)
	assert.Equal(t, "id.apps.googleusercontent.com", oauthConfig.ClientID)
	assert.Equal(t, "secret", oauthConfig.ClientSecret)
	assert.Contains(t, oauthConfig.Scopes, "https://www.googleapis.com/auth/calendar")
}

func TestLoadOAuthConfigFromSettings(t *testing.T) {
	config := configWithCredentials(t, "")
	config.ClientID = "id"
	config.ClientSecret = "secret"

	oauthConfig, err := loadOAuthConfig(config)
	require.NoError(t, err)
	assert.Equal(t, "id", oauthConfig.ClientID)
	assert.Equal(t, google.Endpoint, oauthConfig.Endpoint)
}

func TestLoadOAuthConfigMissing(t *testing.T) {
	_, err := loadOAuthConfig(configWithCredentials(t, ""))
	assert.ErrorIs(t, err, errMissingCredentials)
}

func TestLoadOAuthConfigInvalid(t *testing.T) {
	_, err := loadOAuthConfig(configWithCredentials(t, "{not json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errMissingCredentials)
}

func TestMissingCredentialsFailBeforeAnyAPICall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	for _, content := range []string{"", "{not json"} {
		factory := NewCalendarFactory(configWithCredentials(t, content), nil)
		factory.clientOptions = []option.ClientOption{option.WithEndpoint(srv.URL + "/")}

		_, err := factory.ConfiguredProvider(context.Background())
		assert.Error(t, err)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGetClientUsesStoredToken(t *testing.T) {
	f := newSyncFixture(t, nil)
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
	require.NoError(t, f.store.SaveToken("default", token))

	oauthConfig, err := loadOAuthConfig(configWithCredentials(t, installedCredentials))
	require.NoError(t, err)

	client, err := getClient(context.Background(), oauthConfig, f.store, "default")
	require.NoError(t, err)
	assert.NotNil(t, client)

	stored, err := f.store.LoadToken("default")
	require.NoError(t, err)
	assert.Equal(t, "access", stored.AccessToken)
}

func TestCallbackHandler(t *testing.T) {
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	handler := callbackHandler("xyz", codes, errs)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?state=wrong&code=c", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, codes)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?state=xyz&error=access_denied", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, <-errs, "access_denied")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?state=xyz&code=4/abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, codes, 1)
	assert.Equal(t, "4/abc", <-codes)
}

func TestRandomState(t *testing.T) {
	a, err := randomState()
	require.NoError(t, err)
	b, err := randomState()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
