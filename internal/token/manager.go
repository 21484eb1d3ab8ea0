// Package token keeps integration access tokens fresh.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"calsync/internal/models"
	"calsync/internal/obs"
)

// ExpiryMargin is how close to expiry a token may get before it is refreshed.
const ExpiryMargin = 5 * time.Minute

// defaultLifetime is assumed when a provider omits expires_in.
const defaultLifetime = time.Hour

// Store persists refreshed tokens.
type Store interface {
	UpdateTokens(ctx context.Context, credentialID, accessToken, refreshToken string, expiry time.Time) error
}

// Manager refreshes tokens through the provider-specific OAuth2 config.
type Manager struct {
	logger     *slog.Logger
	store      Store
	configs    map[models.Provider]*oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewManager creates a Manager. configs holds one OAuth2 config per provider;
// httpClient carries the timeout used for the token endpoint.
func NewManager(logger *slog.Logger, store Store, configs map[models.Provider]*oauth2.Config, httpClient *http.Client) *Manager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Manager{
		logger:     logger,
		store:      store,
		configs:    configs,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// EnsureValidToken returns an access token good for at least ExpiryMargin.
// A refreshed token is written to the store before it is returned, and cred
// is updated in place to match.
func (m *Manager) EnsureValidToken(ctx context.Context, cred *models.Credential) (string, error) {
	if cred.AccessToken != "" && cred.Expiry.After(m.now().Add(ExpiryMargin)) {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		return "", &AuthError{CredentialID: cred.ID, Provider: cred.Provider}
	}

	m.logger.Info("Refreshing access token", "provider", cred.Provider, "integrationID", cred.ID, "expiry", cred.Expiry)
	tok, err := m.refresh(ctx, cred)
	if err != nil {
		obs.ObserveRefresh(string(cred.Provider), false)
		return "", err
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = m.now().Add(defaultLifetime)
	}
	rotated := tok.RefreshToken != "" && tok.RefreshToken != cred.RefreshToken
	newRefresh := ""
	if rotated {
		newRefresh = tok.RefreshToken
	}

	if err := m.store.UpdateTokens(ctx, cred.ID, tok.AccessToken, newRefresh, expiry); err != nil {
		obs.ObserveRefresh(string(cred.Provider), false)
		return "", &RefreshError{Provider: cred.Provider, Err: fmt.Errorf("persist refreshed token: %w", err)}
	}
	obs.ObserveRefresh(string(cred.Provider), true)

	cred.AccessToken = tok.AccessToken
	cred.Expiry = expiry
	if rotated {
		cred.RefreshToken = newRefresh
	}
	m.logger.Info("Access token refreshed", "provider", cred.Provider, "integrationID", cred.ID, "expiry", expiry, "rotated", rotated)
	return tok.AccessToken, nil
}

// refresh performs the grant_type=refresh_token exchange for the
// credential's provider.
func (m *Manager) refresh(ctx context.Context, cred *models.Credential) (*oauth2.Token, error) {
	conf, ok := m.configs[cred.Provider]
	if !ok || conf == nil {
		return nil, &RefreshError{Provider: cred.Provider, Err: fmt.Errorf("provider %q is not configured", cred.Provider)}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		rerr := &RefreshError{Provider: cred.Provider, Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			rerr.StatusCode = retrieveErr.Response.StatusCode
		}
		return nil, rerr
	}
	if tok.AccessToken == "" {
		return nil, &RefreshError{Provider: cred.Provider, Err: errors.New("token endpoint returned no access token")}
	}
	return tok, nil
}
