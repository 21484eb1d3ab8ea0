package token

import (
	"fmt"

	"calsync/internal/models"
)

// AuthError means the integration has no refresh token. It can only be
// fixed by running the authorization flow again.
type AuthError struct {
	CredentialID string
	Provider     models.Provider
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s integration %s has no refresh token: reconnect your calendar", e.Provider, e.CredentialID)
}

// RefreshError means the refresh exchange was rejected or its result could
// not be persisted. StatusCode is zero when no response was received.
type RefreshError struct {
	Provider   models.Provider
	StatusCode int
	Err        error
}

func (e *RefreshError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to refresh %s token (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to refresh %s token: %v", e.Provider, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
