package models

import (
	"fmt"
	"time"
)

// Provider identifies an external calendar system.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
)

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderGoogle, ProviderOutlook:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// Credential is a stored OAuth integration binding one account to one
// provider calendar.
type Credential struct {
	ID           string
	AccountID    string
	Provider     Provider
	CalendarID   string
	AccessToken  string
	RefreshToken string // empty means the integration must be re-authorized
	Expiry       time.Time
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
