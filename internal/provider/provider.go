// Package provider defines the contract shared by the calendar provider
// adapters and the structured error they report.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"calsync/internal/models"
)

// Adapter issues mutations against one provider's calendar.
type Adapter interface {
	Create(ctx context.Context, event models.CalendarEvent) (string, error)
	Update(ctx context.Context, event models.CalendarEvent, externalID string) (string, error)
	Delete(ctx context.Context, externalID string) error
}

// Kind classifies a provider failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAuth
	KindRateLimited
	KindInvalid
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalid:
		return "invalid"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// KindForStatus maps an HTTP status code to a Kind. Gone is treated as not
// found since Google answers 410 for events that were already deleted.
func KindForStatus(code int) Kind {
	switch {
	case code == http.StatusNotFound, code == http.StatusGone:
		return KindNotFound
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 400 && code < 500:
		return KindInvalid
	case code >= 500, code == 0:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// Error is a rejected remote call.
type Error struct {
	Provider   models.Provider
	StatusCode int
	Body       string
	Kind       Kind
}

// NewError builds an Error with its Kind derived from the status code.
func NewError(p models.Provider, statusCode int, body string) *Error {
	return &Error{Provider: p, StatusCode: statusCode, Body: body, Kind: KindForStatus(statusCode)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s calendar request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a provider Error for a missing remote event.
func IsNotFound(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindNotFound
}
