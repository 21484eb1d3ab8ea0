package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"calsync/internal/models"
)

// NewHTTPClient returns a client that authenticates every request with
// accessToken and gives up after timeout.
func NewHTTPClient(base http.RoundTripper, accessToken string, timeout time.Duration) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   &userAgentTransport{base: base},
		},
	}
}

const userAgent = "calsync/1.0"

type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(r)
}

// TransportError converts a failure that produced no HTTP response into an
// Error, so timeouts surface the same way as rejected calls.
func TransportError(p models.Provider, err error) *Error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &Error{Provider: p, StatusCode: http.StatusGatewayTimeout, Body: err.Error(), Kind: KindUnavailable}
	}
	return &Error{Provider: p, StatusCode: 0, Body: err.Error(), Kind: KindUnavailable}
}
