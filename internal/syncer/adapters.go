package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/option"

	"calsync/internal/google"
	"calsync/internal/models"
	"calsync/internal/outlook"
	"calsync/internal/provider"
)

// AdapterOptions configures the adapters built by NewAdapterFactory.
type AdapterOptions struct {
	Timeout        time.Duration     // per remote call
	Transport      http.RoundTripper // nil means http.DefaultTransport
	GoogleEndpoint string            // overrides the Calendar API base URL
	OutlookBaseURL string            // overrides the Graph base URL
}

// NewAdapterFactory returns the factory that picks the adapter for a
// credential's provider.
func NewAdapterFactory(logger *slog.Logger, opts AdapterOptions) AdapterFactory {
	return func(ctx context.Context, cred *models.Credential, accessToken string) (provider.Adapter, error) {
		httpClient := provider.NewHTTPClient(opts.Transport, accessToken, opts.Timeout)
		switch cred.Provider {
		case models.ProviderGoogle:
			var gopts []option.ClientOption
			if opts.GoogleEndpoint != "" {
				gopts = append(gopts, option.WithEndpoint(opts.GoogleEndpoint))
			}
			return google.NewClient(ctx, logger.With("provider", models.ProviderGoogle), httpClient, cred.CalendarID, gopts...)
		case models.ProviderOutlook:
			return outlook.NewClient(logger.With("provider", models.ProviderOutlook), httpClient, opts.OutlookBaseURL, cred.CalendarID), nil
		default:
			return nil, fmt.Errorf("unsupported provider %q", cred.Provider)
		}
	}
}
