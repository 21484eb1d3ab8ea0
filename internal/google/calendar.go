package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"calsync/internal/models"
	"calsync/internal/provider"
)

const defaultCalendarID = "primary"

var _ provider.Adapter = (*CalendarClient)(nil)

// CalendarClient writes events to one Google calendar.
type CalendarClient struct {
	service    *calendar.Service
	calendarID string
	logger     *slog.Logger
}

// NewClient creates a Google Calendar client around an already authenticated
// HTTP client. An empty calendarID targets the account's primary calendar.
func NewClient(ctx context.Context, logger *slog.Logger, httpClient *http.Client, calendarID string, opts ...option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = defaultCalendarID
	}
	return &CalendarClient{service: service, calendarID: calendarID, logger: logger}, nil
}

// Create inserts a new event and returns its Google event ID.
func (c *CalendarClient) Create(ctx context.Context, event models.CalendarEvent) (string, error) {
	created, err := c.service.Events.Insert(c.calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", toProviderError(err)
	}
	c.logger.Debug("Inserted Google event", "calendarID", c.calendarID, "externalID", created.Id)
	return created.Id, nil
}

// Update replaces an existing event.
func (c *CalendarClient) Update(ctx context.Context, event models.CalendarEvent, externalID string) (string, error) {
	updated, err := c.service.Events.Update(c.calendarID, externalID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", toProviderError(err)
	}
	c.logger.Debug("Updated Google event", "calendarID", c.calendarID, "externalID", updated.Id)
	return updated.Id, nil
}

// Delete removes an event.
func (c *CalendarClient) Delete(ctx context.Context, externalID string) error {
	if err := c.service.Events.Delete(c.calendarID, externalID).Context(ctx).Do(); err != nil {
		return toProviderError(err)
	}
	c.logger.Debug("Deleted Google event", "calendarID", c.calendarID, "externalID", externalID)
	return nil
}

// toGoogleEvent converts the neutral event to the calendar/v3 wire shape.
func toGoogleEvent(event models.CalendarEvent) *calendar.Event {
	return &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: event.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
			TimeZone: event.TimeZone,
		},
	}
}

func toProviderError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Body
		if body == "" {
			body = apiErr.Message
		}
		return provider.NewError(models.ProviderGoogle, apiErr.Code, body)
	}
	return provider.TransportError(models.ProviderGoogle, err)
}

// OAuthConfig returns the OAuth2 config used for both the authorization flow
// and token refreshes.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if redirectURL == "" {
		redirectURL = "urn:ietf:wg:oauth:2.0:oob"
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
}
