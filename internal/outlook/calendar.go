// Package outlook writes events to a Microsoft 365 calendar through the
// Graph REST API.
package outlook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"calsync/internal/models"
	"calsync/internal/provider"
)

const (
	GraphBaseURL      = "https://graph.microsoft.com/v1.0"
	outlookTimeFormat = "2006-01-02T15:04:05"
)

var _ provider.Adapter = (*CalendarClient)(nil)

// CalendarClient writes events to one Outlook calendar.
type CalendarClient struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
	logger     *slog.Logger
}

// NewClient creates an Outlook client. An empty calendarID targets the
// user's default calendar; an empty baseURL targets Graph v1.0.
func NewClient(logger *slog.Logger, httpClient *http.Client, baseURL, calendarID string) *CalendarClient {
	if baseURL == "" {
		baseURL = GraphBaseURL
	}
	return &CalendarClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		calendarID: calendarID,
		logger:     logger,
	}
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphEvent struct {
	ID       string         `json:"id,omitempty"`
	Subject  string         `json:"subject"`
	Body     graphBody      `json:"body"`
	Start    graphDateTime  `json:"start"`
	End      graphDateTime  `json:"end"`
	Location *graphLocation `json:"location,omitempty"`
}

// Create posts a new event and returns its Graph event ID.
func (c *CalendarClient) Create(ctx context.Context, event models.CalendarEvent) (string, error) {
	created, err := c.send(ctx, http.MethodPost, c.collectionURL(), toGraphEvent(event))
	if err != nil {
		return "", err
	}
	c.logger.Debug("Created Outlook event", "externalID", created.ID)
	return created.ID, nil
}

// Update patches an existing event.
func (c *CalendarClient) Update(ctx context.Context, event models.CalendarEvent, externalID string) (string, error) {
	updated, err := c.send(ctx, http.MethodPatch, c.eventURL(externalID), toGraphEvent(event))
	if err != nil {
		return "", err
	}
	if updated.ID == "" {
		updated.ID = externalID
	}
	c.logger.Debug("Updated Outlook event", "externalID", updated.ID)
	return updated.ID, nil
}

// Delete removes an event.
func (c *CalendarClient) Delete(ctx context.Context, externalID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.eventURL(externalID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.TransportError(models.ProviderOutlook, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return provider.NewError(models.ProviderOutlook, resp.StatusCode, string(body))
	}
	c.logger.Debug("Deleted Outlook event", "externalID", externalID)
	return nil
}

func (c *CalendarClient) send(ctx context.Context, method, endpoint string, payload graphEvent) (*graphEvent, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.TransportError(models.ProviderOutlook, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.TransportError(models.ProviderOutlook, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, provider.NewError(models.ProviderOutlook, resp.StatusCode, string(body))
	}

	var ev graphEvent
	if len(body) > 0 {
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return &ev, nil
}

func (c *CalendarClient) collectionURL() string {
	if c.calendarID == "" {
		return c.baseURL + "/me/events"
	}
	return c.baseURL + "/me/calendars/" + url.PathEscape(c.calendarID) + "/events"
}

// eventURL addresses a single event. Graph event IDs are unique per mailbox,
// so the calendar segment is not needed.
func (c *CalendarClient) eventURL(externalID string) string {
	return c.baseURL + "/me/events/" + url.PathEscape(externalID)
}

// toGraphEvent converts the neutral event to Graph's wire shape. Graph takes
// a wall-clock dateTime plus a separate zone name.
func toGraphEvent(event models.CalendarEvent) graphEvent {
	ev := graphEvent{
		Subject: event.Title,
		Body:    graphBody{ContentType: "text", Content: event.Description},
		Start:   graphDateTime{DateTime: event.Start.Format(outlookTimeFormat), TimeZone: event.TimeZone},
		End:     graphDateTime{DateTime: event.End.Format(outlookTimeFormat), TimeZone: event.TimeZone},
	}
	if event.Location != "" {
		ev.Location = &graphLocation{DisplayName: event.Location}
	}
	return ev
}

// OAuthConfig returns the OAuth2 config for the Microsoft identity platform.
// An empty tenant means "common".
func OAuthConfig(clientID, clientSecret, tenant, redirectURL string) *oauth2.Config {
	if tenant == "" {
		tenant = "common"
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"offline_access", "Calendars.ReadWrite"},
		Endpoint:     microsoft.AzureADEndpoint(tenant),
	}
}
