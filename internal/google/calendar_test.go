package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"calsync/internal/models"
	"calsync/internal/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *CalendarClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	httpClient := provider.NewHTTPClient(nil, "token-123", 5*time.Second)
	c, err := NewClient(context.Background(), logger, httpClient, "team@example.com", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return c
}

func sampleEvent(t *testing.T) models.CalendarEvent {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return models.CalendarEvent{
		Title:       "Birthday party",
		Description: "Contact: Ann",
		Start:       time.Date(2025, 6, 1, 18, 0, 0, 0, loc),
		End:         time.Date(2025, 6, 1, 20, 0, 0, 0, loc),
		TimeZone:    "America/New_York",
		Location:    "Hall B",
	}
}

func TestCreateSendsFlatEvent(t *testing.T) {
	var got calendar.Event
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/team@example.com/events", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(calendar.Event{Id: "g-1"})
	})

	id, err := c.Create(context.Background(), sampleEvent(t))
	require.NoError(t, err)
	assert.Equal(t, "g-1", id)
	assert.Equal(t, "Birthday party", got.Summary)
	assert.Equal(t, "Contact: Ann", got.Description)
	assert.Equal(t, "Hall B", got.Location)
	assert.Equal(t, "2025-06-01T18:00:00-04:00", got.Start.DateTime)
	assert.Equal(t, "America/New_York", got.Start.TimeZone)
}

func TestUpdateNotFoundIsStructured(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	})

	_, err := c.Update(context.Background(), sampleEvent(t), "stale")
	require.Error(t, err)
	assert.True(t, provider.IsNotFound(err))

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusNotFound, perr.StatusCode)
	assert.Equal(t, models.ProviderGoogle, perr.Provider)
}

func TestDeleteGoneIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/calendars/team@example.com/events/g-1", r.URL.Path)
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"error":{"code":410,"message":"Resource has been deleted"}}`))
	})

	err := c.Delete(context.Background(), "g-1")
	assert.True(t, provider.IsNotFound(err))
}

func TestRateLimitIsNotNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Rate Limit Exceeded"}}`))
	})

	_, err := c.Create(context.Background(), sampleEvent(t))
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.KindRateLimited, perr.Kind)
	assert.Contains(t, perr.Body, "Rate Limit Exceeded")
}

func TestOAuthConfigScopes(t *testing.T) {
	conf := OAuthConfig("id", "secret", "")
	assert.Equal(t, []string{calendar.CalendarEventsScope}, conf.Scopes)
	assert.Equal(t, "urn:ietf:wg:oauth:2.0:oob", conf.RedirectURL)
}
