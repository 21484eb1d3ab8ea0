package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"calsync/internal/format"
	"calsync/internal/models"
	"calsync/internal/provider"
	"calsync/internal/store"
	"calsync/internal/token"
)

const account = "acct-1"

type fakeAdapter struct {
	mu        sync.Mutex
	events    map[string]models.CalendarEvent
	next      int
	calls     []string
	createErr error
	updateErr error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{events: map[string]models.CalendarEvent{}}
}

func (f *fakeAdapter) Create(_ context.Context, ev models.CalendarEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return "", f.createErr
	}
	f.next++
	id := fmt.Sprintf("remote-%d", f.next)
	f.events[id] = ev
	return id, nil
}

func (f *fakeAdapter) Update(_ context.Context, ev models.CalendarEvent, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update")
	if f.updateErr != nil {
		return "", f.updateErr
	}
	if _, ok := f.events[id]; !ok {
		return "", provider.NewError(models.ProviderGoogle, http.StatusNotFound, "Not Found")
	}
	f.events[id] = ev
	return id, nil
}

func (f *fakeAdapter) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	if _, ok := f.events[id]; !ok {
		return provider.NewError(models.ProviderGoogle, http.StatusGone, "Resource has been deleted")
	}
	delete(f.events, id)
	return nil
}

type staticTokens struct{ err error }

func (s staticTokens) EnsureValidToken(_ context.Context, cred *models.Credential) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return cred.AccessToken, nil
}

type harness struct {
	store   *store.Store
	adapter *fakeAdapter
	syncer  *Syncer
	cred    *models.Credential
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, tokens TokenManager) *harness {
	t.Helper()
	st, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cred := &models.Credential{
		AccountID:    account,
		Provider:     models.ProviderGoogle,
		CalendarID:   "primary",
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}
	require.NoError(t, st.ActivateCredential(context.Background(), cred))

	adapter := newFakeAdapter()
	factory := func(context.Context, *models.Credential, string) (provider.Adapter, error) { return adapter, nil }
	s := NewSyncer(discardLogger(), st, st, tokens, format.New(time.UTC), factory)
	return &harness{store: st, adapter: adapter, syncer: s, cred: cred}
}

func (h *harness) records(t *testing.T) []models.SyncRecord {
	t.Helper()
	recs, err := h.store.ListRecords(context.Background(), account, 100)
	require.NoError(t, err)
	return recs
}

func sampleEvent() models.Event {
	return models.Event{ID: "ev-1", Name: "Party", Date: "2025-06-01", StartTime: "18:00", EndTime: "21:00"}
}

func TestCreate(t *testing.T) {
	h := newHarness(t, staticTokens{})

	res := h.syncer.Create(context.Background(), account, sampleEvent())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "remote-1", res.ExternalID)
	assert.Equal(t, "Party", h.adapter.events["remote-1"].Title)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, models.OperationCreate, recs[0].Operation)
	assert.Equal(t, models.OutcomeSuccess, recs[0].Outcome)
	assert.Equal(t, h.cred.ID, recs[0].IntegrationID)
	assert.Equal(t, "ev-1", recs[0].SourceEventID)
	require.NotNil(t, recs[0].ExternalID)
	assert.Equal(t, "remote-1", *recs[0].ExternalID)
}

func TestUpdateExisting(t *testing.T) {
	h := newHarness(t, staticTokens{})
	created := h.syncer.Create(context.Background(), account, sampleEvent())

	ev := sampleEvent()
	ev.Name = "Renamed"
	res := h.syncer.Update(context.Background(), account, ev, created.ExternalID)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, created.ExternalID, res.ExternalID)
	assert.Equal(t, "Renamed", h.adapter.events[created.ExternalID].Title)
	assert.Equal(t, models.OperationUpdate, h.records(t)[0].Operation)
}

func TestUpdateStaleIDFallsBackToCreate(t *testing.T) {
	h := newHarness(t, staticTokens{})

	res := h.syncer.Update(context.Background(), account, sampleEvent(), "stale-id")
	require.True(t, res.Success, res.Error)
	assert.NotEqual(t, "stale-id", res.ExternalID)
	assert.NotEmpty(t, res.ExternalID)
	assert.Equal(t, []string{"update", "create"}, h.adapter.calls)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, models.OperationCreate, recs[0].Operation)
	assert.Equal(t, models.OperationUpdate, recs[0].RequestedOperation)
	assert.Equal(t, res.ExternalID, *recs[0].ExternalID)
}

func TestUpdateWithoutExternalIDCreates(t *testing.T) {
	h := newHarness(t, staticTokens{})
	res := h.syncer.Update(context.Background(), account, sampleEvent(), "")
	require.True(t, res.Success)
	assert.Equal(t, []string{"create"}, h.adapter.calls)
	assert.Equal(t, models.OperationCreate, h.records(t)[0].Operation)
}

func TestUpdateOtherFailureIsTerminal(t *testing.T) {
	h := newHarness(t, staticTokens{})
	h.adapter.updateErr = provider.NewError(models.ProviderGoogle, http.StatusTooManyRequests, "Rate Limit Exceeded")

	res := h.syncer.Update(context.Background(), account, sampleEvent(), "remote-9")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "429")
	assert.Equal(t, []string{"update"}, h.adapter.calls)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, models.OperationUpdate, recs[0].Operation)
	assert.Equal(t, models.OutcomeError, recs[0].Outcome)
	require.NotNil(t, recs[0].Error)
	assert.Contains(t, *recs[0].Error, "Rate Limit Exceeded")
}

func TestDeleteIsIdempotent(t *testing.T) {
	h := newHarness(t, staticTokens{})
	created := h.syncer.Create(context.Background(), account, sampleEvent())

	first := h.syncer.Delete(context.Background(), account, "ev-1", created.ExternalID)
	second := h.syncer.Delete(context.Background(), account, "ev-1", created.ExternalID)
	assert.True(t, first.Success, first.Error)
	assert.True(t, second.Success, second.Error)

	recs := h.records(t)
	require.Len(t, recs, 3)
	for _, r := range recs[:2] {
		assert.Equal(t, models.OperationDelete, r.Operation)
		assert.Equal(t, models.OutcomeSuccess, r.Outcome)
	}
}

func TestDeleteWithoutExternalID(t *testing.T) {
	h := newHarness(t, staticTokens{})
	res := h.syncer.Delete(context.Background(), account, "ev-1", "")
	assert.True(t, res.Success)
	assert.Empty(t, h.adapter.calls)
	assert.Len(t, h.records(t), 1)
}

func TestNoActiveCredentialIsLogged(t *testing.T) {
	h := newHarness(t, staticTokens{})
	res := h.syncer.Create(context.Background(), "acct-unknown", sampleEvent())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connect a calendar")

	recs, err := h.store.ListRecords(context.Background(), "acct-unknown", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.OutcomeError, recs[0].Outcome)
	assert.Empty(t, recs[0].IntegrationID)
}

func TestAuthErrorAbortsBeforeRemoteCall(t *testing.T) {
	h := newHarness(t, staticTokens{err: &token.AuthError{CredentialID: "x", Provider: models.ProviderGoogle}})
	res := h.syncer.Create(context.Background(), account, sampleEvent())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "reconnect your calendar")
	assert.Empty(t, h.adapter.calls)
	assert.Len(t, h.records(t), 1)
}

func TestAuditCompleteness(t *testing.T) {
	h := newHarness(t, staticTokens{})
	ctx := context.Background()

	h.syncer.Create(ctx, account, sampleEvent())
	h.syncer.Update(ctx, account, sampleEvent(), "missing")
	h.syncer.Delete(ctx, account, "ev-1", "missing")
	h.adapter.createErr = errors.New("boom")
	h.syncer.Create(ctx, account, sampleEvent())
	h.syncer.Execute(ctx, account, Request{Action: models.OperationDelete, Event: sampleEvent(), ExternalID: "remote-1"})

	recs := h.records(t)
	require.Len(t, recs, 5)
	for _, r := range recs {
		assert.NotEmpty(t, r.Outcome)
	}
}

func TestCancelledCallerStillGetsRecord(t *testing.T) {
	h := newHarness(t, staticTokens{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.syncer.Create(ctx, account, sampleEvent())
	assert.True(t, res.Success, res.Error)
	assert.Len(t, h.records(t), 1)
}

func TestExecuteUnknownAction(t *testing.T) {
	h := newHarness(t, staticTokens{})
	res := h.syncer.Execute(context.Background(), account, Request{Action: "upsert"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown action")
	assert.Empty(t, h.records(t))
	assert.Empty(t, h.adapter.calls)
}

func TestRefreshPersistedBeforeRemoteFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-access","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	st, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer st.Close()

	cred := &models.Credential{
		AccountID:    account,
		Provider:     models.ProviderOutlook,
		AccessToken:  "expired-access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}
	require.NoError(t, st.ActivateCredential(context.Background(), cred))

	conf := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: tokenSrv.URL, AuthStyle: oauth2.AuthStyleInParams}}
	tokens := token.NewManager(discardLogger(), st, map[models.Provider]*oauth2.Config{models.ProviderOutlook: conf}, nil)

	adapter := newFakeAdapter()
	adapter.createErr = provider.NewError(models.ProviderOutlook, http.StatusInternalServerError, "boom")
	var usedToken string
	factory := func(_ context.Context, c *models.Credential, accessToken string) (provider.Adapter, error) {
		stored, err := st.ActiveCredential(context.Background(), c.AccountID)
		require.NoError(t, err)
		assert.Equal(t, "fresh-access", stored.AccessToken, "token must be persisted before use")
		usedToken = accessToken
		return adapter, nil
	}

	s := NewSyncer(discardLogger(), st, st, tokens, format.New(time.UTC), factory)
	res := s.Create(context.Background(), account, sampleEvent())
	assert.False(t, res.Success)
	assert.Equal(t, "fresh-access", usedToken)

	stored, err := st.ActiveCredential(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", stored.AccessToken)
	assert.True(t, stored.Expiry.After(time.Now()))
}
