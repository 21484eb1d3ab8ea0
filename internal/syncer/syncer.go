package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"calsync/internal/models"
	"calsync/internal/obs"
	"calsync/internal/provider"
	"calsync/internal/store"
	"calsync/internal/token"
)

// CredentialStore resolves an account's active integration.
type CredentialStore interface {
	ActiveCredential(ctx context.Context, accountID string) (*models.Credential, error)
}

// AuditLog receives one record per invocation.
type AuditLog interface {
	AppendRecord(ctx context.Context, r *models.SyncRecord) error
}

// TokenManager yields a usable access token for a credential.
type TokenManager interface {
	EnsureValidToken(ctx context.Context, cred *models.Credential) (string, error)
}

// Formatter builds the provider-neutral event.
type Formatter interface {
	Format(e models.Event) models.CalendarEvent
}

// AdapterFactory builds the adapter for a credential's provider.
type AdapterFactory func(ctx context.Context, cred *models.Credential, accessToken string) (provider.Adapter, error)

// Request is an inbound sync operation.
type Request struct {
	Action     models.Operation `json:"action"`
	Event      models.Event     `json:"event"`
	ExternalID string           `json:"externalId,omitempty"`
}

// Result is what callers get back. Failures are reported here rather than
// as errors so the caller can always render them.
type Result struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"externalId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Syncer orchestrates pushing events to the account's external calendar.
type Syncer struct {
	logger    *slog.Logger
	creds     CredentialStore
	audit     AuditLog
	tokens    TokenManager
	formatter Formatter
	adapters  AdapterFactory
}

// NewSyncer creates a new Syncer.
func NewSyncer(logger *slog.Logger, creds CredentialStore, audit AuditLog, tokens TokenManager, formatter Formatter, adapters AdapterFactory) *Syncer {
	return &Syncer{
		logger:    logger,
		creds:     creds,
		audit:     audit,
		tokens:    tokens,
		formatter: formatter,
		adapters:  adapters,
	}
}

// Execute dispatches a Request. An unknown action is rejected before any
// lookup and is the one case that writes no sync record.
func (s *Syncer) Execute(ctx context.Context, accountID string, req Request) Result {
	switch req.Action {
	case models.OperationCreate:
		return s.Create(ctx, accountID, req.Event)
	case models.OperationUpdate:
		return s.Update(ctx, accountID, req.Event, req.ExternalID)
	case models.OperationDelete:
		return s.Delete(ctx, accountID, req.Event.ID, req.ExternalID)
	default:
		return Result{Error: "unknown action " + string(req.Action)}
	}
}

// Create pushes a new event.
func (s *Syncer) Create(ctx context.Context, accountID string, event models.Event) Result {
	return s.run(ctx, accountID, models.OperationCreate, event.ID, func(ctx context.Context, a provider.Adapter, p models.Provider) (models.Operation, string, error) {
		id, err := s.create(ctx, a, p, event)
		return models.OperationCreate, id, err
	})
}

// Update rewrites a remote event. A remote event that no longer exists, or
// never did, is created instead and the record shows a create.
func (s *Syncer) Update(ctx context.Context, accountID string, event models.Event, externalID string) Result {
	return s.run(ctx, accountID, models.OperationUpdate, event.ID, func(ctx context.Context, a provider.Adapter, p models.Provider) (models.Operation, string, error) {
		if externalID == "" {
			s.logger.Info("Event has no remote counterpart, creating it", "eventID", event.ID, "provider", p)
			id, err := s.create(ctx, a, p, event)
			return models.OperationCreate, id, err
		}

		cal := s.formatter.Format(event)
		started := time.Now()
		id, err := a.Update(ctx, cal, externalID)
		obs.ObserveProviderCall(string(p), string(models.OperationUpdate), started)
		if provider.IsNotFound(err) {
			s.logger.Warn("Remote event missing, recreating it", "eventID", event.ID, "provider", p, "staleExternalID", externalID)
			id, err = s.create(ctx, a, p, event)
			return models.OperationCreate, id, err
		}
		return models.OperationUpdate, id, err
	})
}

// Delete removes a remote event. A remote event that is already gone counts
// as deleted.
func (s *Syncer) Delete(ctx context.Context, accountID, eventID, externalID string) Result {
	return s.run(ctx, accountID, models.OperationDelete, eventID, func(ctx context.Context, a provider.Adapter, p models.Provider) (models.Operation, string, error) {
		if externalID == "" {
			s.logger.Info("Event has no remote counterpart, nothing to delete", "eventID", eventID, "provider", p)
			return models.OperationDelete, "", nil
		}
		started := time.Now()
		err := a.Delete(ctx, externalID)
		obs.ObserveProviderCall(string(p), string(models.OperationDelete), started)
		if provider.IsNotFound(err) {
			s.logger.Info("Remote event already deleted", "eventID", eventID, "provider", p, "externalID", externalID)
			err = nil
		}
		return models.OperationDelete, externalID, err
	})
}

func (s *Syncer) create(ctx context.Context, a provider.Adapter, p models.Provider, event models.Event) (string, error) {
	cal := s.formatter.Format(event)
	started := time.Now()
	id, err := a.Create(ctx, cal)
	obs.ObserveProviderCall(string(p), string(models.OperationCreate), started)
	return id, err
}

type remoteCall func(ctx context.Context, a provider.Adapter, p models.Provider) (models.Operation, string, error)

// run drives resolve -> token -> remote call -> audit. The caller's
// cancellation is detached so that a remote mutation, once started, is
// always followed by its audit record.
func (s *Syncer) run(ctx context.Context, accountID string, requested models.Operation, sourceEventID string, call remoteCall) Result {
	ctx = context.WithoutCancel(ctx)
	rec := &models.SyncRecord{
		AccountID:          accountID,
		SourceEventID:      sourceEventID,
		Operation:          requested,
		RequestedOperation: requested,
	}

	var providerName models.Provider
	externalID, err := func() (string, error) {
		cred, err := s.creds.ActiveCredential(ctx, accountID)
		if err != nil {
			return "", err
		}
		rec.IntegrationID = cred.ID
		providerName = cred.Provider

		accessToken, err := s.tokens.EnsureValidToken(ctx, cred)
		if err != nil {
			return "", err
		}
		adapter, err := s.adapters(ctx, cred, accessToken)
		if err != nil {
			return "", err
		}

		performed, id, err := call(ctx, adapter, cred.Provider)
		rec.Operation = performed
		return id, err
	}()

	res := Result{Success: err == nil}
	if err == nil {
		rec.Outcome = models.OutcomeSuccess
		if externalID != "" {
			rec.ExternalID = &externalID
			res.ExternalID = externalID
		}
		s.logger.Info("Calendar sync succeeded", "accountID", accountID, "provider", providerName,
			"operation", rec.Operation, "requested", requested, "eventID", sourceEventID, "externalID", externalID)
	} else {
		msg := err.Error()
		rec.Outcome = models.OutcomeError
		rec.Error = &msg
		res.Error = callerMessage(err)
		s.logger.Error("Calendar sync failed", "accountID", accountID, "provider", providerName,
			"operation", rec.Operation, "eventID", sourceEventID, "error", err)
	}

	if aerr := s.audit.AppendRecord(ctx, rec); aerr != nil {
		s.logger.Error("Failed to write sync record", "accountID", accountID, "operation", rec.Operation, "error", aerr)
	}
	obs.ObserveSync(string(providerName), string(rec.Operation), string(rec.Outcome))
	return res
}

// callerMessage is the error text shown to callers.
func callerMessage(err error) string {
	var authErr *token.AuthError
	switch {
	case errors.As(err, &authErr):
		return "calendar authorization expired: reconnect your calendar"
	case errors.Is(err, store.ErrNoActiveCredential):
		return "no calendar connected: connect a calendar to enable sync"
	default:
		return err.Error()
	}
}
