// Package httpapi exposes the sync service over HTTP for the application
// layer that triggers sync actions.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"calsync/internal/models"
	"calsync/internal/obs"
	"calsync/internal/syncer"
)

const maxBodyBytes = 1 << 20

// Executor runs a sync request for an account.
type Executor interface {
	Execute(ctx context.Context, accountID string, req syncer.Request) syncer.Result
}

// RecordLister reads the sync audit log.
type RecordLister interface {
	ListRecords(ctx context.Context, accountID string, limit int) ([]models.SyncRecord, error)
}

// ReadyProbe checks backing services.
type ReadyProbe interface {
	Ping(ctx context.Context) error
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	sync     Executor
	records  RecordLister
	probe    ReadyProbe
	identity *Identity
	limiter  *accountLimiter
}

// Options tunes the per-account rate limit. A zero PerSecond disables it.
type Options struct {
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New wires the routes.
func New(logger *slog.Logger, exec Executor, records RecordLister, probe ReadyProbe, identity *Identity, opts Options) *API {
	a := &API{
		mux:      http.NewServeMux(),
		logger:   logger,
		sync:     exec,
		records:  records,
		probe:    probe,
		identity: identity,
		limiter:  newAccountLimiter(opts.RateLimitPerSecond, opts.RateLimitBurst),
	}

	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("GET /readyz", a.readyz)
	a.mux.Handle("GET /metrics", obs.Handler())
	a.mux.HandleFunc("POST /v1/sync", a.withAccount(a.handleSync))
	a.mux.HandleFunc("GET /v1/sync/log", a.withAccount(a.handleLog))
	return a
}

// Handler returns the root handler with logging and metrics applied.
func (a *API) Handler() http.Handler {
	return obs.Instrument(logging(a.logger, a.mux))
}

type syncRequest struct {
	Action     string       `json:"action"`
	Event      models.Event `json:"event"`
	ExternalID string       `json:"externalId,omitempty"`
}

func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body syncRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	action, ok := models.ParseOperation(body.Action)
	if !ok {
		respondError(w, http.StatusBadRequest, "action must be create, update or delete")
		return
	}

	res := a.sync.Execute(r.Context(), accountFromContext(r.Context()), syncer.Request{
		Action:     action,
		Event:      body.Event,
		ExternalID: body.ExternalID,
	})
	respondJSON(w, http.StatusOK, res)
}

type recordView struct {
	ID                 string    `json:"id"`
	IntegrationID      string    `json:"integrationId,omitempty"`
	SourceEventID      string    `json:"sourceEventId,omitempty"`
	Operation          string    `json:"operation"`
	RequestedOperation string    `json:"requestedOperation"`
	Status             string    `json:"status"`
	Error              *string   `json:"error"`
	ExternalID         *string   `json:"externalId"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (a *API) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := a.records.ListRecords(r.Context(), accountFromContext(r.Context()), limit)
	if err != nil {
		a.logger.Error("Failed to list sync records", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list sync records")
		return
	}

	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, recordView{
			ID:                 rec.ID,
			IntegrationID:      rec.IntegrationID,
			SourceEventID:      rec.SourceEventID,
			Operation:          string(rec.Operation),
			RequestedOperation: string(rec.RequestedOperation),
			Status:             string(rec.Outcome),
			Error:              rec.Error,
			ExternalID:         rec.ExternalID,
			CreatedAt:          rec.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": views})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if a.probe != nil {
		if err := a.probe.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
