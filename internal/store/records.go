package store

import (
	"context"
	"database/sql"
	"fmt"

	"calsync/internal/models"
)

// AppendRecord writes one entry to the sync audit log. Records are never
// updated or deleted.
func (s *Store) AppendRecord(ctx context.Context, r *models.SyncRecord) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	if r.RequestedOperation == "" {
		r.RequestedOperation = r.Operation
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_sync_log
			(id, account_id, integration_id, source_event_id, operation, requested_operation, status, error_message, external_event_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.AccountID, r.IntegrationID, r.SourceEventID, string(r.Operation), string(r.RequestedOperation),
		string(r.Outcome), nullString(r.Error), nullString(r.ExternalID), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append sync record: %w", err)
	}
	return nil
}

// ListRecords returns the newest records for an account first.
func (s *Store) ListRecords(ctx context.Context, accountID string, limit int) ([]models.SyncRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, integration_id, source_event_id, operation, requested_operation, status, error_message, external_event_id, created_at
		FROM calendar_sync_log
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.SyncRecord
	for rows.Next() {
		var (
			r                        models.SyncRecord
			op, requested, status    string
			errorMessage, externalID sql.NullString
		)
		if err := rows.Scan(
			&r.ID,
			&r.AccountID,
			&r.IntegrationID,
			&r.SourceEventID,
			&op,
			&requested,
			&status,
			&errorMessage,
			&externalID,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync record: %w", err)
		}
		r.Operation = models.Operation(op)
		r.RequestedOperation = models.Operation(requested)
		r.Outcome = models.Outcome(status)
		r.Error = stringPtr(errorMessage)
		r.ExternalID = stringPtr(externalID)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync records: %w", err)
	}
	return records, nil
}
