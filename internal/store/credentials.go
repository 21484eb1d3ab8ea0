package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calsync/internal/models"
)

// ActivateCredential stores c as the account's active integration and
// deactivates any previously active one in the same transaction.
func (s *Store) ActivateCredential(ctx context.Context, c *models.Credential) error {
	if c.ID == "" {
		c.ID = newID()
	}
	now := s.now().UTC()
	c.Active = true
	c.CreatedAt = now
	c.UpdatedAt = now

	var refresh *string
	if c.RefreshToken != "" {
		refresh = &c.RefreshToken
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE calendar_integrations SET active = $1, updated_at = $2
		WHERE account_id = $3 AND active = $4
	`, false, now, c.AccountID, true); err != nil {
		return fmt.Errorf("failed to deactivate previous integration: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO calendar_integrations
			(id, account_id, provider, calendar_id, access_token, refresh_token, token_expiry, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.AccountID, string(c.Provider), c.CalendarID, c.AccessToken, nullString(refresh), c.Expiry.UTC(), true, now, now); err != nil {
		return fmt.Errorf("failed to insert integration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit integration: %w", err)
	}
	return nil
}

// ActiveCredential returns the account's active integration, or
// ErrNoActiveCredential.
func (s *Store) ActiveCredential(ctx context.Context, accountID string) (*models.Credential, error) {
	var (
		c        models.Credential
		provider string
		refresh  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, provider, calendar_id, access_token, refresh_token, token_expiry, active, created_at, updated_at
		FROM calendar_integrations
		WHERE account_id = $1 AND active = $2
	`, accountID, true).Scan(
		&c.ID,
		&c.AccountID,
		&provider,
		&c.CalendarID,
		&c.AccessToken,
		&refresh,
		&c.Expiry,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active integration: %w", err)
	}

	c.Provider = models.Provider(provider)
	c.RefreshToken = refresh.String
	return &c, nil
}

// UpdateTokens rewrites the tokens of an integration after a refresh. An
// empty refreshToken keeps the stored one, since providers do not always
// rotate it.
func (s *Store) UpdateTokens(ctx context.Context, credentialID, accessToken, refreshToken string, expiry time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE calendar_integrations
		SET access_token = $1,
			refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
			token_expiry = $3,
			updated_at = $4
		WHERE id = $5
	`, accessToken, refreshToken, expiry.UTC(), s.now().UTC(), credentialID)
	if err != nil {
		return fmt.Errorf("failed to update integration tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update integration tokens: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("integration %s not found", credentialID)
	}
	return nil
}
