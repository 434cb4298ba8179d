package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Setting keys
const (
	SettingDriveFolderID   = "drive_folder_id"
	SettingLeverPerformAs  = "lever_perform_as"
	SettingLeverTemplateID = "lever_template_id"
	SettingPollEnabled     = "poll_enabled"
)

// GetSettings returns every stored setting
func (s *Store) GetSettings(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings`); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	settings := make(map[string]string, len(rows))
	for _, r := range rows {
		settings[r.Key] = r.Value
	}
	return settings, nil
}

// PutSettings upserts the given settings in one transaction
func (s *Store) PutSettings(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for key, value := range values {
		if _, err := tx.ExecContext(ctx, query, key, value, now); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}

// LoadToken returns the stored OAuth token for a provider
func (s *Store) LoadToken(ctx context.Context, provider string) (*oauth2.Token, error) {
	var row struct {
		AccessToken  string       `db:"access_token"`
		RefreshToken string       `db:"refresh_token"`
		TokenType    string       `db:"token_type"`
		Expiry       sql.NullTime `db:"expiry"`
	}
	query := `SELECT access_token, refresh_token, token_type, expiry FROM oauth_tokens WHERE provider = $1`
	if err := s.db.GetContext(ctx, &row, query, provider); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s token: %w", provider, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	tok := &oauth2.Token{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		TokenType:    row.TokenType,
	}
	if row.Expiry.Valid {
		tok.Expiry = row.Expiry.Time
	}
	return tok, nil
}

// SaveToken stores a provider token; an empty refresh token keeps the previous one
func (s *Store) SaveToken(ctx context.Context, provider string, tok *oauth2.Token) error {
	var expiry interface{}
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.UTC()
	}

	query := `
		INSERT INTO oauth_tokens (provider, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), oauth_tokens.refresh_token),
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			updated_at = EXCLUDED.updated_at`

	if _, err := s.db.ExecContext(ctx, query,
		provider, tok.AccessToken, tok.RefreshToken, tok.TokenType, expiry, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}
