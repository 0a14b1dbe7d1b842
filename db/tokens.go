package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertOAuthToken stores or updates the token for a provider.
func (s *Store) UpsertOAuthToken(ctx context.Context, tok OAuthToken) error {
	var expiry any
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry
	}
	access, err := s.sealer.Seal(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := s.sealer.Seal(tok.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens(provider, access_token, refresh_token, expires_at, scope, updated_at)
		 VALUES($1,$2,$3,$4,$5,NOW())
		 ON CONFLICT(provider) DO UPDATE SET
		   access_token = EXCLUDED.access_token,
		   refresh_token = EXCLUDED.refresh_token,
		   expires_at = EXCLUDED.expires_at,
		   scope = EXCLUDED.scope,
		   updated_at = NOW()`,
		tok.Provider, access, refresh, expiry, tok.Scope)
	return mapErr(err)
}

// GetOAuthToken retrieves the stored token for provider or ErrNotFound.
func (s *Store) GetOAuthToken(ctx context.Context, provider string) (*OAuthToken, error) {
	var (
		tok    OAuthToken
		expiry sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT provider, access_token, refresh_token, expires_at, scope FROM oauth_tokens WHERE provider = $1`,
		provider).Scan(&tok.Provider, &tok.AccessToken, &tok.RefreshToken, &expiry, &tok.Scope)
	if err != nil {
		return nil, mapErr(err)
	}
	if tok.AccessToken, err = s.sealer.Open(tok.AccessToken); err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	if tok.RefreshToken, err = s.sealer.Open(tok.RefreshToken); err != nil {
		return nil, fmt.Errorf("open refresh token: %w", err)
	}
	if expiry.Valid {
		tok.Expiry = expiry.Time.UTC()
	} else {
		tok.Expiry = time.Time{}
	}
	return &tok, nil
}
