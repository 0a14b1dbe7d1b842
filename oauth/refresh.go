// Package oauth keeps the bot's Twitch user token fresh. The token lives in the
// oauth_tokens table under a provider key; a jittered loop refreshes it when its
// expiry falls within a configured window and notifies listeners (the IRC
// client) of the new value.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/meteor314/twitch-bot/db"
)

// Provider is the oauth_tokens key used for the bot account.
const Provider = "twitch"

// TokenStore persists tokens.
type TokenStore interface {
	GetOAuthToken(ctx context.Context, provider string) (*db.OAuthToken, error)
	UpsertOAuthToken(ctx context.Context, tok db.OAuthToken) error
}

// RefreshFunc performs provider-specific refresh and returns the new token.
type RefreshFunc func(ctx context.Context, refreshToken string) (db.OAuthToken, error)

// Keeper holds the current user access token.
type Keeper struct {
	store    TokenStore
	provider string

	mu        sync.RWMutex
	current   db.OAuthToken
	listeners []func(accessToken string)
}

// NewKeeper builds a Keeper for provider.
func NewKeeper(store TokenStore, provider string) *Keeper {
	return &Keeper{store: store, provider: provider}
}

// Seed loads the persisted token, falling back to (and persisting) the configured one
// when nothing is stored yet. A configured refresh token replaces an empty stored one.
func (k *Keeper) Seed(ctx context.Context, accessToken, refreshToken string) error {
	stored, err := k.store.GetOAuthToken(ctx, k.provider)
	switch {
	case err == nil:
		if stored.RefreshToken == "" && refreshToken != "" {
			stored.RefreshToken = refreshToken
			if err := k.store.UpsertOAuthToken(ctx, *stored); err != nil {
				return fmt.Errorf("persist refresh token: %w", err)
			}
		}
		k.set(*stored)
		return nil
	case !errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("load %s token: %w", k.provider, err)
	}
	if accessToken == "" {
		return fmt.Errorf("no %s token stored or configured", k.provider)
	}
	tok := db.OAuthToken{Provider: k.provider, AccessToken: accessToken, RefreshToken: refreshToken}
	if err := k.store.UpsertOAuthToken(ctx, tok); err != nil {
		return fmt.Errorf("persist %s token: %w", k.provider, err)
	}
	k.set(tok)
	return nil
}

// SetExpiry records the lifetime reported by token validation.
func (k *Keeper) SetExpiry(ctx context.Context, expiry time.Time, scope string) error {
	k.mu.Lock()
	k.current.Expiry = expiry
	if scope != "" {
		k.current.Scope = scope
	}
	tok := k.current
	k.mu.Unlock()
	return k.store.UpsertOAuthToken(ctx, tok)
}

// AccessToken returns the current access token.
func (k *Keeper) AccessToken(context.Context) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.current.AccessToken == "" {
		return "", errors.New("no access token")
	}
	return k.current.AccessToken, nil
}

// OnRefresh registers fn to receive every refreshed access token.
func (k *Keeper) OnRefresh(fn func(accessToken string)) {
	k.mu.Lock()
	k.listeners = append(k.listeners, fn)
	k.mu.Unlock()
}

func (k *Keeper) set(tok db.OAuthToken) {
	k.mu.Lock()
	k.current = tok
	k.mu.Unlock()
}

// RefreshIfDue refreshes the stored token when it expires within window.
// It reports whether a refresh happened.
func (k *Keeper) RefreshIfDue(ctx context.Context, window time.Duration, fn RefreshFunc) (bool, error) {
	stored, err := k.store.GetOAuthToken(ctx, k.provider)
	if err != nil {
		return false, err
	}
	if stored.RefreshToken == "" {
		return false, nil
	}
	if !stored.Expiry.IsZero() && time.Until(stored.Expiry) > window {
		return false, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	next, err := fn(ctx2, stored.RefreshToken)
	cancel()
	if err != nil {
		return false, fmt.Errorf("refresh %s token: %w", k.provider, err)
	}
	next.Provider = k.provider
	if next.RefreshToken == "" {
		next.RefreshToken = stored.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = stored.Scope
	}
	next.Scope = strings.TrimSpace(next.Scope)
	if err := k.store.UpsertOAuthToken(ctx, next); err != nil {
		return false, fmt.Errorf("persist %s token: %w", k.provider, err)
	}
	k.set(next)

	k.mu.RLock()
	listeners := append([]func(string){}, k.listeners...)
	k.mu.RUnlock()
	for _, l := range listeners {
		l(next.AccessToken)
	}
	return true, nil
}

// StartRefresher launches a goroutine that periodically checks the token and refreshes it.
// interval: how often to wake up and check.
// window: refresh when remaining lifetime <= window.
func (k *Keeper) StartRefresher(ctx context.Context, interval, window time.Duration, fn RefreshFunc) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	logger := slog.Default().With(slog.String("component", "oauth_refresh"), slog.String("provider", k.provider))
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval/2) + 1))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			if refreshed, err := k.RefreshIfDue(ctx, window, fn); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("token refresh failed", slog.Any("err", err))
			} else if refreshed {
				logger.Info("token refreshed")
			}

			// ±20% jitter around interval
			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2+1) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
		}
	}()
}
