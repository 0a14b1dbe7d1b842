package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// ValidateURL is the Twitch token introspection endpoint.
const ValidateURL = "https://id.twitch.tv/oauth2/validate"

// ErrInvalidToken is returned when Twitch rejects a user token.
var ErrInvalidToken = errors.New("twitch token invalid or expired")

// Validation is the body returned by the validate endpoint.
type Validation struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}

// HasScope reports whether the token carries scope.
func (v *Validation) HasScope(scope string) bool {
	for _, s := range v.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ValidateToken checks a user access token and reports who it belongs to.
func ValidateToken(ctx context.Context, hc *http.Client, accessToken string) (*Validation, error) {
	if accessToken == "" {
		return nil, errors.New("access token empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ValidateURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitch validate failed: %s: %s", resp.Status, string(b))
	}
	var v Validation
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ComputeExpiry returns absolute expiry time from seconds, defaulting to +60m when unknown.
func ComputeExpiry(seconds int) time.Time {
	if seconds <= 0 {
		return time.Now().Add(60 * time.Minute)
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}

// RefreshUserToken exchanges a refresh token for a new user access token.
func RefreshUserToken(ctx context.Context, hc *http.Client, clientID, clientSecret, refreshToken string) (*oauth2.Token, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, errors.New("missing clientID/clientSecret/refreshToken")
	}
	oc := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: TokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	tok, err := oc.TokenSource(withHTTPClient(ctx, hc), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("twitch refresh failed: %w", err)
	}
	if tok.Expiry.IsZero() {
		tok.Expiry = ComputeExpiry(0)
	}
	return tok, nil
}

// Scope extracts the space-joined scope list Twitch returns alongside a refreshed token.
func Scope(tok *oauth2.Token) string {
	switch v := tok.Extra("scope").(type) {
	case string:
		return v
	case []any:
		out := ""
		for i, s := range v {
			if i > 0 {
				out += " "
			}
			out += fmt.Sprint(s)
		}
		return out
	}
	return ""
}
