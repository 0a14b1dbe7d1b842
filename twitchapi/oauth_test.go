package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/meteor314/twitch-bot/testutil"
)

func TestValidateToken(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockValidateResponse("helperbot", "999", []string{"chat:read", "chat:edit", "moderator:manage:banned_users"})

	v, err := ValidateToken(context.Background(), mock.Client(), "user-token")
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if v.Login != "helperbot" || v.UserID != "999" {
		t.Errorf("unexpected validation %+v", v)
	}
	if !v.HasScope("chat:edit") || v.HasScope("clips:edit") {
		t.Errorf("HasScope wrong for %v", v.Scopes)
	}
	if got := mock.Requests()[0].Auth; got != "OAuth user-token" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestValidateTokenRejected(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.Handlers["/oauth2/validate"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	if _, err := ValidateToken(context.Background(), mock.Client(), "bad"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	if _, err := ValidateToken(context.Background(), mock.Client(), ""); err == nil {
		t.Fatal("empty token should fail")
	}
}

func TestRefreshUserToken(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockOAuthTokenResponse("new-access", "new-refresh", 14400)

	tok, err := RefreshUserToken(context.Background(), mock.Client(), "id", "secret", "old-refresh")
	if err != nil {
		t.Fatalf("RefreshUserToken() error = %v", err)
	}
	if tok.AccessToken != "new-access" || tok.RefreshToken != "new-refresh" {
		t.Errorf("unexpected token %+v", tok)
	}
	if time.Until(tok.Expiry) < 3*time.Hour {
		t.Errorf("expiry %s too soon", tok.Expiry)
	}
	if got := Scope(tok); got != "chat:read chat:edit" {
		t.Errorf("Scope() = %q", got)
	}
	body := mock.Requests()[0].Body
	if !strings.Contains(body, "grant_type=refresh_token") || !strings.Contains(body, "refresh_token=old-refresh") {
		t.Errorf("unexpected refresh body %q", body)
	}
}

func TestRefreshUserTokenMissingInput(t *testing.T) {
	if _, err := RefreshUserToken(context.Background(), nil, "", "secret", "r"); err == nil {
		t.Fatal("expected error for missing client id")
	}
}

func TestComputeExpiry(t *testing.T) {
	if d := time.Until(ComputeExpiry(0)); d < 59*time.Minute || d > 61*time.Minute {
		t.Errorf("default expiry %s, want ~60m", d)
	}
	if d := time.Until(ComputeExpiry(120)); d < 110*time.Second || d > 130*time.Second {
		t.Errorf("expiry %s, want ~120s", d)
	}
}
