package twitchapi

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/meteor314/twitch-bot/testutil"
)

func TestTokenSource_GetCached(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockOAuthTokenResponse("test-token-123", "", 3600)

	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", HTTPClient: mock.Client()}
	ctx := context.Background()

	token1, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token1 != "test-token-123" {
		t.Errorf("Get() = %s, want test-token-123", token1)
	}
	token2, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if token2 != token1 {
		t.Errorf("cached token mismatch: %s vs %s", token2, token1)
	}
	if n := len(mock.Requests()); n != 1 {
		t.Errorf("expected 1 token request, got %d", n)
	}

	req := mock.Requests()[0]
	if !strings.Contains(req.Body, "grant_type=client_credentials") || !strings.Contains(req.Body, "client_id=test-client") {
		t.Errorf("unexpected token request body %q", req.Body)
	}
}

func TestTokenSource_RefreshNearExpiry(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockOAuthTokenResponse("fresh", "", 3600)

	ts := &TokenSource{ClientID: "id", ClientSecret: "secret", HTTPClient: mock.Client()}
	ts.token = "stale"
	ts.expiresAt = time.Now().Add(30 * time.Second)

	tok, err := ts.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if tok != "fresh" {
		t.Errorf("Get() = %s, want fresh", tok)
	}
}

func TestTokenSource_MissingCredentials(t *testing.T) {
	ts := &TokenSource{}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Fatal("expected error without client id/secret")
	}
}

func TestTokenSource_ServerError(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":400,"message":"invalid client"}`, http.StatusBadRequest)
	}
	ts := &TokenSource{ClientID: "id", ClientSecret: "secret", HTTPClient: mock.Client()}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Fatal("expected error on 400")
	}
}
