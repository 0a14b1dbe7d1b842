package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix and id.twitch.tv responses.
// Point clients at it with RewriteTransport.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu       sync.Mutex
	requests []RecordedRequest
}

// RecordedRequest is one request seen by the mock.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

// NewMockTwitchServer creates a new mock Twitch API server.
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.requests = append(m.requests, RecordedRequest{
			Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery,
			Auth: r.Header.Get("Authorization"), Body: string(body),
		})
		m.mu.Unlock()
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		if handler, ok := m.Handlers[r.Method+" "+r.URL.Path]; ok {
			handler(w, r)
			return
		}
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Client returns an http.Client whose requests are routed to the mock.
func (m *MockTwitchServer) Client() *http.Client {
	return &http.Client{Transport: &RewriteTransport{Host: m.URL}}
}

// Requests returns a copy of the recorded requests.
func (m *MockTwitchServer) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockUserResponse adds a handler for /helix/users that knows the given login -> id pairs.
func (m *MockTwitchServer) MockUserResponse(users map[string]string) {
	m.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		login := strings.ToLower(r.URL.Query().Get("login"))
		data := []map[string]string{}
		if id, ok := users[login]; ok {
			data = append(data, map[string]string{"id": id, "login": login})
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": data})
	}
}

// MockStreamsResponse adds a handler for /helix/streams endpoint.
func (m *MockTwitchServer) MockStreamsResponse(streams []map[string]any) {
	m.Handlers["/helix/streams"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": streams})
	}
}

// MockClipResponse adds a handler for POST /helix/clips.
func (m *MockTwitchServer) MockClipResponse(clipID string) {
	m.Handlers["POST /helix/clips"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"data": []map[string]string{{"id": clipID, "edit_url": "https://clips.twitch.tv/" + clipID + "/edit"}},
		})
	}
}

// MockNoContent answers method+path with 204.
func (m *MockTwitchServer) MockNoContent(method, path string) {
	m.Handlers[method+" "+path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// MockBanResponse adds a handler for POST /helix/moderation/bans.
func (m *MockTwitchServer) MockBanResponse() {
	m.Handlers["POST /helix/moderation/bans"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"broadcaster_id": r.URL.Query().Get("broadcaster_id")}}})
	}
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint.
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		}
		if refreshToken != "" {
			body["refresh_token"] = refreshToken
			body["scope"] = []string{"chat:read", "chat:edit"}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// MockValidateResponse adds a handler for /oauth2/validate.
func (m *MockTwitchServer) MockValidateResponse(login, userID string, scopes []string) {
	m.Handlers["/oauth2/validate"] = func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "message": "invalid access token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"client_id": "test-client", "login": login, "user_id": userID, "scopes": scopes, "expires_in": 3600,
		})
	}
}

// RewriteTransport sends every request to Host, keeping path and query.
type RewriteTransport struct {
	Host      string
	Transport http.RoundTripper
}

func (t *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	host := strings.TrimPrefix(strings.TrimPrefix(t.Host, "http://"), "https://")
	req.URL.Host = host
	req.Host = host
	rt := t.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	return rt.RoundTrip(req)
}
