package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meteor314/twitch-bot/cooldown"
	"github.com/meteor314/twitch-bot/testutil"
)

type fakeChat struct{ up bool }

func (f fakeChat) Connected() bool { return f.up }

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) Reload(context.Context) error {
	f.calls++
	return f.err
}

func newTestMux(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if deps.DB == nil {
		deps.DB = testutil.NewMemStore()
	}
	return NewMux(ctx, deps)
}

func do(t *testing.T, h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	store := testutil.NewMemStore()
	h := newTestMux(t, Deps{DB: store})

	if rec := do(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	store.SetErr(errors.New("db down"))
	if rec := do(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz with db down = %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		chat       ChatStatus
		wantCode   int
		wantFailed string
	}{
		{"ready", nil, fakeChat{up: true}, http.StatusOK, ""},
		{"chat down", nil, fakeChat{up: false}, http.StatusServiceUnavailable, "chat"},
		{"no chat", nil, nil, http.StatusServiceUnavailable, "chat"},
		{"db down", errors.New("db down"), fakeChat{up: true}, http.StatusServiceUnavailable, "database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemStore()
			store.SetErr(tt.dbErr)
			h := newTestMux(t, Deps{DB: store, Chat: tt.chat})
			rec := do(t, h, http.MethodGet, "/readyz", nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["failed_check"] != tt.wantFailed {
				t.Errorf("failed_check = %q, want %q", body["failed_check"], tt.wantFailed)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestMux(t, Deps{})
	if rec := do(t, h, http.MethodGet, "/metrics", nil); rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestCorrelationID(t *testing.T) {
	h := newTestMux(t, Deps{})
	rec := do(t, h, http.MethodGet, "/healthz", map[string]string{"X-Correlation-ID": "abc-123"})
	if got := rec.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("corr = %q, want echo", got)
	}
	rec = do(t, h, http.MethodGet, "/healthz", nil)
	if got := rec.Header().Get("X-Correlation-ID"); len(got) != 36 {
		t.Errorf("generated corr = %q, want uuid", got)
	}
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	h := newTestMux(t, Deps{Cooldowns: cooldown.New()})
	if rec := do(t, h, http.MethodDelete, "/admin/cooldowns", nil); rec.Code != http.StatusNotFound {
		t.Errorf("admin without token = %d, want 404", rec.Code)
	}
}

func TestClearCooldowns(t *testing.T) {
	cd := cooldown.New()
	cd.Arm("u1", "rank", time.Minute)
	cd.Arm("u1", "joke", time.Minute)
	cd.Arm("u2", "rank", time.Minute)
	h := newTestMux(t, Deps{Cooldowns: cd, AdminToken: "s3cret"})
	auth := map[string]string{"Authorization": "Bearer s3cret"}

	if rec := do(t, h, http.MethodDelete, "/admin/cooldowns", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/admin/cooldowns", map[string]string{"X-Admin-Token": "nope"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d", rec.Code)
	}

	rec := do(t, h, http.MethodDelete, "/admin/cooldowns?user=u1", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear user = %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Cleared int    `json:"cleared"`
		User    string `json:"user"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Cleared != 2 || body.User != "u1" || cd.Len() != 1 {
		t.Errorf("body = %+v, remaining = %d", body, cd.Len())
	}

	rec = do(t, h, http.MethodDelete, "/admin/cooldowns", map[string]string{"X-Admin-Token": "s3cret"})
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusOK || body.Cleared != 1 || cd.Len() != 0 {
		t.Errorf("clear all = %d %+v", rec.Code, body)
	}

	if rec := do(t, h, http.MethodGet, "/admin/cooldowns", auth); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET = %d, want 405", rec.Code)
	}
}

func TestReloadSchedules(t *testing.T) {
	rl := &fakeReloader{}
	h := newTestMux(t, Deps{Schedules: rl, AdminToken: "s3cret"})
	auth := map[string]string{"Authorization": "Bearer s3cret"}

	if rec := do(t, h, http.MethodPost, "/admin/schedules/reload", auth); rec.Code != http.StatusOK || rl.calls != 1 {
		t.Errorf("reload = %d calls=%d", rec.Code, rl.calls)
	}
	rl.err = errors.New("db down")
	if rec := do(t, h, http.MethodPost, "/admin/schedules/reload", auth); rec.Code != http.StatusInternalServerError {
		t.Errorf("failed reload = %d", rec.Code)
	}

	h = newTestMux(t, Deps{AdminToken: "s3cret"})
	if rec := do(t, h, http.MethodPost, "/admin/schedules/reload", auth); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no scheduler = %d", rec.Code)
	}
}
