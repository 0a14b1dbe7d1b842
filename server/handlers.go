package server

import (
	"context"
	"encoding/json"
	"net/http"
)

// Pinger checks the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChatStatus reports the IRC connection state.
type ChatStatus interface {
	Connected() bool
}

// CooldownClearer resets command cooldowns.
type CooldownClearer interface {
	Clear() int
	ClearUser(user string) int
}

// ScheduleReloader restarts the broadcast timers from the database.
type ScheduleReloader interface {
	Reload(ctx context.Context) error
}

// Deps are the components the HTTP surface reports on or controls.
// Chat, Cooldowns and Schedules may be nil.
type Deps struct {
	DB         Pinger
	Chat       ChatStatus
	Cooldowns  CooldownClearer
	Schedules  ScheduleReloader
	AdminToken string
	// ReloadContext outlives the request that triggers a reload; defaults to Background.
	ReloadContext context.Context
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	if deps.ReloadContext == nil {
		deps.ReloadContext = context.Background()
	}
	return &Handlers{deps: deps}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
