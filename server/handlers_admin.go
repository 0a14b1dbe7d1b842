package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meteor314/twitch-bot/telemetry"
)

// HandleClearCooldowns drops every cooldown, or only those of ?user=<id>.
func (h *Handlers) HandleClearCooldowns(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cooldowns == nil {
		http.Error(w, "cooldowns unavailable", http.StatusServiceUnavailable)
		return
	}
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	var n int
	if user != "" {
		n = h.deps.Cooldowns.ClearUser(user)
	} else {
		n = h.deps.Cooldowns.Clear()
	}
	telemetry.LoggerWithCorr(r.Context()).Info("cooldowns cleared",
		slog.String("component", "http_admin"), slog.String("user", user), slog.Int("cleared", n))
	writeJSON(w, http.StatusOK, map[string]any{"cleared": n, "user": user})
}

// HandleReloadSchedules restarts the broadcast scheduler.
func (h *Handlers) HandleReloadSchedules(w http.ResponseWriter, r *http.Request) {
	if h.deps.Schedules == nil {
		http.Error(w, "scheduler unavailable", http.StatusServiceUnavailable)
		return
	}
	logger := telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "http_admin"))
	if err := h.deps.Schedules.Reload(h.deps.ReloadContext); err != nil {
		logger.Error("schedule reload failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	logger.Info("schedules reloaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
