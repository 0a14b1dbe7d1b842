// Package cooldown tracks per-user, per-command rate limits in memory.
//
// Entries are keyed by (user id, resolved command name) and hold an expiry
// instant. Reads never mutate; expired entries are swept whenever a new
// cooldown is armed. Nothing is persisted, so a restart clears every cooldown.
package cooldown

import (
	"strings"
	"sync"
	"time"

	"github.com/meteor314/twitch-bot/telemetry"
)

type key struct {
	user    string
	command string
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	entries map[key]time.Time
	now     func() time.Time
}

// New returns an empty Tracker using the wall clock.
func New() *Tracker {
	return &Tracker{entries: make(map[key]time.Time), now: time.Now}
}

func makeKey(user, command string) key {
	return key{user: user, command: strings.ToLower(command)}
}

// Check reports whether user is still cooling down on command and, if so, how many
// whole seconds remain (rounded up).
func (t *Tracker) Check(user, command string) (active bool, remaining int) {
	t.mu.RLock()
	exp, ok := t.entries[makeKey(user, command)]
	t.mu.RUnlock()
	if !ok {
		return false, 0
	}
	left := exp.Sub(t.now())
	if left <= 0 {
		return false, 0
	}
	return true, int((left + time.Second - 1) / time.Second)
}

// Arm starts a cooldown of d for user on command. Non-positive durations are ignored.
func (t *Tracker) Arm(user, command string, d time.Duration) {
	if d <= 0 {
		return
	}
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, exp := range t.entries {
		if !exp.After(now) {
			delete(t.entries, k)
		}
	}
	t.entries[makeKey(user, command)] = now.Add(d)
	telemetry.SetCooldownEntries(len(t.entries))
}

// Clear drops every cooldown.
func (t *Tracker) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.entries)
	t.entries = make(map[key]time.Time)
	telemetry.SetCooldownEntries(0)
	return n
}

// ClearUser drops every cooldown held by user and returns how many were removed.
func (t *Tracker) ClearUser(user string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k := range t.entries {
		if k.user == user {
			delete(t.entries, k)
			n++
		}
	}
	telemetry.SetCooldownEntries(len(t.entries))
	return n
}

// Len returns the number of stored entries, expired ones included until the next sweep.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
