package chat

import (
	"sort"
	"strings"
	"sync"
)

// ChatterCount is one row of the chatter tally.
type ChatterCount struct {
	UserID   string
	Name     string
	Messages int
}

// Tally counts messages per chatter since start (or the last Reset).
type Tally struct {
	mu     sync.Mutex
	counts map[string]*ChatterCount
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]*ChatterCount)}
}

// Observe counts one message from userID, refreshing the stored display name.
func (t *Tally) Observe(userID, name string) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counts[userID]
	if !ok {
		c = &ChatterCount{UserID: userID}
		t.counts[userID] = c
	}
	c.Name = name
	c.Messages++
}

// TopChatters returns up to n chatters ordered by message count, then name.
func (t *Tally) TopChatters(n int) []ChatterCount {
	t.mu.Lock()
	out := make([]ChatterCount, 0, len(t.counts))
	for _, c := range t.counts {
		out = append(out, *c)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Messages != out[j].Messages {
			return out[i].Messages > out[j].Messages
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Reset forgets every count.
func (t *Tally) Reset() {
	t.mu.Lock()
	t.counts = make(map[string]*ChatterCount)
	t.mu.Unlock()
}

// Len returns the number of distinct chatters seen.
func (t *Tally) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counts)
}
