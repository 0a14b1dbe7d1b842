package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/meteor314/twitch-bot/db"
)

// MemStore is an in-memory stand-in for db.Store with the same method set and
// error semantics (db.ErrNotFound, db.ErrConflict).
type MemStore struct {
	mu        sync.Mutex
	commands  map[string]*db.CustomCommand
	aliases   map[string]*db.CommandAlias
	points    map[string]*db.ViewerPoints
	schedules map[int64]*db.ScheduledMessage
	tokens    map[string]db.OAuthToken
	nextID    int64

	// Err, when set, is returned by every read and write.
	Err error
	// Credits records every CreditViewer call in order.
	Credits []Credit
	// Sent records every MarkScheduleSent call in order.
	Sent []ScheduleSent
}

// Credit is one recorded CreditViewer call.
type Credit struct {
	UserID, Username      string
	Points, WatchMinutes int
}

// ScheduleSent is one recorded MarkScheduleSent call.
type ScheduleSent struct {
	ID int64
	At time.Time
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		commands:  make(map[string]*db.CustomCommand),
		aliases:   make(map[string]*db.CommandAlias),
		points:    make(map[string]*db.ViewerPoints),
		schedules: make(map[int64]*db.ScheduledMessage),
		tokens:    make(map[string]db.OAuthToken),
	}
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (m *MemStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

func (m *MemStore) CreateCustomCommand(_ context.Context, name, response, createdBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	name = norm(name)
	if _, ok := m.commands[name]; ok {
		return fmt.Errorf("%w: custom_commands_name_key", db.ErrConflict)
	}
	m.nextID++
	now := time.Now()
	m.commands[name] = &db.CustomCommand{ID: m.nextID, Name: name, Response: response, CreatedBy: createdBy, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (m *MemStore) GetCustomCommand(_ context.Context, name string) (*db.CustomCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	c, ok := m.commands[norm(name)]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemStore) UpdateCustomCommand(_ context.Context, name, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	c, ok := m.commands[norm(name)]
	if !ok {
		return db.ErrNotFound
	}
	c.Response = response
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MemStore) DeleteCustomCommand(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.commands[norm(name)]; !ok {
		return db.ErrNotFound
	}
	delete(m.commands, norm(name))
	return nil
}

func (m *MemStore) IncrementUseCount(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	c, ok := m.commands[norm(name)]
	if !ok {
		return db.ErrNotFound
	}
	c.UseCount++
	return nil
}

func (m *MemStore) ListCustomCommands(context.Context) ([]db.CustomCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]db.CustomCommand, 0, len(m.commands))
	for _, c := range m.commands {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) CreateAlias(_ context.Context, alias, target, createdBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	alias = norm(alias)
	if _, ok := m.aliases[alias]; ok {
		return fmt.Errorf("%w: command_aliases_alias_key", db.ErrConflict)
	}
	m.nextID++
	m.aliases[alias] = &db.CommandAlias{ID: m.nextID, Alias: alias, Target: norm(target), CreatedBy: createdBy, CreatedAt: time.Now()}
	return nil
}

func (m *MemStore) GetAlias(_ context.Context, alias string) (*db.CommandAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	a, ok := m.aliases[norm(alias)]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemStore) DeleteAlias(_ context.Context, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.aliases[norm(alias)]; !ok {
		return db.ErrNotFound
	}
	delete(m.aliases, norm(alias))
	return nil
}

func (m *MemStore) ListAliases(context.Context) ([]db.CommandAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]db.CommandAlias, 0, len(m.aliases))
	for _, a := range m.aliases {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].Alias < out[j].Alias
	})
	return out, nil
}

func (m *MemStore) CreditViewer(_ context.Context, userID, username string, points, watchMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if points < 0 || watchMinutes < 0 {
		return errors.New("negative amount")
	}
	v, ok := m.points[userID]
	if !ok {
		v = &db.ViewerPoints{UserID: userID}
		m.points[userID] = v
	}
	v.Username = username
	v.Points += int64(points)
	v.WatchMinutes += int64(watchMinutes)
	v.LastSeen = time.Now()
	m.Credits = append(m.Credits, Credit{UserID: userID, Username: username, Points: points, WatchMinutes: watchMinutes})
	return nil
}

func (m *MemStore) GetViewerPoints(_ context.Context, userID string) (*db.ViewerPoints, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	v, ok := m.points[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemStore) TopViewers(_ context.Context, limit int) ([]db.ViewerPoints, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]db.ViewerPoints, 0, len(m.points))
	for _, v := range m.points {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Username < out[j].Username
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) CreateSchedule(_ context.Context, message string, intervalMinutes int) (*db.ScheduledMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if intervalMinutes <= 0 || intervalMinutes > db.MaxScheduleMinutes {
		return nil, fmt.Errorf("interval out of range: %d", intervalMinutes)
	}
	m.nextID++
	s := &db.ScheduledMessage{ID: m.nextID, Message: message, IntervalMinutes: intervalMinutes, Enabled: true, CreatedAt: time.Now()}
	m.schedules[s.ID] = s
	cp := *s
	return &cp, nil
}

// PutSchedule stores s as-is (tests use it to seed LastSentAt).
func (m *MemStore) PutSchedule(s db.ScheduledMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		m.nextID++
		s.ID = m.nextID
	}
	m.schedules[s.ID] = &s
}

func (m *MemStore) GetSchedule(_ context.Context, id int64) (*db.ScheduledMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.schedules[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) listSchedules(enabledOnly bool) ([]db.ScheduledMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]db.ScheduledMessage, 0, len(m.schedules))
	for _, s := range m.schedules {
		if enabledOnly && !s.Enabled {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) ListSchedules(context.Context) ([]db.ScheduledMessage, error) {
	return m.listSchedules(false)
}

func (m *MemStore) ListEnabledSchedules(context.Context) ([]db.ScheduledMessage, error) {
	return m.listSchedules(true)
}

func (m *MemStore) SetScheduleEnabled(_ context.Context, id int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	s, ok := m.schedules[id]
	if !ok {
		return db.ErrNotFound
	}
	s.Enabled = enabled
	return nil
}

func (m *MemStore) MarkScheduleSent(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	s, ok := m.schedules[id]
	if !ok {
		return db.ErrNotFound
	}
	t := at
	s.LastSentAt = &t
	m.Sent = append(m.Sent, ScheduleSent{ID: id, At: at})
	return nil
}

func (m *MemStore) DeleteSchedule(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.schedules[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *MemStore) UpsertOAuthToken(_ context.Context, tok db.OAuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.tokens[tok.Provider] = tok
	return nil
}

func (m *MemStore) GetOAuthToken(_ context.Context, provider string) (*db.OAuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	tok, ok := m.tokens[provider]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &tok, nil
}

// SentSnapshot returns a copy of the recorded MarkScheduleSent calls.
func (m *MemStore) SentSnapshot() []ScheduleSent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ScheduleSent(nil), m.Sent...)
}

// CreditsSnapshot returns a copy of the recorded CreditViewer calls.
func (m *MemStore) CreditsSnapshot() []Credit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Credit(nil), m.Credits...)
}

// SetErr sets the error returned by every call.
func (m *MemStore) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}
