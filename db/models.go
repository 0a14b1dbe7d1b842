package db

import "time"

// CustomCommand is a user-authored name/response pair.
type CustomCommand struct {
	ID        int64
	Name      string
	Response  string
	CreatedBy string
	UseCount  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommandAlias maps an alternative name onto a command.
type CommandAlias struct {
	ID        int64
	Alias     string
	Target    string
	CreatedBy string
	CreatedAt time.Time
}

// ViewerPoints is the engagement ledger row for one chatter.
type ViewerPoints struct {
	UserID       string
	Username     string
	Points       int64
	WatchMinutes int64
	LastSeen     time.Time
}

// ScheduledMessage is a message broadcast to chat on a fixed interval.
type ScheduledMessage struct {
	ID              int64
	Message         string
	IntervalMinutes int
	Enabled         bool
	LastSentAt      *time.Time
	CreatedAt       time.Time
}

// MaxScheduleMinutes caps a scheduled message interval at one week.
const MaxScheduleMinutes = 7 * 24 * 60

// OAuthToken is a persisted token for a provider (the bot account uses "twitch").
type OAuthToken struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
}
