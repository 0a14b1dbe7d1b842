package twitchapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrOffline is returned by CreateClip when the channel is not live.
var ErrOffline = errors.New("channel is offline")

// Channel binds a HelixClient to the bot's channel and moderator account.
type Channel struct {
	Helix       *HelixClient
	Broadcaster string
	// ModeratorID is the bot account's user id (from ValidateToken).
	ModeratorID string

	mu  sync.Mutex
	ids map[string]string
}

// NewChannel builds a Channel for broadcaster (login) moderated by moderatorID.
func NewChannel(helix *HelixClient, broadcaster, moderatorID string) *Channel {
	return &Channel{Helix: helix, Broadcaster: strings.ToLower(broadcaster), ModeratorID: moderatorID, ids: make(map[string]string)}
}

// userID resolves and caches a login's id.
func (c *Channel) userID(ctx context.Context, login string) (string, error) {
	login = strings.ToLower(strings.TrimPrefix(login, "@"))
	c.mu.Lock()
	id, ok := c.ids[login]
	c.mu.Unlock()
	if ok {
		return id, nil
	}
	id, err := c.Helix.GetUserID(ctx, login)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.ids[login] = id
	c.mu.Unlock()
	return id, nil
}

// SetTitle changes the stream title.
func (c *Channel) SetTitle(ctx context.Context, title string) error {
	id, err := c.userID(ctx, c.Broadcaster)
	if err != nil {
		return fmt.Errorf("resolve broadcaster: %w", err)
	}
	return c.Helix.UpdateTitle(ctx, id, title)
}

// CreateClip clips the live stream and returns its URL.
func (c *Channel) CreateClip(ctx context.Context) (string, error) {
	id, err := c.userID(ctx, c.Broadcaster)
	if err != nil {
		return "", fmt.Errorf("resolve broadcaster: %w", err)
	}
	stream, err := c.Helix.GetStream(ctx, id)
	if err != nil {
		return "", err
	}
	if stream == nil {
		return "", ErrOffline
	}
	clip, err := c.Helix.CreateClip(ctx, id)
	if err != nil {
		return "", err
	}
	return clip.URL(), nil
}

// Ban permanently bans login.
func (c *Channel) Ban(ctx context.Context, login, reason string) error {
	return c.restrict(ctx, login, 0, reason)
}

// Timeout suspends login for d.
func (c *Channel) Timeout(ctx context.Context, login string, d time.Duration, reason string) error {
	if d <= 0 {
		return fmt.Errorf("timeout duration must be positive")
	}
	return c.restrict(ctx, login, d, reason)
}

func (c *Channel) restrict(ctx context.Context, login string, d time.Duration, reason string) error {
	if c.ModeratorID == "" {
		return errors.New("moderator id unknown")
	}
	broadcasterID, err := c.userID(ctx, c.Broadcaster)
	if err != nil {
		return fmt.Errorf("resolve broadcaster: %w", err)
	}
	targetID, err := c.userID(ctx, login)
	if err != nil {
		return err
	}
	return c.Helix.BanUser(ctx, broadcasterID, c.ModeratorID, targetID, d, reason)
}
