package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// ErrNotConnected is returned by Send while the IRC connection is down.
var ErrNotConnected = errors.New("chat: not connected")

// Message is one chat line as seen by the bot.
type Message struct {
	ID            string
	Channel       string
	UserID        string
	Login         string
	DisplayName   string
	IsModerator   bool
	IsSubscriber  bool
	IsBroadcaster bool
	Text          string
	ReceivedAt    time.Time
}

// Handler processes one inbound message.
type Handler func(ctx context.Context, msg Message)

// Sender sends text to a channel.
type Sender interface {
	Send(ctx context.Context, channel, text string) error
}

// FromPrivateMessage converts a go-twitch-irc PRIVMSG into a Message.
func FromPrivateMessage(pm twitch.PrivateMessage) Message {
	received := pm.Time
	if received.IsZero() {
		received = time.Now()
	}
	display := pm.User.DisplayName
	if display == "" {
		display = pm.User.Name
	}
	return Message{
		ID:            pm.ID,
		Channel:       strings.ToLower(pm.Channel),
		UserID:        pm.User.ID,
		Login:         strings.ToLower(pm.User.Name),
		DisplayName:   display,
		IsModerator:   pm.Tags["mod"] == "1" || pm.User.Badges["moderator"] > 0,
		IsSubscriber:  pm.Tags["subscriber"] == "1" || pm.User.Badges["subscriber"] > 0 || pm.User.Badges["founder"] > 0,
		IsBroadcaster: pm.User.Badges["broadcaster"] > 0,
		Text:          strings.TrimSpace(pm.Message),
		ReceivedAt:    received,
	}
}
