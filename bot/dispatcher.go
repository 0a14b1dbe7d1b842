// Package bot wires inbound chat messages to the command resolver and sends
// the replies.
package bot

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meteor314/twitch-bot/chat"
	"github.com/meteor314/twitch-bot/command"
	"github.com/meteor314/twitch-bot/config"
	"github.com/meteor314/twitch-bot/telemetry"
)

// ActivityTracker is fed every chat message (points accrual).
type ActivityTracker interface {
	MarkActive(userID, username string)
}

// ChatterCounter is fed every chat message (session tally).
type ChatterCounter interface {
	Observe(userID, name string)
}

// Dispatcher handles chat messages.
type Dispatcher struct {
	bot      config.Bot
	resolver *command.Resolver
	sender   chat.Sender
	activity ActivityTracker
	chatters ChatterCounter
}

// NewDispatcher builds a Dispatcher. activity and chatters may be nil.
func NewDispatcher(bot config.Bot, resolver *command.Resolver, sender chat.Sender, activity ActivityTracker, chatters ChatterCounter) *Dispatcher {
	return &Dispatcher{bot: bot, resolver: resolver, sender: sender, activity: activity, chatters: chatters}
}

// Handle processes one chat message to completion. It matches chat.Handler.
func (d *Dispatcher) Handle(ctx context.Context, msg chat.Message) {
	if d.bot.IsSelf(msg.Login) {
		return
	}
	telemetry.IncChatMessages()
	if d.chatters != nil {
		d.chatters.Observe(msg.UserID, msg.DisplayName)
	}
	if d.activity != nil {
		d.activity.MarkActive(msg.UserID, msg.DisplayName)
	}

	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "dispatcher"), slog.String("user", msg.Login))

	req := command.Request{
		Channel: msg.Channel,
		Text:    msg.Text,
		Invoker: command.Invoker{
			ID:            msg.UserID,
			Login:         msg.Login,
			DisplayName:   msg.DisplayName,
			IsModerator:   msg.IsModerator,
			IsSubscriber:  msg.IsSubscriber,
			IsBroadcaster: msg.IsBroadcaster || d.bot.IsBroadcaster(msg.Login),
			IsOwner:       d.bot.IsOwner(msg.Login),
		},
	}
	out, err := d.resolver.Resolve(ctx, req)
	if err != nil {
		logger.Error("command lookup failed", slog.String("command", out.Command), slog.Any("err", err))
		return
	}

	switch out.Status {
	case command.StatusNotCommand, command.StatusNoMatch:
		return
	case command.StatusDenied, command.StatusRateLimited:
		logger.Debug("command rejected", slog.String("command", out.Command), slog.String("status", out.Status.String()), slog.Int("remaining", out.Remaining))
	case command.StatusReady:
		out = d.resolver.Execute(ctx, out.Action)
		logger.Info("command executed", slog.String("command", out.Command), slog.String("status", out.Status.String()))
	}

	if out.Reply == "" {
		return
	}
	if err := d.sender.Send(ctx, msg.Channel, out.Reply); err != nil {
		logger.Warn("failed to send reply", slog.String("command", out.Command), slog.Any("err", err))
	}
}
