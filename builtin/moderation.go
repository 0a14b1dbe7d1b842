package builtin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/meteor314/twitch-bot/command"
	"github.com/meteor314/twitch-bot/telemetry"
	"github.com/meteor314/twitch-bot/twitchapi"
)

const defaultTimeoutMinutes = 10

func (s *set) notConfigured(inv command.Invocation) string {
	return inv.Invoker.Mention() + " Twitch API access is not configured."
}

// apiFailure logs err and returns a short user-facing reply.
func apiFailure(ctx context.Context, inv command.Invocation, action string, err error) string {
	telemetry.LoggerWithCorr(ctx).Warn("twitch api call failed",
		slog.String("component", "builtin"),
		slog.String("command", inv.Command),
		slog.Any("err", err))
	var apiErr *twitchapi.APIError
	if errors.As(err, &apiErr) && apiErr.Status == 401 {
		return fmt.Sprintf("%s could not %s: the bot is missing permissions.", inv.Invoker.Mention(), action)
	}
	return fmt.Sprintf("%s could not %s.", inv.Invoker.Mention(), action)
}

func (s *set) title(ctx context.Context, inv command.Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return s.usage(inv, "!title <new title>"), nil
	}
	if s.Channel == nil {
		return s.notConfigured(inv), nil
	}
	title := inv.Rest(0)
	if err := s.Channel.SetTitle(ctx, title); err != nil {
		return apiFailure(ctx, inv, "update the title", err), nil
	}
	return fmt.Sprintf("%s stream title updated: %q", inv.Invoker.Mention(), title), nil
}

// target validates a moderation target, returning a refusal reply if needed.
func (s *set) target(inv command.Invocation, verb string) (string, string) {
	login := strings.ToLower(strings.TrimPrefix(inv.Arg(0), "@"))
	switch {
	case login == "":
		return "", s.usage(inv, "!"+inv.Command+" @user")
	case s.Bot.IsBroadcaster(login):
		return "", fmt.Sprintf("%s cannot %s the broadcaster.", inv.Invoker.Mention(), verb)
	case s.Bot.IsSelf(login):
		return "", fmt.Sprintf("%s cannot %s the bot.", inv.Invoker.Mention(), verb)
	}
	return login, ""
}

func reasonFrom(inv command.Invocation, from int) string {
	if r := inv.Rest(from); r != "" {
		return r
	}
	return "No reason provided"
}

func (s *set) ban(ctx context.Context, inv command.Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return s.usage(inv, "!ban @user [reason]"), nil
	}
	login, reply := s.target(inv, "ban")
	if reply != "" {
		return reply, nil
	}
	if s.Channel == nil {
		return s.notConfigured(inv), nil
	}
	reason := reasonFrom(inv, 1)
	if err := s.Channel.Ban(ctx, login, reason); err != nil {
		if errors.Is(err, twitchapi.ErrNotFound) {
			return fmt.Sprintf("%s user %s not found.", inv.Invoker.Mention(), login), nil
		}
		return apiFailure(ctx, inv, "ban "+login, err), nil
	}
	return fmt.Sprintf("%s %s has been banned. Reason: %s", inv.Invoker.Mention(), login, reason), nil
}

func (s *set) timeout(ctx context.Context, inv command.Invocation) (string, error) {
	if len(inv.Args) == 0 {
		return s.usage(inv, "!timeout @user [minutes] [reason]"), nil
	}
	login, reply := s.target(inv, "time out")
	if reply != "" {
		return reply, nil
	}
	minutes, reasonAt := defaultTimeoutMinutes, 1
	if arg := inv.Arg(1); arg != "" {
		if n, err := strconv.Atoi(arg); err == nil {
			if n <= 0 {
				return inv.Invoker.Mention() + " the duration must be a positive number of minutes.", nil
			}
			minutes, reasonAt = n, 2
		}
	}
	if s.Channel == nil {
		return s.notConfigured(inv), nil
	}
	reason := reasonFrom(inv, reasonAt)
	if err := s.Channel.Timeout(ctx, login, time.Duration(minutes)*time.Minute, reason); err != nil {
		if errors.Is(err, twitchapi.ErrNotFound) {
			return fmt.Sprintf("%s user %s not found.", inv.Invoker.Mention(), login), nil
		}
		return apiFailure(ctx, inv, "time out "+login, err), nil
	}
	return fmt.Sprintf("%s %s has been timed out for %d minute(s). Reason: %s", inv.Invoker.Mention(), login, minutes, reason), nil
}

func (s *set) clip(ctx context.Context, inv command.Invocation) (string, error) {
	if s.Channel == nil {
		return s.notConfigured(inv), nil
	}
	url, err := s.Channel.CreateClip(ctx)
	if errors.Is(err, twitchapi.ErrOffline) {
		return inv.Invoker.Mention() + " the stream must be live to create a clip.", nil
	}
	if err != nil {
		return apiFailure(ctx, inv, "create a clip", err), nil
	}
	return fmt.Sprintf("%s clip created! %s", inv.Invoker.Mention(), url), nil
}
