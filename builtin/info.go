package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/meteor314/twitch-bot/command"
	"github.com/meteor314/twitch-bot/db"
)

func (s *set) commands(ctx context.Context, inv command.Invocation) (string, error) {
	custom, err := s.Store.ListCustomCommands(ctx)
	if err != nil {
		return "", err
	}
	total := s.reg.Len() + len(custom)
	if s.CommandsURL != "" {
		return fmt.Sprintf("%s %d commands: %s", inv.Invoker.Mention(), total, s.CommandsURL), nil
	}

	names := make([]string, 0, total)
	for _, d := range s.reg.Descriptors() {
		if d.OwnerOnly || d.ModOnly {
			continue
		}
		names = append(names, s.Bot.Prefix+d.Name)
	}
	for _, c := range custom {
		names = append(names, s.Bot.Prefix+c.Name)
	}
	head := fmt.Sprintf("%s %d commands: ", inv.Invoker.Mention(), total)
	list, n := joinLimited(names, " ", maxReply-len(head)-4)
	if n < len(names) {
		list += " ..."
	}
	return head + list, nil
}

func formatWatch(minutes int64) string {
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}

func (s *set) rank(ctx context.Context, inv command.Invocation) (string, error) {
	me := inv.Invoker.Mention()
	if len(inv.Args) > 0 {
		return fmt.Sprintf("%s use %sleaderboard to see the ranking.", me, s.Bot.Prefix), nil
	}
	vp, err := s.Store.GetViewerPoints(ctx, inv.Invoker.ID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && vp.Points == 0) {
		return me + " you have no points yet. Stick around to earn some!", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s you have %d points | watch time: %s", me, vp.Points, formatWatch(vp.WatchMinutes)), nil
}

func (s *set) leaderboard(ctx context.Context, _ command.Invocation) (string, error) {
	top, err := s.Store.TopViewers(ctx, 5)
	if err != nil {
		return "", err
	}
	if len(top) == 0 {
		return "No points have been awarded yet!", nil
	}
	items := make([]string, len(top))
	for i, v := range top {
		items[i] = fmt.Sprintf("%d. %s: %d pts", i+1, v.Username, v.Points)
	}
	list, _ := joinLimited(items, " | ", maxReply)
	return "Top viewers: " + list, nil
}

func (s *set) topChatters(_ context.Context, inv command.Invocation) (string, error) {
	if s.Chatters == nil {
		return inv.Invoker.Mention() + " chat statistics are unavailable.", nil
	}
	top := s.Chatters.TopChatters(10)
	if len(top) == 0 {
		return inv.Invoker.Mention() + " nobody has chatted since the stream started.", nil
	}
	items := make([]string, len(top))
	for i, c := range top {
		items[i] = fmt.Sprintf("%d. %s (%d)", i+1, c.Name, c.Messages)
	}
	head := fmt.Sprintf("%s top %d chatters: ", inv.Invoker.Mention(), len(top))
	list, _ := joinLimited(items, " | ", maxReply-len(head))
	return head + list, nil
}
