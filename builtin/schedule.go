package builtin

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/meteor314/twitch-bot/command"
	"github.com/meteor314/twitch-bot/db"
)

const applyHint = "Reload schedules or restart the bot to apply."

func (s *set) schedule(ctx context.Context, inv command.Invocation) (string, error) {
	if len(inv.Args) < 2 {
		return s.usage(inv, "!schedule <minutes> <message>"), nil
	}
	minutes, err := strconv.Atoi(inv.Arg(0))
	if err != nil || minutes < 1 || minutes > db.MaxScheduleMinutes {
		return fmt.Sprintf("%s minutes must be between 1 and %d.", inv.Invoker.Mention(), db.MaxScheduleMinutes), nil
	}
	m, err := s.Store.CreateSchedule(ctx, inv.Rest(1), minutes)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s scheduled message #%d added (every %dmin). %s", inv.Invoker.Mention(), m.ID, minutes, applyHint), nil
}

func (s *set) schedules(ctx context.Context, inv command.Invocation) (string, error) {
	msgs, err := s.Store.ListSchedules(ctx)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return inv.Invoker.Mention() + " no scheduled messages configured.", nil
	}
	items := make([]string, len(msgs))
	for i, m := range msgs {
		state := "off"
		if m.Enabled {
			state = "on"
		}
		items[i] = fmt.Sprintf("#%d [%s] (%dmin): %q", m.ID, state, m.IntervalMinutes, truncate(m.Message, 33))
	}
	head := inv.Invoker.Mention() + " scheduled messages: "
	list, _ := joinLimited(items, " | ", maxReply-len(head))
	return head + list, nil
}

// scheduleID parses the id argument, returning a reply when it is unusable.
func (s *set) scheduleID(inv command.Invocation, usage string) (int64, string) {
	if len(inv.Args) == 0 {
		return 0, s.usage(inv, usage)
	}
	id, err := strconv.ParseInt(inv.Arg(0), 10, 64)
	if err != nil {
		return 0, inv.Invoker.Mention() + " the id must be a number."
	}
	return id, ""
}

func (s *set) notFoundSchedule(inv command.Invocation, id int64) string {
	return fmt.Sprintf("%s scheduled message #%d not found.", inv.Invoker.Mention(), id)
}

func (s *set) toggleSchedule(ctx context.Context, inv command.Invocation) (string, error) {
	id, reply := s.scheduleID(inv, "!toggleschedule <id>")
	if reply != "" {
		return reply, nil
	}
	m, err := s.Store.GetSchedule(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return s.notFoundSchedule(inv, id), nil
	}
	if err != nil {
		return "", err
	}
	if err := s.Store.SetScheduleEnabled(ctx, id, !m.Enabled); err != nil {
		return "", err
	}
	state := "enabled"
	if m.Enabled {
		state = "disabled"
	}
	return fmt.Sprintf("%s scheduled message #%d %s. %s", inv.Invoker.Mention(), id, state, applyHint), nil
}

func (s *set) removeSchedule(ctx context.Context, inv command.Invocation) (string, error) {
	id, reply := s.scheduleID(inv, "!removeschedule <id>")
	if reply != "" {
		return reply, nil
	}
	err := s.Store.DeleteSchedule(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return s.notFoundSchedule(inv, id), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s scheduled message #%d removed. %s", inv.Invoker.Mention(), id, applyHint), nil
}
