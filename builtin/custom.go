package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meteor314/twitch-bot/command"
	"github.com/meteor314/twitch-bot/db"
)

// claimed reports why name cannot be used for a new custom command or alias,
// or "" when it is free of built-ins and aliases.
func (s *set) claimed(ctx context.Context, name string) (string, error) {
	if s.reg.IsReserved(name) {
		return fmt.Sprintf("%s%s is a built-in command and cannot be redefined.", s.Bot.Prefix, name), nil
	}
	a, err := s.Store.GetAlias(ctx, name)
	switch {
	case err == nil:
		return fmt.Sprintf("%s%s is already an alias for %s%s.", s.Bot.Prefix, name, s.Bot.Prefix, a.Target), nil
	case !errors.Is(err, db.ErrNotFound):
		return "", err
	}
	return "", nil
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t")
}

func (s *set) add(ctx context.Context, inv command.Invocation) (string, error) {
	if len(inv.Args) < 2 {
		return s.usage(inv, "!add <name> <response>"), nil
	}
	name := s.cmdName(inv.Arg(0))
	if !validName(name) {
		return s.usage(inv, "!add <name> <response>"), nil
	}
	msg, err := s.claimed(ctx, name)
	if err != nil {
		return "", err
	}
	if msg != "" {
		return inv.Invoker.Mention() + " " + msg, nil
	}

	err = s.Store.CreateCustomCommand(ctx, name, inv.Rest(1), inv.Invoker.Login)
	if errors.Is(err, db.ErrConflict) {
		return fmt.Sprintf("%s command %s%s already exists. Use %sedit to change it.", inv.Invoker.Mention(), s.Bot.Prefix, name, s.Bot.Prefix), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s command %s%s created.", inv.Invoker.Mention(), s.Bot.Prefix, name), nil
}

func (s *set) edit(ctx context.Context, inv command.Invocation) (string, error) {
	if len(inv.Args) < 2 {
		return s.usage(inv, "!edit <name> <response>"), nil
	}
	name := s.cmdName(inv.Arg(0))
	err := s.Store.UpdateCustomCommand(ctx, name, inv.Rest(1))
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Sprintf("%s command %s%s does not exist. Use %sadd to create it.", inv.Invoker.Mention(), s.Bot.Prefix, name, s.Bot.Prefix), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s command %s%s updated.", inv.Invoker.Mention(), s.Bot.Prefix, name), nil
}

func (s *set) remove(ctx context.Context, inv command.Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return s.usage(inv, "!remove <name>"), nil
	}
	name := s.cmdName(inv.Arg(0))
	err := s.Store.DeleteCustomCommand(ctx, name)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Sprintf("%s command %s%s does not exist.", inv.Invoker.Mention(), s.Bot.Prefix, name), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s command %s%s removed.", inv.Invoker.Mention(), s.Bot.Prefix, name), nil
}

func (s *set) alias(ctx context.Context, inv command.Invocation) (string, error) {
	const usage = "!alias <alias> <command> | !alias list | !alias remove <alias>"
	if len(inv.Args) == 0 {
		return s.usage(inv, usage), nil
	}
	switch strings.ToLower(inv.Arg(0)) {
	case "list":
		return s.aliasList(ctx, inv)
	case "remove", "delete":
		if len(inv.Args) < 2 {
			return s.usage(inv, "!alias remove <alias>"), nil
		}
		return s.aliasRemove(ctx, inv, s.cmdName(inv.Arg(1)))
	}
	if len(inv.Args) < 2 {
		return s.usage(inv, usage), nil
	}
	return s.aliasCreate(ctx, inv, s.cmdName(inv.Arg(0)), s.cmdName(inv.Arg(1)))
}

func (s *set) aliasList(ctx context.Context, inv command.Invocation) (string, error) {
	aliases, err := s.Store.ListAliases(ctx)
	if err != nil {
		return "", err
	}
	if len(aliases) == 0 {
		return inv.Invoker.Mention() + " no aliases defined.", nil
	}
	items := make([]string, len(aliases))
	for i, a := range aliases {
		items[i] = fmt.Sprintf("%s%s -> %s%s", s.Bot.Prefix, a.Alias, s.Bot.Prefix, a.Target)
	}
	head := fmt.Sprintf("%s aliases (%d): ", inv.Invoker.Mention(), len(aliases))
	list, _ := joinLimited(items, ", ", maxReply-len(head))
	return head + list, nil
}

func (s *set) aliasRemove(ctx context.Context, inv command.Invocation, name string) (string, error) {
	err := s.Store.DeleteAlias(ctx, name)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Sprintf("%s alias %s%s does not exist.", inv.Invoker.Mention(), s.Bot.Prefix, name), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s alias %s%s removed.", inv.Invoker.Mention(), s.Bot.Prefix, name), nil
}

func (s *set) aliasCreate(ctx context.Context, inv command.Invocation, name, target string) (string, error) {
	me := inv.Invoker.Mention()
	if !validName(name) {
		return s.usage(inv, "!alias <alias> <command>"), nil
	}
	msg, err := s.claimed(ctx, name)
	if err != nil {
		return "", err
	}
	if msg != "" {
		return me + " " + msg, nil
	}
	if _, err := s.Store.GetCustomCommand(ctx, name); err == nil {
		return fmt.Sprintf("%s %s%s is already a custom command.", me, s.Bot.Prefix, name), nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return "", err
	}

	d, ok := s.reg.Lookup(target)
	if !ok {
		if _, err := s.Store.GetCustomCommand(ctx, target); err == nil {
			return fmt.Sprintf("%s aliases can only point at built-in commands.", me), nil
		} else if !errors.Is(err, db.ErrNotFound) {
			return "", err
		}
		return fmt.Sprintf("%s command %s%s does not exist.", me, s.Bot.Prefix, target), nil
	}

	err = s.Store.CreateAlias(ctx, name, d.Name, inv.Invoker.Login)
	if errors.Is(err, db.ErrConflict) {
		return fmt.Sprintf("%s alias %s%s already exists.", me, s.Bot.Prefix, name), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s alias created: %s%s -> %s%s", me, s.Bot.Prefix, name, s.Bot.Prefix, d.Name), nil
}
