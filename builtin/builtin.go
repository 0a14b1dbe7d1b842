// Package builtin defines the bot's compiled-in commands and registers them
// into a command.Registry as an explicit table.
package builtin

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/meteor314/twitch-bot/chat"
	"github.com/meteor314/twitch-bot/command"
	"github.com/meteor314/twitch-bot/config"
	"github.com/meteor314/twitch-bot/db"
)

// maxReply keeps replies under Twitch's 500 character limit.
const maxReply = 450

// Store is the persistence surface the built-in commands use.
type Store interface {
	CreateCustomCommand(ctx context.Context, name, response, createdBy string) error
	GetCustomCommand(ctx context.Context, name string) (*db.CustomCommand, error)
	UpdateCustomCommand(ctx context.Context, name, response string) error
	DeleteCustomCommand(ctx context.Context, name string) error
	ListCustomCommands(ctx context.Context) ([]db.CustomCommand, error)

	CreateAlias(ctx context.Context, alias, target, createdBy string) error
	GetAlias(ctx context.Context, alias string) (*db.CommandAlias, error)
	DeleteAlias(ctx context.Context, alias string) error
	ListAliases(ctx context.Context) ([]db.CommandAlias, error)

	GetViewerPoints(ctx context.Context, userID string) (*db.ViewerPoints, error)
	TopViewers(ctx context.Context, limit int) ([]db.ViewerPoints, error)

	CreateSchedule(ctx context.Context, message string, intervalMinutes int) (*db.ScheduledMessage, error)
	GetSchedule(ctx context.Context, id int64) (*db.ScheduledMessage, error)
	ListSchedules(ctx context.Context) ([]db.ScheduledMessage, error)
	SetScheduleEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteSchedule(ctx context.Context, id int64) error
}

// ChatterStats is the read-only view of the session chatter tally.
type ChatterStats interface {
	TopChatters(n int) []chat.ChatterCount
}

// ChannelAPI performs channel management calls against the platform API.
type ChannelAPI interface {
	SetTitle(ctx context.Context, title string) error
	CreateClip(ctx context.Context) (string, error)
	Ban(ctx context.Context, login, reason string) error
	Timeout(ctx context.Context, login string, d time.Duration, reason string) error
}

// Deps carries everything the handlers need. Channel may be nil when no API
// credentials are configured; the commands that need it then say so.
type Deps struct {
	Bot         config.Bot
	Store       Store
	Chatters    ChatterStats
	Channel     ChannelAPI
	CommandsURL string
	ExportDir   string
	PublicDir   string
	Now         func() time.Time
}

type set struct {
	Deps
	reg *command.Registry
}

// Register adds every built-in command to reg.
func Register(reg *command.Registry, deps Deps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &set{Deps: deps, reg: reg}
	for _, d := range s.table() {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (s *set) table() []command.Descriptor {
	return []command.Descriptor{
		// custom command management
		{Name: "add", Description: "Create a custom command", Usage: "!add <name> <response>",
			Cooldown: 3 * time.Second, ModOnly: true, Handler: s.add},
		{Name: "edit", Description: "Change a custom command's response", Usage: "!edit <name> <response>",
			Cooldown: 3 * time.Second, ModOnly: true, Handler: s.edit},
		{Name: "remove", Aliases: []string{"delete", "del"}, Description: "Delete a custom command", Usage: "!remove <name>",
			Cooldown: 3 * time.Second, ModOnly: true, Handler: s.remove},
		{Name: "alias", Description: "Manage command aliases", Usage: "!alias <alias> <command> | !alias list | !alias remove <alias>",
			Cooldown: 5 * time.Second, ModOnly: true, Handler: s.alias},
		{Name: "commands", Aliases: []string{"commandes", "help", "aide"}, Description: "List available commands", Usage: "!commands",
			Cooldown: 30 * time.Second, Handler: s.commands},
		{Name: "export", Description: "Write the command list to disk", Usage: "!export",
			Cooldown: 30 * time.Second, OwnerOnly: true, Handler: s.export},

		// scheduled messages
		{Name: "schedule", Description: "Add a scheduled message", Usage: "!schedule <minutes> <message>",
			Cooldown: 3 * time.Second, OwnerOnly: true, Handler: s.schedule},
		{Name: "schedules", Aliases: []string{"messages", "automsgs"}, Description: "List scheduled messages", Usage: "!schedules",
			Cooldown: 10 * time.Second, ModOnly: true, Handler: s.schedules},
		{Name: "toggleschedule", Aliases: []string{"toggle"}, Description: "Enable or disable a scheduled message", Usage: "!toggleschedule <id>",
			Cooldown: 3 * time.Second, OwnerOnly: true, Handler: s.toggleSchedule},
		{Name: "removeschedule", Aliases: []string{"delschedule"}, Description: "Delete a scheduled message", Usage: "!removeschedule <id>",
			Cooldown: 3 * time.Second, OwnerOnly: true, Handler: s.removeSchedule},

		// points and activity
		{Name: "rank", Aliases: []string{"points", "score"}, Description: "Show your points and watch time", Usage: "!rank",
			Cooldown: 10 * time.Second, Handler: s.rank},
		{Name: "leaderboard", Aliases: []string{"top", "classement"}, Description: "Show the top viewers by points", Usage: "!leaderboard",
			Cooldown: 30 * time.Second, Handler: s.leaderboard},
		{Name: "topchatters", Aliases: []string{"topactive", "active"}, Description: "Show the most active chatters this session", Usage: "!topchatters",
			Cooldown: 30 * time.Second, Handler: s.topChatters},
		{Name: "endscreen", Aliases: []string{"exportchatters", "saveendscreen", "end"}, Description: "Save end screen data", Usage: "!endscreen",
			Cooldown: 30 * time.Second, ModOnly: true, Handler: s.endScreen},

		// channel management
		{Name: "title", Description: "Change the stream title", Usage: "!title <new title>",
			Cooldown: 10 * time.Second, ModOnly: true, Handler: s.title},
		{Name: "ban", Description: "Ban a user from chat", Usage: "!ban @user [reason]",
			Cooldown: 3 * time.Second, ModOnly: true, Handler: s.ban},
		{Name: "timeout", Aliases: []string{"to"}, Description: "Time a user out", Usage: "!timeout @user [minutes] [reason]",
			Cooldown: 3 * time.Second, ModOnly: true, Handler: s.timeout},
		{Name: "clip", Description: "Clip the live stream", Usage: "!clip",
			Cooldown: 30 * time.Second, ModOnly: true, Handler: s.clip},
	}
}

// usage replaces the leading "!" of a descriptor usage string with the
// configured prefix.
func (s *set) usage(inv command.Invocation, text string) string {
	return inv.Invoker.Mention() + " Usage: " + s.Bot.Prefix + strings.TrimPrefix(text, "!")
}

// cmdName normalizes a command name typed as an argument, with or without prefix.
func (s *set) cmdName(arg string) string {
	return command.NormalizeName(strings.TrimPrefix(arg, s.Bot.Prefix))
}

// truncate cuts s to at most n bytes on a rune boundary, appending "...".
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// joinLimited joins items with sep, stopping before the result exceeds max.
func joinLimited(items []string, sep string, max int) (string, int) {
	var b strings.Builder
	n := 0
	for _, it := range items {
		extra := len(it)
		if n > 0 {
			extra += len(sep)
		}
		if b.Len()+extra > max {
			break
		}
		if n > 0 {
			b.WriteString(sep)
		}
		b.WriteString(it)
		n++
	}
	return b.String(), n
}
