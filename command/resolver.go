package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meteor314/twitch-bot/config"
	"github.com/meteor314/twitch-bot/cooldown"
	"github.com/meteor314/twitch-bot/db"
	"github.com/meteor314/twitch-bot/telemetry"
)

// Store is the slice of the database the resolver reads.
type Store interface {
	GetAlias(ctx context.Context, alias string) (*db.CommandAlias, error)
	GetCustomCommand(ctx context.Context, name string) (*db.CustomCommand, error)
	IncrementUseCount(ctx context.Context, name string) error
}

// Status is the result class of a resolution or execution.
type Status int

const (
	StatusNotCommand Status = iota
	StatusNoMatch
	StatusDenied
	StatusRateLimited
	StatusReady
	StatusExecuted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotCommand:
		return "not_command"
	case StatusNoMatch:
		return "no_match"
	case StatusDenied:
		return telemetry.OutcomeDenied
	case StatusRateLimited:
		return telemetry.OutcomeRateLimited
	case StatusReady:
		return "ready"
	case StatusExecuted:
		return telemetry.OutcomeExecuted
	case StatusFailed:
		return telemetry.OutcomeFailed
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ErrPermission marks a denied invocation.
var ErrPermission = errors.New("permission denied")

// HandlerError wraps an error or panic raised inside a command handler.
type HandlerError struct {
	Command string
	Err     error
}

func (e *HandlerError) Error() string { return fmt.Sprintf("command %s: %v", e.Command, e.Err) }
func (e *HandlerError) Unwrap() error { return e.Err }

// Request is a chat line to resolve.
type Request struct {
	Channel string
	Invoker Invoker
	Text    string
}

// Action is a resolved, permitted, not-rate-limited command ready to run.
type Action struct {
	Descriptor *Descriptor
	Invocation Invocation
	// Custom marks a command served from the custom_commands table.
	Custom bool
}

// Outcome reports what happened to a request. Reply is the text to send, if any.
type Outcome struct {
	Status    Status
	Command   string
	Reply     string
	Remaining int
	Action    *Action
	Err       error
}

// Resolver implements the three-tier lookup, permission and cooldown gates,
// execution and post-execution bookkeeping.
type Resolver struct {
	bot            config.Bot
	registry       *Registry
	store          Store
	cooldowns      *cooldown.Tracker
	customCooldown time.Duration
	logger         *slog.Logger
}

// NewResolver builds a Resolver. customCooldown applies to every custom command.
func NewResolver(bot config.Bot, registry *Registry, store Store, cooldowns *cooldown.Tracker, customCooldown time.Duration) *Resolver {
	return &Resolver{
		bot:            bot,
		registry:       registry,
		store:          store,
		cooldowns:      cooldowns,
		customCooldown: customCooldown,
		logger:         slog.Default().With(slog.String("component", "resolver")),
	}
}

// Parse splits a chat line into a lower-cased command name and its arguments.
// ok is false when text does not start with prefix or has nothing after it.
func Parse(prefix, text string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(text[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return NormalizeName(fields[0]), fields[1:], true
}

// Resolve finds the command named in req and applies the permission and cooldown
// gates. Store failures are returned as errors; a miss is StatusNoMatch.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Outcome, error) {
	name, args, ok := Parse(r.bot.Prefix, req.Text)
	if !ok {
		return Outcome{Status: StatusNotCommand}, nil
	}

	desc, custom, err := r.lookup(ctx, name)
	if err != nil {
		return Outcome{Status: StatusNoMatch, Command: name}, err
	}
	if desc == nil {
		return Outcome{Status: StatusNoMatch, Command: name}, nil
	}

	inv := req.Invoker
	switch {
	case desc.OwnerOnly && !inv.IsOwner:
		telemetry.ObserveCommand(telemetry.OutcomeDenied)
		return Outcome{
			Status:  StatusDenied,
			Command: desc.Name,
			Reply:   fmt.Sprintf("%s this command is reserved for the bot owner.", inv.Mention()),
			Err:     ErrPermission,
		}, nil
	case desc.ModOnly && !inv.CanModerate():
		telemetry.ObserveCommand(telemetry.OutcomeDenied)
		return Outcome{
			Status:  StatusDenied,
			Command: desc.Name,
			Reply:   fmt.Sprintf("%s this command is reserved for moderators.", inv.Mention()),
			Err:     ErrPermission,
		}, nil
	}

	if active, remaining := r.cooldowns.Check(inv.ID, desc.Name); active {
		telemetry.ObserveCommand(telemetry.OutcomeRateLimited)
		return Outcome{
			Status:    StatusRateLimited,
			Command:   desc.Name,
			Remaining: remaining,
			Reply:     fmt.Sprintf("%s please wait %ds before using %s%s again.", inv.Mention(), remaining, r.bot.Prefix, name),
		}, nil
	}

	return Outcome{
		Status:  StatusReady,
		Command: desc.Name,
		Action: &Action{
			Descriptor: desc,
			Custom:     custom,
			Invocation: Invocation{
				Command: desc.Name,
				Called:  name,
				Args:    args,
				Invoker: inv,
				Channel: req.Channel,
			},
		},
	}, nil
}

// lookup walks the three tiers. A nil descriptor with nil error is a miss.
func (r *Resolver) lookup(ctx context.Context, name string) (*Descriptor, bool, error) {
	if d, ok := r.registry.Lookup(name); ok {
		return d, false, nil
	}

	alias, err := r.store.GetAlias(ctx, name)
	switch {
	case err == nil:
		// one hop, built-ins only; a dangling or non-built-in target falls through
		if d, ok := r.registry.Lookup(alias.Target); ok {
			return d, false, nil
		}
	case !errors.Is(err, db.ErrNotFound):
		return nil, false, fmt.Errorf("lookup alias %q: %w", name, err)
	}

	cmd, err := r.store.GetCustomCommand(ctx, name)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup custom command %q: %w", name, err)
	}
	response := cmd.Response
	return &Descriptor{
		Name:     cmd.Name,
		Cooldown: r.customCooldown,
		Handler: func(context.Context, Invocation) (string, error) {
			return response, nil
		},
	}, true, nil
}

// Execute runs a resolved action. Use count and cooldown are only written when
// the handler succeeds; a failed command can be retried immediately.
func (r *Resolver) Execute(ctx context.Context, a *Action) Outcome {
	inv := a.Invocation
	ctx, span := telemetry.StartSpan(ctx, "command.execute", telemetry.CommandAttrs(inv.Command, inv.Invoker.ID, a.Custom)...)
	defer span.End()

	var (
		reply string
		err   error
	)
	telemetry.TimeFunc(telemetry.CommandDuration, func() {
		reply, err = r.run(ctx, a)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.ObserveCommand(telemetry.OutcomeFailed)
		telemetry.LoggerWithCorr(ctx).Error("command handler failed",
			slog.String("component", "resolver"),
			slog.String("command", inv.Command),
			slog.String("user", inv.Invoker.Login),
			slog.Any("args", inv.Args),
			slog.Any("err", err))
		return Outcome{
			Status:  StatusFailed,
			Command: inv.Command,
			Reply:   fmt.Sprintf("%s sorry, something went wrong while running that command.", inv.Invoker.Mention()),
			Err:     err,
		}
	}

	if a.Custom {
		if err := r.store.IncrementUseCount(ctx, inv.Command); err != nil {
			r.logger.Warn("failed to increment use count", slog.String("command", inv.Command), slog.Any("err", err))
		}
	}
	r.cooldowns.Arm(inv.Invoker.ID, inv.Command, a.Descriptor.Cooldown)

	telemetry.SetSpanSuccess(span)
	telemetry.ObserveCommand(telemetry.OutcomeExecuted)
	return Outcome{Status: StatusExecuted, Command: inv.Command, Reply: reply}
}

func (r *Resolver) run(ctx context.Context, a *Action) (reply string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerError{Command: a.Invocation.Command, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	reply, err = a.Descriptor.Handler(ctx, a.Invocation)
	if err != nil {
		return "", &HandlerError{Command: a.Invocation.Command, Err: err}
	}
	return reply, nil
}
