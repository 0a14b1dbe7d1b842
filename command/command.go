// Package command holds the command registry and the resolver that turns a chat
// line into an executable action.
//
// Names live in three namespaces, checked in order: built-in descriptors
// registered at startup, aliases stored in the database (one hop, built-in
// targets only), and custom commands stored in the database. A name may be
// claimed by only one of them; the add and alias commands consult
// Registry.IsReserved before writing.
package command

import (
	"context"
	"strings"
	"time"
)

// ReservedNames can never be used for custom commands or aliases, whether or not
// a built-in currently claims them.
var ReservedNames = []string{
	"commands", "commandes", "help", "aide",
	"title", "add", "edit", "remove", "delete", "del",
	"export", "rank", "points", "alias",
}

// Handler runs a command and returns the reply text ("" for no reply).
type Handler func(ctx context.Context, inv Invocation) (string, error)

// Descriptor describes a built-in command.
type Descriptor struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Cooldown    time.Duration
	OwnerOnly   bool
	ModOnly     bool
	Handler     Handler
}

// Invoker identifies who sent a command.
type Invoker struct {
	ID            string
	Login         string
	DisplayName   string
	IsModerator   bool
	IsSubscriber  bool
	IsBroadcaster bool
	IsOwner       bool
}

// CanModerate reports whether the invoker passes the moderator gate.
func (i Invoker) CanModerate() bool {
	return i.IsModerator || i.IsBroadcaster || i.IsOwner
}

// Mention returns "@DisplayName".
func (i Invoker) Mention() string {
	if i.DisplayName != "" {
		return "@" + i.DisplayName
	}
	return "@" + i.Login
}

// Invocation is what a handler receives.
type Invocation struct {
	// Command is the resolved name, Called the name as typed.
	Command string
	Called  string
	Args    []string
	Invoker Invoker
	Channel string
}

// Arg returns the i-th argument or "".
func (inv Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// Rest joins the arguments from i onward with single spaces.
func (inv Invocation) Rest(i int) string {
	if i >= len(inv.Args) {
		return ""
	}
	return strings.Join(inv.Args[i:], " ")
}

// NormalizeName lower-cases and trims a command name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
