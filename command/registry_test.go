package command

import (
	"context"
	"strings"
	"testing"
	"time"
)

func noop(context.Context, Invocation) (string, error) { return "", nil }

func TestRegistryRegister(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr string
	}{
		{name: "ok", desc: Descriptor{Name: "Rank", Aliases: []string{"points", "Score"}, Handler: noop}},
		{name: "empty name", desc: Descriptor{Name: "  ", Handler: noop}, wantErr: "empty name"},
		{name: "nil handler", desc: Descriptor{Name: "x"}, wantErr: "nil handler"},
		{name: "negative cooldown", desc: Descriptor{Name: "x", Cooldown: -time.Second, Handler: noop}, wantErr: "negative cooldown"},
		{name: "empty alias", desc: Descriptor{Name: "x", Aliases: []string{""}, Handler: noop}, wantErr: "empty alias"},
		{name: "alias repeats name", desc: Descriptor{Name: "x", Aliases: []string{"X"}, Handler: noop}, wantErr: "listed twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.desc)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Register() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Register() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryCollisions(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Descriptor{Name: "rank", Aliases: []string{"points"}, Handler: noop}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Descriptor{Name: "points", Handler: noop}); err == nil {
		t.Error("registering a name already used as an alias should fail")
	}
	if err := r.Register(Descriptor{Name: "top", Aliases: []string{"RANK"}, Handler: noop}); err == nil {
		t.Error("registering an alias already used as a name should fail")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, failed registrations must not leave entries", r.Len())
	}
	if _, ok := r.Lookup("top"); ok {
		t.Error("partially registered descriptor is visible")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Descriptor{Name: "rank", Aliases: []string{"points", "score"}, Handler: noop})
	_ = r.Register(Descriptor{Name: "clip", Handler: noop})

	for _, n := range []string{"rank", "RANK", " points ", "Score"} {
		d, ok := r.Lookup(n)
		if !ok || d.Name != "rank" {
			t.Errorf("Lookup(%q) = %v, %v; want rank", n, d, ok)
		}
	}
	if _, ok := r.Lookup("nope"); ok {
		t.Error("Lookup(nope) should miss")
	}

	got := r.Descriptors()
	if len(got) != 2 || got[0].Name != "clip" || got[1].Name != "rank" {
		t.Errorf("Descriptors() not sorted by name: %v", got)
	}
}

func TestRegistryIsReserved(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Descriptor{Name: "clip", Aliases: []string{"clipit"}, Handler: noop})
	tests := map[string]bool{
		"help":   true, // reserved list
		"Delete": true,
		"clip":   true, // registered
		"clipit": true,
		"joke":   false,
	}
	for name, want := range tests {
		if got := r.IsReserved(name); got != want {
			t.Errorf("IsReserved(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestInvocationArgs(t *testing.T) {
	inv := Invocation{Args: []string{"a", "b", "c"}}
	if inv.Arg(1) != "b" || inv.Arg(3) != "" || inv.Arg(-1) != "" {
		t.Errorf("Arg() wrong")
	}
	if inv.Rest(1) != "b c" || inv.Rest(5) != "" {
		t.Errorf("Rest() = %q", inv.Rest(1))
	}
}

func TestInvokerMention(t *testing.T) {
	if got := (Invoker{Login: "bob", DisplayName: "Bob"}).Mention(); got != "@Bob" {
		t.Errorf("Mention() = %q", got)
	}
	if got := (Invoker{Login: "bob"}).Mention(); got != "@bob" {
		t.Errorf("Mention() = %q", got)
	}
}
