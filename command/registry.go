package command

import (
	"errors"
	"fmt"
	"sort"
)

// Registry indexes built-in descriptors by name and alias. Register everything
// before the bot starts serving; lookups afterwards are lock-free reads.
type Registry struct {
	byName   map[string]*Descriptor
	primary  []*Descriptor
	reserved map[string]struct{}
}

// NewRegistry returns an empty Registry seeded with ReservedNames.
func NewRegistry() *Registry {
	r := &Registry{
		byName:   make(map[string]*Descriptor),
		reserved: make(map[string]struct{}, len(ReservedNames)),
	}
	for _, n := range ReservedNames {
		r.reserved[n] = struct{}{}
	}
	return r
}

// Register adds d under its name and every alias. Duplicate names are errors.
func (r *Registry) Register(d Descriptor) error {
	d.Name = NormalizeName(d.Name)
	if d.Name == "" {
		return errors.New("register command: empty name")
	}
	if d.Handler == nil {
		return fmt.Errorf("register command %q: nil handler", d.Name)
	}
	if d.Cooldown < 0 {
		return fmt.Errorf("register command %q: negative cooldown", d.Name)
	}

	names := []string{d.Name}
	aliases := make([]string, 0, len(d.Aliases))
	for _, a := range d.Aliases {
		a = NormalizeName(a)
		if a == "" {
			return fmt.Errorf("register command %q: empty alias", d.Name)
		}
		aliases = append(aliases, a)
		names = append(names, a)
	}
	d.Aliases = aliases

	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return fmt.Errorf("register command %q: %q listed twice", d.Name, n)
		}
		seen[n] = struct{}{}
		if other, ok := r.byName[n]; ok {
			return fmt.Errorf("register command %q: name %q already registered by %q", d.Name, n, other.Name)
		}
	}

	desc := &d
	for _, n := range names {
		r.byName[n] = desc
	}
	r.primary = append(r.primary, desc)
	return nil
}

// Lookup finds a descriptor by name or alias, case-insensitively.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.byName[NormalizeName(name)]
	return d, ok
}

// IsReserved reports whether name is claimed by a built-in or the reserved list.
func (r *Registry) IsReserved(name string) bool {
	name = NormalizeName(name)
	if _, ok := r.reserved[name]; ok {
		return true
	}
	_, ok := r.byName[name]
	return ok
}

// Descriptors returns the registered commands sorted by name.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, len(r.primary))
	copy(out, r.primary)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of primary descriptors.
func (r *Registry) Len() int { return len(r.primary) }
