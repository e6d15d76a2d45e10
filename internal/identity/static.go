// ABOUTME: Fixed uid-to-name directory configured up front
// ABOUTME: Used for tests and small deployments declared in the config file

package identity

import (
	"context"
	"fmt"
	"sort"
)

// StaticDirectory is an immutable Directory built from a uid→name table.
type StaticDirectory struct {
	names map[UID]string
	uids  map[string]UID
}

// NewStaticDirectory builds a directory. Duplicate names are rejected.
func NewStaticDirectory(users map[UID]string) (*StaticDirectory, error) {
	d := &StaticDirectory{
		names: make(map[UID]string, len(users)),
		uids:  make(map[string]UID, len(users)),
	}
	for uid, name := range users {
		if name == "" {
			return nil, fmt.Errorf("uid %d has an empty name", uid)
		}
		if other, exists := d.uids[name]; exists {
			return nil, fmt.Errorf("name %q assigned to both uid %d and uid %d", name, other, uid)
		}
		d.names[uid] = name
		d.uids[name] = uid
	}
	return d, nil
}

// ResolveName returns the name registered for uid.
func (d *StaticDirectory) ResolveName(_ context.Context, uid UID) (string, error) {
	name, ok := d.names[uid]
	if !ok {
		return "", fmt.Errorf("uid %d: %w", uid, ErrNotFound)
	}
	return name, nil
}

// LookupUID returns the uid registered for name.
func (d *StaticDirectory) LookupUID(_ context.Context, name string) (UID, error) {
	uid, ok := d.uids[name]
	if !ok {
		return NoUID, fmt.Errorf("name %q: %w", name, ErrNotFound)
	}
	return uid, nil
}

// UIDs returns the registered uids in ascending order.
func (d *StaticDirectory) UIDs() []UID {
	out := make([]UID, 0, len(d.names))
	for uid := range d.names {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
