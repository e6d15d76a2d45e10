// ABOUTME: Resolver chain that consults several directories in order
// ABOUTME: The first answer other than ErrNotFound wins

package identity

import (
	"context"
	"errors"
	"fmt"
)

// Chain tries each resolver in order.
type Chain []Resolver

// ResolveName returns the first name found. Errors other than ErrNotFound stop the search.
func (c Chain) ResolveName(ctx context.Context, uid UID) (string, error) {
	for _, r := range c {
		name, err := r.ResolveName(ctx, uid)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("uid %d: %w", uid, ErrNotFound)
}

// LookupUID asks every member that is a Directory.
func (c Chain) LookupUID(ctx context.Context, name string) (UID, error) {
	for _, r := range c {
		dir, ok := r.(Directory)
		if !ok {
			continue
		}
		uid, err := dir.LookupUID(ctx, name)
		if err == nil {
			return uid, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return NoUID, err
		}
	}
	return NoUID, fmt.Errorf("name %q: %w", name, ErrNotFound)
}
