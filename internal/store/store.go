// ABOUTME: Store interface and data types for the mailbox user directory
// ABOUTME: Defines User and the UserStore interface for uid/name persistence

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389/coven-mailbox/internal/identity"
)

// ErrNotFound is returned when a requested user does not exist.
// It wraps identity.ErrNotFound so resolvers built on a store report misses uniformly.
var ErrNotFound = fmt.Errorf("user %w", identity.ErrNotFound)

// ErrDuplicateUser is returned when a uid or name is already registered
var ErrDuplicateUser = errors.New("user already exists")

// User maps a numeric identity to its display name
type User struct {
	UID       identity.UID
	Name      string
	CreatedAt time.Time
}

// UserStore defines the interface for user directory persistence
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, uid identity.UID) (*User, error)
	GetUserByName(ctx context.Context, name string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	DeleteUser(ctx context.Context, uid identity.UID) error

	// Close releases any resources held by the store
	Close() error
}

// Directory adapts a UserStore to identity.Directory.
type Directory struct {
	Users UserStore
}

// ResolveName returns the name registered for uid.
func (d Directory) ResolveName(ctx context.Context, uid identity.UID) (string, error) {
	u, err := d.Users.GetUser(ctx, uid)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

// LookupUID returns the uid registered for name.
func (d Directory) LookupUID(ctx context.Context, name string) (identity.UID, error) {
	u, err := d.Users.GetUserByName(ctx, name)
	if err != nil {
		return identity.NoUID, err
	}
	return u.UID, nil
}
