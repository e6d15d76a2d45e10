// ABOUTME: Directory backed by the host's account database
// ABOUTME: Maps uids to login names through os/user

package identity

import (
	"context"
	"errors"
	"fmt"
	"os/user"
)

// SystemDirectory resolves identities against host accounts.
type SystemDirectory struct {
	lookupID   func(string) (*user.User, error)
	lookupName func(string) (*user.User, error)
}

// NewSystemDirectory returns a directory over the host account database.
func NewSystemDirectory() *SystemDirectory {
	return &SystemDirectory{
		lookupID:   user.LookupId,
		lookupName: user.Lookup,
	}
}

// ResolveName returns the login name for uid.
func (d *SystemDirectory) ResolveName(_ context.Context, uid UID) (string, error) {
	u, err := d.lookupID(uid.String())
	if err != nil {
		var unknown user.UnknownUserIdError
		if errors.As(err, &unknown) {
			return "", fmt.Errorf("uid %d: %w", uid, ErrNotFound)
		}
		return "", fmt.Errorf("looking up uid %d: %w", uid, err)
	}
	return u.Username, nil
}

// LookupUID returns the uid for a login name.
func (d *SystemDirectory) LookupUID(_ context.Context, name string) (UID, error) {
	u, err := d.lookupName(name)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return NoUID, fmt.Errorf("name %q: %w", name, ErrNotFound)
		}
		return NoUID, fmt.Errorf("looking up user %q: %w", name, err)
	}
	uid, err := ParseUID(u.Uid)
	if err != nil {
		return NoUID, fmt.Errorf("user %q has non-numeric uid %q: %w", name, u.Uid, err)
	}
	return uid, nil
}
