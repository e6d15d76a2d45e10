// ABOUTME: Identity types and the resolver contract consumed by the mailbox device
// ABOUTME: Carries the caller's uid through context for reads and writes

package identity

import (
	"context"
	"errors"
	"strconv"
)

// UID is a numeric user identity.
type UID uint32

// NoUID marks an absent identity.
const NoUID = UID(^uint32(0))

// ErrNotFound is returned when an identity or name has no mapping.
var ErrNotFound = errors.New("identity not found")

// String returns the decimal form of the uid.
func (u UID) String() string {
	return strconv.FormatUint(uint64(u), 10)
}

// ParseUID parses a decimal uid. NoUID is rejected.
func ParseUID(s string) (UID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return NoUID, err
	}
	if UID(n) == NoUID {
		return NoUID, strconv.ErrRange
	}
	return UID(n), nil
}

// Resolver maps a uid to its display name.
type Resolver interface {
	ResolveName(ctx context.Context, uid UID) (string, error)
}

// Directory is a Resolver that can also map a name back to its uid.
type Directory interface {
	Resolver
	LookupUID(ctx context.Context, name string) (UID, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, uid UID) (string, error)

// ResolveName calls f(ctx, uid).
func (f ResolverFunc) ResolveName(ctx context.Context, uid UID) (string, error) {
	return f(ctx, uid)
}

// callerKey is the context key for the calling uid.
type callerKey struct{}

// WithCaller returns a context carrying the calling uid.
func WithCaller(ctx context.Context, uid UID) context.Context {
	return context.WithValue(ctx, callerKey{}, uid)
}

// CallerFromContext returns the calling uid, if one was attached.
func CallerFromContext(ctx context.Context) (UID, bool) {
	uid, ok := ctx.Value(callerKey{}).(UID)
	if !ok || uid == NoUID {
		return NoUID, false
	}
	return uid, true
}
