// Package identity maps numeric user identities to display names.
//
// The mailbox device never decides who a caller is. The transport attaches
// the calling uid to the request context with WithCaller, and the device asks
// a Resolver for display names of callers and senders.
//
// # Resolvers
//
//   - StaticDirectory: fixed table from configuration
//   - SystemDirectory: host accounts via os/user
//   - store.Directory: SQLite-backed user table (package store)
//   - CachingResolver: TTL cache in front of any resolver
//   - Chain: several resolvers consulted in order
//
// A Directory can also map a name back to its uid, which the device uses when
// it is configured to reject mail for unknown recipients.
//
// # Errors
//
// Every resolver reports a missing mapping with an error wrapping ErrNotFound.
package identity
