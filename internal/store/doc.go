// Package store provides persistent storage for the mailbox user directory using SQLite.
//
// # Architecture
//
// UserStore is the persistence interface. SQLiteStore implements it on
// modernc.org/sqlite and MockStore implements it in memory. Directory adapts
// any UserStore to identity.Directory so the mailbox device can resolve
// sender and caller names through it.
//
// Messages themselves are never persisted; the mailbox is in-memory only.
//
// # Data Models
//
//   - User: uid, unique display name, creation time
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//
// Database file locations:
//
//   - Production: /var/lib/coven-mailbox/users.db
//   - Development: ~/.local/share/coven/users.db
//   - Testing: a file under t.TempDir()
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested user does not exist (also matches identity.ErrNotFound)
//   - ErrDuplicateUser: uid or name already registered
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests:
//
//	users := store.NewMockStore()
//	dir := store.Directory{Users: users}
package store
