// ABOUTME: Tests for the SQLite user directory
// ABOUTME: Uses a temporary database file per test

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-mailbox/internal/identity"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// userStores runs a test against every UserStore implementation.
func userStores(t *testing.T) map[string]UserStore {
	return map[string]UserStore{
		"sqlite": setupTestStore(t),
		"mock":   NewMockStore(),
	}
}

func TestUserStore_CreateAndGet(t *testing.T) {
	for name, s := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.CreateUser(ctx, &User{UID: 1000, Name: "alice"}))

			u, err := s.GetUser(ctx, 1000)
			require.NoError(t, err)
			assert.Equal(t, "alice", u.Name)
			assert.False(t, u.CreatedAt.IsZero())

			u, err = s.GetUserByName(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, identity.UID(1000), u.UID)
		})
	}
}

func TestUserStore_Duplicate(t *testing.T) {
	for name, s := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.CreateUser(ctx, &User{UID: 1000, Name: "alice"}))
			assert.ErrorIs(t, s.CreateUser(ctx, &User{UID: 1000, Name: "bob"}), ErrDuplicateUser)
			assert.ErrorIs(t, s.CreateUser(ctx, &User{UID: 1001, Name: "alice"}), ErrDuplicateUser)
		})
	}
}

func TestUserStore_NotFound(t *testing.T) {
	for name, s := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetUser(ctx, 42)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, err, identity.ErrNotFound)

			_, err = s.GetUserByName(ctx, "nobody")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, s.DeleteUser(ctx, 42), ErrNotFound)
		})
	}
}

func TestUserStore_ListAndDelete(t *testing.T) {
	for name, s := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.CreateUser(ctx, &User{UID: 1001, Name: "bob"}))
			require.NoError(t, s.CreateUser(ctx, &User{UID: 1000, Name: "alice"}))

			users, err := s.ListUsers(ctx)
			require.NoError(t, err)
			require.Len(t, users, 2)
			assert.Equal(t, "alice", users[0].Name)
			assert.Equal(t, "bob", users[1].Name)

			require.NoError(t, s.DeleteUser(ctx, 1000))

			users, err = s.ListUsers(ctx)
			require.NoError(t, err)
			require.Len(t, users, 1)
			assert.Equal(t, "bob", users[0].Name)

			// Name is free again after deletion
			assert.NoError(t, s.CreateUser(ctx, &User{UID: 1002, Name: "alice"}))
		})
	}
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.CreateUser(ctx, &User{UID: 10, Name: "alice"}))

	var dir identity.Directory = Directory{Users: s}

	name, err := dir.ResolveName(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	uid, err := dir.LookupUID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, identity.UID(10), uid)

	_, err = dir.ResolveName(ctx, 11)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "users.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.CreateUser(ctx, &User{UID: 7, Name: "carol"}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	u, err := s.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "carol", u.Name)
}
