// ABOUTME: Mock UserStore implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/2389/coven-mailbox/internal/identity"
)

// MockStore is an in-memory UserStore implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	users  map[identity.UID]*User // keyed by uid
	byName map[string]identity.UID
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:  make(map[identity.UID]*User),
		byName: make(map[string]identity.UID),
	}
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.UID]; exists {
		return ErrDuplicateUser
	}
	if _, exists := m.byName[user.Name]; exists {
		return ErrDuplicateUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	// Make a copy to avoid external modification
	u := *user
	m.users[u.UID] = &u
	m.byName[u.Name] = u.UID
	return nil
}

// GetUser retrieves a user by uid.
func (m *MockStore) GetUser(ctx context.Context, uid identity.UID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[uid]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

// GetUserByName retrieves a user by name.
func (m *MockStore) GetUserByName(ctx context.Context, name string) (*User, error) {
	m.mu.RLock()
	uid, ok := m.byName[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.GetUser(ctx, uid)
}

// ListUsers returns all users ordered by uid.
func (m *MockStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out := *u
		users = append(users, &out)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UID < users[j].UID })
	return users, nil
}

// DeleteUser removes a user.
func (m *MockStore) DeleteUser(ctx context.Context, uid identity.UID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[uid]
	if !ok {
		return ErrNotFound
	}
	delete(m.byName, u.Name)
	delete(m.users, uid)
	return nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}
