// ABOUTME: Mailbox store holding the unread and read queues of one device
// ABOUTME: All mutations and the capacity check run under a single mutex

package mailbox

import (
	"errors"
	"fmt"
	"sync"

	"github.com/2389/coven-mailbox/internal/message"
)

var (
	// ErrCapacityExceeded is returned when the unread queue is full.
	ErrCapacityExceeded = errors.New("unread capacity exceeded")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("mailbox closed")
)

// Visibility controls whether reads re-show messages that were already read.
type Visibility int

const (
	UnreadOnly Visibility = iota
	IncludeRead
)

// String returns the configuration spelling of v.
func (v Visibility) String() string {
	switch v {
	case UnreadOnly:
		return "unread_only"
	case IncludeRead:
		return "include_read"
	default:
		return fmt.Sprintf("visibility(%d)", int(v))
	}
}

// ParseVisibility parses "unread_only" or "include_read". Empty means UnreadOnly.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "", "unread_only":
		return UnreadOnly, nil
	case "include_read":
		return IncludeRead, nil
	default:
		return UnreadOnly, fmt.Errorf("unknown visibility mode %q (want unread_only or include_read)", s)
	}
}

// Config is fixed at construction.
type Config struct {
	Capacity   int
	Visibility Visibility
}

// Origin tells which queue a matched message came from.
type Origin int

const (
	FromUnread Origin = iota
	FromRead
)

// Match is one message returned by a scan.
type Match struct {
	Message *message.Message
	Origin  Origin
}

// Unread reports whether the match came from the unread queue.
func (m Match) Unread() bool {
	return m.Origin == FromUnread
}

// Stats is a point-in-time view of queue sizes.
type Stats struct {
	Unread     int
	Read       int
	Capacity   int
	Visibility Visibility
}

// Store is the shared message store of one device.
type Store struct {
	mu     sync.Mutex
	unread []*message.Message
	read   []*message.Message
	closed bool

	capacity   int
	visibility Visibility
}

// New creates an empty store. Capacity must be positive.
func New(cfg Config) (*Store, error) {
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("capacity must be positive, got %d", cfg.Capacity)
	}
	if cfg.Visibility != UnreadOnly && cfg.Visibility != IncludeRead {
		return nil, fmt.Errorf("invalid visibility %d", int(cfg.Visibility))
	}
	return &Store{
		unread:     make([]*message.Message, 0, cfg.Capacity),
		capacity:   cfg.Capacity,
		visibility: cfg.Visibility,
	}, nil
}

// Capacity returns the maximum number of unread messages.
func (s *Store) Capacity() int {
	return s.capacity
}

// Visibility returns the configured read visibility.
func (s *Store) Visibility() Visibility {
	return s.visibility
}

// Full reports whether the unread queue is at capacity.
func (s *Store) Full() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	return len(s.unread) >= s.capacity, nil
}

// Append adds msg to the tail of the unread queue.
// Nothing is changed when the queue is full.
func (s *Store) Append(msg *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if len(s.unread) >= s.capacity {
		return ErrCapacityExceeded
	}
	s.unread = append(s.unread, msg)
	return nil
}

// ScanFor returns every message addressed to recipient in queue order,
// unread first. Read messages are included when includeRead is set or the
// store is configured with IncludeRead.
func (s *Store) ScanFor(recipient string, includeRead bool) ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.scanLocked(recipient, includeRead), nil
}

// scanLocked must be called with mu held.
func (s *Store) scanLocked(recipient string, includeRead bool) []Match {
	var matches []Match
	for _, m := range s.unread {
		if m.Recipient == recipient {
			matches = append(matches, Match{Message: m, Origin: FromUnread})
		}
	}
	if includeRead || s.visibility == IncludeRead {
		for _, m := range s.read {
			if m.Recipient == recipient {
				matches = append(matches, Match{Message: m, Origin: FromRead})
			}
		}
	}
	return matches
}

// PromoteAllMatching moves every unread message for recipient to the tail of
// the read queue, keeping their relative order. It returns how many moved.
func (s *Store) PromoteAllMatching(recipient string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	return s.promoteLocked(recipient), nil
}

// promoteLocked must be called with mu held.
func (s *Store) promoteLocked(recipient string) int {
	kept := s.unread[:0]
	moved := 0
	for _, m := range s.unread {
		if m.Recipient == recipient {
			s.read = append(s.read, m)
			moved++
			continue
		}
		kept = append(kept, m)
	}
	// Clear the tail so moved messages are only referenced from read
	for i := len(kept); i < len(s.unread); i++ {
		s.unread[i] = nil
	}
	s.unread = kept
	return moved
}

// Deliver scans for recipient, hands the matches to fn and, only if fn
// returns nil, promotes the matched unread messages. The whole sequence holds
// the store lock, so fn must not block. It returns the number promoted.
func (s *Store) Deliver(recipient string, includeRead bool, fn func([]Match) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	matches := s.scanLocked(recipient, includeRead)
	if err := fn(matches); err != nil {
		return 0, err
	}

	unread := 0
	for _, m := range matches {
		if m.Unread() {
			unread++
		}
	}
	if unread == 0 {
		return 0, nil
	}
	return s.promoteLocked(recipient), nil
}

// Stats returns the current queue sizes.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Unread:     len(s.unread),
		Read:       len(s.read),
		Capacity:   s.capacity,
		Visibility: s.visibility,
	}
}

// Close drops both queues. Later calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	for _, m := range s.unread {
		_ = m.Release()
	}
	for _, m := range s.read {
		_ = m.Release()
	}
	s.unread = nil
	s.read = nil
	s.closed = true
	return nil
}
