// ABOUTME: Message value delivered through the mailbox device
// ABOUTME: Construction validates inputs and copies the payload into owned storage

package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-mailbox/internal/identity"
)

// Protocol bounds shared by the parser and the store.
const (
	MaxUsernameLen = 32
	MaxMessageLen  = 256
)

var (
	// ErrInvalidArgument is returned for an empty payload, a missing sender or a missing recipient.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAllocationFailure is returned when the payload does not fit the message's backing storage.
	ErrAllocationFailure = errors.New("allocation failure")
)

// Message is one delivered message. It is immutable after New returns.
type Message struct {
	ID        string
	Payload   []byte
	Sender    identity.UID
	Recipient string
	CreatedAt time.Time
}

// New builds a Message from a parsed write. The payload is copied.
func New(payload []byte, sender identity.UID, recipient string) (*Message, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidArgument)
	}
	if sender == identity.NoUID {
		return nil, fmt.Errorf("%w: missing sender identity", ErrInvalidArgument)
	}
	if recipient == "" {
		return nil, fmt.Errorf("%w: missing recipient", ErrInvalidArgument)
	}
	if len(payload) > MaxMessageLen {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrAllocationFailure, len(payload), MaxMessageLen)
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)

	return &Message{
		ID:        uuid.New().String(),
		Payload:   buf,
		Sender:    sender,
		Recipient: recipient,
		CreatedAt: time.Now(),
	}, nil
}

// Len returns the payload length in bytes.
func (m *Message) Len() int {
	return len(m.Payload)
}

// Release exists for symmetry with New. Queue ownership governs a message's lifetime.
func (m *Message) Release() error {
	return nil
}
