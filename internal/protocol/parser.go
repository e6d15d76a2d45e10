// ABOUTME: Wire format parser for raw device writes of the form "@recipient payload\n"
// ABOUTME: Enforces token bounds and reports malformed input instead of truncating it

package protocol

import (
	"errors"
	"fmt"

	"github.com/2389/coven-mailbox/internal/message"
)

// RecipientMarker must be the first byte of every write.
const RecipientMarker = '@'

// MaxWriteSize is the largest raw write that can hold a valid message:
// marker, name, one separator, payload and a trailing "\r\n".
const MaxWriteSize = 1 + message.MaxUsernameLen + 1 + message.MaxMessageLen + 2

// ErrMalformedMessage is returned for any input that violates the wire format.
var ErrMalformedMessage = errors.New("malformed message")

// Parsed is the structured result of a successful Parse.
type Parsed struct {
	Recipient string
	Payload   []byte
}

// isSpace matches the C isspace set.
func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// token returns the non-whitespace run starting at i and the index just past it.
func token(raw []byte, i int) ([]byte, int) {
	start := i
	for i < len(raw) && !isSpace(raw[i]) {
		i++
	}
	return raw[start:i], i
}

// skipSpace returns the index of the first non-whitespace byte at or after i.
func skipSpace(raw []byte, i int) int {
	for i < len(raw) && isSpace(raw[i]) {
		i++
	}
	return i
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, reason)
}

// Parse extracts the recipient and payload from a raw write.
// The returned payload aliases raw.
func Parse(raw []byte) (Parsed, error) {
	if len(raw) == 0 || raw[0] != RecipientMarker {
		return Parsed{}, malformed("missing recipient marker")
	}

	name, i := token(raw, 1)
	if len(name) == 0 {
		return Parsed{}, malformed("empty recipient")
	}
	if len(name) > message.MaxUsernameLen {
		return Parsed{}, malformed(fmt.Sprintf("recipient exceeds %d bytes", message.MaxUsernameLen))
	}
	if i == len(raw) {
		return Parsed{}, malformed("missing separator")
	}

	i = skipSpace(raw, i)
	payload, i := token(raw, i)
	if len(payload) == 0 {
		return Parsed{}, malformed("missing payload")
	}
	if len(payload) > message.MaxMessageLen {
		return Parsed{}, malformed(fmt.Sprintf("payload exceeds %d bytes", message.MaxMessageLen))
	}

	if skipSpace(raw, i) != len(raw) {
		return Parsed{}, malformed("unexpected data after payload")
	}

	return Parsed{Recipient: string(name), Payload: payload}, nil
}
