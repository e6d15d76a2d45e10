// Package message defines the Message value stored by the mailbox.
//
// A Message is created once per successful write and is owned by exactly one
// mailbox queue afterwards. Messages are never mutated and never deleted
// individually; reading a message moves it from the unread queue to the read
// queue.
//
// # Bounds
//
//   - MaxUsernameLen bounds recipient names
//   - MaxMessageLen bounds payloads
package message
