// Package mailbox implements the message store behind the mailbox device.
//
// # Queues
//
// A Store holds two ordered queues. Writes append to unread, bounded by the
// configured capacity. Reads move matching unread messages to read; nothing
// ever moves back and nothing is deleted before Close.
//
//	unread --(successful read by recipient)--> read
//
// # Concurrency
//
// Every operation takes the store's mutex. Deliver runs scan, the caller's
// delivery callback and promotion as a single critical section, so a message
// is promoted exactly when its delivery succeeded and concurrent readers of
// the same recipient never both receive it as unread.
//
// # Visibility
//
// With UnreadOnly a read shows only unread messages. With IncludeRead it also
// re-shows read messages, marked as such by the formatter.
package mailbox
