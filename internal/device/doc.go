// Package device implements the read/write protocol of the shared mailbox device.
//
// # Writes
//
// A write moves through RECEIVED → PARSED → RESOLVED → STORED:
//
//  1. Reject when the unread queue is already full
//  2. Copy the caller's bytes (ErrTransferFault on failure)
//  3. Parse "@recipient payload" (protocol.ErrMalformedMessage)
//  4. Optionally check the recipient exists (ErrUnknownRecipient)
//  5. Build the message and append it (mailbox.ErrCapacityExceeded on a lost race)
//
// # Reads
//
// A read moves through RECEIVED → RESOLVED → FORMATTED → FLUSHED → DELIVERED.
// The caller and every sender are resolved without holding the mailbox lock.
// Formatting, delivery into the caller's writer and promotion of the matched
// unread messages then happen in one mailbox transaction:
//
//   - if delivery fails nothing is promoted
//   - if a new sender appeared meanwhile the transaction is retried
//   - a read at a non-zero position returns io.EOF
//
// # Files
//
// File binds a caller and a position for use as an io.ReadWriter, the way an
// open file descriptor on a character device would.
package device
