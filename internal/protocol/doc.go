// Package protocol implements the mailbox device's text protocol.
//
// # Writes
//
// A write carries exactly one message:
//
//	"@" recipient SP+ payload [SP* "\n"]
//
// recipient and payload are non-whitespace runs bounded by
// message.MaxUsernameLen and message.MaxMessageLen. Parse is pure and rejects
// anything else with ErrMalformedMessage.
//
// # Reads
//
// A read returns one line per visible message, unread messages first:
//
//	* alice:	hello
//	  alice:	an older message
package protocol
