// ABOUTME: Entry point for coven-mail, the command-line mail client
// ABOUTME: Sends and reads mailbox messages through a coven-mailbox server

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
