// ABOUTME: Tests for unix socket peer credential extraction
// ABOUTME: Dials a real socket in a temp dir and checks the reported uid

package auth

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-mailbox/internal/identity"
)

func TestPeerCredentials_UnixSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "mailbox.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer client.Close()

	server, ok := <-accepted
	require.True(t, ok, "accept failed")
	defer server.Close()

	hook := PeerCredentials(func(err error) { t.Errorf("unexpected error: %v", err) })
	ctx := hook(context.Background(), server)

	uid, ok := identity.CallerFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, identity.UID(os.Getuid()), uid)
}

func TestPeerCredentials_NonUnixPassthrough(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ctx := PeerCredentials(nil)(context.Background(), a)

	_, ok := identity.CallerFromContext(ctx)
	assert.False(t, ok)
}
