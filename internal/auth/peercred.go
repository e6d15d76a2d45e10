// ABOUTME: Caller identity from SO_PEERCRED on unix domain socket connections
// ABOUTME: Used as http.Server.ConnContext so each request carries the peer's uid

package auth

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/2389/coven-mailbox/internal/identity"
)

// PeerUID returns the uid of the process on the other end of a unix socket.
func PeerUID(conn *net.UnixConn) (identity.UID, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return identity.NoUID, fmt.Errorf("getting raw connection: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return identity.NoUID, fmt.Errorf("controlling socket: %w", err)
	}
	if credErr != nil {
		return identity.NoUID, fmt.Errorf("reading peer credentials: %w", credErr)
	}

	return identity.UID(cred.Uid), nil
}

// PeerCredentials returns an http.Server ConnContext hook that attaches the
// peer uid of unix socket connections. Other connections pass through untouched.
func PeerCredentials(onError func(error)) func(ctx context.Context, c net.Conn) context.Context {
	return func(ctx context.Context, c net.Conn) context.Context {
		uc, ok := c.(*net.UnixConn)
		if !ok {
			return ctx
		}
		uid, err := PeerUID(uc)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return ctx
		}
		return identity.WithCaller(ctx, uid)
	}
}
