// Package auth establishes who is calling the mailbox device.
//
// # Transports
//
// Two sources of caller identity are supported:
//
//   - Unix socket: the kernel reports the peer's uid (SO_PEERCRED). Install
//     PeerCredentials as the http.Server's ConnContext.
//   - TCP/tailnet: an HS256 JWT in the Authorization header whose "sub" claim
//     is the decimal uid. Tokens are minted with JWTVerifier.Generate, e.g. by
//     "coven-mailbox token --uid 1000".
//
// CallerMiddleware attaches the uid with identity.WithCaller. Display names
// are resolved later by the device, not here.
//
// # Errors
//
//   - ErrInvalidToken: malformed, badly signed, or non-numeric subject
//   - ErrExpiredToken: token past its exp claim
//   - ErrMissingClaim: no sub claim
//   - ErrWeakSecret: secret shorter than MinSecretLength
package auth
