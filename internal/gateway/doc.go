// Package gateway serves the mailbox device over HTTP.
//
// # Overview
//
// New wires a mailbox.Store, the configured identity resolver, optional
// Prometheus metrics and a device.Device behind one http.Server. Run binds
// every configured listener and blocks until its context is canceled, then
// shuts down within five seconds.
//
// # Listeners
//
//   - server.http_addr: plain TCP. Callers present a bearer JWT whose sub
//     claim is their uid.
//   - server.socket_path: unix domain socket. The caller's uid is taken from
//     the kernel (SO_PEERCRED); no token is needed.
//   - tailscale.enabled: a tsnet node listening on :80 of the tailnet, with the
//     same bearer auth as TCP.
//
// # HTTP API
//
//	GET  /health       liveness, no auth
//	GET  /device       read the caller's mail (200 text/plain, 204 when empty)
//	                   optional ?size=N bounds the block like a read buffer
//	POST /device       write one message; body is "@name payload"
//	GET  /api/stats    queue sizes as JSON
//	GET  /metrics      Prometheus exposition, when metrics.enabled
//
// # Error Mapping
//
//	malformed message          400
//	transfer fault             400
//	invalid argument           400
//	identity resolution        403
//	unknown recipient          404
//	allocation failure         413
//	capacity exceeded          507
//	mailbox closed             503
package gateway
