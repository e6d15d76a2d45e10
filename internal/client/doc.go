// Package client is the caller side of the coven-mailbox HTTP API.
//
// A Client reaches the gateway either over TCP, authenticating with a bearer
// token minted by "coven-mailbox token", or over the gateway's unix socket,
// where the kernel vouches for the caller and no token is needed.
//
//	c, _ := client.New(client.Options{Socket: "/run/coven/mailbox.sock"})
//	_ = c.Send(ctx, "bob", "lunch?")
//	block, err := c.Read(ctx, 0)
//	if errors.Is(err, client.ErrNoMail) { ... }
//
// Non-success responses are returned as *APIError carrying the HTTP status
// and the gateway's error message.
package client
