// ABOUTME: HTTP client for the mailbox device served by coven-mailbox
// ABOUTME: Talks to the gateway over TCP with a bearer token or over its unix socket

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/coven-mailbox/internal/protocol"
)

// ErrNoMail is returned by Read when the caller has nothing to read.
var ErrNoMail = errors.New("no mail")

// socketHost is the placeholder host used for requests over a unix socket.
const socketHost = "coven-mailbox"

// APIError is a non-success response from the gateway.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d", e.Status)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

// Options configures a Client. Socket takes precedence over Server.
type Options struct {
	Server  string
	Socket  string
	Token   string
	Timeout time.Duration
}

// Stats mirrors the gateway's /api/stats response.
type Stats struct {
	Unread        int     `json:"unread"`
	Read          int     `json:"read"`
	Capacity      int     `json:"capacity"`
	Visibility    string  `json:"visibility"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Client calls the gateway HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client from opts.
func New(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	if opts.Socket != "" {
		socket := opts.Socket
		transport := &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
		return &Client{
			baseURL: "http://" + socketHost,
			token:   opts.Token,
			http:    &http.Client{Transport: transport, Timeout: timeout},
		}, nil
	}

	if opts.Server == "" {
		return nil, errors.New("server URL or socket path is required")
	}
	return &Client{
		baseURL: strings.TrimSuffix(opts.Server, "/"),
		token:   opts.Token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Send writes "@recipient payload" to the device.
func (c *Client) Send(ctx context.Context, recipient, payload string) error {
	recipient = strings.TrimPrefix(recipient, string(protocol.RecipientMarker))
	raw := string(protocol.RecipientMarker) + recipient + " " + payload
	_, err := c.Write(ctx, []byte(raw))
	return err
}

// Write sends one raw protocol message and returns the bytes consumed.
func (c *Client) Write(ctx context.Context, raw []byte) (int, error) {
	resp, err := c.do(ctx, http.MethodPost, "/device", strings.NewReader(string(raw)))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0, decodeError(resp)
	}

	var out struct {
		Written int `json:"written"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding write response: %w", err)
	}
	return out.Written, nil
}

// Read fetches the caller's mail block. size bounds the block, zero uses the
// gateway default. Returns ErrNoMail when nothing is visible.
func (c *Client) Read(ctx context.Context, size int) (string, error) {
	path := "/device"
	if size > 0 {
		path += "?size=" + strconv.Itoa(size)
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("reading mail: %w", err)
		}
		return string(data), nil
	case http.StatusNoContent:
		return "", ErrNoMail
	default:
		return "", decodeError(resp)
	}
}

// Stats fetches mailbox counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/stats", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decoding stats: %w", err)
	}
	return &stats, nil
}

// Health checks the gateway liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeError turns an error response into an APIError.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}
