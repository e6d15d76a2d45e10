// ABOUTME: Tests for the mailbox HTTP client
// ABOUTME: Uses a stub gateway to check request shapes and response decoding

package client

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// request is what the stub saw of one call.
type request struct {
	method string
	path   string
	query  string
	auth   string
	body   string
}

// stubGateway records the last request and replies with canned responses.
type stubGateway struct {
	mu  sync.Mutex
	req request
}

func (s *stubGateway) handler() http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		data, _ := io.ReadAll(r.Body)
		s.req = request{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			body:   string(data),
		}
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("POST /device", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		body := s.last().body
		if body == "@full spill" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInsufficientStorage)
			_, _ = w.Write([]byte(`{"error":"mailbox capacity exceeded"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"written":` + strconv.Itoa(len(body)) + `}`))
	})
	mux.HandleFunc("GET /device", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.URL.Query().Get("size") == "1" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte("* alice:\thello\n"))
	})
	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte(`{"unread":2,"read":1,"capacity":8,"visibility":"include_read","uptime_seconds":3.5}`))
	})
	return mux
}

// last returns the most recent request.
func (s *stubGateway) last() request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req
}

func newTestClient(t *testing.T) (*Client, *stubGateway) {
	t.Helper()
	stub := &stubGateway{}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	c, err := New(Options{Server: srv.URL + "/", Token: "tok"})
	require.NoError(t, err)
	return c, stub
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	c, stub := newTestClient(t)

	require.NoError(t, c.Send(context.Background(), "@bob", "lunch-at-noon"))

	got := stub.last()
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/device", got.path)
	assert.Equal(t, "Bearer tok", got.auth)
	assert.Equal(t, "@bob lunch-at-noon", got.body)
}

func TestWrite_ReturnsCount(t *testing.T) {
	c, _ := newTestClient(t)

	n, err := c.Write(context.Background(), []byte("@bob hi"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestWrite_APIError(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Write(context.Background(), []byte("@full spill"))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInsufficientStorage, apiErr.Status)
	assert.Equal(t, "mailbox capacity exceeded", apiErr.Message)
	assert.Contains(t, err.Error(), "507")
}

func TestRead(t *testing.T) {
	c, stub := newTestClient(t)

	block, err := c.Read(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "* alice:\thello\n", block)
	assert.Empty(t, stub.last().query)

	_, err = c.Read(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoMail)
	assert.Equal(t, "size=1", stub.last().query)
}

func TestStats(t *testing.T) {
	c, _ := newTestClient(t)

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Stats{Unread: 2, Read: 1, Capacity: 8, Visibility: "include_read", UptimeSeconds: 3.5}, stats)
}

func TestHealth_OverUnixSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "gw.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)

	stub := &stubGateway{}
	srv := &http.Server{Handler: stub.handler()}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	c, err := New(Options{Socket: sock})
	require.NoError(t, err)

	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, "/health", stub.last().path)
	assert.Empty(t, stub.last().auth)
}
