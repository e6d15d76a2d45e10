// ABOUTME: HTTP API handlers for the mailbox device
// ABOUTME: GET/POST /device map to device reads and writes, /api/stats reports queue sizes

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/coven-mailbox/internal/device"
	"github.com/2389/coven-mailbox/internal/mailbox"
	"github.com/2389/coven-mailbox/internal/message"
	"github.com/2389/coven-mailbox/internal/protocol"
)

// Read buffer sizes accepted by GET /device?size=N.
const (
	defaultReadSize = 64 << 10
	maxReadSize     = 1 << 20
)

// WriteResponse is the JSON response for POST /device.
type WriteResponse struct {
	Written int `json:"written"`
}

// StatsResponse is the JSON response for GET /api/stats.
type StatsResponse struct {
	Unread        int     `json:"unread"`
	Read          int     `json:"read"`
	Capacity      int     `json:"capacity"`
	Visibility    string  `json:"visibility"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// handleRead delivers the caller's mail as one text block.
// The optional size parameter plays the role of the reader's buffer: a block
// larger than it is rejected and nothing is marked read.
func (g *Gateway) handleRead(w http.ResponseWriter, r *http.Request) {
	size := defaultReadSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxReadSize {
			g.sendJSONError(w, http.StatusBadRequest, "size must be between 1 and "+strconv.Itoa(maxReadSize))
			return
		}
		size = n
	}

	f, err := g.device.Open(r.Context())
	if err != nil {
		g.sendDeviceError(w, err)
		return
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := f.Read(buf)
	if errors.Is(err, io.EOF) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		g.sendDeviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf[:n])
}

// handleWrite stores the request body as one message.
func (g *Gateway) handleWrite(w http.ResponseWriter, r *http.Request) {
	n, err := g.device.Write(r.Context(), r.Body)
	if err != nil {
		g.sendDeviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(WriteResponse{Written: n})
}

// handleStats reports mailbox counters.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := g.mailbox.Stats()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(StatsResponse{
		Unread:        stats.Unread,
		Read:          stats.Read,
		Capacity:      stats.Capacity,
		Visibility:    stats.Visibility.String(),
		UptimeSeconds: time.Since(g.startTime).Seconds(),
	})
}

// statusFor maps a device error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, device.ErrUnknownRecipient):
		return http.StatusNotFound
	case errors.Is(err, device.ErrIdentityResolution):
		return http.StatusForbidden
	case errors.Is(err, protocol.ErrMalformedMessage):
		return http.StatusBadRequest
	case errors.Is(err, device.ErrTransferFault):
		return http.StatusBadRequest
	case errors.Is(err, mailbox.ErrCapacityExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, message.ErrAllocationFailure):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, message.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, mailbox.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendDeviceError writes a JSON error for a failed device operation.
func (g *Gateway) sendDeviceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("device operation failed", "error", err)
	}
	g.sendJSONError(w, status, err.Error())
}

// sendJSONError sends a JSON-formatted error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
