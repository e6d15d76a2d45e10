// ABOUTME: Per-open file handle over the mailbox device
// ABOUTME: Binds a caller identity and file position, implementing io.ReadWriter

package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/2389/coven-mailbox/internal/identity"
)

// ErrFileClosed is returned by operations on a closed File.
var ErrFileClosed = errors.New("file already closed")

// File is one open handle on the device. Each handle delivers the caller's
// mail at most once; later reads report io.EOF until Rewind.
type File struct {
	dev *Device
	ctx context.Context

	mu     sync.Mutex
	pos    int64
	closed bool
}

// Open returns a handle bound to the caller in ctx.
func (d *Device) Open(ctx context.Context) (*File, error) {
	if _, ok := identity.CallerFromContext(ctx); !ok {
		return nil, fmt.Errorf("%w: no caller identity", ErrIdentityResolution)
	}
	return &File{dev: d, ctx: ctx}, nil
}

// Read delivers the caller's mail into p. A block that does not fit in p is a
// transfer fault and leaves the mailbox unchanged.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrFileClosed
	}

	n, err := f.dev.Read(f.ctx, &fixedBuffer{buf: p}, &f.pos)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write sends one message. p must hold exactly one protocol write.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrFileClosed
	}
	return f.dev.Write(f.ctx, bytes.NewReader(p))
}

// Pos returns the current file position.
func (f *File) Pos() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Rewind resets the position so the next Read scans the mailbox again.
func (f *File) Rewind() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = 0
}

// Close releases the handle. It is safe to call multiple times.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fixedBuffer is a caller-owned buffer that refuses writes it cannot hold.
type fixedBuffer struct {
	buf []byte
	n   int
}

func (b *fixedBuffer) Write(p []byte) (int, error) {
	if len(p) > len(b.buf)-b.n {
		return 0, io.ErrShortBuffer
	}
	b.n += copy(b.buf[b.n:], p)
	return len(p), nil
}
