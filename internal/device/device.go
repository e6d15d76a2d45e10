// ABOUTME: Read/write session handler for the shared mailbox device
// ABOUTME: Composes the parser, identity resolver and mailbox store per call

package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/2389/coven-mailbox/internal/identity"
	"github.com/2389/coven-mailbox/internal/mailbox"
	"github.com/2389/coven-mailbox/internal/message"
	"github.com/2389/coven-mailbox/internal/metrics"
	"github.com/2389/coven-mailbox/internal/protocol"
)

var (
	// ErrTransferFault is returned when caller-provided data cannot be read or
	// the formatted block cannot be handed to the caller.
	ErrTransferFault = errors.New("transfer fault")

	// ErrIdentityResolution is returned when the caller or a sender has no name.
	ErrIdentityResolution = errors.New("identity resolution failure")

	// ErrUnknownRecipient is returned by writes to names that do not resolve,
	// when the device is configured to reject them.
	ErrUnknownRecipient = fmt.Errorf("unknown recipient: %w", ErrIdentityResolution)
)

// maxReadAttempts bounds how often a read re-resolves senders that appeared
// between its unlocked scan and its delivery transaction.
const maxReadAttempts = 4

// errStaleSenders aborts a delivery transaction whose sender names are incomplete.
var errStaleSenders = errors.New("sender set changed")

// Options configures a Device.
type Options struct {
	// RejectUnknownRecipients makes writes fail when the recipient name does
	// not resolve to a uid. Requires an identity.Directory resolver.
	RejectUnknownRecipients bool

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Device is the read/write endpoint in front of one mailbox store.
type Device struct {
	store    *mailbox.Store
	resolver identity.Resolver
	opts     Options
	logger   *slog.Logger
}

// New creates a device over store, resolving names through resolver.
func New(store *mailbox.Store, resolver identity.Resolver, opts Options) (*Device, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if opts.RejectUnknownRecipients {
		if _, ok := resolver.(identity.Directory); !ok {
			return nil, errors.New("rejecting unknown recipients requires a resolver that can look up names")
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Device{
		store:    store,
		resolver: resolver,
		opts:     opts,
		logger:   logger.With("component", "device"),
	}, nil
}

// Store returns the underlying mailbox store.
func (d *Device) Store() *mailbox.Store {
	return d.store
}

// Write stores one message read from src on behalf of the caller in ctx.
// It returns the number of bytes consumed.
func (d *Device) Write(ctx context.Context, src io.Reader) (int, error) {
	n, err := d.write(ctx, src)
	d.opts.Metrics.Write(outcome(err))
	return n, err
}

func (d *Device) write(ctx context.Context, src io.Reader) (int, error) {
	caller, ok := identity.CallerFromContext(ctx)
	if !ok {
		return 0, fmt.Errorf("%w: no caller identity", ErrIdentityResolution)
	}

	full, err := d.store.Full()
	if err != nil {
		return 0, err
	}
	if full {
		d.logger.Info("maximum number of unread messages reached", "capacity", d.store.Capacity())
		return 0, mailbox.ErrCapacityExceeded
	}

	raw, err := io.ReadAll(io.LimitReader(src, protocol.MaxWriteSize+1))
	if err != nil {
		d.logger.Debug("copying write from caller failed", "uid", caller, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrTransferFault, err)
	}
	if len(raw) > protocol.MaxWriteSize {
		return 0, fmt.Errorf("%w: write exceeds %d bytes", protocol.ErrMalformedMessage, protocol.MaxWriteSize)
	}

	parsed, err := protocol.Parse(raw)
	if err != nil {
		d.logger.Debug("rejecting malformed write", "uid", caller, "error", err)
		return 0, err
	}

	if d.opts.RejectUnknownRecipients {
		if err := d.checkRecipient(ctx, parsed.Recipient); err != nil {
			return 0, err
		}
	}

	msg, err := message.New(parsed.Payload, caller, parsed.Recipient)
	if err != nil {
		return 0, fmt.Errorf("creating message: %w", err)
	}

	if err := d.store.Append(msg); err != nil {
		d.logger.Info("message rejected by store", "uid", caller, "recipient", parsed.Recipient, "error", err)
		return 0, err
	}

	d.logger.Debug("message stored",
		"id", msg.ID,
		"uid", caller,
		"recipient", msg.Recipient,
		"len", msg.Len(),
	)
	return len(raw), nil
}

// checkRecipient fails when name does not map to a uid.
func (d *Device) checkRecipient(ctx context.Context, name string) error {
	dir := d.resolver.(identity.Directory)
	if _, err := dir.LookupUID(ctx, name); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownRecipient, name)
		}
		return fmt.Errorf("%w: looking up recipient %q: %w", ErrIdentityResolution, name, err)
	}
	return nil
}

// Read formats every message visible to the caller in ctx and writes the
// block to dst in a single Write. Matched unread messages are promoted in the
// same critical section, and only if dst accepted the whole block, so dst is
// called with the mailbox lock held and must not block.
//
// pos is the caller's file position: a read at a non-zero position returns
// io.EOF without touching the store. On success pos advances by the bytes
// delivered.
func (d *Device) Read(ctx context.Context, dst io.Writer, pos *int64) (int, error) {
	if pos != nil && *pos != 0 {
		d.opts.Metrics.Read(metrics.OutcomeEOF, 0, 0)
		return 0, io.EOF
	}

	n, promoted, err := d.read(ctx, dst)
	d.opts.Metrics.Read(outcome(err), n, promoted)
	if err != nil {
		return 0, err
	}

	if pos != nil {
		*pos += int64(n)
	}
	return n, nil
}

func (d *Device) read(ctx context.Context, dst io.Writer) (int, int, error) {
	caller, ok := identity.CallerFromContext(ctx)
	if !ok {
		return 0, 0, fmt.Errorf("%w: no caller identity", ErrIdentityResolution)
	}

	name, err := d.resolver.ResolveName(ctx, caller)
	if err != nil {
		d.logger.Debug("caller could not be resolved", "uid", caller, "error", err)
		return 0, 0, fmt.Errorf("%w: caller %d: %w", ErrIdentityResolution, caller, err)
	}

	includeRead := d.store.Visibility() == mailbox.IncludeRead
	senders := make(map[identity.UID]string)

	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		if attempt > 0 {
			d.opts.Metrics.Retry()
		}

		// Resolve names outside the lock, then deliver under it
		matches, err := d.store.ScanFor(name, includeRead)
		if err != nil {
			return 0, 0, err
		}
		if err := d.resolveSenders(ctx, matches, senders); err != nil {
			return 0, 0, err
		}

		var written int
		promoted, err := d.store.Deliver(name, includeRead, func(matches []mailbox.Match) error {
			block, err := formatBlock(matches, senders)
			if err != nil {
				return err
			}
			written, err = deliver(dst, block)
			return err
		})
		if errors.Is(err, errStaleSenders) {
			continue
		}
		if err != nil {
			d.logger.Info("read not delivered", "uid", caller, "error", err)
			return 0, 0, err
		}

		d.logger.Debug("read delivered", "uid", caller, "name", name, "bytes", written, "promoted", promoted)
		return written, promoted, nil
	}

	return 0, 0, fmt.Errorf("%w: senders kept changing during read", ErrIdentityResolution)
}

// resolveSenders fills names for every sender in matches not already known.
func (d *Device) resolveSenders(ctx context.Context, matches []mailbox.Match, names map[identity.UID]string) error {
	for _, m := range matches {
		uid := m.Message.Sender
		if _, ok := names[uid]; ok {
			continue
		}
		name, err := d.resolver.ResolveName(ctx, uid)
		if err != nil {
			d.logger.Debug("sender could not be resolved", "uid", uid, "error", err)
			return fmt.Errorf("%w: sender %d: %w", ErrIdentityResolution, uid, err)
		}
		names[uid] = name
	}
	return nil
}

// formatBlock renders matches in order. A sender missing from names means the
// queue changed since names were resolved.
func formatBlock(matches []mailbox.Match, names map[identity.UID]string) ([]byte, error) {
	size := 0
	for _, m := range matches {
		name, ok := names[m.Message.Sender]
		if !ok {
			return nil, errStaleSenders
		}
		size += protocol.LineLen(name, m.Message.Payload)
	}

	block := make([]byte, 0, size)
	for _, m := range matches {
		block = protocol.AppendLine(block, m.Unread(), names[m.Message.Sender], m.Message.Payload)
	}
	return block, nil
}

// deliver hands block to dst in one call. An empty block is not written.
func deliver(dst io.Writer, block []byte) (int, error) {
	if len(block) == 0 {
		return 0, nil
	}
	n, err := dst.Write(block)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransferFault, err)
	}
	if n != len(block) {
		return 0, fmt.Errorf("%w: %w", ErrTransferFault, io.ErrShortWrite)
	}
	return n, nil
}

// outcome maps an error to its metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrUnknownRecipient):
		return metrics.OutcomeUnknownRecipient
	case errors.Is(err, ErrIdentityResolution):
		return metrics.OutcomeIdentity
	case errors.Is(err, ErrTransferFault):
		return metrics.OutcomeTransfer
	case errors.Is(err, protocol.ErrMalformedMessage):
		return metrics.OutcomeMalformed
	case errors.Is(err, mailbox.ErrCapacityExceeded):
		return metrics.OutcomeCapacity
	case errors.Is(err, message.ErrAllocationFailure):
		return metrics.OutcomeAllocation
	case errors.Is(err, message.ErrInvalidArgument):
		return metrics.OutcomeInvalid
	case errors.Is(err, mailbox.ErrClosed):
		return metrics.OutcomeClosed
	default:
		return metrics.OutcomeError
	}
}
