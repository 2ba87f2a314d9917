// Package clearnode implements the client side of the clearnode RPC
// protocol: the persistent transport, request/response correlation, and the
// session-key authentication handshake.
package clearnode

import (
	"context"

	"github.com/flowdesk/flowdesk/internal/domain/wire"
)

// MessageHandler is a function that handles incoming envelopes.
type MessageHandler func(env wire.Envelope)

// ChannelTransport is a bidirectional message connection to a clearnode. A
// transport is single-use: one Start, one Close, never reconnected.
type ChannelTransport interface {
	// Start opens the connection and begins delivering inbound envelopes to
	// the handler.
	Start(ctx context.Context, handler MessageHandler) error

	// Send writes one envelope to the counterparty.
	Send(ctx context.Context, env wire.Envelope) error

	// Done is closed when the connection has terminated, whether by Close or
	// by a connection-level error.
	Done() <-chan struct{}

	// Close tears the connection down.
	Close() error
}

// TransportFactory creates a fresh transport for each connection attempt.
type TransportFactory func() ChannelTransport
