// Package transportquic is the QUIC-backed implementation of
// transfer.Transport: one bidirectional stream per transfer, opened
// over a shared QUIC connection between client and server.
package transportquic

import (
	"context"
	"crypto/tls"

	"github.com/quic-go/quic-go"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

var quicConfig = &quic.Config{
	KeepAlivePeriod:                10_000_000_000, // 10s, in ns
	MaxIdleTimeout:                 60_000_000_000,
	InitialStreamReceiveWindow:     8 << 20,
	InitialConnectionReceiveWindow: 128 << 20,
}

// Connection wraps a QUIC connection and opens per-transfer streams on
// top of it. Each stream satisfies transfer.Transport directly (it
// already has Read/Write/Close), so no adapter type is needed.
type Connection struct {
	conn *quic.Conn
}

// Dial establishes a QUIC connection to addr.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (*Connection, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindConnectionFailed, "quic dial", err)
	}
	return &Connection{conn: conn}, nil
}

// OpenTransferStream opens a new bidirectional stream for one transfer.
func (c *Connection) OpenTransferStream(ctx context.Context) (*quic.Stream, error) {
	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindConnectionFailed, "quic open stream", err)
	}
	return stream, nil
}

// AcceptTransferStream accepts the peer's next transfer stream.
func (c *Connection) AcceptTransferStream(ctx context.Context) (*quic.Stream, error) {
	stream, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindConnectionFailed, "quic accept stream", err)
	}
	return stream, nil
}

// RemoteAddr returns the peer's network address.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close tears down the connection and every stream on it.
func (c *Connection) Close() error {
	return c.conn.CloseWithError(0, "connection closed")
}

// Listener accepts incoming QUIC connections, one per client session.
type Listener struct {
	listener *quic.Listener
}

// Listen starts a QUIC listener on addr.
func Listen(addr string, tlsConfig *tls.Config) (*Listener, error) {
	listener, err := quic.ListenAddr(addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindConnectionFailed, "quic listen", err)
	}
	return &Listener{listener: listener}, nil
}

// Accept blocks for the next incoming connection.
func (l *Listener) Accept(ctx context.Context) (*Connection, error) {
	conn, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindConnectionFailed, "quic accept", err)
	}
	return &Connection{conn: conn}, nil
}

// Addr returns the listener's bound network address.
func (l *Listener) Addr() string {
	return l.listener.Addr().String()
}

// Close stops the listener.
func (l *Listener) Close() error {
	return l.listener.Close()
}
