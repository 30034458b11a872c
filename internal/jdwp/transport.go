package jdwp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Transport moves whole packets to and from a target.
type Transport interface {
	// Send writes one packet.
	Send(p *Packet) error

	// Receive blocks until the next packet arrives.
	Receive() (*Packet, error)

	// Close closes the underlying stream.
	Close() error
}

// Direction tells a Tap which way a packet travelled.
type Direction uint8

const (
	// Outbound packets were sent by the client.
	Outbound Direction = iota
	// Inbound packets were received from the target.
	Inbound
)

// String returns "out" or "in".
func (d Direction) String() string {
	if d == Outbound {
		return "out"
	}
	return "in"
}

// Tap observes every packet crossing a transport.
type Tap interface {
	Packet(dir Direction, p *Packet)
}

// StreamTransport implements Transport over any byte stream.
type StreamTransport struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewStreamTransport wraps an already handshaken stream.
func NewStreamTransport(rwc io.ReadWriteCloser) *StreamTransport {
	return &StreamTransport{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
	}
}

// Send writes one packet.
func (t *StreamTransport) Send(p *Packet) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return writePacket(t.rwc, p)
}

// Receive reads the next packet.
func (t *StreamTransport) Receive() (*Packet, error) {
	return readPacket(t.reader)
}

// Close closes the stream.
func (t *StreamTransport) Close() error {
	return t.rwc.Close()
}

// SocketTransport implements Transport over a network connection.
type SocketTransport struct {
	*StreamTransport
	conn net.Conn
}

// NewSocketTransport wraps an already handshaken network connection.
func NewSocketTransport(conn net.Conn) *SocketTransport {
	return &SocketTransport{
		StreamTransport: NewStreamTransport(conn),
		conn:            conn,
	}
}

// RemoteAddr returns the target's network address.
func (t *SocketTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// Dial connects to a target listening at address and performs the handshake.
// handshakeTimeout bounds the handshake exchange; zero means no bound.
func Dial(ctx context.Context, address string, handshakeTimeout time.Duration) (*SocketTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	if handshakeTimeout > 0 {
		conn.SetDeadline(time.Now().Add(handshakeTimeout))
	}
	if err := Handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})

	return NewSocketTransport(conn), nil
}

// tappedTransport reports every packet to a Tap.
type tappedTransport struct {
	Transport
	tap Tap
}

// WithTap returns a transport that reports each packet to tap.
func WithTap(t Transport, tap Tap) Transport {
	if tap == nil {
		return t
	}
	return &tappedTransport{Transport: t, tap: tap}
}

func (t *tappedTransport) Send(p *Packet) error {
	t.tap.Packet(Outbound, p)
	return t.Transport.Send(p)
}

func (t *tappedTransport) Receive() (*Packet, error) {
	p, err := t.Transport.Receive()
	if err != nil {
		return nil, err
	}
	t.tap.Packet(Inbound, p)
	return p, nil
}
