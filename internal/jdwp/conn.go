package jdwp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// Options tune a Conn.
type Options struct {
	// Tap, when set, observes every packet in both directions.
	Tap Tap

	// TraceSends logs every outgoing command at debug level.
	TraceSends bool

	// TraceReceives logs every incoming packet at debug level.
	TraceReceives bool
}

// Conn is a JDWP connection. A single reader goroutine owns the inbound
// stream: replies complete the pending call with the matching id and
// composite event packets are queued for NextEvent. Calls and event reads
// are safe for concurrent use.
type Conn struct {
	transport Transport
	opts      Options
	log       commonlog.Logger

	sendMu sync.Mutex
	nextID uint32

	pending   map[uint32]*pendingCall
	pendingMu sync.Mutex
	failed    bool

	sizes      IDSizes
	sizesMu    sync.RWMutex
	negotiated atomic.Bool

	events   []*Packet
	eventsMu sync.Mutex
	notify   chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	err       error
	errMu     sync.RWMutex
}

// pendingCall tracks a command awaiting its reply.
type pendingCall struct {
	cmd   Command
	done  chan struct{}
	reply *Packet
	err   error
}

// NewConn starts demultiplexing packets from transport. The transport must
// already have completed the handshake.
func NewConn(transport Transport, opts Options) *Conn {
	c := &Conn{
		transport: WithTap(transport, opts.Tap),
		opts:      opts,
		log:       commonlog.GetLogger("jdwp.conn"),
		pending:   make(map[uint32]*pendingCall),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go c.receiveLoop()
	return c
}

// Done is closed once the connection has failed or been closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns nil while the connection is live and an error wrapping
// ErrDisconnected afterwards.
func (c *Conn) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

// Close closes the transport and fails every outstanding call.
func (c *Conn) Close() error {
	c.closed.Store(true)
	err := c.transport.Close()
	c.fail(fmt.Errorf("%w: connection closed", ErrDisconnected))
	return err
}

// Sizes returns the negotiated identifier widths.
func (c *Conn) Sizes() IDSizes {
	c.sizesMu.RLock()
	defer c.sizesMu.RUnlock()
	return c.sizes
}

// Negotiated reports whether identifier sizes are known.
func (c *Conn) Negotiated() bool {
	return c.negotiated.Load()
}

// NegotiateIDSizes issues VirtualMachine.IDSizes. It must be the first
// command on a connection; every other command fails with ErrNotNegotiated
// until it succeeds.
func (c *Conn) NegotiateIDSizes(ctx context.Context) (IDSizes, error) {
	data, err := c.Call(ctx, CmdVMIDSizes, nil)
	if err != nil {
		return IDSizes{}, err
	}
	sizes, err := DecodeIDSizes(data)
	if err != nil {
		return IDSizes{}, err
	}

	c.sizesMu.Lock()
	c.sizes = sizes
	c.sizesMu.Unlock()
	c.negotiated.Store(true)

	c.log.Debugf("id sizes: field=%d method=%d object=%d reftype=%d frame=%d",
		sizes.FieldID, sizes.MethodID, sizes.ObjectID, sizes.ReferenceTypeID, sizes.FrameID)
	return sizes, nil
}

// NewEncoder returns an encoder using the negotiated identifier widths.
func (c *Conn) NewEncoder() *Encoder {
	return NewEncoder(c.Sizes())
}

// Call sends a command and blocks until its reply arrives, ctx is done, or
// the connection fails. A non-zero reply error code is returned as a
// *ReplyError. Cancelling ctx abandons the wait; a late reply is dropped.
// Nothing is sent when ctx is already done.
func (c *Conn) Call(ctx context.Context, cmd Command, body []byte) ([]byte, error) {
	if cmd != CmdVMIDSizes && !c.negotiated.Load() {
		return nil, fmt.Errorf("%s: %w", cmd, ErrNotNegotiated)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	call := &pendingCall{cmd: cmd, done: make(chan struct{})}

	c.sendMu.Lock()
	c.nextID++
	id := c.nextID

	c.pendingMu.Lock()
	if c.failed {
		c.pendingMu.Unlock()
		c.sendMu.Unlock()
		return nil, c.Err()
	}
	c.pending[id] = call
	c.pendingMu.Unlock()

	if c.opts.TraceSends {
		c.log.Debugf("-> id=%d %s len=%d", id, cmd, len(body))
	}
	err := c.transport.Send(&Packet{ID: id, Command: cmd, Data: body})
	c.sendMu.Unlock()

	if err != nil {
		c.removePending(id)
		c.fail(err)
		return nil, fmt.Errorf("send %s: %w", cmd, c.Err())
	}

	select {
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	case <-call.done:
	}

	if call.err != nil {
		return nil, call.err
	}
	if call.reply.ErrorCode != ErrNone {
		return nil, &ReplyError{Command: cmd, Code: call.reply.ErrorCode}
	}
	return call.reply.Data, nil
}

// Do encodes a command body with fill, calls it and returns a decoder over
// the reply.
func (c *Conn) Do(ctx context.Context, cmd Command, fill func(e *Encoder)) (*Decoder, error) {
	e := c.NewEncoder()
	if fill != nil {
		fill(e)
	}
	if err := e.Err(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd, err)
	}
	data, err := c.Call(ctx, cmd, e.Bytes())
	if err != nil {
		return nil, err
	}
	return NewDecoder(data, c.Sizes()), nil
}

// NextEvent returns the next composite event packet. Packets received
// before a failure are still delivered; afterwards it returns Err.
func (c *Conn) NextEvent(ctx context.Context) (*Packet, error) {
	for {
		if p := c.popEvent(); p != nil {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.notify:
		case <-c.done:
			if p := c.popEvent(); p != nil {
				return p, nil
			}
			return nil, c.Err()
		}
	}
}

func (c *Conn) popEvent() *Packet {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	p := c.events[0]
	c.events[0] = nil
	c.events = c.events[1:]
	return p
}

func (c *Conn) pushEvent(p *Packet) {
	c.eventsMu.Lock()
	c.events = append(c.events, p)
	c.eventsMu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Conn) removePending(id uint32) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// receiveLoop reads packets until the transport fails.
func (c *Conn) receiveLoop() {
	for {
		p, err := c.transport.Receive()
		if err != nil {
			if c.closed.Load() {
				c.fail(fmt.Errorf("%w: connection closed", ErrDisconnected))
			} else {
				c.fail(err)
			}
			return
		}

		if c.opts.TraceReceives {
			c.log.Debugf("<- %s", p)
		}

		switch {
		case p.IsReply():
			c.handleReply(p)
		case p.Command == CmdEventComposite:
			c.pushEvent(p)
		default:
			c.log.Warningf("ignoring unexpected command from target: %s", p.Command)
		}
	}
}

// handleReply completes the pending call matching p.
func (c *Conn) handleReply(p *Packet) {
	c.pendingMu.Lock()
	call, ok := c.pending[p.ID]
	if ok {
		delete(c.pending, p.ID)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.log.Debugf("dropping reply for unknown id %d", p.ID)
		return
	}
	call.reply = p
	close(call.done)
}

// fail records the first failure cause and releases every waiter.
func (c *Conn) fail(cause error) {
	c.errMu.Lock()
	if c.err == nil {
		if cause == nil {
			cause = ErrDisconnected
		}
		if isDisconnected(cause) {
			c.err = cause
		} else {
			c.err = fmt.Errorf("%w: %v", ErrDisconnected, cause)
		}
		if !c.closed.Load() {
			c.log.Errorf("connection lost: %v", cause)
		}
	}
	err := c.err
	c.errMu.Unlock()

	c.pendingMu.Lock()
	c.failed = true
	calls := c.pending
	c.pending = make(map[uint32]*pendingCall)
	c.pendingMu.Unlock()

	for _, call := range calls {
		call.err = fmt.Errorf("%s: %w", call.cmd, err)
		close(call.done)
	}

	c.closeOnce.Do(func() {
		close(c.done)
		c.transport.Close()
	})
}
