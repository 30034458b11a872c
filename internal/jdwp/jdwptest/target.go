// Package jdwptest provides an in-process fake JDWP target for tests.
//
// A Target serves one client over net.Pipe. Each command is answered by a
// scripted handler; commands without a handler reply NOT_IMPLEMENTED. The
// target counts every command it receives so tests can assert that an
// operation was, or was not, sent over the wire.
package jdwptest

import (
	"net"
	"sync"
	"testing"

	"github.com/dshills/jdwp/internal/jdwp"
)

// NoReply may be returned by a handler to leave the command unanswered.
const NoReply jdwp.ErrorCode = 0xFFFF

// HandlerFunc answers one command. req reads the command body, reply
// collects the reply body. The returned code is sent in the reply header.
type HandlerFunc func(req *jdwp.Decoder, reply *jdwp.Encoder) jdwp.ErrorCode

// Event is one event inside a composite packet.
type Event struct {
	Kind      jdwp.EventKind
	RequestID int32
	Payload   func(e *jdwp.Encoder)
}

// Target is a fake JDWP target.
type Target struct {
	sizes jdwp.IDSizes

	mu        sync.Mutex
	handlers  map[jdwp.Command]HandlerFunc
	counts    map[jdwp.Command]int
	bodies    map[jdwp.Command][][]byte
	total     int
	caps      [32]bool
	requestID int32

	server    *jdwp.StreamTransport
	client    net.Conn
	eventID   uint32
	closeOnce sync.Once
	done      chan struct{}
}

// Version is what the default VirtualMachine.Version handler reports.
var Version = struct {
	Description string
	Major       int32
	Minor       int32
	VMVersion   string
	VMName      string
}{"jdwptest fake target", 17, 0, "17.0.0", "jdwptest"}

// New starts a target with the given identifier widths. The client end of
// the pipe is available from ClientConn; the handshake has not yet run.
func New(sizes jdwp.IDSizes) *Target {
	server, client := net.Pipe()
	t := &Target{
		sizes:    sizes,
		handlers: make(map[jdwp.Command]HandlerFunc),
		counts:   make(map[jdwp.Command]int),
		bodies:   make(map[jdwp.Command][][]byte),
		server:   jdwp.NewStreamTransport(server),
		client:   client,
		done:     make(chan struct{}),
	}
	t.installDefaults()
	go t.serve(server)
	return t
}

// Connect starts a target and returns it together with a client Conn that
// has completed the handshake. Both are closed when the test ends.
func Connect(tb testing.TB, sizes jdwp.IDSizes) (*Target, *jdwp.Conn) {
	tb.Helper()

	t := New(sizes)
	if err := jdwp.Handshake(t.client); err != nil {
		tb.Fatalf("handshake: %v", err)
	}
	conn := jdwp.NewConn(jdwp.NewStreamTransport(t.client), jdwp.Options{})
	tb.Cleanup(func() {
		conn.Close()
		t.Close()
	})
	return t, conn
}

// ClientConn returns the client end of the pipe.
func (t *Target) ClientConn() net.Conn {
	return t.client
}

// Sizes returns the identifier widths the target reports.
func (t *Target) Sizes() jdwp.IDSizes {
	return t.sizes
}

// Handle installs h for cmd, replacing any previous handler.
func (t *Target) Handle(cmd jdwp.Command, h HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[cmd] = h
}

// SetCapabilities sets the CapabilitiesNew reply.
func (t *Target) SetCapabilities(caps [32]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.caps = caps
}

// SetCapability sets one CapabilitiesNew flag by index.
func (t *Target) SetCapability(index int, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.caps[index] = v
}

// Count returns how many times cmd was received.
func (t *Target) Count(cmd jdwp.Command) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[cmd]
}

// Total returns the number of commands received.
func (t *Target) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Bodies returns the bodies of every cmd received, oldest first.
func (t *Target) Bodies(cmd jdwp.Command) [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.bodies[cmd]))
	copy(out, t.bodies[cmd])
	return out
}

// ResetCounts clears all counters and recorded bodies.
func (t *Target) ResetCounts() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[jdwp.Command]int)
	t.bodies = make(map[jdwp.Command][][]byte)
	t.total = 0
}

// Encoder returns an encoder using the target's identifier widths.
func (t *Target) Encoder() *jdwp.Encoder {
	return jdwp.NewEncoder(t.sizes)
}

// SendComposite sends one Event.Composite packet.
func (t *Target) SendComposite(policy jdwp.SuspendPolicy, events ...Event) error {
	e := t.Encoder()
	e.Byte(uint8(policy))
	e.Int32(int32(len(events)))
	for _, ev := range events {
		e.Byte(uint8(ev.Kind))
		e.Int32(ev.RequestID)
		if ev.Payload != nil {
			ev.Payload(e)
		}
	}

	t.mu.Lock()
	t.eventID++
	id := t.eventID | 0x80000000
	t.mu.Unlock()

	return t.server.Send(&jdwp.Packet{ID: id, Command: jdwp.CmdEventComposite, Data: e.Bytes()})
}

// Close drops the connection.
func (t *Target) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.server.Close()
		<-t.done
	})
	return err
}

func (t *Target) serve(server net.Conn) {
	defer close(t.done)

	if err := jdwp.AcceptHandshake(server); err != nil {
		server.Close()
		return
	}

	for {
		p, err := t.server.Receive()
		if err != nil {
			server.Close()
			return
		}

		t.mu.Lock()
		t.counts[p.Command]++
		t.bodies[p.Command] = append(t.bodies[p.Command], p.Data)
		t.total++
		h := t.handlers[p.Command]
		t.mu.Unlock()

		reply := t.Encoder()
		code := jdwp.ErrNotImplemented
		if h != nil {
			code = h(jdwp.NewDecoder(p.Data, t.sizes), reply)
		}
		if code == NoReply {
			continue
		}

		out := &jdwp.Packet{ID: p.ID, Flags: jdwp.FlagReply, ErrorCode: code}
		if code == jdwp.ErrNone {
			out.Data = reply.Bytes()
		}
		if err := t.server.Send(out); err != nil {
			return
		}
	}
}

func (t *Target) installDefaults() {
	ok := func(*jdwp.Decoder, *jdwp.Encoder) jdwp.ErrorCode { return jdwp.ErrNone }

	t.handlers[jdwp.CmdVMIDSizes] = func(_ *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		r.Int32(int32(t.sizes.FieldID))
		r.Int32(int32(t.sizes.MethodID))
		r.Int32(int32(t.sizes.ObjectID))
		r.Int32(int32(t.sizes.ReferenceTypeID))
		r.Int32(int32(t.sizes.FrameID))
		return jdwp.ErrNone
	}
	t.handlers[jdwp.CmdVMVersion] = func(_ *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		r.Text(Version.Description)
		r.Int32(Version.Major)
		r.Int32(Version.Minor)
		r.Text(Version.VMVersion)
		r.Text(Version.VMName)
		return jdwp.ErrNone
	}
	t.handlers[jdwp.CmdVMCapabilitiesNew] = func(_ *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		t.mu.Lock()
		caps := t.caps
		t.mu.Unlock()
		for _, c := range caps {
			r.Bool(c)
		}
		return jdwp.ErrNone
	}
	t.handlers[jdwp.CmdERSet] = func(_ *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		t.mu.Lock()
		t.requestID++
		id := t.requestID
		t.mu.Unlock()
		r.Int32(id)
		return jdwp.ErrNone
	}
	t.handlers[jdwp.CmdVMSuspend] = ok
	t.handlers[jdwp.CmdVMResume] = ok
	t.handlers[jdwp.CmdVMHoldEvents] = ok
	t.handlers[jdwp.CmdVMReleaseEvents] = ok
	t.handlers[jdwp.CmdVMDispose] = ok
	t.handlers[jdwp.CmdERClear] = ok
	t.handlers[jdwp.CmdERClearAllBreakpoints] = ok
}
