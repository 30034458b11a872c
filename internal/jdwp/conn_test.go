package jdwp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/jdwp/jdwptest"
)

func negotiated(t *testing.T) (*jdwptest.Target, *jdwp.Conn) {
	t.Helper()
	target, conn := jdwptest.Connect(t, jdwp.DefaultIDSizes)
	_, err := conn.NegotiateIDSizes(context.Background())
	require.NoError(t, err)
	return target, conn
}

func TestCommandsBeforeNegotiationFailLocally(t *testing.T) {
	target, conn := jdwptest.Connect(t, jdwp.DefaultIDSizes)

	_, err := conn.Call(context.Background(), jdwp.CmdVMVersion, nil)
	require.ErrorIs(t, err, jdwp.ErrNotNegotiated)
	assert.Zero(t, target.Total())

	sizes, err := conn.NegotiateIDSizes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jdwp.DefaultIDSizes, sizes)
	assert.True(t, conn.Negotiated())

	_, err = conn.Call(context.Background(), jdwp.CmdVMVersion, nil)
	require.NoError(t, err)
}

func TestNegotiatedWidthsApplyToEncoding(t *testing.T) {
	sizes := jdwp.IDSizes{FieldID: 4, MethodID: 4, ObjectID: 4, ReferenceTypeID: 4, FrameID: 4}
	target, conn := jdwptest.Connect(t, sizes)
	_, err := conn.NegotiateIDSizes(context.Background())
	require.NoError(t, err)

	target.Handle(jdwp.CmdSRValue, func(req *jdwp.Decoder, reply *jdwp.Encoder) jdwp.ErrorCode {
		if req.ObjectID() != 0x01020304 || req.Remaining() != 0 {
			return jdwp.ErrInvalidObject
		}
		reply.Text("ok")
		return jdwp.ErrNone
	})

	d, err := conn.Do(context.Background(), jdwp.CmdSRValue, func(e *jdwp.Encoder) {
		e.ObjectID(0x01020304)
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", d.Text())
}

func TestReplyErrorIsSurfacedUninterpreted(t *testing.T) {
	target, conn := negotiated(t)
	target.Handle(jdwp.CmdORIsCollected, func(*jdwp.Decoder, *jdwp.Encoder) jdwp.ErrorCode {
		return jdwp.ErrInvalidObject
	})

	_, err := conn.Call(context.Background(), jdwp.CmdORIsCollected, nil)
	var re *jdwp.ReplyError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, jdwp.ErrInvalidObject, re.Code)
	assert.Equal(t, jdwp.CmdORIsCollected, re.Command)
	assert.Equal(t, jdwp.ErrInvalidObject, jdwp.CodeOf(err))
}

func TestUnhandledCommandIsNotImplemented(t *testing.T) {
	_, conn := negotiated(t)
	_, err := conn.Call(context.Background(), jdwp.CmdTRIsVirtual, nil)
	assert.Equal(t, jdwp.ErrNotImplemented, jdwp.CodeOf(err))
}

func TestConcurrentCallsGetTheirOwnReplies(t *testing.T) {
	target, conn := negotiated(t)
	target.Handle(jdwp.CmdTRName, func(req *jdwp.Decoder, reply *jdwp.Encoder) jdwp.ErrorCode {
		id := req.ObjectID()
		reply.Text(string(rune('a' + int(id))))
		return jdwp.ErrNone
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := conn.Do(context.Background(), jdwp.CmdTRName, func(e *jdwp.Encoder) {
				e.ObjectID(jdwp.ObjectID(i))
			})
			if assert.NoError(t, err) {
				assert.Equal(t, string(rune('a'+i)), d.Text())
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, target.Count(jdwp.CmdTRName))
}

func TestEventsAreQueuedIndependentlyOfReplies(t *testing.T) {
	target, conn := negotiated(t)

	require.NoError(t, target.SendComposite(jdwp.SuspendAll, jdwptest.Event{Kind: jdwp.EventVMStart, Payload: func(e *jdwp.Encoder) {
		e.ObjectID(1)
	}}))
	require.NoError(t, target.SendComposite(jdwp.SuspendNone, jdwptest.Event{Kind: jdwp.EventVMDeath}))

	// A call issued while events are undrained still completes.
	_, err := conn.Call(context.Background(), jdwp.CmdVMVersion, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := conn.NextEvent(ctx)
	require.NoError(t, err)
	d := jdwp.NewDecoder(p.Data, conn.Sizes())
	assert.Equal(t, uint8(jdwp.SuspendAll), d.Byte())

	p, err = conn.NextEvent(ctx)
	require.NoError(t, err)
	d = jdwp.NewDecoder(p.Data, conn.Sizes())
	assert.Equal(t, uint8(jdwp.SuspendNone), d.Byte())
}

func TestNextEventHonoursContext(t *testing.T) {
	_, conn := negotiated(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := conn.NextEvent(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, conn.Err())
}

func TestCallWithDoneContextSendsNothing(t *testing.T) {
	target, conn := negotiated(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.Call(ctx, jdwp.CmdVMVersion, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, target.Count(jdwp.CmdVMVersion))
	assert.NoError(t, conn.Err())
}

func TestDisconnectUnblocksPendingCall(t *testing.T) {
	target, conn := negotiated(t)
	target.Handle(jdwp.CmdVMAllThreads, func(*jdwp.Decoder, *jdwp.Encoder) jdwp.ErrorCode {
		return jdwptest.NoReply
	})

	errc := make(chan error, 1)
	go func() {
		_, err := conn.Call(context.Background(), jdwp.CmdVMAllThreads, nil)
		errc <- err
	}()

	require.Eventually(t, func() bool {
		return target.Count(jdwp.CmdVMAllThreads) == 1
	}, time.Second, 5*time.Millisecond)
	target.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, jdwp.ErrDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call did not unblock after disconnect")
	}

	<-conn.Done()
	assert.ErrorIs(t, conn.Err(), jdwp.ErrDisconnected)

	_, err := conn.Call(context.Background(), jdwp.CmdVMVersion, nil)
	assert.ErrorIs(t, err, jdwp.ErrDisconnected)

	_, err = conn.NextEvent(context.Background())
	assert.ErrorIs(t, err, jdwp.ErrDisconnected)
}

func TestCloseReportsDisconnected(t *testing.T) {
	_, conn := negotiated(t)
	require.NoError(t, conn.Close())

	<-conn.Done()
	assert.ErrorIs(t, conn.Err(), jdwp.ErrDisconnected)
}

type recordingTap struct {
	mu   sync.Mutex
	dirs []jdwp.Direction
}

func (r *recordingTap) Packet(dir jdwp.Direction, _ *jdwp.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, dir)
}

func TestTapSeesBothDirections(t *testing.T) {
	target := jdwptest.New(jdwp.DefaultIDSizes)
	defer target.Close()
	require.NoError(t, jdwp.Handshake(target.ClientConn()))

	tap := &recordingTap{}
	conn := jdwp.NewConn(jdwp.NewStreamTransport(target.ClientConn()), jdwp.Options{Tap: tap})
	defer conn.Close()

	_, err := conn.NegotiateIDSizes(context.Background())
	require.NoError(t, err)

	tap.mu.Lock()
	defer tap.mu.Unlock()
	assert.Equal(t, []jdwp.Direction{jdwp.Outbound, jdwp.Inbound}, tap.dirs)
}
