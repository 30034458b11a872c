package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jdwp/internal/jdi"
	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/jdwp/jdwptest"
	"github.com/dshills/jdwp/internal/trace"
)

// threadedTarget reports threads 1..n named "worker-<id>"; thread 2 sleeps.
func threadedTarget(t *testing.T, n int) (*jdwptest.Target, *jdi.VirtualMachine) {
	t.Helper()
	target, conn := jdwptest.Connect(t, jdwp.DefaultIDSizes)
	target.Handle(jdwp.CmdVMAllThreads, func(_ *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		r.Int32(int32(n))
		for i := n; i >= 1; i-- {
			r.ObjectID(jdwp.ObjectID(i))
		}
		return jdwp.ErrNone
	})
	target.Handle(jdwp.CmdTRName, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		r.Text(fmt.Sprintf("worker-%d", req.ObjectID()))
		return jdwp.ErrNone
	})
	target.Handle(jdwp.CmdTRStatus, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		status := jdwp.ThreadStatusRunning
		if req.ObjectID() == 2 {
			status = jdwp.ThreadStatusSleeping
		}
		r.Int32(status).Int32(0)
		return jdwp.ErrNone
	})

	vm, err := jdi.Attach(context.Background(), conn, jdi.Config{SessionID: "test-session"})
	require.NoError(t, err)
	return target, vm
}

func TestPrintSummary(t *testing.T) {
	target, vm := threadedTarget(t, 12)
	target.SetCapability(jdi.CapGetBytecodes, true)

	var out bytes.Buffer
	require.NoError(t, printSummary(context.Background(), &out, vm))

	text := out.String()
	assert.Contains(t, text, "Session:  test-session")
	assert.Contains(t, text, "ID sizes: field=8 method=8 object=8 reftype=8 frame=8")
	assert.Contains(t, text, "Threads (12):")
	assert.Contains(t, text, "sleeping  worker-2")
	assert.Equal(t, 12, target.Count(jdwp.CmdTRName))

	lines := strings.Split(text, "\n")
	var first int
	for i, l := range lines {
		if strings.HasPrefix(l, "Threads") {
			first = i + 1
			break
		}
	}
	assert.Contains(t, lines[first], "worker-1", "threads are listed by id")
}

func TestThreadNameFailureIsReported(t *testing.T) {
	target, vm := threadedTarget(t, 3)
	target.Handle(jdwp.CmdTRName, func(*jdwp.Decoder, *jdwp.Encoder) jdwp.ErrorCode {
		return jdwp.ErrInvalidThread
	})

	err := printSummary(context.Background(), &bytes.Buffer{}, vm)
	assert.ErrorIs(t, err, jdi.ErrInvalidReference)
}

func TestWatchClasses(t *testing.T) {
	target, vm := threadedTarget(t, 1)

	var out bytes.Buffer
	errc := make(chan error, 1)
	go func() {
		errc <- watchClasses(context.Background(), &out, vm, jdi.DispatcherConfig{})
	}()

	require.Eventually(t, func() bool { return target.Count(jdwp.CmdERSet) == 3 }, 5*time.Second, time.Millisecond)
	require.NoError(t, target.SendComposite(jdwp.SuspendNone,
		jdwptest.Event{Kind: jdwp.EventThreadStart, RequestID: 2, Payload: func(e *jdwp.Encoder) { e.ObjectID(1) }},
		jdwptest.Event{Kind: jdwp.EventClassPrepare, RequestID: 1, Payload: func(e *jdwp.Encoder) {
			e.ObjectID(1).Byte(uint8(jdwp.TypeTagClass)).ReferenceTypeID(70).Text("Lcom/example/Main;").Int32(jdwp.ClassStatusPrepared)
		}},
	))
	require.NoError(t, target.SendComposite(jdwp.SuspendNone, jdwptest.Event{Kind: jdwp.EventVMDeath}))

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not finish")
	}
	assert.Equal(t, "started   worker-1\nprepared  com.example.Main\nVMDeath\n", out.String())
}

func TestWatchCleanupIsBounded(t *testing.T) {
	target, vm := threadedTarget(t, 1)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	target.Handle(jdwp.CmdERClear, func(*jdwp.Decoder, *jdwp.Encoder) jdwp.ErrorCode {
		<-release
		return jdwp.ErrNone
	})

	saved := cleanupTimeout
	cleanupTimeout = 50 * time.Millisecond
	t.Cleanup(func() { cleanupTimeout = saved })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- watchClasses(ctx, &bytes.Buffer{}, vm, jdi.DispatcherConfig{})
	}()
	require.Eventually(t, func() bool { return target.Count(jdwp.CmdERSet) == 3 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup waited on an unresponsive target")
	}
	assert.Equal(t, 1, target.Count(jdwp.CmdERClear), "later requests are not sent once the deadline passed")
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	rec, err := trace.NewRecorder(&buf, trace.Options{Session: "dump-test"})
	require.NoError(t, err)

	sizes := jdwp.NewEncoder(jdwp.DefaultIDSizes)
	for i := 0; i < 5; i++ {
		sizes.Int32(8)
	}
	rec.Packet(jdwp.Outbound, &jdwp.Packet{ID: 1, Command: jdwp.CmdVMIDSizes})
	rec.Packet(jdwp.Inbound, &jdwp.Packet{ID: 1, Flags: jdwp.FlagReply, Data: sizes.Bytes()})

	composite := jdwp.NewEncoder(jdwp.DefaultIDSizes).Byte(uint8(jdwp.SuspendAll)).Int32(1).
		Byte(uint8(jdwp.EventBreakpoint)).Int32(7)
	rec.Packet(jdwp.Inbound, &jdwp.Packet{ID: 40, Command: jdwp.CmdEventComposite, Data: composite.Bytes()})
	require.NoError(t, rec.Close())

	r, err := trace.NewReader(&buf)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, dump(&out, r))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "session dump-test")
	assert.Contains(t, lines[1], "VirtualMachine.IDSizes")
	assert.Contains(t, lines[3], "sizes field=8")
	assert.Contains(t, lines[4], "Event.Composite")
	assert.Equal(t, "policy=all events=1 first=Breakpoint request=7",
		strings.TrimSpace(lines[5]))
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	t.Setenv("JDWP_CONFIG", "")
	t.Setenv("JDWP_ADDRESS", "env:1")
	t.Setenv("JDWP_LOG_LEVEL", "info")

	cfg, err := loadConfig(options{address: "flag:2"})
	require.NoError(t, err)
	assert.Equal(t, "flag:2", cfg.Target().Address)
	assert.Equal(t, "info", cfg.Logging().Level)

	t.Setenv("JDWP_DIAL_TIMEOUT", "later")
	_, err = loadConfig(options{})
	assert.Error(t, err)
}
