package jdi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jdwp/internal/jdwp"
)

func startDispatcher(t *testing.T, d *Dispatcher) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- d.Run(context.Background()) }()
	t.Cleanup(d.Stop)
	return errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
		return nil
	}
}

func TestDispatcherResumeVoting(t *testing.T) {
	tests := []struct {
		name    string
		policy  jdwp.SuspendPolicy
		votes   []bool
		cfg     DispatcherConfig
		resumes int
	}{
		{"all continue", jdwp.SuspendAll, []bool{true, true}, DispatcherConfig{}, 1},
		{"one objects", jdwp.SuspendAll, []bool{true, false}, DispatcherConfig{}, 0},
		{"event thread policy", jdwp.SuspendEventThread, []bool{true, true}, DispatcherConfig{}, 0},
		{"no suspension", jdwp.SuspendNone, []bool{true}, DispatcherConfig{}, 0},
		{"unhandled stays suspended", jdwp.SuspendAll, nil, DispatcherConfig{}, 0},
		{"unhandled resumes", jdwp.SuspendAll, nil, DispatcherConfig{ResumeWhenUnhandled: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, vm := newFakeVM(t, nil)
			d := NewDispatcher(vm, tt.cfg)
			for _, vote := range tt.votes {
				d.AddHandler(func(Event) bool { return vote })
			}
			errc := startDispatcher(t, d)

			f.sendEvents(t, tt.policy, threadStart(42), threadStart(43))
			f.sendEvents(t, jdwp.SuspendNone, vmDeath())

			require.NoError(t, waitRun(t, errc))
			assert.Equal(t, tt.resumes, f.Count(jdwp.CmdVMResume))
			assert.Zero(t, f.Count(jdwp.CmdTRResume))
			assert.Equal(t, DispatcherStopped, d.State())
		})
	}
}

func TestDispatcherEveryHandlerSeesEveryEvent(t *testing.T) {
	f, vm := newFakeVM(t, nil)
	d := NewDispatcher(vm, DispatcherConfig{})

	var mu sync.Mutex
	seen := map[int][]jdwp.EventKind{}
	for i := 0; i < 3; i++ {
		d.AddHandler(func(e Event) bool {
			mu.Lock()
			defer mu.Unlock()
			seen[i] = append(seen[i], e.Kind())
			return true
		})
	}
	errc := startDispatcher(t, d)

	f.sendEvents(t, jdwp.SuspendAll, threadStart(1), threadStart(2))
	f.sendEvents(t, jdwp.SuspendNone, vmDeath())
	require.NoError(t, waitRun(t, errc))

	want := []jdwp.EventKind{jdwp.EventThreadStart, jdwp.EventThreadStart, jdwp.EventVMDeath}
	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < 3; i++ {
		assert.Equal(t, want, seen[i], "handler %d", i)
	}
	assert.Equal(t, 1, f.Count(jdwp.CmdVMResume))
}

func TestDispatcherRemoveHandler(t *testing.T) {
	f, vm := newFakeVM(t, nil)
	d := NewDispatcher(vm, DispatcherConfig{})

	id := d.AddHandler(func(Event) bool { return false })
	d.AddHandler(func(Event) bool { return true })
	assert.True(t, d.RemoveHandler(id))
	assert.False(t, d.RemoveHandler(id))

	errc := startDispatcher(t, d)
	f.sendEvents(t, jdwp.SuspendAll, threadStart(1))
	f.sendEvents(t, jdwp.SuspendNone, vmDeath())
	require.NoError(t, waitRun(t, errc))
	assert.Equal(t, 1, f.Count(jdwp.CmdVMResume))
}

func TestDispatcherHandlerPanicKeepsSuspended(t *testing.T) {
	f, vm := newFakeVM(t, nil)
	d := NewDispatcher(vm, DispatcherConfig{})
	d.AddHandler(func(e Event) bool {
		if e.Kind() == jdwp.EventThreadStart {
			panic("boom")
		}
		return true
	})

	errc := startDispatcher(t, d)
	f.sendEvents(t, jdwp.SuspendAll, threadStart(1))
	f.sendEvents(t, jdwp.SuspendNone, vmDeath())
	require.NoError(t, waitRun(t, errc))
	assert.Zero(t, f.Count(jdwp.CmdVMResume))
}

func TestDispatcherStopsOnDisconnect(t *testing.T) {
	f, vm := newFakeVM(t, nil)
	d := NewDispatcher(vm, DispatcherConfig{})

	kinds := make(chan jdwp.EventKind, 4)
	d.AddHandler(func(e Event) bool {
		kinds <- e.Kind()
		return true
	})
	errc := startDispatcher(t, d)

	require.NoError(t, f.Close())
	require.NoError(t, waitRun(t, errc))
	assert.Equal(t, jdwp.EventVMDisconnected, <-kinds)
	assert.Empty(t, kinds)
}

func TestDispatcherStop(t *testing.T) {
	_, vm := newFakeVM(t, nil)
	d := NewDispatcher(vm, DispatcherConfig{})
	assert.Equal(t, DispatcherRunning, d.State())

	errc := startDispatcher(t, d)
	require.Eventually(t, func() bool { return d.started.Load() }, time.Second, time.Millisecond)

	d.Stop()
	require.NoError(t, waitRun(t, errc))
	<-d.Done()
	assert.Equal(t, DispatcherStopped, d.State())

	err := d.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidRequestState)
}

func TestDispatcherStoppedBeforeRun(t *testing.T) {
	f, vm := newFakeVM(t, nil)
	d := NewDispatcher(vm, DispatcherConfig{})
	d.Stop()
	assert.Equal(t, DispatcherStopped, d.State())

	f.sendEvents(t, jdwp.SuspendAll, threadStart(1))
	require.NoError(t, d.Run(context.Background()))
	<-d.Done()
	assert.Zero(t, f.Count(jdwp.CmdVMResume), "a stopped dispatcher reads nothing")
}
