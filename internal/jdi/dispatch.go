package jdi

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/dshills/jdwp/internal/jdwp"
)

// DispatcherState is the lifecycle state of a Dispatcher.
type DispatcherState int32

const (
	// DispatcherRunning is the state from creation until Stop or the end
	// of Run. Handlers registered before Run see the first event set.
	DispatcherRunning DispatcherState = iota
	// DispatcherStopped is after Stop or after Run has returned.
	DispatcherStopped
)

// String returns a string representation of the state.
func (s DispatcherState) String() string {
	switch s {
	case DispatcherRunning:
		return "running"
	case DispatcherStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Handler receives every event of a set. It returns true to let the
// thread(s) continue, false to keep them suspended.
type Handler func(e Event) bool

// HandlerID identifies a registered handler.
type HandlerID uint64

type handlerEntry struct {
	id HandlerID
	fn Handler
}

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	// ResumeWhenUnhandled resumes "all" sets that arrive while no handler
	// is registered. When false such sets leave the VM suspended.
	ResumeWhenUnhandled bool
}

// Dispatcher reads event sets from the queue and fans each event out to the
// registered handlers. Handlers may be added and removed while it runs.
type Dispatcher struct {
	vm  *VirtualMachine
	cfg DispatcherConfig
	log commonlog.Logger

	handlers atomic.Pointer[[]handlerEntry]
	regMu    sync.Mutex
	nextID   HandlerID

	state   atomic.Int32
	started atomic.Bool
	stopped atomic.Bool
	died    atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a running dispatcher for vm. Events are read once
// Run is called.
func NewDispatcher(vm *VirtualMachine, cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		vm:   vm,
		cfg:  cfg,
		log:  commonlog.GetLogger("jdi.dispatch"),
		done: make(chan struct{}),
	}
	d.handlers.Store(&[]handlerEntry{})
	return d
}

// State returns the current state.
func (d *Dispatcher) State() DispatcherState {
	return DispatcherState(d.state.Load())
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// AddHandler registers fn and returns an id for RemoveHandler.
func (d *Dispatcher) AddHandler(fn Handler) HandlerID {
	d.regMu.Lock()
	defer d.regMu.Unlock()

	d.nextID++
	id := d.nextID
	old := *d.handlers.Load()
	next := make([]handlerEntry, len(old), len(old)+1)
	copy(next, old)
	next = append(next, handlerEntry{id: id, fn: fn})
	d.handlers.Store(&next)
	return id
}

// RemoveHandler unregisters a handler. It reports whether it was present.
func (d *Dispatcher) RemoveHandler(id HandlerID) bool {
	d.regMu.Lock()
	defer d.regMu.Unlock()

	old := *d.handlers.Load()
	next := make([]handlerEntry, 0, len(old))
	for _, h := range old {
		if h.id != id {
			next = append(next, h)
		}
	}
	if len(next) == len(old) {
		return false
	}
	d.handlers.Store(&next)
	return true
}

// Run dispatches event sets until Stop is called, the VM dies or
// disconnects, or ctx is cancelled. A disconnection after Stop, or after
// VMDeath, is a normal shutdown and returns nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return newError("Dispatcher.Run", ErrInvalidRequestState, "dispatcher already ran")
	}
	defer func() {
		d.state.Store(int32(DispatcherStopped))
		close(d.done)
	}()

	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	d.log.Infof("[%s] event dispatch started", d.vm.id)
	for !d.stopped.Load() {
		set, err := d.vm.queue.Remove(ctx)
		if err != nil {
			if d.stopped.Load() || errors.Is(err, ErrDisconnected) && d.died.Load() {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrDisconnected) {
				return err
			}
			d.log.Warningf("[%s] %s", d.vm.id, err)
			continue
		}
		if d.dispatch(ctx, set) {
			d.log.Infof("[%s] event dispatch finished", d.vm.id)
			return nil
		}
	}
	return nil
}

// Stop asks Run to return and unblocks its pending read. A dispatcher
// stopped before Run never reads.
func (d *Dispatcher) Stop() {
	d.stopped.Store(true)
	if !d.started.Load() {
		d.state.Store(int32(DispatcherStopped))
	}
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// dispatch hands each event of set to every handler and applies the resume
// vote. It reports whether the loop should end.
func (d *Dispatcher) dispatch(ctx context.Context, set *EventSet) (last bool) {
	handlers := *d.handlers.Load()
	resume := len(handlers) > 0 || d.cfg.ResumeWhenUnhandled

	for _, e := range set.events {
		for _, h := range handlers {
			if !d.call(h, e) {
				resume = false
			}
		}
		switch e.(type) {
		case *VMDeathEvent:
			d.died.Store(true)
			last = true
		case *VMDisconnectEvent:
			last = true
		}
	}

	if resume && set.policy == jdwp.SuspendAll && !last {
		if err := d.vm.Resume(ctx); err != nil && !errors.Is(err, ErrDisconnected) && ctx.Err() == nil {
			d.log.Errorf("[%s] resume after %s: %s", d.vm.id, set, err)
		}
	}
	return last
}

// call runs one handler, treating a panic as a vote to stay suspended.
func (d *Dispatcher) call(h handlerEntry, e Event) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("[%s] handler %d panicked on %s: %v", d.vm.id, h.id, e, r)
			cont = false
		}
	}()
	return h.fn(e)
}
