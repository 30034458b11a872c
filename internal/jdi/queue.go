package jdi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/dshills/jdwp/internal/jdwp"
)

// EventQueue yields the event sets sent by the target in arrival order.
// When the connection is lost it yields a single set holding a
// VMDisconnectEvent, then ErrDisconnected.
type EventQueue struct {
	vm  *VirtualMachine
	log commonlog.Logger

	mu           sync.Mutex
	disconnected bool
}

func newEventQueue(vm *VirtualMachine) *EventQueue {
	return &EventQueue{vm: vm, log: commonlog.GetLogger("jdi.events")}
}

// Remove waits for the next event set.
func (q *EventQueue) Remove(ctx context.Context) (*EventSet, error) {
	const op = "EventQueue.Remove"
	p, err := q.vm.conn.NextEvent(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, wrap(op, err)
		}
		if errors.Is(err, jdwp.ErrDisconnected) {
			if set := q.disconnectSet(); set != nil {
				return set, nil
			}
		}
		return nil, wrap(op, err)
	}

	set, err := q.vm.decodeEventSet(p.Data)
	if err != nil {
		q.log.Errorf("[%s] dropping event packet %d: %s", q.vm.id, p.ID, err)
		return nil, err
	}
	if q.vm.cfg.TraceEvents {
		q.log.Debugf("[%s] %s", q.vm.id, set)
	}
	return set, nil
}

// RemoveTimeout waits up to d for the next event set. It returns
// ErrNoEvent when nothing arrives in time.
func (q *EventQueue) RemoveTimeout(ctx context.Context, d time.Duration) (*EventSet, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	set, err := q.Remove(tctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, newError("EventQueue.Remove", ErrNoEvent, "no event within %s", d)
	}
	return set, err
}

// disconnectSet returns the synthetic disconnect set the first time it is
// called and nil afterwards.
func (q *EventQueue) disconnectSet() *EventSet {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disconnected {
		return nil
	}
	q.disconnected = true
	q.vm.invalidateFrames()
	q.log.Infof("[%s] target disconnected: %s", q.vm.id, q.vm.conn.Err())

	e := &VMDisconnectEvent{eventBase{vm: q.vm, kind: jdwp.EventVMDisconnected}}
	return &EventSet{vm: q.vm, policy: jdwp.SuspendNone, events: []Event{e}}
}
