package jdi

import (
	"context"
	"fmt"

	"github.com/dshills/jdwp/internal/jdwp"
)

// Event is a notification from the target. Every event names the request
// that produced it; unsolicited events such as VMStart have a nil request.
type Event interface {
	Kind() jdwp.EventKind
	Request() *EventRequest
	VirtualMachine() *VirtualMachine
	String() string
}

// LocatableEvent is an event that occurred in a thread at a location.
type LocatableEvent interface {
	Event
	Thread() *ThreadReference
	Location() Location
}

type eventBase struct {
	vm      *VirtualMachine
	kind    jdwp.EventKind
	request *EventRequest
}

func (e *eventBase) Kind() jdwp.EventKind            { return e.kind }
func (e *eventBase) Request() *EventRequest          { return e.request }
func (e *eventBase) VirtualMachine() *VirtualMachine { return e.vm }
func (e *eventBase) String() string                  { return e.kind.String() }

type threadEvent struct {
	eventBase
	thread *ThreadReference
}

func (e *threadEvent) Thread() *ThreadReference { return e.thread }

func (e *threadEvent) String() string {
	return fmt.Sprintf("%s in %s", e.kind, e.thread)
}

type locatable struct {
	threadEvent
	location Location
}

func (e *locatable) Location() Location { return e.location }

func (e *locatable) String() string {
	return fmt.Sprintf("%s in %s at %s", e.kind, e.thread, e.location)
}

// VMStartEvent reports that the target has initialized.
type VMStartEvent struct{ threadEvent }

// VMDeathEvent reports that the target is terminating.
type VMDeathEvent struct{ eventBase }

// VMDisconnectEvent is delivered once when the connection is lost. It is
// produced locally; the target never sends it.
type VMDisconnectEvent struct{ eventBase }

// StepEvent reports the completion of a step.
type StepEvent struct{ locatable }

// BreakpointEvent reports a breakpoint hit.
type BreakpointEvent struct{ locatable }

// MethodEntryEvent reports entry into a method.
type MethodEntryEvent struct{ locatable }

// Method returns the entered method.
func (e *MethodEntryEvent) Method(ctx context.Context) (*Method, error) {
	return e.location.Method(ctx)
}

// MethodExitEvent reports a method return.
type MethodExitEvent struct {
	locatable
	returnValue Value
	hasReturn   bool
}

// Method returns the exited method.
func (e *MethodExitEvent) Method(ctx context.Context) (*Method, error) {
	return e.location.Method(ctx)
}

// ReturnValue returns the value being returned. ok is false when the target
// does not report return values.
func (e *MethodExitEvent) ReturnValue() (v Value, ok bool) {
	return e.returnValue, e.hasReturn
}

// ExceptionEvent reports a thrown exception.
type ExceptionEvent struct {
	locatable
	exception     Reference
	catchLocation Location
}

// Exception returns the thrown object.
func (e *ExceptionEvent) Exception() Reference { return e.exception }

// CatchLocation returns where the exception will be caught; the zero
// Location means uncaught.
func (e *ExceptionEvent) CatchLocation() Location { return e.catchLocation }

// ThreadStartEvent reports a new thread.
type ThreadStartEvent struct{ threadEvent }

// ThreadDeathEvent reports a terminating thread.
type ThreadDeathEvent struct{ threadEvent }

// ClassPrepareEvent reports a newly prepared type.
type ClassPrepareEvent struct {
	threadEvent
	refType ReferenceType
}

// ReferenceType returns the prepared type.
func (e *ClassPrepareEvent) ReferenceType() ReferenceType { return e.refType }

func (e *ClassPrepareEvent) String() string {
	return fmt.Sprintf("%s %s", e.kind, e.refType)
}

// ClassUnloadEvent reports that a type was unloaded.
type ClassUnloadEvent struct {
	eventBase
	signature string
}

// Signature returns the signature of the unloaded type.
func (e *ClassUnloadEvent) Signature() string { return e.signature }

func (e *ClassUnloadEvent) String() string {
	return fmt.Sprintf("%s %s", e.kind, e.signature)
}

// WatchpointEvent is the common part of field access and modification.
type WatchpointEvent struct {
	locatable
	declaring ReferenceType
	fieldID   jdwp.FieldID
	object    Reference
}

// Object returns the object whose field is accessed, or nil for a static
// field.
func (e *WatchpointEvent) Object() Reference { return e.object }

// Field resolves the accessed field.
func (e *WatchpointEvent) Field(ctx context.Context) (*Field, error) {
	return e.declaring.base().fieldByID(ctx, e.fieldID)
}

// AccessWatchpointEvent reports a field read.
type AccessWatchpointEvent struct{ WatchpointEvent }

// ModificationWatchpointEvent reports a field write.
type ModificationWatchpointEvent struct {
	WatchpointEvent
	valueToBe Value
}

// ValueToBe returns the value being assigned.
func (e *ModificationWatchpointEvent) ValueToBe() Value { return e.valueToBe }

// MonitorEvent is the common part of the monitor events.
type MonitorEvent struct {
	locatable
	monitor Reference
}

// Monitor returns the object whose monitor is involved.
func (e *MonitorEvent) Monitor() Reference { return e.monitor }

// MonitorContendedEnterEvent reports a thread blocking on a monitor.
type MonitorContendedEnterEvent struct{ MonitorEvent }

// MonitorContendedEnteredEvent reports a thread acquiring a contended
// monitor.
type MonitorContendedEnteredEvent struct{ MonitorEvent }

// MonitorWaitEvent reports a thread about to wait on a monitor.
type MonitorWaitEvent struct {
	MonitorEvent
	timeout int64
}

// Timeout returns the wait timeout in milliseconds.
func (e *MonitorWaitEvent) Timeout() int64 { return e.timeout }

// MonitorWaitedEvent reports the end of a monitor wait.
type MonitorWaitedEvent struct {
	MonitorEvent
	timedOut bool
}

// TimedOut reports whether the wait ended by timeout.
func (e *MonitorWaitedEvent) TimedOut() bool { return e.timedOut }

// EventSet is the group of events reported together by one composite
// packet, with the suspend policy the target applied.
type EventSet struct {
	vm     *VirtualMachine
	policy jdwp.SuspendPolicy
	events []Event
}

// SuspendPolicy returns the policy the target applied.
func (s *EventSet) SuspendPolicy() jdwp.SuspendPolicy { return s.policy }

// Events returns the events in arrival order.
func (s *EventSet) Events() []Event { return s.events }

// Thread returns the thread the events occurred in, or nil.
func (s *EventSet) Thread() *ThreadReference {
	for _, e := range s.events {
		if te, ok := e.(interface{ Thread() *ThreadReference }); ok && te.Thread() != nil {
			return te.Thread()
		}
	}
	return nil
}

// Resume undoes the suspension the target applied when sending the set:
// the whole VM, the event thread, or nothing.
func (s *EventSet) Resume(ctx context.Context) error {
	switch s.policy {
	case jdwp.SuspendAll:
		return s.vm.Resume(ctx)
	case jdwp.SuspendEventThread:
		if t := s.Thread(); t != nil {
			return t.Resume(ctx)
		}
	}
	return nil
}

func (s *EventSet) String() string {
	return fmt.Sprintf("event set (%s) %v", s.policy, s.events)
}

// decodeEventSet reads an Event.Composite command body. Cache side effects
// of the events are applied as they are decoded.
func (vm *VirtualMachine) decodeEventSet(data []byte) (*EventSet, error) {
	const op = "Event.Composite"
	d := jdwp.NewDecoder(data, vm.conn.Sizes())
	set := &EventSet{vm: vm, policy: jdwp.SuspendPolicy(d.Byte())}
	n := d.Count()
	for i := 0; i < n && d.Err() == nil; i++ {
		e, err := vm.decodeEvent(d)
		if err != nil {
			return nil, &Error{Op: op, Err: err}
		}
		if e != nil {
			set.events = append(set.events, e)
		}
	}
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	return set, nil
}

func (vm *VirtualMachine) decodeEvent(d *jdwp.Decoder) (Event, error) {
	kind := jdwp.EventKind(d.Byte())
	reqID := d.Int32()
	if d.Err() != nil {
		return nil, nil
	}

	base := eventBase{vm: vm, kind: kind, request: vm.requests.request(reqID)}
	if kind == jdwp.EventMethodExitWithReturnValue {
		base.kind = jdwp.EventMethodExit
	}
	thread := func() threadEvent {
		return threadEvent{eventBase: base, thread: vm.cache.thread(d.ObjectID())}
	}
	located := func() locatable {
		te := thread()
		return locatable{threadEvent: te, location: vm.location(d.Location())}
	}
	object := func() Reference {
		tag, id := d.TaggedObjectID()
		return vm.cache.object(tag, id)
	}

	switch kind {
	case jdwp.EventVMStart:
		return &VMStartEvent{thread()}, nil
	case jdwp.EventVMDeath:
		return &VMDeathEvent{base}, nil
	case jdwp.EventSingleStep:
		return &StepEvent{located()}, nil
	case jdwp.EventBreakpoint:
		return &BreakpointEvent{located()}, nil
	case jdwp.EventMethodEntry:
		return &MethodEntryEvent{located()}, nil
	case jdwp.EventMethodExit:
		return &MethodExitEvent{locatable: located()}, nil
	case jdwp.EventMethodExitWithReturnValue:
		e := &MethodExitEvent{locatable: located(), hasReturn: true}
		e.returnValue = vm.value(d.Value())
		return e, nil
	case jdwp.EventException:
		e := &ExceptionEvent{locatable: located()}
		e.exception = object()
		e.catchLocation = vm.location(d.Location())
		return e, nil
	case jdwp.EventThreadStart:
		return &ThreadStartEvent{thread()}, nil
	case jdwp.EventThreadDeath:
		e := &ThreadDeathEvent{thread()}
		if e.thread != nil {
			e.thread.epoch.Add(1)
		}
		return e, nil
	case jdwp.EventClassPrepare:
		e := &ClassPrepareEvent{threadEvent: thread()}
		e.refType = vm.readReferenceType(d)
		sig := d.Text()
		status := d.Int32()
		if d.Err() == nil && e.refType != nil {
			vm.cache.noteSignature(e.refType, sig)
			e.refType.base().noteStatus(status)
		}
		return e, nil
	case jdwp.EventClassUnload:
		e := &ClassUnloadEvent{eventBase: base, signature: d.Text()}
		if d.Err() == nil {
			vm.cache.unload(e.signature)
		}
		return e, nil
	case jdwp.EventFieldAccess, jdwp.EventFieldModification:
		w := WatchpointEvent{locatable: located()}
		w.declaring = vm.readReferenceType(d)
		w.fieldID = d.FieldID()
		w.object = object()
		if kind == jdwp.EventFieldAccess {
			return &AccessWatchpointEvent{w}, nil
		}
		return &ModificationWatchpointEvent{WatchpointEvent: w, valueToBe: vm.value(d.Value())}, nil
	case jdwp.EventMonitorContendedEnter, jdwp.EventMonitorContendedEntered,
		jdwp.EventMonitorWait, jdwp.EventMonitorWaited:
		te := thread()
		m := MonitorEvent{locatable: locatable{threadEvent: te}}
		m.monitor = object()
		m.location = vm.location(d.Location())
		switch kind {
		case jdwp.EventMonitorContendedEnter:
			return &MonitorContendedEnterEvent{m}, nil
		case jdwp.EventMonitorContendedEntered:
			return &MonitorContendedEnteredEvent{m}, nil
		case jdwp.EventMonitorWait:
			return &MonitorWaitEvent{MonitorEvent: m, timeout: d.Int64()}, nil
		default:
			return &MonitorWaitedEvent{MonitorEvent: m, timedOut: d.Bool()}, nil
		}
	}
	return nil, fmt.Errorf("unknown event kind %d", uint8(kind))
}
