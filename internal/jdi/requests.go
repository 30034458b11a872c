package jdi

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/jdwp/internal/jdwp"
)

// filterKinds lists, per request kind, the filters a client may add.
// Filters implied by creation (location, field, exception, step) are not
// listed.
var filterKinds = map[jdwp.EventKind][]jdwp.ModKind{
	jdwp.EventBreakpoint: {jdwp.ModCount, jdwp.ModThreadOnly, jdwp.ModInstanceOnly},
	jdwp.EventSingleStep: {jdwp.ModCount, jdwp.ModClassOnly, jdwp.ModClassMatch, jdwp.ModClassExclude, jdwp.ModInstanceOnly},
	jdwp.EventException: {jdwp.ModCount, jdwp.ModThreadOnly, jdwp.ModClassOnly, jdwp.ModClassMatch,
		jdwp.ModClassExclude, jdwp.ModInstanceOnly},
	jdwp.EventMethodEntry: {jdwp.ModCount, jdwp.ModThreadOnly, jdwp.ModClassOnly, jdwp.ModClassMatch,
		jdwp.ModClassExclude, jdwp.ModInstanceOnly},
	jdwp.EventMethodExit: {jdwp.ModCount, jdwp.ModThreadOnly, jdwp.ModClassOnly, jdwp.ModClassMatch,
		jdwp.ModClassExclude, jdwp.ModInstanceOnly},
	jdwp.EventFieldAccess: {jdwp.ModCount, jdwp.ModThreadOnly, jdwp.ModClassOnly, jdwp.ModClassMatch,
		jdwp.ModClassExclude, jdwp.ModInstanceOnly},
	jdwp.EventFieldModification: {jdwp.ModCount, jdwp.ModThreadOnly, jdwp.ModClassOnly, jdwp.ModClassMatch,
		jdwp.ModClassExclude, jdwp.ModInstanceOnly},
	jdwp.EventMonitorContendedEnter: {jdwp.ModCount, jdwp.ModThreadOnly, jdwp.ModClassOnly, jdwp.ModClassMatch,
		jdwp.ModClassExclude, jdwp.ModInstanceOnly},
	jdwp.EventMonitorContendedEntered: {jdwp.ModCount, jdwp.ModThreadOnly, jdwp.ModClassOnly, jdwp.ModClassMatch,
		jdwp.ModClassExclude, jdwp.ModInstanceOnly},
	jdwp.EventMonitorWait: {jdwp.ModCount, jdwp.ModThreadOnly, jdwp.ModClassOnly, jdwp.ModClassMatch,
		jdwp.ModClassExclude, jdwp.ModInstanceOnly},
	jdwp.EventMonitorWaited: {jdwp.ModCount, jdwp.ModThreadOnly, jdwp.ModClassOnly, jdwp.ModClassMatch,
		jdwp.ModClassExclude, jdwp.ModInstanceOnly},
	jdwp.EventClassPrepare: {jdwp.ModCount, jdwp.ModClassOnly, jdwp.ModClassMatch, jdwp.ModClassExclude,
		jdwp.ModSourceNameMatch},
	jdwp.EventClassUnload:  {jdwp.ModCount, jdwp.ModClassMatch, jdwp.ModClassExclude},
	jdwp.EventThreadStart:  {jdwp.ModCount, jdwp.ModThreadOnly},
	jdwp.EventThreadDeath:  {jdwp.ModCount, jdwp.ModThreadOnly},
	jdwp.EventVMDeath:      {jdwp.ModCount},
}

// filter is one event modifier as sent to the target.
type filter struct {
	mod    jdwp.ModKind
	encode func(e *jdwp.Encoder)
}

// EventRequest asks the target to report events of one kind. Requests are
// created disabled; filters and the suspend policy can only change while
// the request is disabled.
type EventRequest struct {
	mgr      *EventRequestManager
	kind     jdwp.EventKind
	wireKind jdwp.EventKind

	location Location
	field    *Field
	thread   *ThreadReference
	size     int32
	depth    int32

	mu      sync.Mutex
	policy  jdwp.SuspendPolicy
	filters []filter
	props   map[any]any
	enabled bool
	deleted bool
	id      int32
}

// Kind returns the event kind. Method exit requests report
// jdwp.EventMethodExit whichever variant the target is sent.
func (r *EventRequest) Kind() jdwp.EventKind { return r.kind }

// Location returns the breakpoint location.
func (r *EventRequest) Location() Location { return r.location }

// Field returns the watched field.
func (r *EventRequest) Field() *Field { return r.field }

// Thread returns the stepping thread.
func (r *EventRequest) Thread() *ThreadReference { return r.thread }

// StepSize returns the step size of a step request.
func (r *EventRequest) StepSize() int32 { return r.size }

// StepDepth returns the step depth of a step request.
func (r *EventRequest) StepDepth() int32 { return r.depth }

// ID returns the target's request id, or zero while disabled.
func (r *EventRequest) ID() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// IsEnabled reports whether the request is enabled.
func (r *EventRequest) IsEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// IsDeleted reports whether the request has been deleted.
func (r *EventRequest) IsDeleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleted
}

// SuspendPolicy returns the suspend policy.
func (r *EventRequest) SuspendPolicy() jdwp.SuspendPolicy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policy
}

// SetSuspendPolicy sets which threads the target suspends when the event
// fires.
func (r *EventRequest) SetSuspendPolicy(p jdwp.SuspendPolicy) error {
	const op = "EventRequest.SetSuspendPolicy"
	if p > jdwp.SuspendAll {
		return newError(op, ErrInvalidArgument, "unknown suspend policy %d", p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.mutableLocked(op); err != nil {
		return err
	}
	r.policy = p
	return nil
}

// PutProperty attaches a client-side property. A nil value removes it.
func (r *EventRequest) PutProperty(key, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if value == nil {
		delete(r.props, key)
		return
	}
	if r.props == nil {
		r.props = make(map[any]any)
	}
	r.props[key] = value
}

// Property returns a client-side property, or nil.
func (r *EventRequest) Property(key any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.props[key]
}

func (r *EventRequest) mutableLocked(op string) error {
	switch {
	case r.deleted:
		return newError(op, ErrInvalidRequestState, "request deleted")
	case r.enabled:
		return newError(op, ErrInvalidRequestState, "request enabled")
	}
	return nil
}

// addFilter appends a filter after checking state, applicability and, when
// capability is non-empty, the target's capabilities.
func (r *EventRequest) addFilter(op string, mod jdwp.ModKind, capable bool, capability string, encode func(e *jdwp.Encoder)) error {
	if capability != "" && !capable {
		return unsupported(op, capability)
	}
	if !slices.Contains(filterKinds[r.kind], mod) {
		return newError(op, ErrInvalidArgument, "%s filter does not apply to %s requests", mod, r.kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.mutableLocked(op); err != nil {
		return err
	}
	r.filters = append(r.filters, filter{mod: mod, encode: encode})
	return nil
}

// AddCountFilter reports only the count-th occurrence, after which the
// request expires.
func (r *EventRequest) AddCountFilter(count int32) error {
	const op = "EventRequest.AddCountFilter"
	if count <= 0 {
		return newError(op, ErrInvalidArgument, "count must be positive, got %d", count)
	}
	return r.addFilter(op, jdwp.ModCount, true, "", func(e *jdwp.Encoder) {
		e.Int32(count)
	})
}

// AddThreadFilter restricts events to one thread.
func (r *EventRequest) AddThreadFilter(t *ThreadReference) error {
	const op = "EventRequest.AddThreadFilter"
	if t == nil {
		return newError(op, ErrInvalidArgument, "no thread")
	}
	return r.addFilter(op, jdwp.ModThreadOnly, true, "", func(e *jdwp.Encoder) {
		e.ObjectID(t.id)
	})
}

// AddClassFilter restricts events to a type and its subtypes.
func (r *EventRequest) AddClassFilter(t ReferenceType) error {
	const op = "EventRequest.AddClassFilter"
	if t == nil {
		return newError(op, ErrInvalidArgument, "no type")
	}
	return r.addFilter(op, jdwp.ModClassOnly, true, "", func(e *jdwp.Encoder) {
		e.ReferenceTypeID(t.ID())
	})
}

// AddClassMatchFilter restricts events to classes whose name matches a
// pattern such as "java.*" or "*.Foo".
func (r *EventRequest) AddClassMatchFilter(pattern string) error {
	const op = "EventRequest.AddClassMatchFilter"
	if err := checkPattern(op, pattern); err != nil {
		return err
	}
	return r.addFilter(op, jdwp.ModClassMatch, true, "", func(e *jdwp.Encoder) {
		e.Text(pattern)
	})
}

// AddClassExclusionFilter drops events for classes whose name matches.
func (r *EventRequest) AddClassExclusionFilter(pattern string) error {
	const op = "EventRequest.AddClassExclusionFilter"
	if err := checkPattern(op, pattern); err != nil {
		return err
	}
	return r.addFilter(op, jdwp.ModClassExclude, true, "", func(e *jdwp.Encoder) {
		e.Text(pattern)
	})
}

// AddSourceNameFilter restricts class prepare events to types whose source
// name matches.
func (r *EventRequest) AddSourceNameFilter(pattern string) error {
	const op = "EventRequest.AddSourceNameFilter"
	if err := checkPattern(op, pattern); err != nil {
		return err
	}
	return r.addFilter(op, jdwp.ModSourceNameMatch, r.mgr.vm.caps.CanUseSourceNameFilters, "canUseSourceNameFilters", func(e *jdwp.Encoder) {
		e.Text(pattern)
	})
}

// AddInstanceFilter restricts events to those whose "this" is o.
func (r *EventRequest) AddInstanceFilter(o Reference) error {
	const op = "EventRequest.AddInstanceFilter"
	if o == nil {
		return newError(op, ErrInvalidArgument, "no instance")
	}
	return r.addFilter(op, jdwp.ModInstanceOnly, r.mgr.vm.caps.CanUseInstanceFilters, "canUseInstanceFilters", func(e *jdwp.Encoder) {
		e.ObjectID(o.ID())
	})
}

// checkPattern accepts a name, optionally with a single '*' as its first or
// last character.
func checkPattern(op, pattern string) error {
	if pattern == "" {
		return newError(op, ErrInvalidArgument, "empty pattern")
	}
	if pattern == "*" {
		return nil
	}
	body := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
	if len(pattern)-len(body) > 1 || strings.Contains(body, "*") || body == "" {
		return newError(op, ErrInvalidArgument, "bad pattern %q: '*' is allowed only at the start or end", pattern)
	}
	return nil
}

// Enable sends the request to the target.
func (r *EventRequest) Enable(ctx context.Context) error {
	return r.mgr.enable(ctx, r)
}

// Disable cancels the request in the target. Filters are kept.
func (r *EventRequest) Disable(ctx context.Context) error {
	r.mgr.mu.Lock()
	defer r.mgr.mu.Unlock()
	return r.mgr.disableLocked(ctx, r)
}

// SetEnabled enables or disables the request.
func (r *EventRequest) SetEnabled(ctx context.Context, enabled bool) error {
	if enabled {
		return r.Enable(ctx)
	}
	return r.Disable(ctx)
}

// EventRequestManager creates and tracks event requests.
type EventRequestManager struct {
	vm  *VirtualMachine
	log commonlog.Logger

	// mu is held across Set and Clear round trips so event decoding never
	// sees a request id before it is registered.
	mu       sync.Mutex
	requests []*EventRequest
	byID     map[int32]*EventRequest
}

func newEventRequestManager(vm *VirtualMachine) *EventRequestManager {
	return &EventRequestManager{
		vm:   vm,
		log:  commonlog.GetLogger("jdi.requests"),
		byID: make(map[int32]*EventRequest),
	}
}

func (m *EventRequestManager) newRequest(kind jdwp.EventKind) *EventRequest {
	r := &EventRequest{mgr: m, kind: kind, wireKind: kind, policy: jdwp.SuspendAll}
	m.mu.Lock()
	m.requests = append(m.requests, r)
	m.mu.Unlock()
	return r
}

// implied appends a filter fixed at creation.
func (r *EventRequest) implied(mod jdwp.ModKind, encode func(e *jdwp.Encoder)) *EventRequest {
	r.filters = append(r.filters, filter{mod: mod, encode: encode})
	return r
}

// CreateClassPrepareRequest returns a disabled class prepare request.
func (m *EventRequestManager) CreateClassPrepareRequest() *EventRequest {
	return m.newRequest(jdwp.EventClassPrepare)
}

// CreateClassUnloadRequest returns a disabled class unload request.
func (m *EventRequestManager) CreateClassUnloadRequest() *EventRequest {
	return m.newRequest(jdwp.EventClassUnload)
}

// CreateThreadStartRequest returns a disabled thread start request.
func (m *EventRequestManager) CreateThreadStartRequest() *EventRequest {
	return m.newRequest(jdwp.EventThreadStart)
}

// CreateThreadDeathRequest returns a disabled thread death request.
func (m *EventRequestManager) CreateThreadDeathRequest() *EventRequest {
	return m.newRequest(jdwp.EventThreadDeath)
}

// CreateMethodEntryRequest returns a disabled method entry request.
func (m *EventRequestManager) CreateMethodEntryRequest() *EventRequest {
	return m.newRequest(jdwp.EventMethodEntry)
}

// CreateMethodExitRequest returns a disabled method exit request. Targets
// speaking JDWP 1.6 or later also report the return value.
func (m *EventRequestManager) CreateMethodExitRequest() *EventRequest {
	r := m.newRequest(jdwp.EventMethodExit)
	if m.vm.version.AtLeast(1, 6) {
		r.wireKind = jdwp.EventMethodExitWithReturnValue
	}
	return r
}

// CreateExceptionRequest returns a disabled exception request for
// exceptions of type t and its subtypes, or all exceptions when t is nil.
func (m *EventRequestManager) CreateExceptionRequest(t ReferenceType, caught, uncaught bool) *EventRequest {
	var id jdwp.ReferenceTypeID
	if t != nil {
		id = t.ID()
	}
	return m.newRequest(jdwp.EventException).implied(jdwp.ModExceptionOnly, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(id).Bool(caught).Bool(uncaught)
	})
}

// CreateBreakpointRequest returns a disabled breakpoint at loc.
func (m *EventRequestManager) CreateBreakpointRequest(loc Location) (*EventRequest, error) {
	if loc.IsZero() {
		return nil, newError("EventRequestManager.CreateBreakpointRequest", ErrInvalidArgument, "zero location")
	}
	wire := loc.wire()
	r := m.newRequest(jdwp.EventBreakpoint).implied(jdwp.ModLocationOnly, func(e *jdwp.Encoder) {
		e.Location(wire)
	})
	r.location = loc
	return r, nil
}

// CreateStepRequest returns a disabled step request for thread with the
// given jdwp.StepSize and jdwp.StepDepth.
func (m *EventRequestManager) CreateStepRequest(thread *ThreadReference, size, depth int32) (*EventRequest, error) {
	const op = "EventRequestManager.CreateStepRequest"
	if thread == nil {
		return nil, newError(op, ErrInvalidArgument, "no thread")
	}
	if size != jdwp.StepSizeMin && size != jdwp.StepSizeLine {
		return nil, newError(op, ErrInvalidArgument, "unknown step size %d", size)
	}
	if depth < jdwp.StepDepthInto || depth > jdwp.StepDepthOut {
		return nil, newError(op, ErrInvalidArgument, "unknown step depth %d", depth)
	}
	r := m.newRequest(jdwp.EventSingleStep).implied(jdwp.ModStep, func(e *jdwp.Encoder) {
		e.ObjectID(thread.id).Int32(size).Int32(depth)
	})
	r.thread, r.size, r.depth = thread, size, depth
	return r, nil
}

func (m *EventRequestManager) watchpoint(kind jdwp.EventKind, f *Field) *EventRequest {
	r := m.newRequest(kind).implied(jdwp.ModFieldOnly, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(f.declaring.ID()).FieldID(f.id)
	})
	r.field = f
	return r
}

// CreateAccessWatchpointRequest returns a disabled request for reads of f.
func (m *EventRequestManager) CreateAccessWatchpointRequest(f *Field) (*EventRequest, error) {
	const op = "EventRequestManager.CreateAccessWatchpointRequest"
	if !m.vm.caps.CanWatchFieldAccess {
		return nil, unsupported(op, "canWatchFieldAccess")
	}
	if f == nil {
		return nil, newError(op, ErrInvalidArgument, "no field")
	}
	return m.watchpoint(jdwp.EventFieldAccess, f), nil
}

// CreateModificationWatchpointRequest returns a disabled request for writes
// of f.
func (m *EventRequestManager) CreateModificationWatchpointRequest(f *Field) (*EventRequest, error) {
	const op = "EventRequestManager.CreateModificationWatchpointRequest"
	if !m.vm.caps.CanWatchFieldModification {
		return nil, unsupported(op, "canWatchFieldModification")
	}
	if f == nil {
		return nil, newError(op, ErrInvalidArgument, "no field")
	}
	return m.watchpoint(jdwp.EventFieldModification, f), nil
}

func (m *EventRequestManager) monitor(op string, kind jdwp.EventKind) (*EventRequest, error) {
	if !m.vm.caps.CanRequestMonitorEvents {
		return nil, unsupported(op, "canRequestMonitorEvents")
	}
	return m.newRequest(kind), nil
}

// CreateMonitorContendedEnterRequest returns a disabled monitor contended
// enter request.
func (m *EventRequestManager) CreateMonitorContendedEnterRequest() (*EventRequest, error) {
	return m.monitor("EventRequestManager.CreateMonitorContendedEnterRequest", jdwp.EventMonitorContendedEnter)
}

// CreateMonitorContendedEnteredRequest returns a disabled monitor contended
// entered request.
func (m *EventRequestManager) CreateMonitorContendedEnteredRequest() (*EventRequest, error) {
	return m.monitor("EventRequestManager.CreateMonitorContendedEnteredRequest", jdwp.EventMonitorContendedEntered)
}

// CreateMonitorWaitRequest returns a disabled monitor wait request.
func (m *EventRequestManager) CreateMonitorWaitRequest() (*EventRequest, error) {
	return m.monitor("EventRequestManager.CreateMonitorWaitRequest", jdwp.EventMonitorWait)
}

// CreateMonitorWaitedRequest returns a disabled monitor waited request.
func (m *EventRequestManager) CreateMonitorWaitedRequest() (*EventRequest, error) {
	return m.monitor("EventRequestManager.CreateMonitorWaitedRequest", jdwp.EventMonitorWaited)
}

// CreateVMDeathRequest returns a disabled VM death request.
func (m *EventRequestManager) CreateVMDeathRequest() (*EventRequest, error) {
	if !m.vm.caps.CanRequestVMDeathEvent {
		return nil, unsupported("EventRequestManager.CreateVMDeathRequest", "canRequestVMDeathEvent")
	}
	return m.newRequest(jdwp.EventVMDeath), nil
}

func (m *EventRequestManager) enable(ctx context.Context, r *EventRequest) error {
	const op = "EventRequest.Set"

	m.mu.Lock()
	defer m.mu.Unlock()

	r.mu.Lock()
	deleted, enabled := r.deleted, r.enabled
	policy := r.policy
	filters := slices.Clone(r.filters)
	r.mu.Unlock()

	switch {
	case deleted:
		return newError(op, ErrInvalidRequestState, "request deleted")
	case enabled:
		return nil
	}

	if r.kind == jdwp.EventSingleStep {
		for _, other := range m.byID {
			if other != r && other.kind == jdwp.EventSingleStep && other.thread == r.thread {
				return newError(op, ErrInvalidRequestState, "thread %d already has an enabled step request", r.thread.id)
			}
		}
	}

	d, err := m.vm.do(ctx, op, jdwp.CmdERSet, func(e *jdwp.Encoder) {
		e.Byte(uint8(r.wireKind)).Byte(uint8(policy)).Int32(int32(len(filters)))
		for _, f := range filters {
			e.Byte(uint8(f.mod))
			f.encode(e)
		}
	})
	if err != nil {
		return err
	}
	id := d.Int32()
	if err := decodeErr(op, d); err != nil {
		return err
	}

	r.mu.Lock()
	r.enabled, r.id = true, id
	r.mu.Unlock()
	m.byID[id] = r

	m.log.Debugf("[%s] enabled %s request %d with %d filters", m.vm.id, r.kind, id, len(filters))
	return nil
}

func (m *EventRequestManager) disableLocked(ctx context.Context, r *EventRequest) error {
	const op = "EventRequest.Clear"

	r.mu.Lock()
	deleted, enabled, id := r.deleted, r.enabled, r.id
	r.mu.Unlock()

	switch {
	case deleted:
		return newError(op, ErrInvalidRequestState, "request deleted")
	case !enabled:
		return nil
	}

	_, err := m.vm.do(ctx, op, jdwp.CmdERClear, func(e *jdwp.Encoder) {
		e.Byte(uint8(r.wireKind)).Int32(id)
	})
	if err != nil && !isKind(err, ErrDisconnected) {
		return err
	}
	m.markDisabledLocked(r)
	return nil
}

// markDisabledLocked forgets the target id of r.
func (m *EventRequestManager) markDisabledLocked(r *EventRequest) {
	r.mu.Lock()
	id := r.id
	r.enabled, r.id = false, 0
	r.mu.Unlock()
	if m.byID[id] == r {
		delete(m.byID, id)
	}
}

func (m *EventRequestManager) deleteLocked(r *EventRequest) {
	r.mu.Lock()
	r.deleted = true
	r.mu.Unlock()
	m.requests = slices.DeleteFunc(m.requests, func(x *EventRequest) bool { return x == r })
}

// DeleteEventRequest disables and deletes r. Deleting twice is harmless.
func (m *EventRequestManager) DeleteEventRequest(ctx context.Context, r *EventRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.IsDeleted() {
		return nil
	}
	if err := m.disableLocked(ctx, r); err != nil {
		return err
	}
	m.deleteLocked(r)
	return nil
}

// DeleteEventRequests deletes every request in list. The registry stays
// locked for the whole batch; enabled requests are cleared concurrently.
// Requests whose clear failed are left in place.
func (m *EventRequestManager) DeleteEventRequests(ctx context.Context, list []*EventRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := make([]bool, len(list))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range list {
		if r.IsDeleted() {
			continue
		}
		if !r.IsEnabled() {
			cleared[i] = true
			continue
		}
		g.Go(func() error {
			r.mu.Lock()
			id := r.id
			r.mu.Unlock()
			_, err := m.vm.do(gctx, "EventRequest.Clear", jdwp.CmdERClear, func(e *jdwp.Encoder) {
				e.Byte(uint8(r.wireKind)).Int32(id)
			})
			if err != nil && !isKind(err, ErrDisconnected) {
				return err
			}
			cleared[i] = true
			return nil
		})
	}
	err := g.Wait()

	for i, r := range list {
		if cleared[i] {
			m.markDisabledLocked(r)
			m.deleteLocked(r)
		}
	}
	return err
}

// DeleteAllBreakpoints clears every breakpoint in the target and deletes
// all breakpoint requests.
func (m *EventRequestManager) DeleteAllBreakpoints(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.vm.do(ctx, "EventRequest.ClearAllBreakpoints", jdwp.CmdERClearAllBreakpoints, nil); err != nil {
		return err
	}
	for _, r := range slices.Clone(m.requests) {
		if r.kind == jdwp.EventBreakpoint {
			m.markDisabledLocked(r)
			m.deleteLocked(r)
		}
	}
	return nil
}

// Requests returns every live request in creation order.
func (m *EventRequestManager) Requests() []*EventRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

// RequestsOfKind returns the live requests of one kind.
func (m *EventRequestManager) RequestsOfKind(kind jdwp.EventKind) []*EventRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*EventRequest
	for _, r := range m.requests {
		if r.kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// BreakpointRequests returns the live breakpoint requests.
func (m *EventRequestManager) BreakpointRequests() []*EventRequest {
	return m.RequestsOfKind(jdwp.EventBreakpoint)
}

// StepRequests returns the live step requests.
func (m *EventRequestManager) StepRequests() []*EventRequest {
	return m.RequestsOfKind(jdwp.EventSingleStep)
}

// ClassPrepareRequests returns the live class prepare requests.
func (m *EventRequestManager) ClassPrepareRequests() []*EventRequest {
	return m.RequestsOfKind(jdwp.EventClassPrepare)
}

// request returns the enabled request with the given target id, or nil.
func (m *EventRequestManager) request(id int32) *EventRequest {
	if id == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}
