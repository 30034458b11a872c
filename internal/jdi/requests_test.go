package jdi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jdwp/internal/jdwp"
)

func breakpointAt(t *testing.T, vm *VirtualMachine, index uint64) *EventRequest {
	t.Helper()
	run := methodNamed(t, classC(t, vm), "run")
	loc, err := run.LocationOfCodeIndex(context.Background(), index)
	require.NoError(t, err)
	r, err := vm.EventRequestManager().CreateBreakpointRequest(loc)
	require.NoError(t, err)
	return r
}

func TestBreakpointRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, hierarchy)
	r := breakpointAt(t, vm, 5)

	assert.False(t, r.IsEnabled())
	assert.Equal(t, jdwp.SuspendAll, r.SuspendPolicy())
	require.NoError(t, r.AddCountFilter(3))
	require.NoError(t, r.Enable(ctx))
	assert.True(t, r.IsEnabled())
	assert.NotZero(t, r.ID())

	bodies := f.Bodies(jdwp.CmdERSet)
	require.Len(t, bodies, 1)
	d := jdwp.NewDecoder(bodies[0], f.Sizes())
	assert.Equal(t, uint8(jdwp.EventBreakpoint), d.Byte())
	assert.Equal(t, uint8(jdwp.SuspendAll), d.Byte())
	assert.Equal(t, int32(2), d.Int32())
	assert.Equal(t, uint8(jdwp.ModLocationOnly), d.Byte())
	assert.Equal(t, jdwp.Location{TypeTag: jdwp.TypeTagClass, Class: 21, Method: 210, Index: 5}, d.Location())
	assert.Equal(t, uint8(jdwp.ModCount), d.Byte())
	assert.Equal(t, int32(3), d.Int32())
	require.NoError(t, d.Err())
	assert.Zero(t, d.Remaining())

	require.NoError(t, r.Enable(ctx), "enabling twice is a no-op")
	assert.Equal(t, 1, f.Count(jdwp.CmdERSet))

	assert.ErrorIs(t, r.AddThreadFilter(vm.cache.thread(42)), ErrInvalidRequestState)
	assert.ErrorIs(t, r.SetSuspendPolicy(jdwp.SuspendNone), ErrInvalidRequestState)

	require.NoError(t, r.Disable(ctx))
	assert.False(t, r.IsEnabled())
	assert.Equal(t, 1, f.Count(jdwp.CmdERClear))
	require.NoError(t, r.SetSuspendPolicy(jdwp.SuspendEventThread))

	require.NoError(t, vm.EventRequestManager().DeleteEventRequest(ctx, r))
	assert.True(t, r.IsDeleted())
	assert.Empty(t, vm.EventRequestManager().BreakpointRequests())
	assert.ErrorIs(t, r.Enable(ctx), ErrInvalidRequestState)
	require.NoError(t, vm.EventRequestManager().DeleteEventRequest(ctx, r))
}

func TestFilterApplicability(t *testing.T) {
	_, vm := newFakeVM(t, hierarchy)
	mgr := vm.EventRequestManager()

	prepare := mgr.CreateClassPrepareRequest()
	assert.ErrorIs(t, prepare.AddThreadFilter(vm.cache.thread(42)), ErrInvalidArgument)
	require.NoError(t, prepare.AddClassMatchFilter("java.*"))
	require.NoError(t, prepare.AddClassExclusionFilter("*.Test"))
	require.NoError(t, prepare.AddClassMatchFilter("*"))

	for _, bad := range []string{"", "java.*.Foo", "**", "*a*"} {
		assert.ErrorIs(t, prepare.AddClassMatchFilter(bad), ErrInvalidArgument, "pattern %q", bad)
	}

	start := mgr.CreateThreadStartRequest()
	assert.ErrorIs(t, start.AddClassFilter(classC(t, vm)), ErrInvalidArgument)
	require.NoError(t, start.AddThreadFilter(vm.cache.thread(42)))

	assert.ErrorIs(t, start.AddCountFilter(0), ErrInvalidArgument)
}

func TestStepRequests(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, hierarchy)
	mgr := vm.EventRequestManager()
	thread := vm.cache.thread(42)

	_, err := mgr.CreateStepRequest(thread, 9, jdwp.StepDepthOver)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = mgr.CreateStepRequest(nil, jdwp.StepSizeLine, jdwp.StepDepthOver)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	first, err := mgr.CreateStepRequest(thread, jdwp.StepSizeLine, jdwp.StepDepthOver)
	require.NoError(t, err)
	second, err := mgr.CreateStepRequest(thread, jdwp.StepSizeMin, jdwp.StepDepthInto)
	require.NoError(t, err)

	require.NoError(t, first.Enable(ctx))
	assert.ErrorIs(t, second.Enable(ctx), ErrInvalidRequestState)
	assert.Equal(t, 1, f.Count(jdwp.CmdERSet))

	other, err := mgr.CreateStepRequest(vm.cache.thread(43), jdwp.StepSizeLine, jdwp.StepDepthOut)
	require.NoError(t, err)
	require.NoError(t, other.Enable(ctx))

	require.NoError(t, first.Disable(ctx))
	require.NoError(t, second.Enable(ctx))
	assert.Len(t, mgr.StepRequests(), 3)
}

func TestMethodExitRequestsReturnValues(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, hierarchy)

	r := vm.EventRequestManager().CreateMethodExitRequest()
	assert.Equal(t, jdwp.EventMethodExit, r.Kind())
	require.NoError(t, r.Enable(ctx))

	body := f.Bodies(jdwp.CmdERSet)[0]
	assert.Equal(t, uint8(jdwp.EventMethodExitWithReturnValue), body[0])
}

func TestDeleteEventRequests(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, hierarchy)
	mgr := vm.EventRequestManager()

	a := mgr.CreateThreadStartRequest()
	b := mgr.CreateThreadDeathRequest()
	c := mgr.CreateClassPrepareRequest()
	require.NoError(t, a.Enable(ctx))
	require.NoError(t, b.Enable(ctx))

	require.NoError(t, mgr.DeleteEventRequests(ctx, []*EventRequest{a, b, c}))
	assert.Equal(t, 2, f.Count(jdwp.CmdERClear))
	assert.Empty(t, mgr.Requests())
	for _, r := range []*EventRequest{a, b, c} {
		assert.True(t, r.IsDeleted())
		assert.False(t, r.IsEnabled())
	}
}

func TestDeleteAllBreakpoints(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, hierarchy)
	mgr := vm.EventRequestManager()

	bp := breakpointAt(t, vm, 0)
	require.NoError(t, bp.Enable(ctx))
	start := mgr.CreateThreadStartRequest()

	require.NoError(t, mgr.DeleteAllBreakpoints(ctx))
	assert.Equal(t, 1, f.Count(jdwp.CmdERClearAllBreakpoints))
	assert.True(t, bp.IsDeleted())
	assert.False(t, start.IsDeleted())
	assert.Equal(t, []*EventRequest{start}, mgr.Requests())
}

func TestEventsNameTheirRequest(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, hierarchy)
	r := breakpointAt(t, vm, 9)
	require.NoError(t, r.Enable(ctx))

	loc := jdwp.Location{TypeTag: jdwp.TypeTagClass, Class: 21, Method: 210, Index: 9}
	f.sendEvents(t, jdwp.SuspendEventThread, breakpointHit(r.ID(), 42, loc))

	set, err := vm.EventQueue().Remove(ctx)
	require.NoError(t, err)
	require.Len(t, set.Events(), 1)
	bp, ok := set.Events()[0].(*BreakpointEvent)
	require.True(t, ok)
	assert.Same(t, r, bp.Request())
	assert.Same(t, vm.cache.thread(42), bp.Thread())
	assert.Equal(t, r.Location(), bp.Location())

	line, err := bp.Location().LineNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, line)
}
