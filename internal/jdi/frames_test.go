package jdi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/jdwp/jdwptest"
)

// suspendedThread installs class p.V with an instance method sum(int, int)
// and a thread 42 stopped in it at code index 5.
func suspendedThread(f *fakeJVM) {
	f.add(&fakeClass{id: 30, sig: "Lp/V;", methods: []fakeMethod{
		{id: 300, name: "sum", sig: "(II)I", end: 10, lines: []fakeLine{{0, 1}, {4, 2}}, args: 3, vars: []fakeVar{
			{start: 0, length: 10, name: "this", sig: "Lp/V;", slot: 0},
			{start: 0, length: 10, name: "a", sig: "I", slot: 1},
			{start: 0, length: 10, name: "b", sig: "I", slot: 2},
			{start: 4, length: 6, name: "tmp", sig: "J", slot: 3},
		}},
	}})

	ok := func(*jdwp.Decoder, *jdwp.Encoder) jdwp.ErrorCode { return jdwp.ErrNone }
	f.Handle(jdwp.CmdTRResume, ok)
	f.Handle(jdwp.CmdSFSetValues, ok)
	f.Handle(jdwp.CmdTRFrames, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		if req.ObjectID() != 42 {
			return jdwp.ErrInvalidThread
		}
		r.Int32(1).FrameID(7)
		r.Location(jdwp.Location{TypeTag: jdwp.TypeTagClass, Class: 30, Method: 300, Index: 5})
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdSFThisObject, func(_ *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		r.TaggedObjectID(jdwp.TagObject, 77)
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdSFGetValues, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		req.ObjectID()
		req.FrameID()
		n := req.Count()
		r.Int32(int32(n))
		for i := 0; i < n; i++ {
			slot := req.Int32()
			switch jdwp.Tag(req.Byte()) {
			case jdwp.TagLong:
				r.Value(jdwp.RawValue{Tag: jdwp.TagLong, Bits: uint64(slot) * 100})
			default:
				r.Value(jdwp.RawValue{Tag: jdwp.TagInt, Bits: uint64(slot) * 10})
			}
		}
		return jdwp.ErrNone
	})
}

func topFrame(t *testing.T, vm *VirtualMachine) *StackFrame {
	t.Helper()
	frame, err := vm.cache.thread(42).Frame(context.Background(), 0)
	require.NoError(t, err)
	return frame
}

func TestFrameValues(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, suspendedThread)
	frame := topFrame(t, vm)

	this, err := frame.ThisObject(ctx)
	require.NoError(t, err)
	require.NotNil(t, this)
	assert.Equal(t, jdwp.ObjectID(77), this.ID())

	vars, err := frame.VisibleVariables(ctx)
	require.NoError(t, err)
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name()
	}
	assert.Equal(t, []string{"a", "b", "tmp"}, names)

	values, err := frame.GetValues(ctx, vars)
	require.NoError(t, err)
	assert.Equal(t, IntValue(10), values[vars[0]])
	assert.Equal(t, IntValue(20), values[vars[1]])
	assert.Equal(t, LongValue(300), values[vars[2]])

	args, err := frame.ArgumentValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Value{IntValue(10), IntValue(20)}, args)

	m, err := frame.Location().Method(ctx)
	require.NoError(t, err)
	all, err := m.Variables(ctx)
	require.NoError(t, err)
	thisVar := all[0]
	require.Equal(t, "this", thisVar.Name())

	got, err := frame.GetValue(ctx, thisVar)
	require.NoError(t, err)
	assert.Same(t, this, got)
	assert.Equal(t, 1, f.Count(jdwp.CmdSFThisObject), "receiver is cached per frame")
}

func TestFrameSetValue(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, suspendedThread)
	frame := topFrame(t, vm)

	tmp, err := frame.VisibleVariableByName(ctx, "tmp")
	require.NoError(t, err)
	require.NotNil(t, tmp)

	require.NoError(t, frame.SetValue(ctx, tmp, IntValue(9)))
	bodies := f.Bodies(jdwp.CmdSFSetValues)
	require.Len(t, bodies, 1)
	d := jdwp.NewDecoder(bodies[0], f.Sizes())
	d.ObjectID()
	d.FrameID()
	assert.Equal(t, int32(1), d.Int32())
	assert.Equal(t, int32(3), d.Int32())
	assert.Equal(t, LongValue(9).raw(), d.Value(), "int widened to the variable's long type")

	require.NoError(t, frame.SetValue(ctx, tmp, BooleanValue(true)))
	bodies = f.Bodies(jdwp.CmdSFSetValues)
	require.Len(t, bodies, 2)
	d = jdwp.NewDecoder(bodies[1], f.Sizes())
	d.ObjectID()
	d.FrameID()
	d.Int32()
	d.Int32()
	assert.Equal(t, LongValue(1).raw(), d.Value(), "true becomes 1")

	this, err := frame.ThisObject(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, frame.SetValue(ctx, tmp, this), ErrTypeMismatch)
	assert.Len(t, f.Bodies(jdwp.CmdSFSetValues), 2, "mismatches are rejected locally")

	m, err := frame.Location().Method(ctx)
	require.NoError(t, err)
	all, err := m.Variables(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, frame.SetValue(ctx, all[0], nil), ErrInvalidArgument)
}

func TestFramesGoStaleOnResume(t *testing.T) {
	ctx := context.Background()

	t.Run("vm resume", func(t *testing.T) {
		f, vm := newFakeVM(t, suspendedThread)
		frame := topFrame(t, vm)
		require.True(t, frame.IsValid())

		require.NoError(t, vm.Resume(ctx))
		assert.False(t, frame.IsValid())

		f.ResetCounts()
		_, err := frame.ThisObject(ctx)
		assert.ErrorIs(t, err, ErrInvalidStackFrame)
		assert.ErrorIs(t, err, ErrInvalidReference)
		_, err = frame.VisibleVariables(ctx)
		assert.ErrorIs(t, err, ErrInvalidStackFrame)
		assert.Zero(t, f.Total())

		fresh := topFrame(t, vm)
		assert.True(t, fresh.IsValid())
	})

	t.Run("thread resume", func(t *testing.T) {
		_, vm := newFakeVM(t, suspendedThread)
		frame := topFrame(t, vm)
		other := &StackFrame{thread: vm.cache.thread(43), vmEpoch: vm.resumeEpoch.Load()}

		require.NoError(t, vm.cache.thread(42).Resume(ctx))
		assert.False(t, frame.IsValid())
		assert.True(t, other.IsValid(), "other threads keep their frames")
	})

	t.Run("thread death", func(t *testing.T) {
		f, vm := newFakeVM(t, suspendedThread)
		frame := topFrame(t, vm)

		f.sendEvents(t, jdwp.SuspendNone, jdwptest.Event{
			Kind:    jdwp.EventThreadDeath,
			Payload: func(e *jdwp.Encoder) { e.ObjectID(42) },
		})
		_, err := vm.EventQueue().Remove(ctx)
		require.NoError(t, err)
		assert.False(t, frame.IsValid())
	})
}

func TestFrameRangeCheckedLocally(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, suspendedThread)

	_, err := vm.cache.thread(42).Frames(ctx, -1, 1)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	_, err = vm.cache.thread(42).Frames(ctx, 0, -2)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.Zero(t, f.Total())

	_, err = vm.cache.thread(43).Frames(ctx, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidReference)
}
