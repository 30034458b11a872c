package jdi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jdwp/internal/jdwp"
)

// intArray installs an int[] of length 4 with id 50 and the string "hi"
// with id 60.
func intArray(f *fakeJVM) {
	f.add(&fakeClass{tag: jdwp.TypeTagArray, id: 40, sig: "[I"})
	elems := []int32{3, 1, 4, 1}

	f.Handle(jdwp.CmdORReferenceType, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		if req.ObjectID() != 50 {
			return jdwp.ErrInvalidObject
		}
		r.Byte(uint8(jdwp.TypeTagArray)).ReferenceTypeID(40)
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdARLength, func(_ *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		r.Int32(int32(len(elems)))
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdARGetValues, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		req.ObjectID()
		first, n := req.Int32(), req.Int32()
		r.Byte(uint8(jdwp.TagInt)).Int32(n)
		for i := first; i < first+n; i++ {
			r.Int32(elems[i])
		}
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdARSetValues, func(*jdwp.Decoder, *jdwp.Encoder) jdwp.ErrorCode {
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdSRValue, func(_ *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		r.Text("hi")
		return jdwp.ErrNone
	})
}

func TestArrayAccess(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, intArray)
	arr, ok := vm.cache.object(jdwp.TagArray, 50).(*ArrayReference)
	require.True(t, ok)

	values, err := arr.GetValues(ctx, 1, -1)
	require.NoError(t, err)
	assert.Equal(t, []Value{IntValue(1), IntValue(4), IntValue(1)}, values)

	v, err := arr.GetValue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, IntValue(3), v)

	empty, err := arr.GetValues(ctx, 4, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	f.ResetCounts()
	_, err = arr.GetValue(ctx, 4)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	_, err = arr.GetValues(ctx, -1, 1)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	_, err = arr.GetValues(ctx, 2, 3)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.ErrorIs(t, arr.SetValues(ctx, 3, []Value{IntValue(1), IntValue(2)}), ErrInvalidIndex)
	assert.Zero(t, f.Total(), "ranges are checked against the cached length")
}

func TestArraySetValuesCoerces(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, intArray)
	arr := vm.cache.object(jdwp.TagArray, 50).(*ArrayReference)

	require.NoError(t, arr.SetValues(ctx, 1, []Value{ByteValue(7), CharValue('a')}))
	body := f.Bodies(jdwp.CmdARSetValues)[0]
	d := jdwp.NewDecoder(body, f.Sizes())
	assert.Equal(t, jdwp.ObjectID(50), d.ObjectID())
	assert.Equal(t, int32(1), d.Int32())
	assert.Equal(t, int32(2), d.Int32())
	assert.Equal(t, int32(7), d.Int32())
	assert.Equal(t, int32(97), d.Int32())
	assert.Zero(t, d.Remaining())

	err := arr.SetValue(ctx, 0, BooleanValue(true))
	assert.NoError(t, err, "booleans widen to int")
	err = arr.SetValue(ctx, 0, nil)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestStringValueCached(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, intArray)
	s := vm.cache.object(jdwp.TagString, 60).(*StringReference)

	for i := 0; i < 2; i++ {
		v, err := s.Value(ctx)
		require.NoError(t, err)
		assert.Equal(t, "hi", v)
	}
	assert.Equal(t, 1, f.Count(jdwp.CmdSRValue))
	assert.Same(t, s, vm.cache.object(jdwp.TagString, 60))
}

func TestObjectIdentityByTag(t *testing.T) {
	_, vm := newFakeVM(t, nil)

	a := vm.cache.object(jdwp.TagObject, 5)
	b := vm.cache.object(jdwp.TagObject, 5)
	assert.Same(t, a, b)
	assert.Nil(t, vm.cache.object(jdwp.TagObject, 0))

	th := vm.cache.thread(5)
	assert.Equal(t, jdwp.TagThread, th.Tag())
	assert.Same(t, th, vm.cache.object(jdwp.TagThread, 5))
}
