package jdwp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	nan32 := math.Float32frombits(0x7fc00001)
	nan64 := math.Float64frombits(0x7ff8000000000abc)

	tests := []struct {
		name string
		v    RawValue
	}{
		{"byte min", RawValue{TagByte, 0x80}},
		{"byte max", RawValue{TagByte, 127}},
		{"boolean true", RawValue{TagBoolean, 1}},
		{"boolean false", RawValue{TagBoolean, 0}},
		{"char", RawValue{TagChar, 0xffff}},
		{"short min", RawValue{TagShort, 0x8000}},
		{"int min", RawValue{TagInt, 0x80000000}},
		{"int max", RawValue{TagInt, math.MaxInt32}},
		{"long min", RawValue{TagLong, 1 << 63}},
		{"float nan payload", RawValue{TagFloat, Float32Bits(nan32)}},
		{"float negative zero", RawValue{TagFloat, Float32Bits(float32(math.Copysign(0, -1)))}},
		{"double nan payload", RawValue{TagDouble, Float64Bits(nan64)}},
		{"double inf", RawValue{TagDouble, Float64Bits(math.Inf(-1))}},
		{"void", RawValue{TagVoid, 0}},
		{"object", RawValue{TagObject, 0x1122334455667788}},
		{"null string", RawValue{TagString, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder(DefaultIDSizes)
			e.Value(tt.v)
			require.NoError(t, e.Err())

			d := NewDecoder(e.Bytes(), DefaultIDSizes)
			got := d.Value()
			require.NoError(t, d.Err())
			assert.Equal(t, tt.v, got)
			assert.Zero(t, d.Remaining())
		})
	}
}

func TestFloatBitsSurviveRoundTrip(t *testing.T) {
	want := uint32(0x7fa00005)
	e := NewEncoder(DefaultIDSizes).UntaggedValue(RawValue{TagFloat, uint64(want)})
	d := NewDecoder(e.Bytes(), DefaultIDSizes)
	got := d.UntaggedValue(TagFloat)
	assert.Equal(t, want, math.Float32bits(math.Float32frombits(uint32(got.Bits))))
}

func TestIdentifierWidths(t *testing.T) {
	sizes := IDSizes{FieldID: 4, MethodID: 8, ObjectID: 2, ReferenceTypeID: 3, FrameID: 1}

	e := NewEncoder(sizes)
	e.ObjectID(0xbeef).ReferenceTypeID(0xabcdef).MethodID(0x0102030405060708).FieldID(7).FrameID(0xff)
	assert.Len(t, e.Bytes(), 2+3+8+4+1)

	d := NewDecoder(e.Bytes(), sizes)
	assert.Equal(t, ObjectID(0xbeef), d.ObjectID())
	assert.Equal(t, ReferenceTypeID(0xabcdef), d.ReferenceTypeID())
	assert.Equal(t, MethodID(0x0102030405060708), d.MethodID())
	assert.Equal(t, FieldID(7), d.FieldID())
	assert.Equal(t, FrameID(0xff), d.FrameID())
	require.NoError(t, d.Err())
}

func TestLocationRoundTrip(t *testing.T) {
	loc := Location{TypeTag: TypeTagClass, Class: 42, Method: 7, Index: 19}
	e := NewEncoder(DefaultIDSizes).Location(loc)
	d := NewDecoder(e.Bytes(), DefaultIDSizes)
	assert.Equal(t, loc, d.Location())
	require.NoError(t, d.Err())
}

func TestTextAndBlob(t *testing.T) {
	e := NewEncoder(DefaultIDSizes).Text("héllo").Blob([]byte{1, 2, 3}).Text("")
	d := NewDecoder(e.Bytes(), DefaultIDSizes)
	assert.Equal(t, "héllo", d.Text())
	assert.Equal(t, []byte{1, 2, 3}, d.Blob())
	assert.Equal(t, "", d.Text())
	require.NoError(t, d.Err())
}

func TestDecoderStickyTruncation(t *testing.T) {
	d := NewDecoder([]byte{0, 0, 0, 9, 'a'}, DefaultIDSizes)
	assert.Equal(t, "", d.Text())
	require.ErrorIs(t, d.Err(), ErrTruncated)

	// Later reads keep the first error and return zero values.
	assert.Zero(t, d.Int32())
	require.ErrorIs(t, d.Err(), ErrTruncated)
}

func TestDecoderRejectsUnknownTag(t *testing.T) {
	d := NewDecoder([]byte{'Q', 0, 0, 0, 1}, DefaultIDSizes)
	d.Value()
	require.Error(t, d.Err())
}

func TestArrayRegion(t *testing.T) {
	t.Run("primitive", func(t *testing.T) {
		e := NewEncoder(DefaultIDSizes)
		e.Byte(uint8(TagInt)).Int32(3).Int32(1).Int32(-1).Int32(7)

		d := NewDecoder(e.Bytes(), DefaultIDSizes)
		tag, values := d.ArrayRegion()
		require.NoError(t, d.Err())
		assert.Equal(t, TagInt, tag)
		require.Len(t, values, 3)
		assert.Equal(t, uint64(0xffffffff), values[1].Bits)
	})

	t.Run("references are tagged", func(t *testing.T) {
		e := NewEncoder(DefaultIDSizes)
		e.Byte(uint8(TagObject)).Int32(2)
		e.TaggedObjectID(TagString, 5)
		e.TaggedObjectID(TagObject, 0)

		d := NewDecoder(e.Bytes(), DefaultIDSizes)
		_, values := d.ArrayRegion()
		require.NoError(t, d.Err())
		require.Len(t, values, 2)
		assert.Equal(t, RawValue{TagString, 5}, values[0])
		assert.True(t, values[1].IsNull())
	})
}

func TestDecodeIDSizes(t *testing.T) {
	e := NewEncoder(IDSizes{})
	for _, n := range []int32{8, 8, 8, 8, 8} {
		e.Int32(n)
	}
	sizes, err := DecodeIDSizes(e.Bytes())
	require.NoError(t, err)
	assert.Equal(t, DefaultIDSizes, sizes)

	e = NewEncoder(IDSizes{})
	for _, n := range []int32{8, 0, 8, 8, 8} {
		e.Int32(n)
	}
	_, err = DecodeIDSizes(e.Bytes())
	assert.Error(t, err)
}

func TestNameTables(t *testing.T) {
	assert.Equal(t, "VirtualMachine.IDSizes", CmdVMIDSizes.String())
	assert.Equal(t, "Event.Composite", CmdEventComposite.String())
	assert.Equal(t, "CommandSet(99).3", Command{Set: 99, ID: 3}.String())
	assert.Equal(t, "INVALID_OBJECT", ErrInvalidObject.String())
	assert.Equal(t, "ERROR_7", ErrorCode(7).String())
	assert.Equal(t, "ClassPrepare", EventClassPrepare.String())
	assert.Equal(t, "thread-group", TagThreadGroup.String())
	assert.Equal(t, "ClassMatch", ModClassMatch.String())
	assert.Equal(t, "interface", TypeTagInterface.String())
	assert.Equal(t, "all", SuspendAll.String())
}
