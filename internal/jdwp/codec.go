package jdwp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Identifier kinds. All are opaque handles scoped to one connection; zero is null.
type (
	ObjectID        uint64
	ReferenceTypeID uint64
	MethodID        uint64
	FieldID         uint64
	FrameID         uint64
)

// IDSizes holds the identifier widths negotiated with the target.
type IDSizes struct {
	FieldID         int
	MethodID        int
	ObjectID        int
	ReferenceTypeID int
	FrameID         int
}

// Validate checks that every width is between 1 and 8 bytes.
func (s IDSizes) Validate() error {
	for _, n := range []struct {
		name string
		size int
	}{
		{"field", s.FieldID},
		{"method", s.MethodID},
		{"object", s.ObjectID},
		{"reference type", s.ReferenceTypeID},
		{"frame", s.FrameID},
	} {
		if n.size < 1 || n.size > 8 {
			return fmt.Errorf("invalid %s id size %d", n.name, n.size)
		}
	}
	return nil
}

// DefaultIDSizes are the widths a 64-bit HotSpot VM reports.
var DefaultIDSizes = IDSizes{FieldID: 8, MethodID: 8, ObjectID: 8, ReferenceTypeID: 8, FrameID: 8}

// Location is a code position as it appears on the wire.
type Location struct {
	TypeTag TypeTag
	Class   ReferenceTypeID
	Method  MethodID
	Index   uint64
}

// RawValue is a decoded value before it is bound to a mirror. Bits holds the
// primitive payload zero-extended to 64 bits (floats as their IEEE bit
// pattern) or, for reference tags, the object id.
type RawValue struct {
	Tag  Tag
	Bits uint64
}

// Object returns the object id of a reference value.
func (v RawValue) Object() ObjectID {
	return ObjectID(v.Bits)
}

// IsNull reports whether v is a null reference.
func (v RawValue) IsNull() bool {
	return v.Tag.IsObject() && v.Bits == 0
}

// valueWidth returns the untagged payload width of a tag.
func valueWidth(tag Tag, sizes IDSizes) (int, error) {
	switch tag {
	case TagVoid:
		return 0, nil
	case TagByte, TagBoolean:
		return 1, nil
	case TagChar, TagShort:
		return 2, nil
	case TagInt, TagFloat:
		return 4, nil
	case TagLong, TagDouble:
		return 8, nil
	case TagArray, TagObject, TagString, TagThread, TagThreadGroup, TagClassLoader, TagClassObject:
		return sizes.ObjectID, nil
	}
	return 0, fmt.Errorf("unknown value tag %d", uint8(tag))
}

// Encoder builds a command body.
type Encoder struct {
	buf   []byte
	sizes IDSizes
	err   error
}

// NewEncoder returns an encoder using the given identifier widths.
func NewEncoder(sizes IDSizes) *Encoder {
	return &Encoder{sizes: sizes}
}

// Bytes returns the encoded body.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Err returns the first encoding error, if any.
func (e *Encoder) Err() error {
	return e.err
}

// Byte appends one byte.
func (e *Encoder) Byte(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

// Bool appends a boolean as one byte.
func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.Byte(1)
	}
	return e.Byte(0)
}

// Uint16 appends a big-endian 16-bit integer.
func (e *Encoder) Uint16(v uint16) *Encoder {
	e.buf = binary.BigEndian.AppendUint16(e.buf, v)
	return e
}

// Int32 appends a big-endian 32-bit integer.
func (e *Encoder) Int32(v int32) *Encoder {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
	return e
}

// Int64 appends a big-endian 64-bit integer.
func (e *Encoder) Int64(v int64) *Encoder {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
	return e
}

// Uint64 appends a big-endian 64-bit integer.
func (e *Encoder) Uint64(v uint64) *Encoder {
	e.buf = binary.BigEndian.AppendUint64(e.buf, v)
	return e
}

// Text appends a length-prefixed UTF-8 string.
func (e *Encoder) Text(s string) *Encoder {
	e.Int32(int32(len(s)))
	e.buf = append(e.buf, s...)
	return e
}

// Blob appends a length-prefixed byte array.
func (e *Encoder) Blob(b []byte) *Encoder {
	e.Int32(int32(len(b)))
	e.buf = append(e.buf, b...)
	return e
}

func (e *Encoder) id(v uint64, size int) *Encoder {
	for i := size - 1; i >= 0; i-- {
		e.buf = append(e.buf, byte(v>>(8*uint(i))))
	}
	return e
}

// ObjectID appends an object identifier.
func (e *Encoder) ObjectID(id ObjectID) *Encoder {
	return e.id(uint64(id), e.sizes.ObjectID)
}

// ReferenceTypeID appends a reference type identifier.
func (e *Encoder) ReferenceTypeID(id ReferenceTypeID) *Encoder {
	return e.id(uint64(id), e.sizes.ReferenceTypeID)
}

// MethodID appends a method identifier.
func (e *Encoder) MethodID(id MethodID) *Encoder {
	return e.id(uint64(id), e.sizes.MethodID)
}

// FieldID appends a field identifier.
func (e *Encoder) FieldID(id FieldID) *Encoder {
	return e.id(uint64(id), e.sizes.FieldID)
}

// FrameID appends a frame identifier.
func (e *Encoder) FrameID(id FrameID) *Encoder {
	return e.id(uint64(id), e.sizes.FrameID)
}

// Location appends a code location.
func (e *Encoder) Location(l Location) *Encoder {
	e.Byte(uint8(l.TypeTag))
	e.ReferenceTypeID(l.Class)
	e.MethodID(l.Method)
	return e.Uint64(l.Index)
}

// TaggedObjectID appends a tag byte followed by an object id.
func (e *Encoder) TaggedObjectID(tag Tag, id ObjectID) *Encoder {
	e.Byte(uint8(tag))
	return e.ObjectID(id)
}

// Value appends a tagged value.
func (e *Encoder) Value(v RawValue) *Encoder {
	e.Byte(uint8(v.Tag))
	return e.UntaggedValue(v)
}

// UntaggedValue appends only the payload of v.
func (e *Encoder) UntaggedValue(v RawValue) *Encoder {
	n, err := valueWidth(v.Tag, e.sizes)
	if err != nil {
		if e.err == nil {
			e.err = err
		}
		return e
	}
	return e.id(v.Bits, n)
}

// Decoder reads a reply or event body. The first failure is sticky: later
// reads return zero values and Err reports the original cause.
type Decoder struct {
	data  []byte
	off   int
	sizes IDSizes
	err   error
}

// NewDecoder returns a decoder over data using the given identifier widths.
func NewDecoder(data []byte, sizes IDSizes) *Decoder {
	return &Decoder{data: data, sizes: sizes}
}

// Err returns the first decoding error, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

// Sizes returns the identifier widths used by the decoder.
func (d *Decoder) Sizes() IDSizes {
	return d.sizes
}

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.data) {
		d.fail(fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrTruncated, n, d.off, len(d.data)))
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

// Byte reads one byte.
func (d *Decoder) Byte() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Bool reads a one-byte boolean.
func (d *Decoder) Bool() bool {
	return d.Byte() != 0
}

// Uint16 reads a big-endian 16-bit integer.
func (d *Decoder) Uint16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// Int32 reads a big-endian 32-bit integer.
func (d *Decoder) Int32() int32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

// Int64 reads a big-endian 64-bit integer.
func (d *Decoder) Int64() int64 {
	return int64(d.Uint64())
}

// Uint64 reads a big-endian 64-bit integer.
func (d *Decoder) Uint64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// Count reads a non-negative 32-bit element count.
func (d *Decoder) Count() int {
	n := d.Int32()
	if n < 0 {
		d.fail(fmt.Errorf("negative count %d", n))
		return 0
	}
	if int(n) > d.Remaining() {
		d.fail(fmt.Errorf("%w: count %d exceeds %d remaining bytes", ErrTruncated, n, d.Remaining()))
		return 0
	}
	return int(n)
}

// Text reads a length-prefixed UTF-8 string.
func (d *Decoder) Text() string {
	n := d.Int32()
	return string(d.take(int(n)))
}

// Blob reads a length-prefixed byte array.
func (d *Decoder) Blob() []byte {
	n := d.Int32()
	b := d.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (d *Decoder) id(size int) uint64 {
	b := d.take(size)
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// ObjectID reads an object identifier.
func (d *Decoder) ObjectID() ObjectID {
	return ObjectID(d.id(d.sizes.ObjectID))
}

// ReferenceTypeID reads a reference type identifier.
func (d *Decoder) ReferenceTypeID() ReferenceTypeID {
	return ReferenceTypeID(d.id(d.sizes.ReferenceTypeID))
}

// MethodID reads a method identifier.
func (d *Decoder) MethodID() MethodID {
	return MethodID(d.id(d.sizes.MethodID))
}

// FieldID reads a field identifier.
func (d *Decoder) FieldID() FieldID {
	return FieldID(d.id(d.sizes.FieldID))
}

// FrameID reads a frame identifier.
func (d *Decoder) FrameID() FrameID {
	return FrameID(d.id(d.sizes.FrameID))
}

// TypeTag reads a reference type tag.
func (d *Decoder) TypeTag() TypeTag {
	return TypeTag(d.Byte())
}

// Tag reads a value tag.
func (d *Decoder) Tag() Tag {
	t := Tag(d.Byte())
	if d.err == nil && !t.Valid() {
		d.fail(fmt.Errorf("unknown value tag %d", uint8(t)))
	}
	return t
}

// Location reads a code location.
func (d *Decoder) Location() Location {
	var l Location
	l.TypeTag = d.TypeTag()
	l.Class = d.ReferenceTypeID()
	l.Method = d.MethodID()
	l.Index = d.Uint64()
	return l
}

// TaggedObjectID reads a tag byte followed by an object id.
func (d *Decoder) TaggedObjectID() (Tag, ObjectID) {
	tag := d.Tag()
	return tag, d.ObjectID()
}

// Value reads a tagged value.
func (d *Decoder) Value() RawValue {
	return d.UntaggedValue(d.Tag())
}

// UntaggedValue reads the payload of a value whose tag is known.
func (d *Decoder) UntaggedValue(tag Tag) RawValue {
	if d.err != nil {
		return RawValue{Tag: tag}
	}
	n, err := valueWidth(tag, d.sizes)
	if err != nil {
		d.fail(err)
		return RawValue{Tag: tag}
	}
	return RawValue{Tag: tag, Bits: d.id(n)}
}

// ArrayRegion reads an array region: element tag, count, then untagged
// primitive payloads or tagged references.
func (d *Decoder) ArrayRegion() (Tag, []RawValue) {
	tag := d.Tag()
	n := d.Int32()
	if d.err != nil {
		return tag, nil
	}
	if n < 0 {
		d.fail(fmt.Errorf("negative array region length %d", n))
		return tag, nil
	}
	values := make([]RawValue, 0, min(int(n), d.Remaining()))
	for i := int32(0); i < n && d.err == nil; i++ {
		if tag.IsPrimitive() {
			values = append(values, d.UntaggedValue(tag))
		} else {
			values = append(values, d.Value())
		}
	}
	return tag, values
}

// DecodeIDSizes reads the reply body of VirtualMachine.IDSizes.
func DecodeIDSizes(data []byte) (IDSizes, error) {
	d := NewDecoder(data, IDSizes{})
	s := IDSizes{
		FieldID:         int(d.Int32()),
		MethodID:        int(d.Int32()),
		ObjectID:        int(d.Int32()),
		ReferenceTypeID: int(d.Int32()),
		FrameID:         int(d.Int32()),
	}
	if err := d.Err(); err != nil {
		return IDSizes{}, fmt.Errorf("decode id sizes: %w", err)
	}
	if err := s.Validate(); err != nil {
		return IDSizes{}, err
	}
	return s, nil
}

// Primitive payload helpers.

// BoolBits returns the payload bits of a boolean.
func BoolBits(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// Float32Bits returns the payload bits of a float.
func Float32Bits(v float32) uint64 {
	return uint64(math.Float32bits(v))
}

// Float64Bits returns the payload bits of a double.
func Float64Bits(v float64) uint64 {
	return math.Float64bits(v)
}
