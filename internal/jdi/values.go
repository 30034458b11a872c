package jdi

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/signature"
)

// Value is a value in the target: a primitive value type or a Reference.
// A nil Value is the null reference.
type Value interface {
	Tag() jdwp.Tag
	Type(ctx context.Context) (Type, error)
	String() string

	raw() jdwp.RawValue
}

// Primitive values are plain Go values compared with ==.
type (
	BooleanValue bool
	ByteValue    int8
	CharValue    uint16
	ShortValue   int16
	IntValue     int32
	LongValue    int64
	FloatValue   float32
	DoubleValue  float64
	VoidValue    struct{}
)

func (BooleanValue) Tag() jdwp.Tag { return jdwp.TagBoolean }
func (ByteValue) Tag() jdwp.Tag    { return jdwp.TagByte }
func (CharValue) Tag() jdwp.Tag    { return jdwp.TagChar }
func (ShortValue) Tag() jdwp.Tag   { return jdwp.TagShort }
func (IntValue) Tag() jdwp.Tag     { return jdwp.TagInt }
func (LongValue) Tag() jdwp.Tag    { return jdwp.TagLong }
func (FloatValue) Tag() jdwp.Tag   { return jdwp.TagFloat }
func (DoubleValue) Tag() jdwp.Tag  { return jdwp.TagDouble }
func (VoidValue) Tag() jdwp.Tag    { return jdwp.TagVoid }

func (v BooleanValue) Type(context.Context) (Type, error) { return PrimitiveType{v.Tag()}, nil }
func (v ByteValue) Type(context.Context) (Type, error)    { return PrimitiveType{v.Tag()}, nil }
func (v CharValue) Type(context.Context) (Type, error)    { return PrimitiveType{v.Tag()}, nil }
func (v ShortValue) Type(context.Context) (Type, error)   { return PrimitiveType{v.Tag()}, nil }
func (v IntValue) Type(context.Context) (Type, error)     { return PrimitiveType{v.Tag()}, nil }
func (v LongValue) Type(context.Context) (Type, error)    { return PrimitiveType{v.Tag()}, nil }
func (v FloatValue) Type(context.Context) (Type, error)   { return PrimitiveType{v.Tag()}, nil }
func (v DoubleValue) Type(context.Context) (Type, error)  { return PrimitiveType{v.Tag()}, nil }
func (v VoidValue) Type(context.Context) (Type, error)    { return PrimitiveType{v.Tag()}, nil }

func (v BooleanValue) String() string { return strconv.FormatBool(bool(v)) }
func (v ByteValue) String() string    { return strconv.Itoa(int(v)) }
func (v CharValue) String() string    { return string(rune(v)) }
func (v ShortValue) String() string   { return strconv.Itoa(int(v)) }
func (v IntValue) String() string     { return strconv.Itoa(int(v)) }
func (v LongValue) String() string    { return strconv.FormatInt(int64(v), 10) }
func (v FloatValue) String() string   { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
func (v DoubleValue) String() string  { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (VoidValue) String() string      { return "void" }

func (v BooleanValue) raw() jdwp.RawValue {
	return jdwp.RawValue{Tag: jdwp.TagBoolean, Bits: jdwp.BoolBits(bool(v))}
}
func (v ByteValue) raw() jdwp.RawValue {
	return jdwp.RawValue{Tag: jdwp.TagByte, Bits: uint64(uint8(v))}
}
func (v CharValue) raw() jdwp.RawValue {
	return jdwp.RawValue{Tag: jdwp.TagChar, Bits: uint64(v)}
}
func (v ShortValue) raw() jdwp.RawValue {
	return jdwp.RawValue{Tag: jdwp.TagShort, Bits: uint64(uint16(v))}
}
func (v IntValue) raw() jdwp.RawValue {
	return jdwp.RawValue{Tag: jdwp.TagInt, Bits: uint64(uint32(v))}
}
func (v LongValue) raw() jdwp.RawValue {
	return jdwp.RawValue{Tag: jdwp.TagLong, Bits: uint64(v)}
}
func (v FloatValue) raw() jdwp.RawValue {
	return jdwp.RawValue{Tag: jdwp.TagFloat, Bits: jdwp.Float32Bits(float32(v))}
}
func (v DoubleValue) raw() jdwp.RawValue {
	return jdwp.RawValue{Tag: jdwp.TagDouble, Bits: jdwp.Float64Bits(float64(v))}
}
func (VoidValue) raw() jdwp.RawValue {
	return jdwp.RawValue{Tag: jdwp.TagVoid}
}

// value binds a raw value to a Value. Null references yield nil.
func (vm *VirtualMachine) value(v jdwp.RawValue) Value {
	switch v.Tag {
	case jdwp.TagBoolean:
		return BooleanValue(v.Bits != 0)
	case jdwp.TagByte:
		return ByteValue(int8(uint8(v.Bits)))
	case jdwp.TagChar:
		return CharValue(uint16(v.Bits))
	case jdwp.TagShort:
		return ShortValue(int16(uint16(v.Bits)))
	case jdwp.TagInt:
		return IntValue(int32(uint32(v.Bits)))
	case jdwp.TagLong:
		return LongValue(int64(v.Bits))
	case jdwp.TagFloat:
		return FloatValue(math.Float32frombits(uint32(v.Bits)))
	case jdwp.TagDouble:
		return DoubleValue(math.Float64frombits(v.Bits))
	case jdwp.TagVoid:
		return VoidValue{}
	}
	if o := vm.cache.object(v.Tag, v.Object()); o != nil {
		return o
	}
	return nil
}

// rawOf encodes a Value for the wire; nil is the null object.
func rawOf(v Value) jdwp.RawValue {
	if v == nil {
		return jdwp.RawValue{Tag: jdwp.TagObject}
	}
	return v.raw()
}

// numeric is a primitive operand widened for conversion.
type numeric struct {
	integral bool
	i        int64
	f        float64
}

func numericOf(v Value) (numeric, bool) {
	switch v := v.(type) {
	case BooleanValue:
		if v {
			return numeric{integral: true, i: 1}, true
		}
		return numeric{integral: true}, true
	case ByteValue:
		return numeric{integral: true, i: int64(v)}, true
	case CharValue:
		return numeric{integral: true, i: int64(v)}, true
	case ShortValue:
		return numeric{integral: true, i: int64(v)}, true
	case IntValue:
		return numeric{integral: true, i: int64(v)}, true
	case LongValue:
		return numeric{integral: true, i: int64(v)}, true
	case FloatValue:
		return numeric{f: float64(v)}, true
	case DoubleValue:
		return numeric{f: float64(v)}, true
	}
	return numeric{}, false
}

// toInt64 converts with Java's floating point to long rules: NaN is 0 and
// out-of-range values saturate.
func (n numeric) toInt64() int64 {
	if n.integral {
		return n.i
	}
	switch {
	case math.IsNaN(n.f):
		return 0
	case n.f >= math.MaxInt64:
		return math.MaxInt64
	case n.f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(n.f)
}

// toInt32 converts with Java's floating point to int rules.
func (n numeric) toInt32() int32 {
	if n.integral {
		return int32(n.i)
	}
	switch {
	case math.IsNaN(n.f):
		return 0
	case n.f >= math.MaxInt32:
		return math.MaxInt32
	case n.f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(n.f)
}

func (n numeric) toFloat64() float64 {
	if n.integral {
		return float64(n.i)
	}
	return n.f
}

// toFloat32 rounds integral operands once, straight to float precision.
func (n numeric) toFloat32() float32 {
	if n.integral {
		return float32(n.i)
	}
	return float32(n.f)
}

// coerce converts v for storage in a location of signature sig, applying
// Java primitive conversions. Booleans convert to 0 or 1 and chars by
// ordinal; nothing converts to boolean and primitives never mix with
// references.
func coerce(sig string, v Value) (jdwp.RawValue, error) {
	if signature.IsReference(sig) {
		switch v.(type) {
		case nil:
			if sig[0] == '[' {
				return jdwp.RawValue{Tag: jdwp.TagArray}, nil
			}
			return jdwp.RawValue{Tag: jdwp.TagObject}, nil
		case Reference:
			return v.raw(), nil
		}
		return jdwp.RawValue{}, fmt.Errorf("cannot assign %s value to %s", v.Tag(), signature.ToName(sig))
	}

	if _, ok := PrimitiveTypeOf(sig); !ok || sig == "V" {
		return jdwp.RawValue{}, fmt.Errorf("cannot assign to %q", sig)
	}
	if v == nil {
		return jdwp.RawValue{}, fmt.Errorf("cannot assign null to %s", signature.ToName(sig))
	}
	if sig == "Z" {
		if b, ok := v.(BooleanValue); ok {
			return b.raw(), nil
		}
		return jdwp.RawValue{}, fmt.Errorf("cannot assign %s value to boolean", v.Tag())
	}

	n, ok := numericOf(v)
	if !ok {
		return jdwp.RawValue{}, fmt.Errorf("cannot assign %s value to %s", v.Tag(), signature.ToName(sig))
	}
	var out Value
	switch sig {
	case "B":
		out = ByteValue(int8(n.toInt32()))
	case "C":
		out = CharValue(uint16(n.toInt32()))
	case "S":
		out = ShortValue(int16(n.toInt32()))
	case "I":
		out = IntValue(n.toInt32())
	case "J":
		out = LongValue(n.toInt64())
	case "F":
		out = FloatValue(n.toFloat32())
	case "D":
		out = DoubleValue(n.toFloat64())
	}
	return out.raw(), nil
}

// coerceArguments checks the argument count against the method signature
// and converts each argument.
func coerceArguments(op string, m *Method, args []Value) ([]jdwp.RawValue, error) {
	ms, err := signature.ParseMethod(m.sig)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrInvalidArgument, Err: err}
	}
	if len(args) != len(ms.Arguments) {
		return nil, newError(op, ErrInvalidArgument, "%s takes %d arguments, got %d", m.name, len(ms.Arguments), len(args))
	}
	out := make([]jdwp.RawValue, len(args))
	for i, a := range args {
		raw, err := coerce(ms.Arguments[i], a)
		if err != nil {
			return nil, &Error{Op: op, Kind: ErrTypeMismatch, Err: fmt.Errorf("argument %d: %w", i, err)}
		}
		out[i] = raw
	}
	return out, nil
}

func encodeArguments(e *jdwp.Encoder, args []jdwp.RawValue) {
	e.Int32(int32(len(args)))
	for _, a := range args {
		e.Value(a)
	}
}
