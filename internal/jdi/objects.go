package jdi

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/jdwp/internal/jdwp"
)

// Reference is a reference value. References are interned per connection,
// so two references denote the same object exactly when they are equal.
type Reference interface {
	Value
	ID() jdwp.ObjectID
	ReferenceType(ctx context.Context) (ReferenceType, error)

	base() *ObjectReference
}

// ObjectReference mirrors an object in the target.
type ObjectReference struct {
	vm  *VirtualMachine
	id  jdwp.ObjectID
	tag jdwp.Tag
}

func (o *ObjectReference) base() *ObjectReference { return o }

// ID returns the object id.
func (o *ObjectReference) ID() jdwp.ObjectID { return o.id }

// Tag returns the value tag the object was first seen with.
func (o *ObjectReference) Tag() jdwp.Tag { return o.tag }

// VirtualMachine returns the owning VM.
func (o *ObjectReference) VirtualMachine() *VirtualMachine { return o.vm }

func (o *ObjectReference) raw() jdwp.RawValue {
	return jdwp.RawValue{Tag: o.tag, Bits: uint64(o.id)}
}

func (o *ObjectReference) String() string {
	return fmt.Sprintf("%s#%d", o.tag, o.id)
}

// ReferenceType returns the runtime type of the object. It is asked of the
// target on every call.
func (o *ObjectReference) ReferenceType(ctx context.Context) (ReferenceType, error) {
	const op = "ObjectReference.ReferenceType"
	d, err := o.vm.do(ctx, op, jdwp.CmdORReferenceType, func(e *jdwp.Encoder) {
		e.ObjectID(o.id)
	})
	if err != nil {
		return nil, err
	}
	t := o.vm.readReferenceType(d)
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	return t, nil
}

// Type returns the runtime type of the object.
func (o *ObjectReference) Type(ctx context.Context) (Type, error) {
	t, err := o.ReferenceType(ctx)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetValue returns the value of one field.
func (o *ObjectReference) GetValue(ctx context.Context, f *Field) (Value, error) {
	values, err := o.GetValues(ctx, []*Field{f})
	if err != nil {
		return nil, err
	}
	return values[f], nil
}

// GetValues returns the values of instance or static fields of the object.
func (o *ObjectReference) GetValues(ctx context.Context, fields []*Field) (map[*Field]Value, error) {
	const op = "ObjectReference.GetValues"
	d, err := o.vm.do(ctx, op, jdwp.CmdORGetValues, func(e *jdwp.Encoder) {
		e.ObjectID(o.id).Int32(int32(len(fields)))
		for _, f := range fields {
			e.FieldID(f.id)
		}
	})
	if err != nil {
		return nil, err
	}
	return o.vm.readFieldValues(op, d, fields)
}

// SetValue assigns an instance field. Static fields are assigned through
// their declaring class.
func (o *ObjectReference) SetValue(ctx context.Context, f *Field, v Value) error {
	const op = "ObjectReference.SetValues"
	if f.mods.IsStatic() {
		ct, ok := f.declaring.(*ClassType)
		if !ok {
			return newError(op, ErrInvalidArgument, "static field %s is not declared by a class", f.name)
		}
		return ct.SetValue(ctx, f, v)
	}
	raw, err := coerce(f.sig, v)
	if err != nil {
		return &Error{Op: op, Kind: ErrTypeMismatch, Err: err}
	}
	_, err = o.vm.do(ctx, op, jdwp.CmdORSetValues, func(e *jdwp.Encoder) {
		e.ObjectID(o.id).Int32(1).FieldID(f.id).UntaggedValue(raw)
	})
	return err
}

// InvokeMethod runs an instance method on the object in thread, which must
// have been suspended by an event. Virtual dispatch applies unless options
// include jdwp.InvokeNonvirtual.
func (o *ObjectReference) InvokeMethod(ctx context.Context, thread *ThreadReference, m *Method, args []Value, options int32) (Value, error) {
	const op = "ObjectReference.InvokeMethod"
	if m.IsConstructor() || m.IsStaticInitializer() {
		return nil, newError(op, ErrInvalidArgument, "cannot invoke %s", m.name)
	}
	if options&jdwp.InvokeNonvirtual != 0 && m.mods.IsAbstract() {
		return nil, newError(op, ErrInvalidArgument, "nonvirtual invocation of abstract method %s", m.name)
	}
	raw, err := coerceArguments(op, m, args)
	if err != nil {
		return nil, err
	}
	return o.vm.invoke(ctx, op, jdwp.CmdORInvokeMethod, thread, options, func(e *jdwp.Encoder) {
		e.ObjectID(o.id).ObjectID(thread.id).ReferenceTypeID(m.declaring.ID()).MethodID(m.id)
		encodeArguments(e, raw)
		e.Int32(options)
	})
}

// invoke sends an invocation command and decodes the (value, exception)
// reply. The invoking thread runs during the call, so frames are
// invalidated first.
func (vm *VirtualMachine) invoke(ctx context.Context, op string, cmd jdwp.Command, thread *ThreadReference, options int32, fill func(e *jdwp.Encoder)) (Value, error) {
	if thread == nil {
		return nil, newError(op, ErrInvalidArgument, "no thread")
	}
	thread.invalidate(options)

	d, err := vm.do(ctx, op, cmd, fill)
	if err != nil {
		return nil, err
	}
	ret := d.Value()
	excTag, excID := d.TaggedObjectID()
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	if excID != 0 {
		return nil, &InvocationError{Exception: vm.cache.object(excTag, excID).base()}
	}
	return vm.value(ret), nil
}

// DisableCollection prevents the object from being garbage collected.
func (o *ObjectReference) DisableCollection(ctx context.Context) error {
	_, err := o.vm.do(ctx, "ObjectReference.DisableCollection", jdwp.CmdORDisableCollection, func(e *jdwp.Encoder) {
		e.ObjectID(o.id)
	})
	return err
}

// EnableCollection undoes DisableCollection.
func (o *ObjectReference) EnableCollection(ctx context.Context) error {
	_, err := o.vm.do(ctx, "ObjectReference.EnableCollection", jdwp.CmdOREnableCollection, func(e *jdwp.Encoder) {
		e.ObjectID(o.id)
	})
	return err
}

// IsCollected reports whether the object has been garbage collected.
func (o *ObjectReference) IsCollected(ctx context.Context) (bool, error) {
	const op = "ObjectReference.IsCollected"
	d, err := o.vm.do(ctx, op, jdwp.CmdORIsCollected, func(e *jdwp.Encoder) {
		e.ObjectID(o.id)
	})
	if err != nil {
		return false, err
	}
	collected := d.Bool()
	return collected, decodeErr(op, d)
}

// MonitorInfo describes the monitor of an object.
type MonitorInfo struct {
	Owner      *ThreadReference
	EntryCount int32
	Waiters    []*ThreadReference
}

// MonitorInfo returns the owner, entry count and waiters of the object's
// monitor.
func (o *ObjectReference) MonitorInfo(ctx context.Context) (MonitorInfo, error) {
	const op = "ObjectReference.MonitorInfo"
	if !o.vm.caps.CanGetMonitorInfo {
		return MonitorInfo{}, unsupported(op, "canGetMonitorInfo")
	}
	d, err := o.vm.do(ctx, op, jdwp.CmdORMonitorInfo, func(e *jdwp.Encoder) {
		e.ObjectID(o.id)
	})
	if err != nil {
		return MonitorInfo{}, err
	}
	var info MonitorInfo
	info.Owner = o.vm.cache.thread(d.ObjectID())
	info.EntryCount = d.Int32()
	info.Waiters = o.vm.readThreads(d)
	return info, decodeErr(op, d)
}

// ReferringObjects returns up to limit objects that refer to this one;
// zero means all.
func (o *ObjectReference) ReferringObjects(ctx context.Context, limit int32) ([]Reference, error) {
	const op = "ObjectReference.ReferringObjects"
	if !o.vm.caps.CanGetInstanceInfo {
		return nil, unsupported(op, "canGetInstanceInfo")
	}
	if limit < 0 {
		return nil, newError(op, ErrInvalidArgument, "negative referrer limit %d", limit)
	}
	d, err := o.vm.do(ctx, op, jdwp.CmdORReferringObjects, func(e *jdwp.Encoder) {
		e.ObjectID(o.id).Int32(limit)
	})
	if err != nil {
		return nil, err
	}
	out := o.vm.readTaggedObjects(d)
	return out, decodeErr(op, d)
}

// StringReference mirrors a java.lang.String. Its contents are immutable and
// fetched once.
type StringReference struct {
	ObjectReference

	mu    sync.Mutex
	value *string
}

// Value returns the string's characters.
func (s *StringReference) Value(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.value != nil {
		v := *s.value
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	const op = "StringReference.Value"
	d, err := s.vm.do(ctx, op, jdwp.CmdSRValue, func(e *jdwp.Encoder) {
		e.ObjectID(s.id)
	})
	if err != nil {
		return "", err
	}
	v := d.Text()
	if err := decodeErr(op, d); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.value = &v
	s.mu.Unlock()
	return v, nil
}

// ArrayReference mirrors an array. Its length is fetched once.
type ArrayReference struct {
	ObjectReference

	mu          sync.Mutex
	length      int32
	lengthKnown bool
}

// Length returns the number of elements.
func (a *ArrayReference) Length(ctx context.Context) (int32, error) {
	a.mu.Lock()
	if a.lengthKnown {
		n := a.length
		a.mu.Unlock()
		return n, nil
	}
	a.mu.Unlock()

	const op = "ArrayReference.Length"
	d, err := a.vm.do(ctx, op, jdwp.CmdARLength, func(e *jdwp.Encoder) {
		e.ObjectID(a.id)
	})
	if err != nil {
		return 0, err
	}
	n := d.Int32()
	if err := decodeErr(op, d); err != nil {
		return 0, err
	}

	a.mu.Lock()
	a.length, a.lengthKnown = n, true
	a.mu.Unlock()
	return n, nil
}

// checkRange validates [index, index+count) against the length; a count of
// -1 extends to the end. It returns the resolved count.
func (a *ArrayReference) checkRange(ctx context.Context, op string, index, count int32) (int32, error) {
	n, err := a.Length(ctx)
	if err != nil {
		return 0, err
	}
	if index < 0 || index > n {
		return 0, newError(op, ErrInvalidIndex, "index %d out of range [0, %d]", index, n)
	}
	if count == -1 {
		count = n - index
	}
	if count < 0 || int64(index)+int64(count) > int64(n) {
		return 0, newError(op, ErrInvalidIndex, "range %d+%d exceeds length %d", index, count, n)
	}
	return count, nil
}

// GetValue returns one element.
func (a *ArrayReference) GetValue(ctx context.Context, index int32) (Value, error) {
	values, err := a.GetValues(ctx, index, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// GetValues returns count elements starting at index; -1 reads to the end.
func (a *ArrayReference) GetValues(ctx context.Context, index, count int32) ([]Value, error) {
	const op = "ArrayReference.GetValues"
	count, err := a.checkRange(ctx, op, index, count)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []Value{}, nil
	}
	d, err := a.vm.do(ctx, op, jdwp.CmdARGetValues, func(e *jdwp.Encoder) {
		e.ObjectID(a.id).Int32(index).Int32(count)
	})
	if err != nil {
		return nil, err
	}
	_, raw := d.ArrayRegion()
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	out := make([]Value, len(raw))
	for i, r := range raw {
		out[i] = a.vm.value(r)
	}
	return out, nil
}

// SetValue assigns one element.
func (a *ArrayReference) SetValue(ctx context.Context, index int32, v Value) error {
	return a.SetValues(ctx, index, []Value{v})
}

// SetValues assigns consecutive elements starting at index, converting
// primitives to the component type.
func (a *ArrayReference) SetValues(ctx context.Context, index int32, values []Value) error {
	const op = "ArrayReference.SetValues"
	if _, err := a.checkRange(ctx, op, index, int32(len(values))); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	t, err := a.ReferenceType(ctx)
	if err != nil {
		return err
	}
	at, ok := t.(*ArrayType)
	if !ok {
		return newError(op, ErrTypeMismatch, "%s is not an array type", t)
	}
	component, err := at.ComponentSignature(ctx)
	if err != nil {
		return err
	}
	raw := make([]jdwp.RawValue, len(values))
	for i, v := range values {
		if raw[i], err = coerce(component, v); err != nil {
			return &Error{Op: op, Kind: ErrTypeMismatch, Err: fmt.Errorf("element %d: %w", int(index)+i, err)}
		}
	}

	_, err = a.vm.do(ctx, op, jdwp.CmdARSetValues, func(e *jdwp.Encoder) {
		e.ObjectID(a.id).Int32(index).Int32(int32(len(raw)))
		for _, r := range raw {
			e.UntaggedValue(r)
		}
	})
	return err
}

// ClassLoaderReference mirrors a class loader.
type ClassLoaderReference struct {
	ObjectReference
}

// VisibleClasses returns the types the loader has been asked to load,
// including through delegation.
func (l *ClassLoaderReference) VisibleClasses(ctx context.Context) ([]ReferenceType, error) {
	const op = "ClassLoaderReference.VisibleClasses"
	d, err := l.vm.do(ctx, op, jdwp.CmdCLRVisibleClasses, func(e *jdwp.Encoder) {
		e.ObjectID(l.id)
	})
	if err != nil {
		return nil, err
	}
	n := d.Count()
	out := make([]ReferenceType, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		if t := l.vm.readReferenceType(d); t != nil {
			out = append(out, t)
		}
	}
	return out, decodeErr(op, d)
}

// DefinedClasses returns the loaded types whose defining loader is l. It
// scans AllClasses on each call.
func (l *ClassLoaderReference) DefinedClasses(ctx context.Context) ([]ReferenceType, error) {
	all, err := l.vm.AllClasses(ctx)
	if err != nil {
		return nil, err
	}
	var out []ReferenceType
	for _, t := range all {
		loader, err := t.ClassLoader(ctx)
		if err != nil {
			if isKind(err, ErrInvalidReference) {
				continue
			}
			return nil, err
		}
		if loader == l {
			out = append(out, t)
		}
	}
	return out, nil
}

// ClassObjectReference mirrors a java.lang.Class instance.
type ClassObjectReference struct {
	ObjectReference
}

// ReflectedType returns the type the class object represents.
func (c *ClassObjectReference) ReflectedType(ctx context.Context) (ReferenceType, error) {
	const op = "ClassObjectReference.ReflectedType"
	d, err := c.vm.do(ctx, op, jdwp.CmdCORReflectedType, func(e *jdwp.Encoder) {
		e.ObjectID(c.id)
	})
	if err != nil {
		return nil, err
	}
	t := c.vm.readReferenceType(d)
	return t, decodeErr(op, d)
}
