package jdi

import (
	"context"
	"sync"

	"github.com/dshills/jdwp/internal/jdwp"
)

// StackFrame is one activation on a suspended thread's stack. A frame is
// valid only until its thread, or the whole VM, resumes; after that every
// access fails with ErrInvalidStackFrame.
type StackFrame struct {
	thread   *ThreadReference
	id       jdwp.FrameID
	location Location

	vmEpoch     uint64
	threadEpoch uint64

	mu        sync.Mutex
	this      Reference
	thisKnown bool
}

// ID returns the frame id.
func (f *StackFrame) ID() jdwp.FrameID { return f.id }

// Thread returns the thread owning the frame.
func (f *StackFrame) Thread() *ThreadReference { return f.thread }

// Location returns the current code position of the frame.
func (f *StackFrame) Location() Location { return f.location }

// IsValid reports whether the owning thread is still suspended as it was
// when the frame was fetched.
func (f *StackFrame) IsValid() bool {
	return f.thread.vm.resumeEpoch.Load() == f.vmEpoch && f.thread.epoch.Load() == f.threadEpoch
}

func (f *StackFrame) check(op string) error {
	if !f.IsValid() {
		return newError(op, ErrInvalidStackFrame, "thread %d resumed since frame %d was fetched", f.thread.id, f.id)
	}
	return nil
}

// method resolves the frame's method.
func (f *StackFrame) method(ctx context.Context) (*Method, error) {
	return f.location.Method(ctx)
}

// ThisObject returns the receiver of the frame's method, or nil in static
// and native methods.
func (f *StackFrame) ThisObject(ctx context.Context) (Reference, error) {
	const op = "StackFrame.ThisObject"
	if err := f.check(op); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.thisKnown {
		this := f.this
		f.mu.Unlock()
		return this, nil
	}
	f.mu.Unlock()

	m, err := f.method(ctx)
	if err != nil {
		return nil, err
	}
	var this Reference
	if !m.IsStatic() && !m.IsNative() {
		d, err := f.thread.vm.do(ctx, op, jdwp.CmdSFThisObject, func(e *jdwp.Encoder) {
			e.ObjectID(f.thread.id).FrameID(f.id)
		})
		if err != nil {
			return nil, err
		}
		tag, id := d.TaggedObjectID()
		if err := decodeErr(op, d); err != nil {
			return nil, err
		}
		this = f.thread.vm.cache.object(tag, id)
	}

	f.mu.Lock()
	f.this, f.thisKnown = this, true
	f.mu.Unlock()
	return this, nil
}

// VisibleVariables returns the variables in scope at the frame's location,
// excluding the receiver.
func (f *StackFrame) VisibleVariables(ctx context.Context) ([]*LocalVariable, error) {
	if err := f.check("StackFrame.VisibleVariables"); err != nil {
		return nil, err
	}
	m, err := f.method(ctx)
	if err != nil {
		return nil, err
	}
	vars, err := m.Variables(ctx)
	if err != nil {
		return nil, err
	}
	var out []*LocalVariable
	for _, v := range vars {
		if v.IsVisible(f.location.index) && !v.isThis() {
			out = append(out, v)
		}
	}
	return out, nil
}

// VisibleVariableByName returns the visible variable with the given name,
// or nil.
func (f *StackFrame) VisibleVariableByName(ctx context.Context, name string) (*LocalVariable, error) {
	vars, err := f.VisibleVariables(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range vars {
		if v.name == name {
			return v, nil
		}
	}
	return nil, nil
}

// GetValue returns the value of one variable.
func (f *StackFrame) GetValue(ctx context.Context, v *LocalVariable) (Value, error) {
	values, err := f.GetValues(ctx, []*LocalVariable{v})
	if err != nil {
		return nil, err
	}
	return values[v], nil
}

// GetValues returns the values of variables of the frame's method. The
// receiver, if asked for, is answered by ThisObject rather than by slot.
func (f *StackFrame) GetValues(ctx context.Context, vars []*LocalVariable) (map[*LocalVariable]Value, error) {
	const op = "StackFrame.GetValues"
	if err := f.check(op); err != nil {
		return nil, err
	}
	m, err := f.method(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[*LocalVariable]Value, len(vars))
	batch := make([]*LocalVariable, 0, len(vars))
	for _, v := range vars {
		if v.method != m {
			return nil, newError(op, ErrInvalidArgument, "variable %s is not in %s", v.name, m.name)
		}
		if v.isThis() {
			this, err := f.ThisObject(ctx)
			if err != nil {
				return nil, err
			}
			out[v] = valueOf(this)
			continue
		}
		batch = append(batch, v)
	}
	if len(batch) == 0 {
		return out, nil
	}

	d, err := f.thread.vm.do(ctx, op, jdwp.CmdSFGetValues, func(e *jdwp.Encoder) {
		e.ObjectID(f.thread.id).FrameID(f.id).Int32(int32(len(batch)))
		for _, v := range batch {
			e.Int32(v.slot).Byte(v.sig[0])
		}
	})
	if err != nil {
		return nil, err
	}
	n := d.Count()
	if d.Err() == nil && n != len(batch) {
		return nil, newError(op, nil, "reply has %d values for %d variables", n, len(batch))
	}
	for i := 0; i < n && d.Err() == nil; i++ {
		out[batch[i]] = f.thread.vm.value(d.Value())
	}
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	return out, nil
}

// SetValue assigns a variable, converting primitives to its type. The
// receiver cannot be assigned.
func (f *StackFrame) SetValue(ctx context.Context, v *LocalVariable, val Value) error {
	const op = "StackFrame.SetValues"
	if err := f.check(op); err != nil {
		return err
	}
	if v.isThis() {
		return newError(op, ErrInvalidArgument, "cannot assign the receiver")
	}
	m, err := f.method(ctx)
	if err != nil {
		return err
	}
	if v.method != m {
		return newError(op, ErrInvalidArgument, "variable %s is not in %s", v.name, m.name)
	}
	raw, err := coerce(v.sig, val)
	if err != nil {
		return &Error{Op: op, Kind: ErrTypeMismatch, Err: err}
	}
	_, err = f.thread.vm.do(ctx, op, jdwp.CmdSFSetValues, func(e *jdwp.Encoder) {
		e.ObjectID(f.thread.id).FrameID(f.id).Int32(1).Int32(v.slot).Value(raw)
	})
	return err
}

// ArgumentValues returns the values of the method's arguments in
// declaration order.
func (f *StackFrame) ArgumentValues(ctx context.Context) ([]Value, error) {
	if err := f.check("StackFrame.ArgumentValues"); err != nil {
		return nil, err
	}
	m, err := f.method(ctx)
	if err != nil {
		return nil, err
	}
	args, err := m.Arguments(ctx)
	if err != nil {
		return nil, err
	}
	values, err := f.GetValues(ctx, args)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(args))
	for i, a := range args {
		out[i] = values[a]
	}
	return out, nil
}

// valueOf turns a possibly nil Reference into a Value without producing a
// typed nil.
func valueOf(r Reference) Value {
	if r == nil {
		return nil
	}
	return r
}
