package jdi

import (
	"context"
	"sync/atomic"

	"github.com/dshills/jdwp/internal/jdwp"
)

// ThreadReference mirrors a thread.
type ThreadReference struct {
	ObjectReference

	// epoch advances whenever this thread alone may have resumed.
	epoch atomic.Uint64
}

// invalidate marks frames stale before an invocation runs the thread.
// A single-threaded invocation only resumes the thread itself.
func (t *ThreadReference) invalidate(options int32) {
	if options&jdwp.InvokeSingleThreaded != 0 {
		t.epoch.Add(1)
		return
	}
	t.vm.invalidateFrames()
}

func (t *ThreadReference) do(ctx context.Context, op string, cmd jdwp.Command) (*jdwp.Decoder, error) {
	return t.vm.do(ctx, op, cmd, func(e *jdwp.Encoder) {
		e.ObjectID(t.id)
	})
}

// Name returns the thread name.
func (t *ThreadReference) Name(ctx context.Context) (string, error) {
	const op = "ThreadReference.Name"
	d, err := t.do(ctx, op, jdwp.CmdTRName)
	if err != nil {
		return "", err
	}
	name := d.Text()
	return name, decodeErr(op, d)
}

// Status returns the thread status, one of the jdwp.ThreadStatus values.
func (t *ThreadReference) Status(ctx context.Context) (int32, error) {
	status, _, err := t.status(ctx)
	return status, err
}

// IsSuspended reports whether the thread is suspended.
func (t *ThreadReference) IsSuspended(ctx context.Context) (bool, error) {
	_, suspend, err := t.status(ctx)
	return suspend&jdwp.SuspendStatusSuspended != 0, err
}

func (t *ThreadReference) status(ctx context.Context) (status, suspend int32, err error) {
	const op = "ThreadReference.Status"
	d, err := t.do(ctx, op, jdwp.CmdTRStatus)
	if err != nil {
		return 0, 0, err
	}
	status, suspend = d.Int32(), d.Int32()
	return status, suspend, decodeErr(op, d)
}

// SuspendCount returns how many times the thread has been suspended. It is
// never cached.
func (t *ThreadReference) SuspendCount(ctx context.Context) (int32, error) {
	const op = "ThreadReference.SuspendCount"
	d, err := t.do(ctx, op, jdwp.CmdTRSuspendCount)
	if err != nil {
		return 0, err
	}
	n := d.Int32()
	return n, decodeErr(op, d)
}

// Suspend increments the thread's suspend count.
func (t *ThreadReference) Suspend(ctx context.Context) error {
	_, err := t.do(ctx, "ThreadReference.Suspend", jdwp.CmdTRSuspend)
	return err
}

// Resume decrements the thread's suspend count. Frames fetched before the
// call become invalid.
func (t *ThreadReference) Resume(ctx context.Context) error {
	t.epoch.Add(1)
	_, err := t.do(ctx, "ThreadReference.Resume", jdwp.CmdTRResume)
	return err
}

// ThreadGroup returns the group the thread belongs to.
func (t *ThreadReference) ThreadGroup(ctx context.Context) (*ThreadGroupReference, error) {
	const op = "ThreadReference.ThreadGroup"
	d, err := t.do(ctx, op, jdwp.CmdTRThreadGroup)
	if err != nil {
		return nil, err
	}
	g := t.vm.cache.threadGroup(d.ObjectID())
	return g, decodeErr(op, d)
}

// FrameCount returns the depth of the suspended thread's stack.
func (t *ThreadReference) FrameCount(ctx context.Context) (int32, error) {
	const op = "ThreadReference.FrameCount"
	d, err := t.do(ctx, op, jdwp.CmdTRFrameCount)
	if err != nil {
		return 0, err
	}
	n := d.Int32()
	return n, decodeErr(op, d)
}

// Frames returns length frames starting at start, topmost first; a length
// of -1 returns the rest of the stack.
func (t *ThreadReference) Frames(ctx context.Context, start, length int32) ([]*StackFrame, error) {
	const op = "ThreadReference.Frames"
	if start < 0 || length < -1 {
		return nil, newError(op, ErrInvalidIndex, "bad frame range %d+%d", start, length)
	}

	vmEpoch, threadEpoch := t.vm.resumeEpoch.Load(), t.epoch.Load()
	d, err := t.vm.do(ctx, op, jdwp.CmdTRFrames, func(e *jdwp.Encoder) {
		e.ObjectID(t.id).Int32(start).Int32(length)
	})
	if err != nil {
		return nil, err
	}
	n := d.Count()
	frames := make([]*StackFrame, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		id := d.FrameID()
		loc := d.Location()
		frames = append(frames, &StackFrame{
			thread:      t,
			id:          id,
			location:    t.vm.location(loc),
			vmEpoch:     vmEpoch,
			threadEpoch: threadEpoch,
		})
	}
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	return frames, nil
}

// AllFrames returns the whole stack.
func (t *ThreadReference) AllFrames(ctx context.Context) ([]*StackFrame, error) {
	return t.Frames(ctx, 0, -1)
}

// Frame returns the frame at depth i; zero is the topmost frame.
func (t *ThreadReference) Frame(ctx context.Context, i int32) (*StackFrame, error) {
	frames, err := t.Frames(ctx, i, 1)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, newError("ThreadReference.Frames", ErrInvalidIndex, "no frame at depth %d", i)
	}
	return frames[0], nil
}

// OwnedMonitors returns the objects whose monitors the thread holds.
func (t *ThreadReference) OwnedMonitors(ctx context.Context) ([]Reference, error) {
	const op = "ThreadReference.OwnedMonitors"
	if !t.vm.caps.CanGetOwnedMonitorInfo {
		return nil, unsupported(op, "canGetOwnedMonitorInfo")
	}
	d, err := t.do(ctx, op, jdwp.CmdTROwnedMonitors)
	if err != nil {
		return nil, err
	}
	out := t.vm.readTaggedObjects(d)
	return out, decodeErr(op, d)
}

// CurrentContendedMonitor returns the object whose monitor the thread is
// waiting to enter, or nil.
func (t *ThreadReference) CurrentContendedMonitor(ctx context.Context) (Reference, error) {
	const op = "ThreadReference.CurrentContendedMonitor"
	if !t.vm.caps.CanGetCurrentContendedMonitor {
		return nil, unsupported(op, "canGetCurrentContendedMonitor")
	}
	d, err := t.do(ctx, op, jdwp.CmdTRCurrentContendedMonitor)
	if err != nil {
		return nil, err
	}
	tag, id := d.TaggedObjectID()
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	return t.vm.cache.object(tag, id), nil
}

// Stop throws throwable in the thread.
func (t *ThreadReference) Stop(ctx context.Context, throwable Reference) error {
	const op = "ThreadReference.Stop"
	if throwable == nil {
		return newError(op, ErrInvalidArgument, "no throwable")
	}
	_, err := t.vm.do(ctx, op, jdwp.CmdTRStop, func(e *jdwp.Encoder) {
		e.ObjectID(t.id).ObjectID(throwable.ID())
	})
	return err
}

// Interrupt interrupts the thread.
func (t *ThreadReference) Interrupt(ctx context.Context) error {
	_, err := t.do(ctx, "ThreadReference.Interrupt", jdwp.CmdTRInterrupt)
	return err
}

// PopFrames pops every frame up to and including frame. The thread's frames
// are invalid afterwards.
func (t *ThreadReference) PopFrames(ctx context.Context, frame *StackFrame) error {
	const op = "StackFrame.PopFrames"
	if !t.vm.caps.CanPopFrames {
		return unsupported(op, "canPopFrames")
	}
	if frame == nil || frame.thread != t {
		return newError(op, ErrInvalidArgument, "frame does not belong to thread %d", t.id)
	}
	if err := frame.check(op); err != nil {
		return err
	}
	t.epoch.Add(1)
	_, err := t.vm.do(ctx, op, jdwp.CmdSFPopFrames, func(e *jdwp.Encoder) {
		e.ObjectID(t.id).FrameID(frame.id)
	})
	return err
}

// ForceEarlyReturn makes the topmost frame return v without executing the
// rest of its method.
func (t *ThreadReference) ForceEarlyReturn(ctx context.Context, v Value) error {
	const op = "ThreadReference.ForceEarlyReturn"
	if !t.vm.caps.CanForceEarlyReturn {
		return unsupported(op, "canForceEarlyReturn")
	}
	if v == nil {
		v = VoidValue{}
	}
	_, err := t.vm.do(ctx, op, jdwp.CmdTRForceEarlyReturn, func(e *jdwp.Encoder) {
		e.ObjectID(t.id).Value(v.raw())
	})
	return err
}

// IsVirtual reports whether the thread is a virtual thread. Targets older
// than JDWP 19 have none.
func (t *ThreadReference) IsVirtual(ctx context.Context) (bool, error) {
	const op = "ThreadReference.IsVirtual"
	if !t.vm.version.AtLeast(19, 0) {
		return false, nil
	}
	d, err := t.do(ctx, op, jdwp.CmdTRIsVirtual)
	if err != nil {
		return false, err
	}
	virtual := d.Bool()
	return virtual, decodeErr(op, d)
}

// ThreadGroupReference mirrors a thread group.
type ThreadGroupReference struct {
	ObjectReference
}

// Name returns the group name.
func (g *ThreadGroupReference) Name(ctx context.Context) (string, error) {
	const op = "ThreadGroupReference.Name"
	d, err := g.vm.do(ctx, op, jdwp.CmdTGRName, func(e *jdwp.Encoder) {
		e.ObjectID(g.id)
	})
	if err != nil {
		return "", err
	}
	name := d.Text()
	return name, decodeErr(op, d)
}

// Parent returns the parent group, or nil for a top-level group.
func (g *ThreadGroupReference) Parent(ctx context.Context) (*ThreadGroupReference, error) {
	const op = "ThreadGroupReference.Parent"
	d, err := g.vm.do(ctx, op, jdwp.CmdTGRParent, func(e *jdwp.Encoder) {
		e.ObjectID(g.id)
	})
	if err != nil {
		return nil, err
	}
	parent := g.vm.cache.threadGroup(d.ObjectID())
	return parent, decodeErr(op, d)
}

// Children returns the live threads and the child groups of g, each decoded
// into its own list.
func (g *ThreadGroupReference) Children(ctx context.Context) ([]*ThreadReference, []*ThreadGroupReference, error) {
	const op = "ThreadGroupReference.Children"
	d, err := g.vm.do(ctx, op, jdwp.CmdTGRChildren, func(e *jdwp.Encoder) {
		e.ObjectID(g.id)
	})
	if err != nil {
		return nil, nil, err
	}
	threads := g.vm.readThreads(d)
	groups := g.vm.readThreadGroups(d)
	if err := decodeErr(op, d); err != nil {
		return nil, nil, err
	}
	return threads, groups, nil
}

// Threads returns the live threads directly in g.
func (g *ThreadGroupReference) Threads(ctx context.Context) ([]*ThreadReference, error) {
	threads, _, err := g.Children(ctx)
	return threads, err
}

// ThreadGroups returns the direct child groups of g.
func (g *ThreadGroupReference) ThreadGroups(ctx context.Context) ([]*ThreadGroupReference, error) {
	_, groups, err := g.Children(ctx)
	return groups, err
}

// Suspend suspends every thread in g and its descendants.
func (g *ThreadGroupReference) Suspend(ctx context.Context) error {
	return g.walk(ctx, (*ThreadReference).Suspend)
}

// Resume resumes every thread in g and its descendants.
func (g *ThreadGroupReference) Resume(ctx context.Context) error {
	return g.walk(ctx, (*ThreadReference).Resume)
}

func (g *ThreadGroupReference) walk(ctx context.Context, fn func(*ThreadReference, context.Context) error) error {
	threads, groups, err := g.Children(ctx)
	if err != nil {
		return err
	}
	for _, t := range threads {
		if err := fn(t, ctx); err != nil {
			return err
		}
	}
	for _, child := range groups {
		if err := child.walk(ctx, fn); err != nil {
			return err
		}
	}
	return nil
}
