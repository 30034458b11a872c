package jdi

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/signature"
)

// Config tunes diagnostics of a VirtualMachine.
type Config struct {
	// SessionID names the attachment in logs. A random UUID is used when empty.
	SessionID string

	// TraceEvents logs every decoded event set at debug level.
	TraceEvents bool

	// TraceRefTypes logs reference type creation and flushes.
	TraceRefTypes bool

	// TraceObjRefs logs object mirror creation.
	TraceObjRefs bool
}

// DefaultConfig returns a configuration with all tracing disabled.
func DefaultConfig() Config {
	return Config{}
}

// VirtualMachine is the root mirror of one connection to a target.
type VirtualMachine struct {
	conn *jdwp.Conn
	id   string
	cfg  Config
	log  commonlog.Logger

	version Version
	caps    Capabilities

	cache   *mirrorCache
	flights singleflight.Group

	// resumeEpoch advances whenever any thread may have resumed.
	resumeEpoch atomic.Uint64

	requests *EventRequestManager
	queue    *EventQueue
}

// Attach negotiates identifier sizes on conn (unless already done), then
// fetches the target version and capabilities.
func Attach(ctx context.Context, conn *jdwp.Conn, cfg Config) (*VirtualMachine, error) {
	vm := &VirtualMachine{
		conn: conn,
		id:   cfg.SessionID,
		cfg:  cfg,
		log:  commonlog.GetLogger("jdi.vm"),
	}
	if vm.id == "" {
		vm.id = uuid.New().String()
	}
	vm.cache = newMirrorCache(vm)
	vm.requests = newEventRequestManager(vm)
	vm.queue = newEventQueue(vm)

	if !conn.Negotiated() {
		if _, err := conn.NegotiateIDSizes(ctx); err != nil {
			return nil, wrap("VirtualMachine.IDSizes", err)
		}
	}

	if err := vm.fetchVersion(ctx); err != nil {
		return nil, err
	}
	if err := vm.fetchCapabilities(ctx); err != nil {
		return nil, err
	}

	vm.log.Infof("[%s] attached to %s", vm.id, vm.version)
	return vm, nil
}

func (vm *VirtualMachine) fetchVersion(ctx context.Context) error {
	const op = "VirtualMachine.Version"
	d, err := vm.do(ctx, op, jdwp.CmdVMVersion, nil)
	if err != nil {
		return err
	}
	vm.version = Version{
		Description: d.Text(),
		JDWPMajor:   d.Int32(),
		JDWPMinor:   d.Int32(),
		VMVersion:   d.Text(),
		VMName:      d.Text(),
	}
	return decodeErr(op, d)
}

func (vm *VirtualMachine) fetchCapabilities(ctx context.Context) error {
	const op = "VirtualMachine.CapabilitiesNew"
	d, err := vm.do(ctx, op, jdwp.CmdVMCapabilitiesNew, nil)
	if errors.Is(err, ErrUnsupported) {
		d, err = vm.do(ctx, "VirtualMachine.Capabilities", jdwp.CmdVMCapabilities, nil)
		if err != nil {
			return err
		}
		vm.caps = decodeCapabilities(d, 7)
		return decodeErr(op, d)
	}
	if err != nil {
		return err
	}
	vm.caps = decodeCapabilities(d, 21)
	return decodeErr(op, d)
}

// do issues one command and maps its error.
func (vm *VirtualMachine) do(ctx context.Context, op string, cmd jdwp.Command, fill func(e *jdwp.Encoder)) (*jdwp.Decoder, error) {
	d, err := vm.conn.Do(ctx, cmd, fill)
	if err != nil {
		return nil, wrap(op, err)
	}
	return d, nil
}

// decodeErr reports a malformed reply.
func decodeErr(op string, d *jdwp.Decoder) error {
	if err := d.Err(); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("malformed reply: %w", err)}
	}
	return nil
}

// SessionID identifies this attachment in logs and packet captures.
func (vm *VirtualMachine) SessionID() string {
	return vm.id
}

// Conn returns the underlying connection.
func (vm *VirtualMachine) Conn() *jdwp.Conn {
	return vm.conn
}

// Version returns the target version reported at attach.
func (vm *VirtualMachine) Version() Version {
	return vm.version
}

// Capabilities returns the capabilities reported at attach.
func (vm *VirtualMachine) Capabilities() Capabilities {
	return vm.caps
}

// Done is closed when the connection is lost.
func (vm *VirtualMachine) Done() <-chan struct{} {
	return vm.conn.Done()
}

// Err returns the connection failure, if any.
func (vm *VirtualMachine) Err() error {
	return vm.conn.Err()
}

// EventRequestManager returns the request registry.
func (vm *VirtualMachine) EventRequestManager() *EventRequestManager {
	return vm.requests
}

// EventQueue returns the queue of incoming event sets.
func (vm *VirtualMachine) EventQueue() *EventQueue {
	return vm.queue
}

// invalidateFrames marks every stack frame obtained so far as stale.
func (vm *VirtualMachine) invalidateFrames() {
	vm.resumeEpoch.Add(1)
}

// readReferenceType reads a (typeTag, typeID) pair and interns the type.
func (vm *VirtualMachine) readReferenceType(d *jdwp.Decoder) ReferenceType {
	tag := d.TypeTag()
	id := d.ReferenceTypeID()
	if d.Err() != nil {
		return nil
	}
	return vm.cache.referenceType(tag, id)
}

// AllClasses returns every loaded reference type. The list is fetched on
// every call so newly prepared classes are never missed.
func (vm *VirtualMachine) AllClasses(ctx context.Context) ([]ReferenceType, error) {
	const op = "VirtualMachine.AllClasses"
	d, err := vm.do(ctx, op, jdwp.CmdVMAllClassesWithGeneric, nil)
	if err != nil {
		return nil, err
	}

	n := d.Count()
	out := make([]ReferenceType, 0, n)
	for i := 0; i < n; i++ {
		t := vm.readReferenceType(d)
		sig := d.Text()
		generic := d.Text()
		status := d.Int32()
		if d.Err() != nil {
			break
		}
		if t == nil {
			continue
		}
		vm.cache.noteSignature(t, sig)
		t.base().noteGeneric(generic)
		t.base().noteStatus(status)
		out = append(out, t)
	}
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	return out, nil
}

// ClassesByName returns the loaded types with the given display name, e.g.
// "java.lang.String" or "int[]".
func (vm *VirtualMachine) ClassesByName(ctx context.Context, name string) ([]ReferenceType, error) {
	const op = "VirtualMachine.ClassesBySignature"
	sig := signature.FromName(name)
	d, err := vm.do(ctx, op, jdwp.CmdVMClassesBySignature, func(e *jdwp.Encoder) {
		e.Text(sig)
	})
	if err != nil {
		return nil, err
	}

	n := d.Count()
	out := make([]ReferenceType, 0, n)
	for i := 0; i < n; i++ {
		t := vm.readReferenceType(d)
		status := d.Int32()
		if d.Err() != nil {
			break
		}
		if t == nil {
			continue
		}
		vm.cache.noteSignature(t, sig)
		t.base().noteStatus(status)
		out = append(out, t)
	}
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	return out, nil
}

// AllThreads returns every live thread.
func (vm *VirtualMachine) AllThreads(ctx context.Context) ([]*ThreadReference, error) {
	const op = "VirtualMachine.AllThreads"
	d, err := vm.do(ctx, op, jdwp.CmdVMAllThreads, nil)
	if err != nil {
		return nil, err
	}
	threads := vm.readThreads(d)
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	return threads, nil
}

func (vm *VirtualMachine) readThreads(d *jdwp.Decoder) []*ThreadReference {
	n := d.Count()
	out := make([]*ThreadReference, 0, n)
	for i := 0; i < n; i++ {
		id := d.ObjectID()
		if d.Err() != nil {
			break
		}
		if t := vm.cache.thread(id); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (vm *VirtualMachine) readThreadGroups(d *jdwp.Decoder) []*ThreadGroupReference {
	n := d.Count()
	out := make([]*ThreadGroupReference, 0, n)
	for i := 0; i < n; i++ {
		id := d.ObjectID()
		if d.Err() != nil {
			break
		}
		if g := vm.cache.threadGroup(id); g != nil {
			out = append(out, g)
		}
	}
	return out
}

// TopLevelThreadGroups returns the thread groups without a parent.
func (vm *VirtualMachine) TopLevelThreadGroups(ctx context.Context) ([]*ThreadGroupReference, error) {
	const op = "VirtualMachine.TopLevelThreadGroups"
	d, err := vm.do(ctx, op, jdwp.CmdVMTopLevelThreadGroups, nil)
	if err != nil {
		return nil, err
	}
	groups := vm.readThreadGroups(d)
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	return groups, nil
}

// Suspend suspends every thread in the target.
func (vm *VirtualMachine) Suspend(ctx context.Context) error {
	_, err := vm.do(ctx, "VirtualMachine.Suspend", jdwp.CmdVMSuspend, nil)
	return err
}

// Resume resumes every thread in the target. Stack frames fetched before
// the call become invalid.
func (vm *VirtualMachine) Resume(ctx context.Context) error {
	vm.invalidateFrames()
	_, err := vm.do(ctx, "VirtualMachine.Resume", jdwp.CmdVMResume, nil)
	return err
}

// Dispose detaches from the target and closes the connection. Event
// requests are cancelled by the target.
func (vm *VirtualMachine) Dispose(ctx context.Context) error {
	_, err := vm.do(ctx, "VirtualMachine.Dispose", jdwp.CmdVMDispose, nil)
	vm.conn.Close()
	return err
}

// Exit terminates the target with the given exit code.
func (vm *VirtualMachine) Exit(ctx context.Context, code int32) error {
	_, err := vm.do(ctx, "VirtualMachine.Exit", jdwp.CmdVMExit, func(e *jdwp.Encoder) {
		e.Int32(code)
	})
	return err
}

// CreateString creates a string in the target. The string may be
// collected unless DisableCollection is called on it.
func (vm *VirtualMachine) CreateString(ctx context.Context, s string) (*StringReference, error) {
	const op = "VirtualMachine.CreateString"
	d, err := vm.do(ctx, op, jdwp.CmdVMCreateString, func(e *jdwp.Encoder) {
		e.Text(s)
	})
	if err != nil {
		return nil, err
	}
	id := d.ObjectID()
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	str, _ := vm.cache.object(jdwp.TagString, id).(*StringReference)
	return str, nil
}

// ClassPaths describes where the target loads classes from.
type ClassPaths struct {
	BaseDir        string
	ClassPaths     []string
	BootClassPaths []string
}

// ClassPaths returns the target's class paths.
func (vm *VirtualMachine) ClassPaths(ctx context.Context) (ClassPaths, error) {
	const op = "VirtualMachine.ClassPaths"
	d, err := vm.do(ctx, op, jdwp.CmdVMClassPaths, nil)
	if err != nil {
		return ClassPaths{}, err
	}
	var cp ClassPaths
	cp.BaseDir = d.Text()
	for n := d.Count(); n > 0 && d.Err() == nil; n-- {
		cp.ClassPaths = append(cp.ClassPaths, d.Text())
	}
	for n := d.Count(); n > 0 && d.Err() == nil; n-- {
		cp.BootClassPaths = append(cp.BootClassPaths, d.Text())
	}
	return cp, decodeErr(op, d)
}

// HoldEvents tells the target to queue events instead of sending them.
func (vm *VirtualMachine) HoldEvents(ctx context.Context) error {
	_, err := vm.do(ctx, "VirtualMachine.HoldEvents", jdwp.CmdVMHoldEvents, nil)
	return err
}

// ReleaseEvents resumes event delivery after HoldEvents.
func (vm *VirtualMachine) ReleaseEvents(ctx context.Context) error {
	_, err := vm.do(ctx, "VirtualMachine.ReleaseEvents", jdwp.CmdVMReleaseEvents, nil)
	return err
}

// SetDefaultStratum sets the stratum used for line information.
func (vm *VirtualMachine) SetDefaultStratum(ctx context.Context, stratum string) error {
	const op = "VirtualMachine.SetDefaultStratum"
	if !vm.caps.CanSetDefaultStratum {
		return unsupported(op, "canSetDefaultStratum")
	}
	_, err := vm.do(ctx, op, jdwp.CmdVMSetDefaultStratum, func(e *jdwp.Encoder) {
		e.Text(stratum)
	})
	return err
}

// RedefineClasses replaces the class files of the given types. Every
// redefined type is flushed together with the types that inherit from it.
func (vm *VirtualMachine) RedefineClasses(ctx context.Context, defs map[ReferenceType][]byte) error {
	const op = "VirtualMachine.RedefineClasses"
	if !vm.caps.CanRedefineClasses {
		return unsupported(op, "canRedefineClasses")
	}
	if len(defs) == 0 {
		return nil
	}

	_, err := vm.do(ctx, op, jdwp.CmdVMRedefineClasses, func(e *jdwp.Encoder) {
		e.Int32(int32(len(defs)))
		for t, classfile := range defs {
			e.ReferenceTypeID(t.ID())
			e.Blob(classfile)
		}
	})
	if err != nil {
		return err
	}

	for t := range defs {
		vm.cache.flush(t.base())
	}
	vm.invalidateFrames()
	return nil
}

// InstanceCounts returns the number of reachable instances of each type.
func (vm *VirtualMachine) InstanceCounts(ctx context.Context, types []ReferenceType) ([]int64, error) {
	const op = "VirtualMachine.InstanceCounts"
	if !vm.caps.CanGetInstanceInfo {
		return nil, unsupported(op, "canGetInstanceInfo")
	}

	d, err := vm.do(ctx, op, jdwp.CmdVMInstanceCounts, func(e *jdwp.Encoder) {
		e.Int32(int32(len(types)))
		for _, t := range types {
			e.ReferenceTypeID(t.ID())
		}
	})
	if err != nil {
		return nil, err
	}

	n := d.Count()
	counts := make([]int64, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		counts = append(counts, d.Int64())
	}
	return counts, decodeErr(op, d)
}

// Flush discards the cached metadata of t and of every type inheriting from
// it. The mirror itself stays valid.
func (vm *VirtualMachine) Flush(t ReferenceType) {
	vm.cache.flush(t.base())
}

// FlushAll discards the cached metadata of every known type.
func (vm *VirtualMachine) FlushAll() {
	vm.cache.flushAll()
}
