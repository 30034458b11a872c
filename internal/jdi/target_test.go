package jdi

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/jdwp/jdwptest"
)

type fakeField struct {
	id   jdwp.FieldID
	name string
	sig  string
	mods int32
}

type fakeLine struct {
	index int64
	line  int32
}

type fakeVar struct {
	start  int64
	length int32
	name   string
	sig    string
	slot   int32
}

type fakeMethod struct {
	id      jdwp.MethodID
	name    string
	sig     string
	mods    int32
	start   int64
	end     int64
	lines   []fakeLine
	noLines bool
	args    int32
	vars    []fakeVar
}

type fakeClass struct {
	tag     jdwp.TypeTag
	id      jdwp.ReferenceTypeID
	sig     string
	super   jdwp.ReferenceTypeID
	ifaces  []jdwp.ReferenceTypeID
	fields  []fakeField
	methods []fakeMethod
	source  string
}

// fakeJVM serves class metadata from an in-memory model.
type fakeJVM struct {
	*jdwptest.Target

	mu      sync.Mutex
	classes []*fakeClass
}

func (f *fakeJVM) add(c *fakeClass) *fakeClass {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.tag == 0 {
		c.tag = jdwp.TypeTagClass
	}
	f.classes = append(f.classes, c)
	return c
}

func (f *fakeJVM) class(id jdwp.ReferenceTypeID) *fakeClass {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.classes {
		if c.id == id {
			return c
		}
	}
	return nil
}

func (f *fakeJVM) method(class jdwp.ReferenceTypeID, id jdwp.MethodID) *fakeMethod {
	c := f.class(class)
	if c == nil {
		return nil
	}
	for i := range c.methods {
		if c.methods[i].id == id {
			return &c.methods[i]
		}
	}
	return nil
}

// newFakeVM starts a fake target, lets setup adjust it, and attaches.
func newFakeVM(t *testing.T, setup func(f *fakeJVM)) (*fakeJVM, *VirtualMachine) {
	t.Helper()
	target, conn := jdwptest.Connect(t, jdwp.DefaultIDSizes)
	f := &fakeJVM{Target: target}
	f.install()
	if setup != nil {
		setup(f)
	}
	vm, err := Attach(context.Background(), conn, DefaultConfig())
	require.NoError(t, err)
	f.ResetCounts()
	return f, vm
}

func (f *fakeJVM) install() {
	f.Handle(jdwp.CmdVMAllClassesWithGeneric, func(_ *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		f.mu.Lock()
		defer f.mu.Unlock()
		r.Int32(int32(len(f.classes)))
		for _, c := range f.classes {
			r.Byte(uint8(c.tag)).ReferenceTypeID(c.id).Text(c.sig).Text("")
			r.Int32(jdwp.ClassStatusVerified | jdwp.ClassStatusPrepared | jdwp.ClassStatusInitialized)
		}
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdVMClassesBySignature, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		sig := req.Text()
		f.mu.Lock()
		defer f.mu.Unlock()
		var match []*fakeClass
		for _, c := range f.classes {
			if c.sig == sig {
				match = append(match, c)
			}
		}
		r.Int32(int32(len(match)))
		for _, c := range match {
			r.Byte(uint8(c.tag)).ReferenceTypeID(c.id).Int32(jdwp.ClassStatusPrepared)
		}
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdRTSignatureWithGeneric, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		c := f.class(req.ReferenceTypeID())
		if c == nil {
			return jdwp.ErrInvalidClass
		}
		r.Text(c.sig).Text("")
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdRTSourceFile, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		c := f.class(req.ReferenceTypeID())
		if c == nil {
			return jdwp.ErrInvalidClass
		}
		if c.source == "" {
			return jdwp.ErrAbsentInformation
		}
		r.Text(c.source)
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdRTFieldsWithGeneric, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		c := f.class(req.ReferenceTypeID())
		if c == nil {
			return jdwp.ErrInvalidClass
		}
		r.Int32(int32(len(c.fields)))
		for _, fd := range c.fields {
			r.FieldID(fd.id).Text(fd.name).Text(fd.sig).Text("").Int32(fd.mods)
		}
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdRTMethodsWithGeneric, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		c := f.class(req.ReferenceTypeID())
		if c == nil {
			return jdwp.ErrInvalidClass
		}
		r.Int32(int32(len(c.methods)))
		for _, m := range c.methods {
			r.MethodID(m.id).Text(m.name).Text(m.sig).Text("").Int32(m.mods)
		}
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdRTInterfaces, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		c := f.class(req.ReferenceTypeID())
		if c == nil {
			return jdwp.ErrInvalidClass
		}
		r.Int32(int32(len(c.ifaces)))
		for _, id := range c.ifaces {
			r.ReferenceTypeID(id)
		}
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdCTSuperclass, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		c := f.class(req.ReferenceTypeID())
		if c == nil {
			return jdwp.ErrInvalidClass
		}
		r.ReferenceTypeID(c.super)
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdMLineTable, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		class := req.ReferenceTypeID()
		m := f.method(class, req.MethodID())
		switch {
		case m == nil:
			return jdwp.ErrInvalidMethodID
		case m.noLines:
			return jdwp.ErrAbsentInformation
		}
		r.Int64(m.start).Int64(m.end).Int32(int32(len(m.lines)))
		for _, l := range m.lines {
			r.Int64(l.index).Int32(l.line)
		}
		return jdwp.ErrNone
	})
	f.Handle(jdwp.CmdMVariableTableWithGeneric, func(req *jdwp.Decoder, r *jdwp.Encoder) jdwp.ErrorCode {
		class := req.ReferenceTypeID()
		m := f.method(class, req.MethodID())
		switch {
		case m == nil:
			return jdwp.ErrInvalidMethodID
		case m.vars == nil:
			return jdwp.ErrAbsentInformation
		}
		r.Int32(m.args).Int32(int32(len(m.vars)))
		for _, v := range m.vars {
			r.Int64(v.start).Text(v.name).Text(v.sig).Text("").Int32(v.length).Int32(v.slot)
		}
		return jdwp.ErrNone
	})
}

// sendEvents sends one composite packet and fails the test on error.
func (f *fakeJVM) sendEvents(t *testing.T, policy jdwp.SuspendPolicy, events ...jdwptest.Event) {
	t.Helper()
	require.NoError(t, f.SendComposite(policy, events...))
}

func vmDeath() jdwptest.Event {
	return jdwptest.Event{Kind: jdwp.EventVMDeath}
}

func threadStart(thread jdwp.ObjectID) jdwptest.Event {
	return jdwptest.Event{Kind: jdwp.EventThreadStart, Payload: func(e *jdwp.Encoder) {
		e.ObjectID(thread)
	}}
}

func breakpointHit(reqID int32, thread jdwp.ObjectID, loc jdwp.Location) jdwptest.Event {
	return jdwptest.Event{Kind: jdwp.EventBreakpoint, RequestID: reqID, Payload: func(e *jdwp.Encoder) {
		e.ObjectID(thread).Location(loc)
	}}
}
