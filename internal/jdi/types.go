package jdi

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/signature"
)

// Type is the type of a value: a PrimitiveType or a ReferenceType.
type Type interface {
	Signature(ctx context.Context) (string, error)
	Name(ctx context.Context) (string, error)
}

// PrimitiveType is one of the nine primitive types, including void. It is
// stateless and compared by value.
type PrimitiveType struct {
	tag jdwp.Tag
}

// PrimitiveTypeOf returns the primitive type of a one-character signature.
func PrimitiveTypeOf(sig string) (PrimitiveType, bool) {
	if !signature.IsPrimitive(sig) {
		return PrimitiveType{}, false
	}
	return PrimitiveType{tag: jdwp.Tag(sig[0])}, true
}

// Tag returns the value tag of the type.
func (p PrimitiveType) Tag() jdwp.Tag { return p.tag }

// Signature returns the one-character signature.
func (p PrimitiveType) Signature(context.Context) (string, error) {
	return string(rune(p.tag)), nil
}

// Name returns the Java keyword, e.g. "int".
func (p PrimitiveType) Name(context.Context) (string, error) {
	return signature.ToName(string(rune(p.tag))), nil
}

func (p PrimitiveType) String() string {
	return signature.ToName(string(rune(p.tag)))
}

// Modifiers are access flags as reported by the target.
type Modifiers int32

// Access flag bits.
const (
	ModPublic    Modifiers = 0x0001
	ModPrivate   Modifiers = 0x0002
	ModProtected Modifiers = 0x0004
	ModStatic    Modifiers = 0x0008
	ModFinal     Modifiers = 0x0010
	ModVolatile  Modifiers = 0x0040
	ModTransient Modifiers = 0x0080
	ModNative    Modifiers = 0x0100
	ModInterface Modifiers = 0x0200
	ModAbstract  Modifiers = 0x0400
	ModSynthetic = ^Modifiers(0x0fffffff) // 0xf0000000
)

func (m Modifiers) IsPublic() bool    { return m&ModPublic != 0 }
func (m Modifiers) IsPrivate() bool   { return m&ModPrivate != 0 }
func (m Modifiers) IsProtected() bool { return m&ModProtected != 0 }
func (m Modifiers) IsStatic() bool    { return m&ModStatic != 0 }
func (m Modifiers) IsFinal() bool     { return m&ModFinal != 0 }
func (m Modifiers) IsNative() bool    { return m&ModNative != 0 }
func (m Modifiers) IsAbstract() bool  { return m&ModAbstract != 0 }
func (m Modifiers) IsSynthetic() bool { return m&ModSynthetic != 0 }

// IsPackagePrivate reports whether no access modifier is set.
func (m Modifiers) IsPackagePrivate() bool {
	return m&(ModPublic|ModPrivate|ModProtected) == 0
}

// ReferenceType is a class, interface or array type loaded in the target.
// Each is interned: one id always yields the same pointer.
type ReferenceType interface {
	Type

	ID() jdwp.ReferenceTypeID
	TypeTag() jdwp.TypeTag
	VirtualMachine() *VirtualMachine

	GenericSignature(ctx context.Context) (string, error)
	Modifiers(ctx context.Context) (Modifiers, error)
	ClassLoader(ctx context.Context) (*ClassLoaderReference, error)
	SourceName(ctx context.Context) (string, error)
	SourceDebugExtension(ctx context.Context) (string, error)
	Status(ctx context.Context) (int32, error)
	IsVerified(ctx context.Context) (bool, error)
	IsPrepared(ctx context.Context) (bool, error)
	IsInitialized(ctx context.Context) (bool, error)
	IsError(ctx context.Context) (bool, error)

	Fields(ctx context.Context) ([]*Field, error)
	AllFields(ctx context.Context) ([]*Field, error)
	VisibleFields(ctx context.Context) ([]*Field, error)
	FieldByName(ctx context.Context, name string) (*Field, error)

	Methods(ctx context.Context) ([]*Method, error)
	AllMethods(ctx context.Context) ([]*Method, error)
	VisibleMethods(ctx context.Context) ([]*Method, error)
	MethodsByName(ctx context.Context, name string) ([]*Method, error)
	MethodsByNameAndSignature(ctx context.Context, name, sig string) ([]*Method, error)

	Interfaces(ctx context.Context) ([]*InterfaceType, error)
	AllInterfaces(ctx context.Context) ([]*InterfaceType, error)
	NestedTypes(ctx context.Context) ([]ReferenceType, error)

	GetValue(ctx context.Context, f *Field) (Value, error)
	GetValues(ctx context.Context, fields []*Field) (map[*Field]Value, error)

	AllLineLocations(ctx context.Context) ([]Location, error)
	LocationsOfLine(ctx context.Context, line int) ([]Location, error)

	ClassObject(ctx context.Context) (*ClassObjectReference, error)
	Instances(ctx context.Context, limit int32) ([]Reference, error)

	base() *refType
}

// refType holds the state shared by all reference types. Declared data is
// fetched from the target; derived data is computed from supertypes and
// cleared whenever a supertype is flushed.
type refType struct {
	vm   *VirtualMachine
	tag  jdwp.TypeTag
	id   jdwp.ReferenceTypeID
	self ReferenceType

	// registered lists the parent ids under which t appears in the
	// dependents index. Guarded by the cache mutex.
	registered []jdwp.ReferenceTypeID

	mu sync.Mutex

	signature    string
	sigKnown     bool
	generic      string
	genericKnown bool
	status       int32
	statusKnown  bool

	modifiers   Modifiers
	modsKnown   bool
	loader      *ClassLoaderReference
	loaderKnown bool
	source      *sourceInfo
	sde         *sourceInfo
	fields      []*Field
	methods     []*Method
	interfaces  []*InterfaceType
	ifaceKnown  bool
	superclass  *ClassType
	superKnown  bool
	nested      []ReferenceType
	nestedKnown bool
	classObject *ClassObjectReference

	allFields      []*Field
	visibleFields  []*Field
	allMethods     []*Method
	visibleMethods []*Method
	allIfaces      []*InterfaceType
	allIfaceKnown  bool
}

// sourceInfo caches a string attribute that may be absent.
type sourceInfo struct {
	value string
	err   error
}

func (t *refType) init(vm *VirtualMachine, tag jdwp.TypeTag, id jdwp.ReferenceTypeID, self ReferenceType) {
	t.vm = vm
	t.tag = tag
	t.id = id
	t.self = self
}

func (t *refType) base() *refType { return t }

// clearDeclared drops everything fetched about the type itself. The
// signature and class object survive since they cannot change.
func (t *refType) clearDeclared() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.genericKnown = false
	t.modsKnown = false
	t.loaderKnown = false
	t.source = nil
	t.sde = nil
	t.fields = nil
	t.methods = nil
	t.interfaces, t.ifaceKnown = nil, false
	t.superclass, t.superKnown = nil, false
	t.nested, t.nestedKnown = nil, false
}

// clearDerived drops the closures computed from supertypes.
func (t *refType) clearDerived() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allFields = nil
	t.visibleFields = nil
	t.allMethods = nil
	t.visibleMethods = nil
	t.allIfaces, t.allIfaceKnown = nil, false
}

// noteStatus caches a terminal class status.
func (t *refType) noteStatus(status int32) {
	if status&(jdwp.ClassStatusInitialized|jdwp.ClassStatusError) == 0 {
		return
	}
	t.mu.Lock()
	t.status, t.statusKnown = status, true
	t.mu.Unlock()
}

func (t *refType) noteGeneric(generic string) {
	t.mu.Lock()
	t.generic, t.genericKnown = generic, true
	t.mu.Unlock()
}

// cached returns the value reported by get, or fetches it, deduplicating
// concurrent fetches, and stores it with set unless the cache was flushed
// in the meantime. set runs with both the cache and the type locked.
func cached[T any](ctx context.Context, t *refType, what string, get func() (T, bool), fetch func(context.Context) (T, error), set func(T)) (T, error) {
	t.mu.Lock()
	v, ok := get()
	t.mu.Unlock()
	if ok {
		return v, nil
	}

	epoch := t.vm.cache.currentEpoch()
	key := fmt.Sprintf("%s/%d/%d/%d", what, t.tag, t.id, epoch)
	res, err, _ := t.vm.flights.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		t.vm.cache.store(epoch, func() {
			t.mu.Lock()
			set(v)
			t.mu.Unlock()
		})
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// ID returns the reference type id.
func (t *refType) ID() jdwp.ReferenceTypeID { return t.id }

// TypeTag returns the kind of type.
func (t *refType) TypeTag() jdwp.TypeTag { return t.tag }

// VirtualMachine returns the owning VM.
func (t *refType) VirtualMachine() *VirtualMachine { return t.vm }

func (t *refType) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sigKnown {
		return signature.ToName(t.signature)
	}
	return fmt.Sprintf("%s#%d", t.tag, t.id)
}

// Signature returns the JNI signature, e.g. "Ljava/lang/String;".
func (t *refType) Signature(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.sigKnown {
		sig := t.signature
		t.mu.Unlock()
		return sig, nil
	}
	t.mu.Unlock()

	if err := t.fetchSignatures(ctx); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.signature, nil
}

// Name returns the display name, e.g. "java.lang.String".
func (t *refType) Name(ctx context.Context) (string, error) {
	sig, err := t.Signature(ctx)
	if err != nil {
		return "", err
	}
	return signature.ToName(sig), nil
}

// GenericSignature returns the generic signature, or "" when there is none.
func (t *refType) GenericSignature(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.genericKnown {
		g := t.generic
		t.mu.Unlock()
		return g, nil
	}
	t.mu.Unlock()

	if err := t.fetchSignatures(ctx); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generic, nil
}

func (t *refType) fetchSignatures(ctx context.Context) error {
	const op = "ReferenceType.SignatureWithGeneric"
	key := fmt.Sprintf("sig/%d/%d", t.tag, t.id)
	_, err, _ := t.vm.flights.Do(key, func() (any, error) {
		d, err := t.vm.do(ctx, op, jdwp.CmdRTSignatureWithGeneric, func(e *jdwp.Encoder) {
			e.ReferenceTypeID(t.id)
		})
		if err != nil {
			return nil, err
		}
		sig := d.Text()
		generic := d.Text()
		if err := decodeErr(op, d); err != nil {
			return nil, err
		}
		t.vm.cache.noteSignature(t.self, sig)
		t.noteGeneric(generic)
		return nil, nil
	})
	return err
}

// Modifiers returns the access flags of the type.
func (t *refType) Modifiers(ctx context.Context) (Modifiers, error) {
	return cached(ctx, t, "mods",
		func() (Modifiers, bool) { return t.modifiers, t.modsKnown },
		func(ctx context.Context) (Modifiers, error) {
			const op = "ReferenceType.Modifiers"
			d, err := t.vm.do(ctx, op, jdwp.CmdRTModifiers, func(e *jdwp.Encoder) {
				e.ReferenceTypeID(t.id)
			})
			if err != nil {
				return 0, err
			}
			m := Modifiers(d.Int32())
			return m, decodeErr(op, d)
		},
		func(m Modifiers) { t.modifiers, t.modsKnown = m, true })
}

// ClassLoader returns the defining loader, or nil for the bootstrap loader.
func (t *refType) ClassLoader(ctx context.Context) (*ClassLoaderReference, error) {
	return cached(ctx, t, "loader",
		func() (*ClassLoaderReference, bool) { return t.loader, t.loaderKnown },
		func(ctx context.Context) (*ClassLoaderReference, error) {
			const op = "ReferenceType.ClassLoader"
			d, err := t.vm.do(ctx, op, jdwp.CmdRTClassLoader, func(e *jdwp.Encoder) {
				e.ReferenceTypeID(t.id)
			})
			if err != nil {
				return nil, err
			}
			id := d.ObjectID()
			if err := decodeErr(op, d); err != nil {
				return nil, err
			}
			return t.vm.cache.classLoader(id), nil
		},
		func(l *ClassLoaderReference) { t.loader, t.loaderKnown = l, true })
}

// attribute fetches a string attribute whose absence is itself cached.
func (t *refType) attribute(ctx context.Context, what string, op string, cmd jdwp.Command, slot **sourceInfo) (string, error) {
	info, err := cached(ctx, t, what,
		func() (*sourceInfo, bool) { return *slot, *slot != nil },
		func(ctx context.Context) (*sourceInfo, error) {
			d, err := t.vm.do(ctx, op, cmd, func(e *jdwp.Encoder) {
				e.ReferenceTypeID(t.id)
			})
			if err != nil {
				if isKind(err, ErrAbsentInformation) {
					return &sourceInfo{err: err}, nil
				}
				return nil, err
			}
			s := d.Text()
			return &sourceInfo{value: s}, decodeErr(op, d)
		},
		func(info *sourceInfo) { *slot = info })
	if err != nil {
		return "", err
	}
	return info.value, info.err
}

// SourceName returns the source file name attribute.
func (t *refType) SourceName(ctx context.Context) (string, error) {
	return t.attribute(ctx, "source", "ReferenceType.SourceFile", jdwp.CmdRTSourceFile, &t.source)
}

// SourceDebugExtension returns the SourceDebugExtension attribute.
func (t *refType) SourceDebugExtension(ctx context.Context) (string, error) {
	const op = "ReferenceType.SourceDebugExtension"
	if !t.vm.caps.CanGetSourceDebugExtension {
		return "", unsupported(op, "canGetSourceDebugExtension")
	}
	return t.attribute(ctx, "sde", op, jdwp.CmdRTSourceDebugExtension, &t.sde)
}

// Status returns the class status bits. Only terminal states are cached.
func (t *refType) Status(ctx context.Context) (int32, error) {
	t.mu.Lock()
	if t.statusKnown {
		s := t.status
		t.mu.Unlock()
		return s, nil
	}
	t.mu.Unlock()

	const op = "ReferenceType.Status"
	d, err := t.vm.do(ctx, op, jdwp.CmdRTStatus, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(t.id)
	})
	if err != nil {
		return 0, err
	}
	status := d.Int32()
	if err := decodeErr(op, d); err != nil {
		return 0, err
	}
	t.noteStatus(status)
	return status, nil
}

// IsVerified reports whether the type has been verified.
func (t *refType) IsVerified(ctx context.Context) (bool, error) {
	s, err := t.Status(ctx)
	return s&jdwp.ClassStatusVerified != 0, err
}

// IsPrepared reports whether the type has been prepared.
func (t *refType) IsPrepared(ctx context.Context) (bool, error) {
	s, err := t.Status(ctx)
	return s&jdwp.ClassStatusPrepared != 0, err
}

// IsInitialized reports whether static initialization has completed.
func (t *refType) IsInitialized(ctx context.Context) (bool, error) {
	s, err := t.Status(ctx)
	return s&jdwp.ClassStatusInitialized != 0, err
}

// IsError reports whether initialization failed.
func (t *refType) IsError(ctx context.Context) (bool, error) {
	s, err := t.Status(ctx)
	return s&jdwp.ClassStatusError != 0, err
}

// Fields returns the declared fields in declaration order.
func (t *refType) Fields(ctx context.Context) ([]*Field, error) {
	return cached(ctx, t, "fields",
		func() ([]*Field, bool) { return t.fields, t.fields != nil },
		func(ctx context.Context) ([]*Field, error) {
			const op = "ReferenceType.FieldsWithGeneric"
			d, err := t.vm.do(ctx, op, jdwp.CmdRTFieldsWithGeneric, func(e *jdwp.Encoder) {
				e.ReferenceTypeID(t.id)
			})
			if err != nil {
				return nil, err
			}
			n := d.Count()
			fields := make([]*Field, 0, n)
			for i := 0; i < n && d.Err() == nil; i++ {
				fields = append(fields, &Field{
					declaring: t.self,
					id:        d.FieldID(),
					name:      d.Text(),
					sig:       d.Text(),
					generic:   d.Text(),
					mods:      Modifiers(d.Int32()),
					index:     i,
				})
			}
			return fields, decodeErr(op, d)
		},
		func(f []*Field) { t.fields = f })
}

// Methods returns the declared methods in declaration order.
func (t *refType) Methods(ctx context.Context) ([]*Method, error) {
	return cached(ctx, t, "methods",
		func() ([]*Method, bool) { return t.methods, t.methods != nil },
		func(ctx context.Context) ([]*Method, error) {
			const op = "ReferenceType.MethodsWithGeneric"
			d, err := t.vm.do(ctx, op, jdwp.CmdRTMethodsWithGeneric, func(e *jdwp.Encoder) {
				e.ReferenceTypeID(t.id)
			})
			if err != nil {
				return nil, err
			}
			n := d.Count()
			methods := make([]*Method, 0, n)
			for i := 0; i < n && d.Err() == nil; i++ {
				methods = append(methods, &Method{
					declaring: t.self,
					id:        d.MethodID(),
					name:      d.Text(),
					sig:       d.Text(),
					generic:   d.Text(),
					mods:      Modifiers(d.Int32()),
					index:     i,
				})
			}
			return methods, decodeErr(op, d)
		},
		func(m []*Method) { t.methods = m })
}

// methodByID finds a declared method. Obsolete methods are not found.
func (t *refType) methodByID(ctx context.Context, id jdwp.MethodID) (*Method, error) {
	methods, err := t.Methods(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		if m.id == id {
			return m, nil
		}
	}
	return nil, newError("ReferenceType.Method", ErrInvalidReference, "method %d not declared by %s", id, t)
}

func (t *refType) fieldByID(ctx context.Context, id jdwp.FieldID) (*Field, error) {
	fields, err := t.AllFields(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if f.id == id {
			return f, nil
		}
	}
	return nil, newError("ReferenceType.Field", ErrInvalidReference, "field %d not visible in %s", id, t)
}

// Interfaces returns the directly implemented (or extended) interfaces.
func (t *refType) Interfaces(ctx context.Context) ([]*InterfaceType, error) {
	return cached(ctx, t, "ifaces",
		func() ([]*InterfaceType, bool) { return t.interfaces, t.ifaceKnown },
		func(ctx context.Context) ([]*InterfaceType, error) {
			const op = "ReferenceType.Interfaces"
			d, err := t.vm.do(ctx, op, jdwp.CmdRTInterfaces, func(e *jdwp.Encoder) {
				e.ReferenceTypeID(t.id)
			})
			if err != nil {
				return nil, err
			}
			n := d.Count()
			out := make([]*InterfaceType, 0, n)
			for i := 0; i < n && d.Err() == nil; i++ {
				if it := t.vm.cache.interfaceType(d.ReferenceTypeID()); it != nil {
					out = append(out, it)
				}
			}
			return out, decodeErr(op, d)
		},
		func(ifaces []*InterfaceType) {
			t.interfaces, t.ifaceKnown = ifaces, true
			for _, it := range ifaces {
				t.vm.cache.addDependentLocked(it.id, t)
			}
		})
}

// NestedTypes returns the types declared inside this one.
func (t *refType) NestedTypes(ctx context.Context) ([]ReferenceType, error) {
	return cached(ctx, t, "nested",
		func() ([]ReferenceType, bool) { return t.nested, t.nestedKnown },
		func(ctx context.Context) ([]ReferenceType, error) {
			const op = "ReferenceType.NestedTypes"
			d, err := t.vm.do(ctx, op, jdwp.CmdRTNestedTypes, func(e *jdwp.Encoder) {
				e.ReferenceTypeID(t.id)
			})
			if err != nil {
				return nil, err
			}
			n := d.Count()
			out := make([]ReferenceType, 0, n)
			for i := 0; i < n && d.Err() == nil; i++ {
				if nt := t.vm.readReferenceType(d); nt != nil {
					out = append(out, nt)
				}
			}
			return out, decodeErr(op, d)
		},
		func(nested []ReferenceType) { t.nested, t.nestedKnown = nested, true })
}

// ClassObject returns the java.lang.Class instance mirroring the type.
func (t *refType) ClassObject(ctx context.Context) (*ClassObjectReference, error) {
	t.mu.Lock()
	if t.classObject != nil {
		c := t.classObject
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	const op = "ReferenceType.ClassObject"
	d, err := t.vm.do(ctx, op, jdwp.CmdRTClassObject, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(t.id)
	})
	if err != nil {
		return nil, err
	}
	id := d.ObjectID()
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	c, _ := t.vm.cache.object(jdwp.TagClassObject, id).(*ClassObjectReference)

	t.mu.Lock()
	t.classObject = c
	t.mu.Unlock()
	return c, nil
}

// Instances returns up to limit live instances; zero means all.
func (t *refType) Instances(ctx context.Context, limit int32) ([]Reference, error) {
	const op = "ReferenceType.Instances"
	if !t.vm.caps.CanGetInstanceInfo {
		return nil, unsupported(op, "canGetInstanceInfo")
	}
	if limit < 0 {
		return nil, newError(op, ErrInvalidArgument, "negative instance limit %d", limit)
	}
	d, err := t.vm.do(ctx, op, jdwp.CmdRTInstances, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(t.id).Int32(limit)
	})
	if err != nil {
		return nil, err
	}
	out := t.vm.readTaggedObjects(d)
	return out, decodeErr(op, d)
}

// ClassFileVersion returns the major and minor class file version.
func (t *refType) ClassFileVersion(ctx context.Context) (major, minor int32, err error) {
	const op = "ReferenceType.ClassFileVersion"
	d, err := t.vm.do(ctx, op, jdwp.CmdRTClassFileVersion, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(t.id)
	})
	if err != nil {
		return 0, 0, err
	}
	major, minor = d.Int32(), d.Int32()
	return major, minor, decodeErr(op, d)
}

// GetValue returns the value of a static field.
func (t *refType) GetValue(ctx context.Context, f *Field) (Value, error) {
	values, err := t.GetValues(ctx, []*Field{f})
	if err != nil {
		return nil, err
	}
	return values[f], nil
}

// GetValues returns the values of static fields visible from the type.
func (t *refType) GetValues(ctx context.Context, fields []*Field) (map[*Field]Value, error) {
	const op = "ReferenceType.GetValues"
	for _, f := range fields {
		if !f.mods.IsStatic() {
			return nil, newError(op, ErrInvalidArgument, "field %s is not static", f.name)
		}
	}
	d, err := t.vm.do(ctx, op, jdwp.CmdRTGetValues, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(t.id).Int32(int32(len(fields)))
		for _, f := range fields {
			e.FieldID(f.id)
		}
	})
	if err != nil {
		return nil, err
	}
	return t.vm.readFieldValues(op, d, fields)
}

// AllLineLocations returns a location for every line table entry of every
// declared method with code.
func (t *refType) AllLineLocations(ctx context.Context) ([]Location, error) {
	methods, err := t.Methods(ctx)
	if err != nil {
		return nil, err
	}
	var out []Location
	found := false
	for _, m := range methods {
		locs, err := m.AllLineLocations(ctx)
		if isKind(err, ErrAbsentInformation) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		out = append(out, locs...)
	}
	if !found && len(methods) > 0 {
		return nil, newError("ReferenceType.AllLineLocations", ErrAbsentInformation, "no line tables in %s", t)
	}
	return out, nil
}

// LocationsOfLine returns the code positions of a source line in the
// declared methods.
func (t *refType) LocationsOfLine(ctx context.Context, line int) ([]Location, error) {
	methods, err := t.Methods(ctx)
	if err != nil {
		return nil, err
	}
	var out []Location
	found := false
	for _, m := range methods {
		locs, err := m.LocationsOfLine(ctx, line)
		if isKind(err, ErrAbsentInformation) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		out = append(out, locs...)
	}
	if !found && len(methods) > 0 {
		return nil, newError("ReferenceType.LocationsOfLine", ErrAbsentInformation, "no line tables in %s", t)
	}
	return out, nil
}

// AllInterfaces returns every interface the type implements, directly or
// through superinterfaces and superclasses, without duplicates.
func (t *refType) AllInterfaces(ctx context.Context) ([]*InterfaceType, error) {
	return cached(ctx, t, "allifaces",
		func() ([]*InterfaceType, bool) { return t.allIfaces, t.allIfaceKnown },
		func(ctx context.Context) ([]*InterfaceType, error) {
			var out []*InterfaceType
			seen := make(map[*InterfaceType]bool)
			add := func(list []*InterfaceType) {
				for _, it := range list {
					if !seen[it] {
						seen[it] = true
						out = append(out, it)
					}
				}
			}
			direct, err := t.Interfaces(ctx)
			if err != nil {
				return nil, err
			}
			add(direct)
			for _, it := range direct {
				sub, err := it.AllInterfaces(ctx)
				if err != nil {
					return nil, err
				}
				add(sub)
			}
			sup, err := t.superType(ctx)
			if err != nil {
				return nil, err
			}
			if sup != nil {
				inherited, err := sup.AllInterfaces(ctx)
				if err != nil {
					return nil, err
				}
				add(inherited)
			}
			return out, nil
		},
		func(ifaces []*InterfaceType) { t.allIfaces, t.allIfaceKnown = ifaces, true })
}

// supertypes returns the declared interfaces followed by the superclass,
// in closure order.
func (t *refType) supertypes(ctx context.Context) ([]ReferenceType, error) {
	ifaces, err := t.Interfaces(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ReferenceType, 0, len(ifaces)+1)
	for _, it := range ifaces {
		out = append(out, it)
	}
	sup, err := t.superType(ctx)
	if err != nil {
		return nil, err
	}
	if sup != nil {
		out = append(out, sup)
	}
	return out, nil
}

// superType returns the superclass for class types and nil otherwise.
// Arrays report no superclass here; their members come from Object via
// the target's own replies.
func (t *refType) superType(ctx context.Context) (*ClassType, error) {
	if ct, ok := t.self.(*ClassType); ok {
		return ct.Superclass(ctx)
	}
	return nil, nil
}

// AllFields returns declared fields followed by inherited ones, each field
// once.
func (t *refType) AllFields(ctx context.Context) ([]*Field, error) {
	return cached(ctx, t, "allfields",
		func() ([]*Field, bool) { return t.allFields, t.allFields != nil },
		func(ctx context.Context) ([]*Field, error) {
			return closure(ctx, t, (*refType).Fields, ReferenceType.AllFields)
		},
		func(f []*Field) { t.allFields = f })
}

// VisibleFields returns the fields not hidden by a field of the same name
// declared closer to the type.
func (t *refType) VisibleFields(ctx context.Context) ([]*Field, error) {
	return cached(ctx, t, "visfields",
		func() ([]*Field, bool) { return t.visibleFields, t.visibleFields != nil },
		func(ctx context.Context) ([]*Field, error) {
			all, err := t.AllFields(ctx)
			if err != nil {
				return nil, err
			}
			return firstBy(all, func(f *Field) string { return f.name }), nil
		},
		func(f []*Field) { t.visibleFields = f })
}

// FieldByName returns the visible field with the given name, or nil.
func (t *refType) FieldByName(ctx context.Context, name string) (*Field, error) {
	fields, err := t.VisibleFields(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if f.name == name {
			return f, nil
		}
	}
	return nil, nil
}

// AllMethods returns declared methods followed by inherited ones.
func (t *refType) AllMethods(ctx context.Context) ([]*Method, error) {
	return cached(ctx, t, "allmethods",
		func() ([]*Method, bool) { return t.allMethods, t.allMethods != nil },
		func(ctx context.Context) ([]*Method, error) {
			return closure(ctx, t, (*refType).Methods, ReferenceType.AllMethods)
		},
		func(m []*Method) { t.allMethods = m })
}

// VisibleMethods returns the methods not overridden by a method with the
// same name and signature declared closer to the type.
func (t *refType) VisibleMethods(ctx context.Context) ([]*Method, error) {
	return cached(ctx, t, "vismethods",
		func() ([]*Method, bool) { return t.visibleMethods, t.visibleMethods != nil },
		func(ctx context.Context) ([]*Method, error) {
			all, err := t.AllMethods(ctx)
			if err != nil {
				return nil, err
			}
			return firstBy(all, func(m *Method) string { return m.name + m.sig }), nil
		},
		func(m []*Method) { t.visibleMethods = m })
}

// MethodsByName returns the visible methods with the given name.
func (t *refType) MethodsByName(ctx context.Context, name string) ([]*Method, error) {
	methods, err := t.VisibleMethods(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Method
	for _, m := range methods {
		if m.name == name {
			out = append(out, m)
		}
	}
	return out, nil
}

// MethodsByNameAndSignature returns the visible methods matching both.
func (t *refType) MethodsByNameAndSignature(ctx context.Context, name, sig string) ([]*Method, error) {
	methods, err := t.MethodsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	var out []*Method
	for _, m := range methods {
		if m.sig == sig {
			out = append(out, m)
		}
	}
	return out, nil
}

// closure concatenates t's own members, each declared interface's closure,
// then the superclass closure, dropping repeats.
func closure[M comparable](ctx context.Context, t *refType, own func(*refType, context.Context) ([]M, error), inherited func(ReferenceType, context.Context) ([]M, error)) ([]M, error) {
	declared, err := own(t, ctx)
	if err != nil {
		return nil, err
	}
	out := make([]M, 0, len(declared))
	out = append(out, declared...)
	seen := make(map[M]bool, len(out))
	for _, m := range out {
		seen[m] = true
	}

	supers, err := t.supertypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range supers {
		members, err := inherited(st, ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// firstBy keeps the first member for each key.
func firstBy[M any](all []M, key func(M) string) []M {
	seen := make(map[string]bool, len(all))
	out := make([]M, 0, len(all))
	for _, m := range all {
		k := key(m)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	return out
}

// ClassType mirrors a class.
type ClassType struct {
	refType
}

// Superclass returns the superclass, or nil for java.lang.Object.
func (c *ClassType) Superclass(ctx context.Context) (*ClassType, error) {
	return cached(ctx, &c.refType, "super",
		func() (*ClassType, bool) { return c.superclass, c.superKnown },
		func(ctx context.Context) (*ClassType, error) {
			const op = "ClassType.Superclass"
			d, err := c.vm.do(ctx, op, jdwp.CmdCTSuperclass, func(e *jdwp.Encoder) {
				e.ReferenceTypeID(c.id)
			})
			if err != nil {
				return nil, err
			}
			id := d.ReferenceTypeID()
			if err := decodeErr(op, d); err != nil {
				return nil, err
			}
			return c.vm.cache.classType(id), nil
		},
		func(sup *ClassType) {
			c.superclass, c.superKnown = sup, true
			if sup != nil {
				c.vm.cache.addDependentLocked(sup.id, &c.refType)
			}
		})
}

// Subclasses returns the loaded classes whose direct superclass is c. The
// list is computed from AllClasses on each call.
func (c *ClassType) Subclasses(ctx context.Context) ([]*ClassType, error) {
	all, err := c.vm.AllClasses(ctx)
	if err != nil {
		return nil, err
	}
	var out []*ClassType
	for _, t := range all {
		ct, ok := t.(*ClassType)
		if !ok || ct == c {
			continue
		}
		sup, err := ct.Superclass(ctx)
		if err != nil {
			if isKind(err, ErrInvalidReference) {
				continue
			}
			return nil, err
		}
		if sup == c {
			out = append(out, ct)
		}
	}
	return out, nil
}

// IsEnum reports whether the class directly extends java.lang.Enum.
func (c *ClassType) IsEnum(ctx context.Context) (bool, error) {
	sup, err := c.Superclass(ctx)
	if err != nil || sup == nil {
		return false, err
	}
	sig, err := sup.Signature(ctx)
	return sig == "Ljava/lang/Enum;", err
}

// ConcreteMethodByName returns the non-abstract method with the given name
// and signature that an invocation on an instance of c would run, or nil.
func (c *ClassType) ConcreteMethodByName(ctx context.Context, name, sig string) (*Method, error) {
	for ct := c; ct != nil; {
		methods, err := ct.Methods(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range methods {
			if m.name == name && m.sig == sig && !m.mods.IsAbstract() {
				return m, nil
			}
		}
		if ct, err = ct.Superclass(ctx); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// LocationsOfLine searches the class's own methods and falls back to the
// superclass when nothing matches.
func (c *ClassType) LocationsOfLine(ctx context.Context, line int) ([]Location, error) {
	locs, err := c.refType.LocationsOfLine(ctx, line)
	if err != nil || len(locs) > 0 {
		return locs, err
	}
	sup, err := c.Superclass(ctx)
	if err != nil || sup == nil {
		return nil, err
	}
	return sup.LocationsOfLine(ctx, line)
}

// SetValue assigns a static field, converting primitives to the field type.
func (c *ClassType) SetValue(ctx context.Context, f *Field, v Value) error {
	const op = "ClassType.SetValues"
	if !f.mods.IsStatic() {
		return newError(op, ErrInvalidArgument, "field %s is not static", f.name)
	}
	raw, err := coerce(f.sig, v)
	if err != nil {
		return &Error{Op: op, Kind: ErrTypeMismatch, Err: err}
	}
	_, err = c.vm.do(ctx, op, jdwp.CmdCTSetValues, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(c.id).Int32(1).FieldID(f.id).UntaggedValue(raw)
	})
	return err
}

// InvokeMethod runs a static method of c on thread, which must be
// suspended by an event.
func (c *ClassType) InvokeMethod(ctx context.Context, thread *ThreadReference, m *Method, args []Value, options int32) (Value, error) {
	const op = "ClassType.InvokeMethod"
	if !m.mods.IsStatic() {
		return nil, newError(op, ErrInvalidArgument, "method %s is not static", m.name)
	}
	raw, err := coerceArguments(op, m, args)
	if err != nil {
		return nil, err
	}
	return c.vm.invoke(ctx, op, jdwp.CmdCTInvokeMethod, thread, options, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(c.id).ObjectID(thread.id).MethodID(m.id)
		encodeArguments(e, raw)
		e.Int32(options)
	})
}

// NewInstance constructs an object of c with the given constructor.
func (c *ClassType) NewInstance(ctx context.Context, thread *ThreadReference, ctor *Method, args []Value, options int32) (*ObjectReference, error) {
	const op = "ClassType.NewInstance"
	if !ctor.IsConstructor() {
		return nil, newError(op, ErrInvalidArgument, "method %s is not a constructor", ctor.name)
	}
	if ctor.declaring != ReferenceType(c) {
		return nil, newError(op, ErrInvalidArgument, "constructor is not declared by %s", c)
	}
	raw, err := coerceArguments(op, ctor, args)
	if err != nil {
		return nil, err
	}

	v, err := c.vm.invoke(ctx, op, jdwp.CmdCTNewInstance, thread, options, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(c.id).ObjectID(thread.id).MethodID(ctor.id)
		encodeArguments(e, raw)
		e.Int32(options)
	})
	if err != nil {
		return nil, err
	}
	obj, ok := v.(Reference)
	if !ok || obj == nil {
		return nil, newError(op, nil, "target returned no object")
	}
	return obj.base(), nil
}

// InterfaceType mirrors an interface.
type InterfaceType struct {
	refType
}

// Superinterfaces returns the directly extended interfaces.
func (i *InterfaceType) Superinterfaces(ctx context.Context) ([]*InterfaceType, error) {
	return i.Interfaces(ctx)
}

// Subinterfaces returns the loaded interfaces directly extending i.
func (i *InterfaceType) Subinterfaces(ctx context.Context) ([]*InterfaceType, error) {
	all, err := i.vm.AllClasses(ctx)
	if err != nil {
		return nil, err
	}
	var out []*InterfaceType
	for _, t := range all {
		it, ok := t.(*InterfaceType)
		if !ok || it == i {
			continue
		}
		ok, err := declares(ctx, it, i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// Implementors returns the loaded classes directly implementing i.
func (i *InterfaceType) Implementors(ctx context.Context) ([]*ClassType, error) {
	all, err := i.vm.AllClasses(ctx)
	if err != nil {
		return nil, err
	}
	var out []*ClassType
	for _, t := range all {
		ct, ok := t.(*ClassType)
		if !ok {
			continue
		}
		ok, err := declares(ctx, ct, i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, ct)
		}
	}
	return out, nil
}

func declares(ctx context.Context, t ReferenceType, i *InterfaceType) (bool, error) {
	ifaces, err := t.Interfaces(ctx)
	if err != nil {
		if isKind(err, ErrInvalidReference) {
			return false, nil
		}
		return false, err
	}
	for _, it := range ifaces {
		if it == i {
			return true, nil
		}
	}
	return false, nil
}

// InvokeMethod runs a static interface method on thread.
func (i *InterfaceType) InvokeMethod(ctx context.Context, thread *ThreadReference, m *Method, args []Value, options int32) (Value, error) {
	const op = "InterfaceType.InvokeMethod"
	if !m.mods.IsStatic() {
		return nil, newError(op, ErrInvalidArgument, "method %s is not static", m.name)
	}
	raw, err := coerceArguments(op, m, args)
	if err != nil {
		return nil, err
	}
	return i.vm.invoke(ctx, op, jdwp.CmdITInvokeMethod, thread, options, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(i.id).ObjectID(thread.id).MethodID(m.id)
		encodeArguments(e, raw)
		e.Int32(options)
	})
}

// ArrayType mirrors an array type.
type ArrayType struct {
	refType
}

// ComponentSignature returns the signature of the element type.
func (a *ArrayType) ComponentSignature(ctx context.Context) (string, error) {
	sig, err := a.Signature(ctx)
	if err != nil {
		return "", err
	}
	return signature.Component(sig), nil
}

// ComponentTypeName returns the display name of the element type.
func (a *ArrayType) ComponentTypeName(ctx context.Context) (string, error) {
	sig, err := a.ComponentSignature(ctx)
	if err != nil {
		return "", err
	}
	return signature.ToName(sig), nil
}

// ComponentType returns the element type. A reference element type that is
// not loaded yields ErrClassNotLoaded.
func (a *ArrayType) ComponentType(ctx context.Context) (Type, error) {
	sig, err := a.ComponentSignature(ctx)
	if err != nil {
		return nil, err
	}
	loader, err := a.ClassLoader(ctx)
	if err != nil {
		return nil, err
	}
	return a.vm.typeBySignature(ctx, sig, loader)
}

// NewInstance creates an array of the given length with default elements.
func (a *ArrayType) NewInstance(ctx context.Context, length int32) (*ArrayReference, error) {
	const op = "ArrayType.NewInstance"
	if length < 0 {
		return nil, newError(op, ErrInvalidArgument, "negative array length %d", length)
	}
	d, err := a.vm.do(ctx, op, jdwp.CmdATNewInstance, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(a.id).Int32(length)
	})
	if err != nil {
		return nil, err
	}
	tag, id := d.TaggedObjectID()
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	arr, _ := a.vm.cache.object(tag, id).(*ArrayReference)
	return arr, nil
}

// typeBySignature resolves a signature to a type, preferring the type
// defined by loader when several are loaded.
func (vm *VirtualMachine) typeBySignature(ctx context.Context, sig string, loader *ClassLoaderReference) (Type, error) {
	if p, ok := PrimitiveTypeOf(sig); ok {
		return p, nil
	}
	types, err := vm.ClassesByName(ctx, signature.ToName(sig))
	if err != nil {
		return nil, err
	}
	var first ReferenceType
	for _, t := range types {
		if got, _ := t.Signature(ctx); got != sig {
			continue
		}
		if first == nil {
			first = t
		}
		l, err := t.ClassLoader(ctx)
		if err == nil && l == loader {
			return t, nil
		}
	}
	if first == nil {
		return nil, newError("VirtualMachine.ClassesBySignature", ErrClassNotLoaded, "%s", signature.ToName(sig))
	}
	return first, nil
}

// readTaggedObjects reads a count followed by tagged object ids.
func (vm *VirtualMachine) readTaggedObjects(d *jdwp.Decoder) []Reference {
	n := d.Count()
	out := make([]Reference, 0, n)
	for i := 0; i < n; i++ {
		tag, id := d.TaggedObjectID()
		if d.Err() != nil {
			break
		}
		if o := vm.cache.object(tag, id); o != nil {
			out = append(out, o)
		}
	}
	return out
}

// readFieldValues reads a count of tagged values matching fields.
func (vm *VirtualMachine) readFieldValues(op string, d *jdwp.Decoder, fields []*Field) (map[*Field]Value, error) {
	n := d.Count()
	if d.Err() == nil && n != len(fields) {
		return nil, newError(op, nil, "reply has %d values for %d fields", n, len(fields))
	}
	out := make(map[*Field]Value, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		out[fields[i]] = vm.value(d.Value())
	}
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}
	return out, nil
}
