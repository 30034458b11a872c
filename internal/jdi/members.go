package jdi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/signature"
)

// Field is a field declared by a reference type.
type Field struct {
	declaring ReferenceType
	id        jdwp.FieldID
	name      string
	sig       string
	generic   string
	mods      Modifiers
	index     int
}

func (f *Field) ID() jdwp.FieldID             { return f.id }
func (f *Field) Name() string                 { return f.name }
func (f *Field) Signature() string            { return f.sig }
func (f *Field) GenericSignature() string     { return f.generic }
func (f *Field) Modifiers() Modifiers         { return f.mods }
func (f *Field) DeclaringType() ReferenceType { return f.declaring }
func (f *Field) TypeName() string             { return signature.ToName(f.sig) }
func (f *Field) IsStatic() bool               { return f.mods.IsStatic() }
func (f *Field) IsEnumConstant() bool         { return f.mods&0x4000 != 0 }
func (f *Field) String() string               { return fmt.Sprintf("%s.%s", f.declaring, f.name) }

// Type resolves the field's type. Reference types must already be loaded.
func (f *Field) Type(ctx context.Context) (Type, error) {
	loader, err := f.declaring.ClassLoader(ctx)
	if err != nil {
		return nil, err
	}
	return f.declaring.VirtualMachine().typeBySignature(ctx, f.sig, loader)
}

// Method is a method or constructor declared by a reference type. The line
// and variable tables are fetched once and cached on the method.
type Method struct {
	declaring ReferenceType
	id        jdwp.MethodID
	name      string
	sig       string
	generic   string
	mods      Modifiers
	index     int

	mu    sync.Mutex
	lines *lineTable
	vars  *variableTable
}

func (m *Method) ID() jdwp.MethodID            { return m.id }
func (m *Method) Name() string                 { return m.name }
func (m *Method) Signature() string            { return m.sig }
func (m *Method) GenericSignature() string     { return m.generic }
func (m *Method) Modifiers() Modifiers         { return m.mods }
func (m *Method) DeclaringType() ReferenceType { return m.declaring }
func (m *Method) IsStatic() bool               { return m.mods.IsStatic() }
func (m *Method) IsAbstract() bool             { return m.mods.IsAbstract() }
func (m *Method) IsNative() bool               { return m.mods.IsNative() }
func (m *Method) IsConstructor() bool          { return m.name == "<init>" }
func (m *Method) IsStaticInitializer() bool    { return m.name == "<clinit>" }
func (m *Method) String() string               { return fmt.Sprintf("%s.%s%s", m.declaring, m.name, m.sig) }

// ArgumentTypeNames returns the display names of the parameter types.
func (m *Method) ArgumentTypeNames() ([]string, error) {
	ms, err := signature.ParseMethod(m.sig)
	if err != nil {
		return nil, err
	}
	return ms.ArgumentNames(), nil
}

// ReturnTypeName returns the display name of the return type.
func (m *Method) ReturnTypeName() (string, error) {
	ms, err := signature.ParseMethod(m.sig)
	if err != nil {
		return "", err
	}
	return ms.ReturnName(), nil
}

// hasCode reports whether the method can have line or variable tables.
func (m *Method) hasCode() bool {
	return !m.mods.IsNative() && !m.mods.IsAbstract()
}

// Bytecodes returns the method's bytecode.
func (m *Method) Bytecodes(ctx context.Context) ([]byte, error) {
	const op = "Method.Bytecodes"
	vm := m.declaring.VirtualMachine()
	if !vm.caps.CanGetBytecodes {
		return nil, unsupported(op, "canGetBytecodes")
	}
	d, err := vm.do(ctx, op, jdwp.CmdMBytecodes, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(m.declaring.ID()).MethodID(m.id)
	})
	if err != nil {
		return nil, err
	}
	code := d.Blob()
	return code, decodeErr(op, d)
}

// IsObsolete reports whether the method was replaced by a class
// redefinition. Targets that cannot redefine classes have no obsolete
// methods.
func (m *Method) IsObsolete(ctx context.Context) (bool, error) {
	const op = "Method.IsObsolete"
	vm := m.declaring.VirtualMachine()
	if !vm.caps.CanRedefineClasses {
		return false, nil
	}
	d, err := vm.do(ctx, op, jdwp.CmdMIsObsolete, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(m.declaring.ID()).MethodID(m.id)
	})
	if err != nil {
		return false, err
	}
	obsolete := d.Bool()
	return obsolete, decodeErr(op, d)
}

// lineTable maps code indices to source lines and back.
type lineTable struct {
	start, end uint64
	entries    []lineEntry // sorted by index
	byLine     map[int][]uint64
	err        error // ErrAbsentInformation when the table is missing
}

type lineEntry struct {
	index uint64
	line  int
}

// lineAt returns the line of the last entry at or before index, or -1.
func (lt *lineTable) lineAt(index uint64) int {
	i := sort.Search(len(lt.entries), func(i int) bool { return lt.entries[i].index > index })
	if i == 0 {
		return -1
	}
	return lt.entries[i-1].line
}

func (m *Method) lineTable(ctx context.Context) (*lineTable, error) {
	m.mu.Lock()
	if m.lines != nil {
		lt := m.lines
		m.mu.Unlock()
		return lt, nil
	}
	m.mu.Unlock()

	lt, err := m.fetchLineTable(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lines == nil {
		m.lines = lt
	}
	return m.lines, nil
}

func (m *Method) fetchLineTable(ctx context.Context) (*lineTable, error) {
	const op = "Method.LineTable"
	if !m.hasCode() {
		return &lineTable{err: newError(op, ErrAbsentInformation, "%s has no code", m.name)}, nil
	}

	vm := m.declaring.VirtualMachine()
	d, err := vm.do(ctx, op, jdwp.CmdMLineTable, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(m.declaring.ID()).MethodID(m.id)
	})
	var re *jdwp.ReplyError
	switch {
	case isKind(err, ErrAbsentInformation):
		return &lineTable{err: err}, nil
	case errors.As(err, &re) && re.Code == jdwp.ErrInvalidMethodID:
		// Obsolete after a redefinition.
		return &lineTable{err: &Error{Op: op, Kind: ErrAbsentInformation, Code: re.Code, Err: re}}, nil
	case err != nil:
		return nil, err
	}

	lt := &lineTable{
		start:  uint64(d.Int64()),
		end:    uint64(d.Int64()),
		byLine: make(map[int][]uint64),
	}
	n := d.Count()
	lt.entries = make([]lineEntry, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		lt.entries = append(lt.entries, lineEntry{index: uint64(d.Int64()), line: int(d.Int32())})
	}
	if err := decodeErr(op, d); err != nil {
		return nil, err
	}

	sort.SliceStable(lt.entries, func(i, j int) bool { return lt.entries[i].index < lt.entries[j].index })
	for _, e := range lt.entries {
		lt.byLine[e.line] = append(lt.byLine[e.line], e.index)
	}
	if len(lt.entries) == 0 {
		lt.err = newError(op, ErrAbsentInformation, "%s has an empty line table", m.name)
	}
	return lt, nil
}

// LocationOfCodeIndex returns the location of a code index. Indices outside
// the method's code range are ErrInvalidIndex.
func (m *Method) LocationOfCodeIndex(ctx context.Context, index uint64) (Location, error) {
	const op = "Method.LocationOfCodeIndex"
	lt, err := m.lineTable(ctx)
	if err != nil {
		return Location{}, err
	}
	if !m.hasCode() {
		return Location{}, lt.err
	}
	if lt.err == nil && (index < lt.start || index > lt.end) {
		return Location{}, newError(op, ErrInvalidIndex, "code index %d outside [%d, %d]", index, lt.start, lt.end)
	}
	return m.location(index), nil
}

// Location returns the location of the first instruction.
func (m *Method) Location(ctx context.Context) (Location, error) {
	lt, err := m.lineTable(ctx)
	if err != nil {
		return Location{}, err
	}
	if lt.err != nil {
		return m.location(0), nil
	}
	return m.location(lt.start), nil
}

// AllLineLocations returns one location per line table entry, ordered by
// code index.
func (m *Method) AllLineLocations(ctx context.Context) ([]Location, error) {
	lt, err := m.lineTable(ctx)
	if err != nil {
		return nil, err
	}
	if lt.err != nil {
		return nil, lt.err
	}
	out := make([]Location, 0, len(lt.entries))
	for _, e := range lt.entries {
		out = append(out, m.location(e.index))
	}
	return out, nil
}

// LocationsOfLine returns the locations whose line is line.
func (m *Method) LocationsOfLine(ctx context.Context, line int) ([]Location, error) {
	lt, err := m.lineTable(ctx)
	if err != nil {
		return nil, err
	}
	if lt.err != nil {
		return nil, lt.err
	}
	indices := lt.byLine[line]
	out := make([]Location, 0, len(indices))
	for _, idx := range indices {
		out = append(out, m.location(idx))
	}
	return out, nil
}

// lineOf returns the line of a code index, or -1 without line information.
func (m *Method) lineOf(ctx context.Context, index uint64) (int, error) {
	lt, err := m.lineTable(ctx)
	if err != nil {
		return -1, err
	}
	if lt.err != nil {
		return -1, nil
	}
	return lt.lineAt(index), nil
}

func (m *Method) location(index uint64) Location {
	return Location{declaring: m.declaring, method: m.id, index: index}
}

// LocalVariable is an entry of a method's variable table.
type LocalVariable struct {
	method   *Method
	start    uint64
	length   uint32
	name     string
	sig      string
	generic  string
	slot     int32
	argument bool
}

func (v *LocalVariable) Name() string             { return v.name }
func (v *LocalVariable) Signature() string        { return v.sig }
func (v *LocalVariable) GenericSignature() string { return v.generic }
func (v *LocalVariable) TypeName() string         { return signature.ToName(v.sig) }
func (v *LocalVariable) Slot() int32              { return v.slot }
func (v *LocalVariable) IsArgument() bool         { return v.argument }
func (v *LocalVariable) Method() *Method          { return v.method }
func (v *LocalVariable) String() string           { return fmt.Sprintf("%s in %s", v.name, v.method) }

// IsVisible reports whether the variable is in scope at a code index.
func (v *LocalVariable) IsVisible(index uint64) bool {
	return index >= v.start && index < v.start+uint64(v.length)
}

// isThis reports whether v is the receiver of an instance method.
func (v *LocalVariable) isThis() bool {
	return v.slot == 0 && !v.method.IsStatic() && v.name == "this"
}

type variableTable struct {
	argSlots int32
	vars     []*LocalVariable
	err      error
}

func (m *Method) variableTable(ctx context.Context) (*variableTable, error) {
	m.mu.Lock()
	if m.vars != nil {
		vt := m.vars
		m.mu.Unlock()
		return vt, nil
	}
	m.mu.Unlock()

	vt, err := m.fetchVariableTable(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vars == nil {
		m.vars = vt
	}
	return m.vars, nil
}

func (m *Method) fetchVariableTable(ctx context.Context) (*variableTable, error) {
	const op = "Method.VariableTableWithGeneric"
	if !m.hasCode() {
		return &variableTable{err: newError(op, ErrAbsentInformation, "%s has no code", m.name)}, nil
	}

	vm := m.declaring.VirtualMachine()
	d, err := vm.do(ctx, op, jdwp.CmdMVariableTableWithGeneric, func(e *jdwp.Encoder) {
		e.ReferenceTypeID(m.declaring.ID()).MethodID(m.id)
	})
	if isKind(err, ErrAbsentInformation) {
		return &variableTable{err: err}, nil
	}
	if err != nil {
		return nil, err
	}

	vt := &variableTable{argSlots: d.Int32()}
	n := d.Count()
	vt.vars = make([]*LocalVariable, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		v := &LocalVariable{
			method:  m,
			start:   uint64(d.Int64()),
			name:    d.Text(),
			sig:     d.Text(),
			generic: d.Text(),
			length:  uint32(d.Int32()),
			slot:    d.Int32(),
		}
		v.argument = v.slot < vt.argSlots
		vt.vars = append(vt.vars, v)
	}
	return vt, decodeErr(op, d)
}

// Variables returns every local variable of the method, including
// arguments.
func (m *Method) Variables(ctx context.Context) ([]*LocalVariable, error) {
	vt, err := m.variableTable(ctx)
	if err != nil {
		return nil, err
	}
	return vt.vars, vt.err
}

// Arguments returns the argument variables ordered by slot.
func (m *Method) Arguments(ctx context.Context) ([]*LocalVariable, error) {
	vars, err := m.Variables(ctx)
	if err != nil {
		return nil, err
	}
	var out []*LocalVariable
	for _, v := range vars {
		if v.argument && !v.isThis() {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].slot < out[j].slot })
	return out, nil
}

// VariablesByName returns the variables with the given name.
func (m *Method) VariablesByName(ctx context.Context, name string) ([]*LocalVariable, error) {
	vars, err := m.Variables(ctx)
	if err != nil {
		return nil, err
	}
	var out []*LocalVariable
	for _, v := range vars {
		if v.name == name {
			out = append(out, v)
		}
	}
	return out, nil
}
