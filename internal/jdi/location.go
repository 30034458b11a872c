package jdi

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/jdwp/internal/jdwp"
)

// Location is a code position: a method of a declaring type and a code
// index. Locations are comparable values.
type Location struct {
	declaring ReferenceType
	method    jdwp.MethodID
	index     uint64
}

// DeclaringType returns the type declaring the method.
func (l Location) DeclaringType() ReferenceType { return l.declaring }

// MethodID returns the method identifier.
func (l Location) MethodID() jdwp.MethodID { return l.method }

// CodeIndex returns the bytecode index within the method.
func (l Location) CodeIndex() uint64 { return l.index }

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool { return l.declaring == nil }

// Method resolves the method. Methods made obsolete by a redefinition are
// not found and yield ErrInvalidReference.
func (l Location) Method(ctx context.Context) (*Method, error) {
	if l.declaring == nil {
		return nil, newError("Location.Method", ErrInvalidArgument, "zero location")
	}
	return l.declaring.base().methodByID(ctx, l.method)
}

// LineNumber returns the source line, or -1 when it is not known: native
// and abstract methods, methods without a line table, and obsolete methods.
func (l Location) LineNumber(ctx context.Context) (int, error) {
	m, err := l.Method(ctx)
	if errors.Is(err, ErrInvalidReference) {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return m.lineOf(ctx, l.index)
}

// SourceName returns the source file of the declaring type.
func (l Location) SourceName(ctx context.Context) (string, error) {
	if l.declaring == nil {
		return "", newError("Location.SourceName", ErrInvalidArgument, "zero location")
	}
	return l.declaring.SourceName(ctx)
}

func (l Location) String() string {
	if l.declaring == nil {
		return "<no location>"
	}
	return fmt.Sprintf("%s:%d@%d", l.declaring, l.method, l.index)
}

func (l Location) wire() jdwp.Location {
	if l.declaring == nil {
		return jdwp.Location{}
	}
	return jdwp.Location{
		TypeTag: l.declaring.TypeTag(),
		Class:   l.declaring.ID(),
		Method:  l.method,
		Index:   l.index,
	}
}

// location binds a wire location to mirrors. A zero class yields the zero
// Location.
func (vm *VirtualMachine) location(wl jdwp.Location) Location {
	t := vm.cache.referenceType(wl.TypeTag, wl.Class)
	if t == nil {
		return Location{}
	}
	return Location{declaring: t, method: wl.Method, index: wl.Index}
}
