package jdi

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/jdwp/internal/jdwp"
)

// refinedError is a sentinel that also matches its parent with errors.Is.
type refinedError struct {
	msg    string
	parent error
}

func (e *refinedError) Error() string { return e.msg }
func (e *refinedError) Unwrap() error { return e.parent }

// Error kinds. Every error returned by this package matches at most one of
// these with errors.Is, plus the refinements of ErrInvalidReference.
var (
	// ErrTypeMismatch indicates a value incompatible with its destination.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidReference indicates a stale or invalid identifier.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrObjectCollected indicates the object has been garbage collected.
	ErrObjectCollected error = &refinedError{"object collected", ErrInvalidReference}

	// ErrInvalidStackFrame indicates the frame is no longer on the stack,
	// or its thread has resumed since the frame was fetched.
	ErrInvalidStackFrame error = &refinedError{"invalid stack frame", ErrInvalidReference}

	// ErrIllegalThreadState indicates the thread is not in a state that
	// permits the operation.
	ErrIllegalThreadState = errors.New("illegal thread state")

	// ErrAbsentInformation indicates missing line or variable tables.
	ErrAbsentInformation = errors.New("absent information")

	// ErrInvalidIndex indicates an out-of-range index or count.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrUnsupported indicates a missing capability or an operation the
	// target does not implement.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrDisconnected indicates the connection to the target is gone.
	ErrDisconnected = jdwp.ErrDisconnected

	// ErrInvalidArgument indicates a local precondition failure.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidRequestState indicates an event request mutated while
	// enabled, or used after deletion.
	ErrInvalidRequestState = errors.New("invalid request state")

	// ErrNoEvent indicates an event wait timed out.
	ErrNoEvent = errors.New("no event available")

	// ErrClassNotLoaded indicates a type named by a signature is not loaded.
	ErrClassNotLoaded = errors.New("class not loaded")
)

// codeKinds maps target error codes to error kinds. Codes not listed are
// reported as a plain *Error around the *jdwp.ReplyError.
var codeKinds = map[jdwp.ErrorCode]error{
	jdwp.ErrTypeMismatch: ErrTypeMismatch,
	jdwp.ErrInvalidTag:   ErrTypeMismatch,

	jdwp.ErrInvalidObject:      ErrObjectCollected,
	jdwp.ErrInvalidFrameID:     ErrInvalidStackFrame,
	jdwp.ErrInvalidClass:       ErrInvalidReference,
	jdwp.ErrInvalidMethodID:    ErrInvalidReference,
	jdwp.ErrInvalidFieldID:     ErrInvalidReference,
	jdwp.ErrInvalidThread:      ErrInvalidReference,
	jdwp.ErrInvalidThreadGroup: ErrInvalidReference,
	jdwp.ErrInvalidLocation:    ErrInvalidReference,
	jdwp.ErrInvalidString:      ErrInvalidReference,
	jdwp.ErrInvalidClassLoader: ErrInvalidReference,
	jdwp.ErrInvalidArray:       ErrInvalidReference,

	jdwp.ErrThreadNotSuspended: ErrIllegalThreadState,
	jdwp.ErrThreadSuspended:    ErrIllegalThreadState,
	jdwp.ErrThreadNotAlive:     ErrIllegalThreadState,
	jdwp.ErrNotCurrentFrame:    ErrIllegalThreadState,
	jdwp.ErrUnattachedThread:   ErrIllegalThreadState,
	jdwp.ErrOpaqueFrame:        ErrIllegalThreadState,
	jdwp.ErrClassNotPrepared:   ErrIllegalThreadState,

	jdwp.ErrAbsentInformation: ErrAbsentInformation,

	jdwp.ErrNotFound:      ErrInvalidIndex,
	jdwp.ErrInvalidIndex:  ErrInvalidIndex,
	jdwp.ErrInvalidLength: ErrInvalidIndex,
	jdwp.ErrNoMoreFrames:  ErrInvalidIndex,
	jdwp.ErrInvalidSlot:   ErrInvalidIndex,
	jdwp.ErrInvalidCount:  ErrInvalidIndex,

	jdwp.ErrNotImplemented:               ErrUnsupported,
	jdwp.ErrAddMethodNotImplemented:      ErrUnsupported,
	jdwp.ErrSchemaChangeNotImplemented:   ErrUnsupported,
	jdwp.ErrHierarchyChangeNotImpl:       ErrUnsupported,
	jdwp.ErrDeleteMethodNotImplemented:   ErrUnsupported,
	jdwp.ErrClassModifiersChangeNotImpl:  ErrUnsupported,
	jdwp.ErrMethodModifiersChangeNotImpl: ErrUnsupported,
	jdwp.ErrClassAttributeChangeNotImpl:  ErrUnsupported,

	jdwp.ErrVMDead: ErrDisconnected,

	jdwp.ErrIllegalArgument: ErrInvalidArgument,
}

// Error describes a failed operation.
type Error struct {
	Op   string         // Operation name (e.g. "ThreadReference.Frames")
	Kind error          // One of the Err* kinds, or nil
	Code jdwp.ErrorCode // Target error code, if the target reported one
	Err  error          // Underlying error
}

func (e *Error) Error() string {
	msg := e.Op
	switch {
	case e.Kind != nil && e.Err != nil && e.Kind != e.Err:
		msg = fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	case e.Err != nil:
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	case e.Kind != nil:
		msg = fmt.Sprintf("%s: %v", msg, e.Kind)
	}
	return msg
}

// Unwrap exposes both the kind and the underlying error.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// newError reports a local failure of the given kind.
func newError(op string, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// unsupported reports a missing capability without touching the wire.
func unsupported(op, capability string) *Error {
	return &Error{Op: op, Kind: ErrUnsupported, Err: fmt.Errorf("target lacks %s", capability)}
}

// wrap maps a connection or reply error onto the error kinds.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, jdwp.ErrDisconnected) {
		return &Error{Op: op, Err: err}
	}

	var re *jdwp.ReplyError
	if errors.As(err, &re) {
		return &Error{Op: op, Kind: codeKinds[re.Code], Code: re.Code, Err: re}
	}
	return &Error{Op: op, Err: err}
}

// InvocationError reports an exception thrown by a method invoked in the target.
type InvocationError struct {
	Exception *ObjectReference
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation threw exception object %d", e.Exception.ID())
}

// isKind reports whether err is of the given kind.
func isKind(err error, kind error) bool {
	return err != nil && errors.Is(err, kind)
}
