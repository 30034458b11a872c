package jdwp

import (
	"errors"
	"fmt"
)

// ErrorCode is a target-reported reply error code.
type ErrorCode uint16

// Error codes.
const (
	ErrNone                         ErrorCode = 0
	ErrInvalidThread                ErrorCode = 10
	ErrInvalidThreadGroup           ErrorCode = 11
	ErrInvalidPriority              ErrorCode = 12
	ErrThreadNotSuspended           ErrorCode = 13
	ErrThreadSuspended              ErrorCode = 14
	ErrThreadNotAlive               ErrorCode = 15
	ErrInvalidObject                ErrorCode = 20
	ErrInvalidClass                 ErrorCode = 21
	ErrClassNotPrepared             ErrorCode = 22
	ErrInvalidMethodID              ErrorCode = 23
	ErrInvalidLocation              ErrorCode = 24
	ErrInvalidFieldID               ErrorCode = 25
	ErrInvalidFrameID               ErrorCode = 30
	ErrNoMoreFrames                 ErrorCode = 31
	ErrOpaqueFrame                  ErrorCode = 32
	ErrNotCurrentFrame              ErrorCode = 33
	ErrTypeMismatch                 ErrorCode = 34
	ErrInvalidSlot                  ErrorCode = 35
	ErrDuplicate                    ErrorCode = 40
	ErrNotFound                     ErrorCode = 41
	ErrInvalidModule                ErrorCode = 42
	ErrInvalidMonitor               ErrorCode = 50
	ErrNotMonitorOwner              ErrorCode = 51
	ErrInterrupt                    ErrorCode = 52
	ErrInvalidClassFormat           ErrorCode = 60
	ErrCircularClassDefinition      ErrorCode = 61
	ErrFailsVerification            ErrorCode = 62
	ErrAddMethodNotImplemented      ErrorCode = 63
	ErrSchemaChangeNotImplemented   ErrorCode = 64
	ErrInvalidTypestate             ErrorCode = 65
	ErrHierarchyChangeNotImpl       ErrorCode = 66
	ErrDeleteMethodNotImplemented   ErrorCode = 67
	ErrUnsupportedVersion           ErrorCode = 68
	ErrNamesDontMatch               ErrorCode = 69
	ErrClassModifiersChangeNotImpl  ErrorCode = 70
	ErrMethodModifiersChangeNotImpl ErrorCode = 71
	ErrClassAttributeChangeNotImpl  ErrorCode = 72
	ErrNotImplemented               ErrorCode = 99
	ErrNullPointer                  ErrorCode = 100
	ErrAbsentInformation            ErrorCode = 101
	ErrInvalidEventType             ErrorCode = 102
	ErrIllegalArgument              ErrorCode = 103
	ErrOutOfMemory                  ErrorCode = 110
	ErrAccessDenied                 ErrorCode = 111
	ErrVMDead                       ErrorCode = 112
	ErrInternal                     ErrorCode = 113
	ErrUnattachedThread             ErrorCode = 115
	ErrInvalidTag                   ErrorCode = 500
	ErrAlreadyInvoking              ErrorCode = 502
	ErrInvalidIndex                 ErrorCode = 503
	ErrInvalidLength                ErrorCode = 504
	ErrInvalidString                ErrorCode = 506
	ErrInvalidClassLoader           ErrorCode = 507
	ErrInvalidArray                 ErrorCode = 508
	ErrTransportLoad                ErrorCode = 509
	ErrTransportInit                ErrorCode = 510
	ErrNativeMethod                 ErrorCode = 511
	ErrInvalidCount                 ErrorCode = 512
)

var errorCodeNames = map[ErrorCode]string{
	ErrNone:                         "NONE",
	ErrInvalidThread:                "INVALID_THREAD",
	ErrInvalidThreadGroup:           "INVALID_THREAD_GROUP",
	ErrInvalidPriority:              "INVALID_PRIORITY",
	ErrThreadNotSuspended:           "THREAD_NOT_SUSPENDED",
	ErrThreadSuspended:              "THREAD_SUSPENDED",
	ErrThreadNotAlive:               "THREAD_NOT_ALIVE",
	ErrInvalidObject:                "INVALID_OBJECT",
	ErrInvalidClass:                 "INVALID_CLASS",
	ErrClassNotPrepared:             "CLASS_NOT_PREPARED",
	ErrInvalidMethodID:              "INVALID_METHODID",
	ErrInvalidLocation:              "INVALID_LOCATION",
	ErrInvalidFieldID:               "INVALID_FIELDID",
	ErrInvalidFrameID:               "INVALID_FRAMEID",
	ErrNoMoreFrames:                 "NO_MORE_FRAMES",
	ErrOpaqueFrame:                  "OPAQUE_FRAME",
	ErrNotCurrentFrame:              "NOT_CURRENT_FRAME",
	ErrTypeMismatch:                 "TYPE_MISMATCH",
	ErrInvalidSlot:                  "INVALID_SLOT",
	ErrDuplicate:                    "DUPLICATE",
	ErrNotFound:                     "NOT_FOUND",
	ErrInvalidModule:                "INVALID_MODULE",
	ErrInvalidMonitor:               "INVALID_MONITOR",
	ErrNotMonitorOwner:              "NOT_MONITOR_OWNER",
	ErrInterrupt:                    "INTERRUPT",
	ErrInvalidClassFormat:           "INVALID_CLASS_FORMAT",
	ErrCircularClassDefinition:      "CIRCULAR_CLASS_DEFINITION",
	ErrFailsVerification:            "FAILS_VERIFICATION",
	ErrAddMethodNotImplemented:      "ADD_METHOD_NOT_IMPLEMENTED",
	ErrSchemaChangeNotImplemented:   "SCHEMA_CHANGE_NOT_IMPLEMENTED",
	ErrInvalidTypestate:             "INVALID_TYPESTATE",
	ErrHierarchyChangeNotImpl:       "HIERARCHY_CHANGE_NOT_IMPLEMENTED",
	ErrDeleteMethodNotImplemented:   "DELETE_METHOD_NOT_IMPLEMENTED",
	ErrUnsupportedVersion:           "UNSUPPORTED_VERSION",
	ErrNamesDontMatch:               "NAMES_DONT_MATCH",
	ErrClassModifiersChangeNotImpl:  "CLASS_MODIFIERS_CHANGE_NOT_IMPLEMENTED",
	ErrMethodModifiersChangeNotImpl: "METHOD_MODIFIERS_CHANGE_NOT_IMPLEMENTED",
	ErrClassAttributeChangeNotImpl:  "CLASS_ATTRIBUTE_CHANGE_NOT_IMPLEMENTED",
	ErrNotImplemented:               "NOT_IMPLEMENTED",
	ErrNullPointer:                  "NULL_POINTER",
	ErrAbsentInformation:            "ABSENT_INFORMATION",
	ErrInvalidEventType:             "INVALID_EVENT_TYPE",
	ErrIllegalArgument:              "ILLEGAL_ARGUMENT",
	ErrOutOfMemory:                  "OUT_OF_MEMORY",
	ErrAccessDenied:                 "ACCESS_DENIED",
	ErrVMDead:                       "VM_DEAD",
	ErrInternal:                     "INTERNAL",
	ErrUnattachedThread:             "UNATTACHED_THREAD",
	ErrInvalidTag:                   "INVALID_TAG",
	ErrAlreadyInvoking:              "ALREADY_INVOKING",
	ErrInvalidIndex:                 "INVALID_INDEX",
	ErrInvalidLength:                "INVALID_LENGTH",
	ErrInvalidString:                "INVALID_STRING",
	ErrInvalidClassLoader:           "INVALID_CLASS_LOADER",
	ErrInvalidArray:                 "INVALID_ARRAY",
	ErrTransportLoad:                "TRANSPORT_LOAD",
	ErrTransportInit:                "TRANSPORT_INIT",
	ErrNativeMethod:                 "NATIVE_METHOD",
	ErrInvalidCount:                 "INVALID_COUNT",
}

// String returns the protocol name of the error code.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_%d", uint16(c))
}

// Connection errors.
var (
	// ErrDisconnected is returned by every call once the stream has failed or
	// the connection was closed.
	ErrDisconnected = errors.New("jdwp: disconnected")

	// ErrNotNegotiated is returned for any command sent before identifier
	// sizes have been negotiated.
	ErrNotNegotiated = errors.New("jdwp: identifier sizes not negotiated")

	// ErrHandshake indicates the target did not echo the handshake.
	ErrHandshake = errors.New("jdwp: handshake failed")

	// ErrPacketTooLarge indicates a header announced a length above MaxPacketLength.
	ErrPacketTooLarge = errors.New("jdwp: packet too large")

	// ErrTruncated indicates a decoder ran past the end of its data.
	ErrTruncated = errors.New("jdwp: truncated packet data")
)

// ReplyError is a non-zero error code carried by a reply packet.
type ReplyError struct {
	Command Command
	Code    ErrorCode
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("jdwp: %s: %s (%d)", e.Command, e.Code, uint16(e.Code))
}

// CodeOf returns the reply error code wrapped in err, or ErrNone.
func CodeOf(err error) ErrorCode {
	var re *ReplyError
	if errors.As(err, &re) {
		return re.Code
	}
	return ErrNone
}

func isDisconnected(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
