// Package jdwp implements the Java Debug Wire Protocol packet layer: framing,
// the primitive wire codec, and a connection that demultiplexes replies and
// unsolicited event packets arriving on one stream.
package jdwp

import "fmt"

// CommandSet is the namespace of a command.
type CommandSet uint8

// Command identifies a single command within a command set.
type Command struct {
	Set CommandSet
	ID  uint8
}

// Command sets.
const (
	SetVirtualMachine       CommandSet = 1
	SetReferenceType        CommandSet = 2
	SetClassType            CommandSet = 3
	SetArrayType            CommandSet = 4
	SetInterfaceType        CommandSet = 5
	SetMethod               CommandSet = 6
	SetField                CommandSet = 8
	SetObjectReference      CommandSet = 9
	SetStringReference      CommandSet = 10
	SetThreadReference      CommandSet = 11
	SetThreadGroupReference CommandSet = 12
	SetArrayReference       CommandSet = 13
	SetClassLoaderReference CommandSet = 14
	SetEventRequest         CommandSet = 15
	SetStackFrame           CommandSet = 16
	SetClassObjectReference CommandSet = 17
	SetModuleReference      CommandSet = 18
	SetEvent                CommandSet = 64
)

// Commands used by the client.
var (
	CmdVMVersion               = Command{SetVirtualMachine, 1}
	CmdVMClassesBySignature    = Command{SetVirtualMachine, 2}
	CmdVMAllClasses            = Command{SetVirtualMachine, 3}
	CmdVMAllThreads            = Command{SetVirtualMachine, 4}
	CmdVMTopLevelThreadGroups  = Command{SetVirtualMachine, 5}
	CmdVMDispose               = Command{SetVirtualMachine, 6}
	CmdVMIDSizes               = Command{SetVirtualMachine, 7}
	CmdVMSuspend               = Command{SetVirtualMachine, 8}
	CmdVMResume                = Command{SetVirtualMachine, 9}
	CmdVMExit                  = Command{SetVirtualMachine, 10}
	CmdVMCreateString          = Command{SetVirtualMachine, 11}
	CmdVMCapabilities          = Command{SetVirtualMachine, 12}
	CmdVMClassPaths            = Command{SetVirtualMachine, 13}
	CmdVMDisposeObjects        = Command{SetVirtualMachine, 14}
	CmdVMHoldEvents            = Command{SetVirtualMachine, 15}
	CmdVMReleaseEvents         = Command{SetVirtualMachine, 16}
	CmdVMCapabilitiesNew       = Command{SetVirtualMachine, 17}
	CmdVMRedefineClasses       = Command{SetVirtualMachine, 18}
	CmdVMSetDefaultStratum     = Command{SetVirtualMachine, 19}
	CmdVMAllClassesWithGeneric = Command{SetVirtualMachine, 20}
	CmdVMInstanceCounts        = Command{SetVirtualMachine, 21}

	CmdRTSignature            = Command{SetReferenceType, 1}
	CmdRTClassLoader          = Command{SetReferenceType, 2}
	CmdRTModifiers            = Command{SetReferenceType, 3}
	CmdRTFields               = Command{SetReferenceType, 4}
	CmdRTMethods              = Command{SetReferenceType, 5}
	CmdRTGetValues            = Command{SetReferenceType, 6}
	CmdRTSourceFile           = Command{SetReferenceType, 7}
	CmdRTNestedTypes          = Command{SetReferenceType, 8}
	CmdRTStatus               = Command{SetReferenceType, 9}
	CmdRTInterfaces           = Command{SetReferenceType, 10}
	CmdRTClassObject          = Command{SetReferenceType, 11}
	CmdRTSourceDebugExtension = Command{SetReferenceType, 12}
	CmdRTSignatureWithGeneric = Command{SetReferenceType, 13}
	CmdRTFieldsWithGeneric    = Command{SetReferenceType, 14}
	CmdRTMethodsWithGeneric   = Command{SetReferenceType, 15}
	CmdRTInstances            = Command{SetReferenceType, 16}
	CmdRTClassFileVersion     = Command{SetReferenceType, 17}

	CmdCTSuperclass   = Command{SetClassType, 1}
	CmdCTSetValues    = Command{SetClassType, 2}
	CmdCTInvokeMethod = Command{SetClassType, 3}
	CmdCTNewInstance  = Command{SetClassType, 4}

	CmdATNewInstance = Command{SetArrayType, 1}

	CmdITInvokeMethod = Command{SetInterfaceType, 1}

	CmdMLineTable                = Command{SetMethod, 1}
	CmdMVariableTable            = Command{SetMethod, 2}
	CmdMBytecodes                = Command{SetMethod, 3}
	CmdMIsObsolete               = Command{SetMethod, 4}
	CmdMVariableTableWithGeneric = Command{SetMethod, 5}

	CmdORReferenceType     = Command{SetObjectReference, 1}
	CmdORGetValues         = Command{SetObjectReference, 2}
	CmdORSetValues         = Command{SetObjectReference, 3}
	CmdORMonitorInfo       = Command{SetObjectReference, 5}
	CmdORInvokeMethod      = Command{SetObjectReference, 6}
	CmdORDisableCollection = Command{SetObjectReference, 7}
	CmdOREnableCollection  = Command{SetObjectReference, 8}
	CmdORIsCollected       = Command{SetObjectReference, 9}
	CmdORReferringObjects  = Command{SetObjectReference, 10}

	CmdSRValue = Command{SetStringReference, 1}

	CmdTRName                    = Command{SetThreadReference, 1}
	CmdTRSuspend                 = Command{SetThreadReference, 2}
	CmdTRResume                  = Command{SetThreadReference, 3}
	CmdTRStatus                  = Command{SetThreadReference, 4}
	CmdTRThreadGroup             = Command{SetThreadReference, 5}
	CmdTRFrames                  = Command{SetThreadReference, 6}
	CmdTRFrameCount              = Command{SetThreadReference, 7}
	CmdTROwnedMonitors           = Command{SetThreadReference, 8}
	CmdTRCurrentContendedMonitor = Command{SetThreadReference, 9}
	CmdTRStop                    = Command{SetThreadReference, 10}
	CmdTRInterrupt               = Command{SetThreadReference, 11}
	CmdTRSuspendCount            = Command{SetThreadReference, 12}
	CmdTRForceEarlyReturn        = Command{SetThreadReference, 14}
	CmdTRIsVirtual               = Command{SetThreadReference, 15}

	CmdTGRName     = Command{SetThreadGroupReference, 1}
	CmdTGRParent   = Command{SetThreadGroupReference, 2}
	CmdTGRChildren = Command{SetThreadGroupReference, 3}

	CmdARLength    = Command{SetArrayReference, 1}
	CmdARGetValues = Command{SetArrayReference, 2}
	CmdARSetValues = Command{SetArrayReference, 3}

	CmdCLRVisibleClasses = Command{SetClassLoaderReference, 1}

	CmdERSet                 = Command{SetEventRequest, 1}
	CmdERClear               = Command{SetEventRequest, 2}
	CmdERClearAllBreakpoints = Command{SetEventRequest, 3}

	CmdSFGetValues  = Command{SetStackFrame, 1}
	CmdSFSetValues  = Command{SetStackFrame, 2}
	CmdSFThisObject = Command{SetStackFrame, 3}
	CmdSFPopFrames  = Command{SetStackFrame, 4}

	CmdCORReflectedType = Command{SetClassObjectReference, 1}

	CmdEventComposite = Command{SetEvent, 100}
)

var commandSetNames = map[CommandSet]string{
	SetVirtualMachine:       "VirtualMachine",
	SetReferenceType:        "ReferenceType",
	SetClassType:            "ClassType",
	SetArrayType:            "ArrayType",
	SetInterfaceType:        "InterfaceType",
	SetMethod:               "Method",
	SetField:                "Field",
	SetObjectReference:      "ObjectReference",
	SetStringReference:      "StringReference",
	SetThreadReference:      "ThreadReference",
	SetThreadGroupReference: "ThreadGroupReference",
	SetArrayReference:       "ArrayReference",
	SetClassLoaderReference: "ClassLoaderReference",
	SetEventRequest:         "EventRequest",
	SetStackFrame:           "StackFrame",
	SetClassObjectReference: "ClassObjectReference",
	SetModuleReference:      "ModuleReference",
	SetEvent:                "Event",
}

var commandNames = map[Command]string{
	CmdVMVersion:               "Version",
	CmdVMClassesBySignature:    "ClassesBySignature",
	CmdVMAllClasses:            "AllClasses",
	CmdVMAllThreads:            "AllThreads",
	CmdVMTopLevelThreadGroups:  "TopLevelThreadGroups",
	CmdVMDispose:               "Dispose",
	CmdVMIDSizes:               "IDSizes",
	CmdVMSuspend:               "Suspend",
	CmdVMResume:                "Resume",
	CmdVMExit:                  "Exit",
	CmdVMCreateString:          "CreateString",
	CmdVMCapabilities:          "Capabilities",
	CmdVMClassPaths:            "ClassPaths",
	CmdVMDisposeObjects:        "DisposeObjects",
	CmdVMHoldEvents:            "HoldEvents",
	CmdVMReleaseEvents:         "ReleaseEvents",
	CmdVMCapabilitiesNew:       "CapabilitiesNew",
	CmdVMRedefineClasses:       "RedefineClasses",
	CmdVMSetDefaultStratum:     "SetDefaultStratum",
	CmdVMAllClassesWithGeneric: "AllClassesWithGeneric",
	CmdVMInstanceCounts:        "InstanceCounts",

	CmdRTSignature:            "Signature",
	CmdRTClassLoader:          "ClassLoader",
	CmdRTModifiers:            "Modifiers",
	CmdRTFields:               "Fields",
	CmdRTMethods:              "Methods",
	CmdRTGetValues:            "GetValues",
	CmdRTSourceFile:           "SourceFile",
	CmdRTNestedTypes:          "NestedTypes",
	CmdRTStatus:               "Status",
	CmdRTInterfaces:           "Interfaces",
	CmdRTClassObject:          "ClassObject",
	CmdRTSourceDebugExtension: "SourceDebugExtension",
	CmdRTSignatureWithGeneric: "SignatureWithGeneric",
	CmdRTFieldsWithGeneric:    "FieldsWithGeneric",
	CmdRTMethodsWithGeneric:   "MethodsWithGeneric",
	CmdRTInstances:            "Instances",
	CmdRTClassFileVersion:     "ClassFileVersion",

	CmdCTSuperclass:   "Superclass",
	CmdCTSetValues:    "SetValues",
	CmdCTInvokeMethod: "InvokeMethod",
	CmdCTNewInstance:  "NewInstance",

	CmdATNewInstance: "NewInstance",

	CmdITInvokeMethod: "InvokeMethod",

	CmdMLineTable:                "LineTable",
	CmdMVariableTable:            "VariableTable",
	CmdMBytecodes:                "Bytecodes",
	CmdMIsObsolete:               "IsObsolete",
	CmdMVariableTableWithGeneric: "VariableTableWithGeneric",

	CmdORReferenceType:     "ReferenceType",
	CmdORGetValues:         "GetValues",
	CmdORSetValues:         "SetValues",
	CmdORMonitorInfo:       "MonitorInfo",
	CmdORInvokeMethod:      "InvokeMethod",
	CmdORDisableCollection: "DisableCollection",
	CmdOREnableCollection:  "EnableCollection",
	CmdORIsCollected:       "IsCollected",
	CmdORReferringObjects:  "ReferringObjects",

	CmdSRValue: "Value",

	CmdTRName:                    "Name",
	CmdTRSuspend:                 "Suspend",
	CmdTRResume:                  "Resume",
	CmdTRStatus:                  "Status",
	CmdTRThreadGroup:             "ThreadGroup",
	CmdTRFrames:                  "Frames",
	CmdTRFrameCount:              "FrameCount",
	CmdTROwnedMonitors:           "OwnedMonitors",
	CmdTRCurrentContendedMonitor: "CurrentContendedMonitor",
	CmdTRStop:                    "Stop",
	CmdTRInterrupt:               "Interrupt",
	CmdTRSuspendCount:            "SuspendCount",
	CmdTRForceEarlyReturn:        "ForceEarlyReturn",
	CmdTRIsVirtual:               "IsVirtual",

	CmdTGRName:     "Name",
	CmdTGRParent:   "Parent",
	CmdTGRChildren: "Children",

	CmdARLength:    "Length",
	CmdARGetValues: "GetValues",
	CmdARSetValues: "SetValues",

	CmdCLRVisibleClasses: "VisibleClasses",

	CmdERSet:                 "Set",
	CmdERClear:               "Clear",
	CmdERClearAllBreakpoints: "ClearAllBreakpoints",

	CmdSFGetValues:  "GetValues",
	CmdSFSetValues:  "SetValues",
	CmdSFThisObject: "ThisObject",
	CmdSFPopFrames:  "PopFrames",

	CmdCORReflectedType: "ReflectedType",

	CmdEventComposite: "Composite",
}

// String returns the command set name.
func (s CommandSet) String() string {
	if name, ok := commandSetNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CommandSet(%d)", uint8(s))
}

// String returns "Set.Command", e.g. "VirtualMachine.IDSizes".
func (c Command) String() string {
	name, ok := commandNames[c]
	if !ok {
		name = fmt.Sprint(c.ID)
	}
	return c.Set.String() + "." + name
}

// Tag is the one-byte kind tag that prefixes a tagged value.
type Tag uint8

// Value tags.
const (
	TagArray       Tag = '['
	TagByte        Tag = 'B'
	TagChar        Tag = 'C'
	TagObject      Tag = 'L'
	TagFloat       Tag = 'F'
	TagDouble      Tag = 'D'
	TagInt         Tag = 'I'
	TagLong        Tag = 'J'
	TagShort       Tag = 'S'
	TagVoid        Tag = 'V'
	TagBoolean     Tag = 'Z'
	TagString      Tag = 's'
	TagThread      Tag = 't'
	TagThreadGroup Tag = 'g'
	TagClassLoader Tag = 'l'
	TagClassObject Tag = 'c'
)

var tagNames = map[Tag]string{
	TagArray:       "array",
	TagByte:        "byte",
	TagChar:        "char",
	TagObject:      "object",
	TagFloat:       "float",
	TagDouble:      "double",
	TagInt:         "int",
	TagLong:        "long",
	TagShort:       "short",
	TagVoid:        "void",
	TagBoolean:     "boolean",
	TagString:      "string",
	TagThread:      "thread",
	TagThreadGroup: "thread-group",
	TagClassLoader: "class-loader",
	TagClassObject: "class-object",
}

// String returns the tag's kind name.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// IsPrimitive reports whether the tag denotes a primitive or void value.
func (t Tag) IsPrimitive() bool {
	switch t {
	case TagByte, TagChar, TagFloat, TagDouble, TagInt, TagLong, TagShort, TagVoid, TagBoolean:
		return true
	}
	return false
}

// IsObject reports whether the tag denotes a reference value.
func (t Tag) IsObject() bool {
	switch t {
	case TagArray, TagObject, TagString, TagThread, TagThreadGroup, TagClassLoader, TagClassObject:
		return true
	}
	return false
}

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool {
	_, ok := tagNames[t]
	return ok
}

// TypeTag distinguishes class, interface and array reference types.
type TypeTag uint8

// Type tags.
const (
	TypeTagClass     TypeTag = 1
	TypeTagInterface TypeTag = 2
	TypeTagArray     TypeTag = 3
)

// String returns the type tag name.
func (t TypeTag) String() string {
	switch t {
	case TypeTagClass:
		return "class"
	case TypeTagInterface:
		return "interface"
	case TypeTagArray:
		return "array"
	default:
		return fmt.Sprintf("TypeTag(%d)", uint8(t))
	}
}

// EventKind identifies the kind of an event or event request.
type EventKind uint8

// Event kinds.
const (
	EventSingleStep                EventKind = 1
	EventBreakpoint                EventKind = 2
	EventFramePop                  EventKind = 3
	EventException                 EventKind = 4
	EventUserDefined               EventKind = 5
	EventThreadStart               EventKind = 6
	EventThreadDeath               EventKind = 7
	EventClassPrepare              EventKind = 8
	EventClassUnload               EventKind = 9
	EventClassLoad                 EventKind = 10
	EventFieldAccess               EventKind = 20
	EventFieldModification         EventKind = 21
	EventExceptionCatch            EventKind = 30
	EventMethodEntry               EventKind = 40
	EventMethodExit                EventKind = 41
	EventMethodExitWithReturnValue EventKind = 42
	EventMonitorContendedEnter     EventKind = 43
	EventMonitorContendedEntered   EventKind = 44
	EventMonitorWait               EventKind = 45
	EventMonitorWaited             EventKind = 46
	EventVMStart                   EventKind = 90
	EventVMDeath                   EventKind = 99
	// EventVMDisconnected is never sent by a target; it is synthesized locally.
	EventVMDisconnected EventKind = 100
)

var eventKindNames = map[EventKind]string{
	EventSingleStep:                "SingleStep",
	EventBreakpoint:                "Breakpoint",
	EventFramePop:                  "FramePop",
	EventException:                 "Exception",
	EventUserDefined:               "UserDefined",
	EventThreadStart:               "ThreadStart",
	EventThreadDeath:               "ThreadDeath",
	EventClassPrepare:              "ClassPrepare",
	EventClassUnload:               "ClassUnload",
	EventClassLoad:                 "ClassLoad",
	EventFieldAccess:               "FieldAccess",
	EventFieldModification:         "FieldModification",
	EventExceptionCatch:            "ExceptionCatch",
	EventMethodEntry:               "MethodEntry",
	EventMethodExit:                "MethodExit",
	EventMethodExitWithReturnValue: "MethodExitWithReturnValue",
	EventMonitorContendedEnter:     "MonitorContendedEnter",
	EventMonitorContendedEntered:   "MonitorContendedEntered",
	EventMonitorWait:               "MonitorWait",
	EventMonitorWaited:             "MonitorWaited",
	EventVMStart:                   "VMStart",
	EventVMDeath:                   "VMDeath",
	EventVMDisconnected:            "VMDisconnected",
}

// String returns the event kind name.
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// SuspendPolicy controls which threads the target suspends when an event fires.
type SuspendPolicy uint8

// Suspend policies.
const (
	SuspendNone        SuspendPolicy = 0
	SuspendEventThread SuspendPolicy = 1
	SuspendAll         SuspendPolicy = 2
)

// String returns the policy name.
func (p SuspendPolicy) String() string {
	switch p {
	case SuspendNone:
		return "none"
	case SuspendEventThread:
		return "event-thread"
	case SuspendAll:
		return "all"
	default:
		return fmt.Sprintf("SuspendPolicy(%d)", uint8(p))
	}
}

// ModKind identifies an event request modifier (filter).
type ModKind uint8

// Modifier kinds.
const (
	ModCount               ModKind = 1
	ModConditional         ModKind = 2
	ModThreadOnly          ModKind = 3
	ModClassOnly           ModKind = 4
	ModClassMatch          ModKind = 5
	ModClassExclude        ModKind = 6
	ModLocationOnly        ModKind = 7
	ModExceptionOnly       ModKind = 8
	ModFieldOnly           ModKind = 9
	ModStep                ModKind = 10
	ModInstanceOnly        ModKind = 11
	ModSourceNameMatch     ModKind = 12
	ModPlatformThreadsOnly ModKind = 13
)

var modKindNames = map[ModKind]string{
	ModCount:               "Count",
	ModConditional:         "Conditional",
	ModThreadOnly:          "ThreadOnly",
	ModClassOnly:           "ClassOnly",
	ModClassMatch:          "ClassMatch",
	ModClassExclude:        "ClassExclude",
	ModLocationOnly:        "LocationOnly",
	ModExceptionOnly:       "ExceptionOnly",
	ModFieldOnly:           "FieldOnly",
	ModStep:                "Step",
	ModInstanceOnly:        "InstanceOnly",
	ModSourceNameMatch:     "SourceNameMatch",
	ModPlatformThreadsOnly: "PlatformThreadsOnly",
}

// String returns the modifier name.
func (m ModKind) String() string {
	if name, ok := modKindNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ModKind(%d)", uint8(m))
}

// Class status bits.
const (
	ClassStatusVerified    int32 = 1
	ClassStatusPrepared    int32 = 2
	ClassStatusInitialized int32 = 4
	ClassStatusError       int32 = 8
)

// Thread status values.
const (
	ThreadStatusZombie   int32 = 0
	ThreadStatusRunning  int32 = 1
	ThreadStatusSleeping int32 = 2
	ThreadStatusMonitor  int32 = 3
	ThreadStatusWait     int32 = 4
)

// SuspendStatusSuspended is set in a thread's suspend status when it is suspended.
const SuspendStatusSuspended int32 = 0x1

// Step sizes and depths.
const (
	StepSizeMin  int32 = 0
	StepSizeLine int32 = 1

	StepDepthInto int32 = 0
	StepDepthOver int32 = 1
	StepDepthOut  int32 = 2
)

// Invoke options.
const (
	InvokeSingleThreaded int32 = 0x01
	InvokeNonvirtual     int32 = 0x02
)
