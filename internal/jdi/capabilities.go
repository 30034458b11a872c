package jdi

import (
	"fmt"

	"github.com/dshills/jdwp/internal/jdwp"
)

// Capabilities are the optional features a target reports once per
// connection. Every gated operation checks them before sending anything.
type Capabilities struct {
	CanWatchFieldModification      bool
	CanWatchFieldAccess            bool
	CanGetBytecodes                bool
	CanGetSyntheticAttribute       bool
	CanGetOwnedMonitorInfo         bool
	CanGetCurrentContendedMonitor  bool
	CanGetMonitorInfo              bool
	CanRedefineClasses             bool
	CanAddMethod                   bool
	CanUnrestrictedlyRedefineClass bool
	CanPopFrames                   bool
	CanUseInstanceFilters          bool
	CanGetSourceDebugExtension     bool
	CanRequestVMDeathEvent         bool
	CanSetDefaultStratum           bool
	CanGetInstanceInfo             bool
	CanRequestMonitorEvents        bool
	CanGetMonitorFrameInfo         bool
	CanUseSourceNameFilters        bool
	CanGetConstantPool             bool
	CanForceEarlyReturn            bool
}

// decodeCapabilities reads n booleans in protocol order. The legacy
// Capabilities command reports only the first seven.
func decodeCapabilities(d *jdwp.Decoder, n int) Capabilities {
	var c Capabilities
	flags := []*bool{
		&c.CanWatchFieldModification,
		&c.CanWatchFieldAccess,
		&c.CanGetBytecodes,
		&c.CanGetSyntheticAttribute,
		&c.CanGetOwnedMonitorInfo,
		&c.CanGetCurrentContendedMonitor,
		&c.CanGetMonitorInfo,
		&c.CanRedefineClasses,
		&c.CanAddMethod,
		&c.CanUnrestrictedlyRedefineClass,
		&c.CanPopFrames,
		&c.CanUseInstanceFilters,
		&c.CanGetSourceDebugExtension,
		&c.CanRequestVMDeathEvent,
		&c.CanSetDefaultStratum,
		&c.CanGetInstanceInfo,
		&c.CanRequestMonitorEvents,
		&c.CanGetMonitorFrameInfo,
		&c.CanUseSourceNameFilters,
		&c.CanGetConstantPool,
		&c.CanForceEarlyReturn,
	}
	for i := 0; i < n && i < len(flags); i++ {
		*flags[i] = d.Bool()
	}
	return c
}

// Version describes the target VM and the protocol version it speaks.
type Version struct {
	Description string
	JDWPMajor   int32
	JDWPMinor   int32
	VMVersion   string
	VMName      string
}

// AtLeast reports whether the protocol version is major.minor or later.
func (v Version) AtLeast(major, minor int32) bool {
	if v.JDWPMajor != major {
		return v.JDWPMajor > major
	}
	return v.JDWPMinor >= minor
}

// String returns "VMName VMVersion (JDWP major.minor)".
func (v Version) String() string {
	return fmt.Sprintf("%s %s (JDWP %d.%d)", v.VMName, v.VMVersion, v.JDWPMajor, v.JDWPMinor)
}

// Capability indices in the CapabilitiesNew reply, for tests and tools that
// build capability vectors.
const (
	CapWatchFieldModification = iota
	CapWatchFieldAccess
	CapGetBytecodes
	CapGetSyntheticAttribute
	CapGetOwnedMonitorInfo
	CapGetCurrentContendedMonitor
	CapGetMonitorInfo
	CapRedefineClasses
	CapAddMethod
	CapUnrestrictedlyRedefineClasses
	CapPopFrames
	CapUseInstanceFilters
	CapGetSourceDebugExtension
	CapRequestVMDeathEvent
	CapSetDefaultStratum
	CapGetInstanceInfo
	CapRequestMonitorEvents
	CapGetMonitorFrameInfo
	CapUseSourceNameFilters
	CapGetConstantPool
	CapForceEarlyReturn
)
