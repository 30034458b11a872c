package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/jdwp/internal/jdi"
	"github.com/dshills/jdwp/internal/jdwp"
)

// nameLookups bounds concurrent thread name requests.
const nameLookups = 8

var threadStatusNames = map[int32]string{
	jdwp.ThreadStatusZombie:   "zombie",
	jdwp.ThreadStatusRunning:  "running",
	jdwp.ThreadStatusSleeping: "sleeping",
	jdwp.ThreadStatusMonitor:  "monitor",
	jdwp.ThreadStatusWait:     "wait",
}

type capability struct {
	name string
	on   bool
}

func capabilityList(c jdi.Capabilities) []capability {
	return []capability{
		{"watch field modification", c.CanWatchFieldModification},
		{"watch field access", c.CanWatchFieldAccess},
		{"get bytecodes", c.CanGetBytecodes},
		{"get synthetic attribute", c.CanGetSyntheticAttribute},
		{"get owned monitor info", c.CanGetOwnedMonitorInfo},
		{"get current contended monitor", c.CanGetCurrentContendedMonitor},
		{"get monitor info", c.CanGetMonitorInfo},
		{"redefine classes", c.CanRedefineClasses},
		{"add method", c.CanAddMethod},
		{"unrestrictedly redefine classes", c.CanUnrestrictedlyRedefineClass},
		{"pop frames", c.CanPopFrames},
		{"use instance filters", c.CanUseInstanceFilters},
		{"get source debug extension", c.CanGetSourceDebugExtension},
		{"request VM death event", c.CanRequestVMDeathEvent},
		{"set default stratum", c.CanSetDefaultStratum},
		{"get instance info", c.CanGetInstanceInfo},
		{"request monitor events", c.CanRequestMonitorEvents},
		{"get monitor frame info", c.CanGetMonitorFrameInfo},
		{"use source name filters", c.CanUseSourceNameFilters},
		{"get constant pool", c.CanGetConstantPool},
		{"force early return", c.CanForceEarlyReturn},
	}
}

type threadInfo struct {
	id     jdwp.ObjectID
	name   string
	status string
}

// printSummary writes the VM version, capabilities and thread list.
func printSummary(ctx context.Context, w io.Writer, vm *jdi.VirtualMachine) error {
	v := vm.Version()
	sizes := vm.Conn().Sizes()
	fmt.Fprintf(w, "Session:  %s\n", vm.SessionID())
	fmt.Fprintf(w, "VM:       %s %s\n", v.VMName, v.VMVersion)
	fmt.Fprintf(w, "JDWP:     %d.%d\n", v.JDWPMajor, v.JDWPMinor)
	fmt.Fprintf(w, "ID sizes: field=%d method=%d object=%d reftype=%d frame=%d\n",
		sizes.FieldID, sizes.MethodID, sizes.ObjectID, sizes.ReferenceTypeID, sizes.FrameID)

	fmt.Fprintf(w, "\nCapabilities:\n")
	for _, c := range capabilityList(vm.Capabilities()) {
		mark := "-"
		if c.on {
			mark = "+"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, c.name)
	}

	threads, err := threadInfos(ctx, vm)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nThreads (%d):\n", len(threads))
	for _, t := range threads {
		fmt.Fprintf(w, "  %-6d %-9s %s\n", t.id, t.status, t.name)
	}
	return nil
}

// threadInfos fetches every thread's name and status concurrently.
func threadInfos(ctx context.Context, vm *jdi.VirtualMachine) ([]threadInfo, error) {
	threads, err := vm.AllThreads(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]threadInfo, len(threads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nameLookups)
	for i, t := range threads {
		g.Go(func() error {
			name, err := t.Name(gctx)
			if err != nil {
				return fmt.Errorf("thread %d: %w", t.ID(), err)
			}
			status, err := t.Status(gctx)
			if err != nil {
				return fmt.Errorf("thread %d: %w", t.ID(), err)
			}
			label, ok := threadStatusNames[status]
			if !ok {
				label = fmt.Sprint(status)
			}
			infos[i] = threadInfo{id: t.ID(), name: name, status: label}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].id < infos[j].id })
	return infos, nil
}
