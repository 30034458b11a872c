package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/dshills/jdwp/internal/jdi"
	"github.com/dshills/jdwp/internal/jdwp"
)

// cleanupTimeout bounds the requests that restore the target on exit.
var cleanupTimeout = 5 * time.Second

// watchClasses prints class prepare and thread lifecycle events until the
// VM goes away or ctx is cancelled.
func watchClasses(ctx context.Context, w io.Writer, vm *jdi.VirtualMachine, cfg jdi.DispatcherConfig) error {
	erm := vm.EventRequestManager()
	requests := []*jdi.EventRequest{
		erm.CreateClassPrepareRequest(),
		erm.CreateThreadStartRequest(),
		erm.CreateThreadDeathRequest(),
	}
	for _, r := range requests {
		if err := r.SetSuspendPolicy(jdwp.SuspendNone); err != nil {
			return err
		}
		if err := r.Enable(ctx); err != nil {
			return err
		}
	}

	var mu sync.Mutex
	d := jdi.NewDispatcher(vm, cfg)
	d.AddHandler(func(e jdi.Event) bool {
		line := describe(ctx, e)
		mu.Lock()
		fmt.Fprintln(w, line)
		mu.Unlock()
		return true
	})

	err := d.Run(ctx)
	if ctx.Err() != nil {
		restore(ctx, vm, requests)
		return nil
	}
	return err
}

// restore disables the watch requests and releases the VM, giving up after
// cleanupTimeout.
func restore(ctx context.Context, vm *jdi.VirtualMachine, requests []*jdi.EventRequest) {
	log := commonlog.GetLogger("jdwpinspect")
	cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, r := range requests {
		if err := r.Disable(cleanup); err != nil {
			log.Warningf("disable %s request: %s", r.Kind(), err)
		}
	}
	if err := vm.Dispose(cleanup); err != nil {
		log.Warningf("dispose: %s", err)
	}
}

func describe(ctx context.Context, e jdi.Event) string {
	switch ev := e.(type) {
	case *jdi.ClassPrepareEvent:
		name, err := ev.ReferenceType().Name(ctx)
		if err != nil {
			return fmt.Sprintf("prepared  <%v>", err)
		}
		return "prepared  " + name
	case *jdi.ThreadStartEvent:
		return "started   " + threadName(ctx, ev.Thread())
	case *jdi.ThreadDeathEvent:
		return "died      " + threadName(ctx, ev.Thread())
	default:
		return e.String()
	}
}

func threadName(ctx context.Context, t *jdi.ThreadReference) string {
	if t == nil {
		return "?"
	}
	name, err := t.Name(ctx)
	if err != nil {
		return fmt.Sprintf("thread %d", t.ID())
	}
	return name
}
