// Package jdi provides a mirror model of a Java virtual machine reached over
// a JDWP connection.
//
// A VirtualMachine is attached to a negotiated jdwp.Conn. Every entity of
// the target (types, objects, threads, frames) is presented as a mirror
// whose identity is stable for the life of the connection: two replies
// naming the same identifier yield the same Go pointer.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                       VirtualMachine                       │
//	│  ┌──────────────┐  ┌─────────────────┐  ┌──────────────┐   │
//	│  │ mirrorCache  │  │ EventRequest    │  │ EventQueue   │   │
//	│  │ types/objects│  │ Manager         │  │              │   │
//	│  └──────┬───────┘  └────────┬────────┘  └──────┬───────┘   │
//	│         │                   │                  │           │
//	│         └─────────────┬─────┴──────────────────┘           │
//	│                       │                                    │
//	└───────────────────────┼────────────────────────────────────┘
//	                        │
//	              ┌─────────▼─────────┐        ┌──────────────┐
//	              │    jdwp.Conn      │◄──────►│  Dispatcher  │
//	              └───────────────────┘        └──────────────┘
//
// # Caching
//
// Reference type metadata is fetched lazily and kept until the type is
// flushed. Inherited views (AllFields, VisibleMethods, AllInterfaces) are
// derived from declared data and discarded when any supertype is flushed.
// Concurrent requests for the same metadata share one round trip.
//
// # Events
//
// EventRequests are created disabled. Enabling one sends it to the target;
// events it produces carry a pointer back to it. The EventQueue yields
// decoded EventSets in arrival order and a single VMDisconnectEvent when the
// connection is lost. A Dispatcher fans sets out to handlers and resumes the
// VM when every handler agrees.
//
// # Usage
//
//	conn := jdwp.NewConn(jdwp.NewStreamTransport(c), jdwp.Options{})
//	vm, err := jdi.Attach(ctx, conn, jdi.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	d := jdi.NewDispatcher(vm, jdi.DispatcherConfig{})
//	d.AddHandler(func(e jdi.Event) bool {
//	    log.Println(e)
//	    return true
//	})
//	go d.Run(ctx)
package jdi
