package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/trace"
)

func dumpFile(w io.Writer, path string) error {
	r, err := trace.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return dump(w, r)
}

// dump prints every record of a capture, naming composite event contents
// once identifier sizes are known.
func dump(w io.Writer, r *trace.Reader) error {
	h := r.Header()
	fmt.Fprintln(w, h.String())

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w, rec.String())

		if rec.Kind != trace.KindPacket {
			continue
		}
		p := rec.Packet()
		if p.IsReply() || p.Command != jdwp.CmdEventComposite {
			continue
		}
		if sizes, ok := r.Sizes(); ok {
			fmt.Fprintf(w, "    %s\n", compositeSummary(p.Data, sizes))
		}
	}
}

// compositeSummary names the suspend policy, the event count and the first
// event's kind and request.
func compositeSummary(data []byte, sizes jdwp.IDSizes) string {
	d := jdwp.NewDecoder(data, sizes)
	policy := jdwp.SuspendPolicy(d.Byte())
	n := d.Count()
	if d.Err() != nil {
		return "malformed composite"
	}
	kind := jdwp.EventKind(d.Byte())
	if d.Err() != nil || n == 0 {
		return fmt.Sprintf("policy=%s events=%d", policy, n)
	}
	return fmt.Sprintf("policy=%s events=%d first=%s request=%d", policy, n, kind, d.Int32())
}
