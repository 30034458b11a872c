// Package trace captures JDWP packets to a file and reads captures back.
//
// A capture is a stream of msgpack records, optionally wrapped in a zstd
// stream. The first record is a header naming the session; a sizes record
// follows once the identifier sizes have been negotiated, then one record
// per packet in the order the transport saw them.
package trace

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/jdwp/internal/jdwp"
)

// FormatVersion is written into every header.
const FormatVersion = 1

// ErrBadCapture is returned when a stream is not a packet capture.
var ErrBadCapture = errors.New("trace: not a packet capture")

// Kind distinguishes capture records.
type Kind uint8

// Record kinds.
const (
	KindHeader Kind = iota + 1
	KindSizes
	KindPacket
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindSizes:
		return "sizes"
	case KindPacket:
		return "packet"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Record is one entry of a capture.
type Record struct {
	Kind Kind      `msgpack:"k"`
	Time time.Time `msgpack:"t"`

	// Header fields.
	Version int    `msgpack:"v,omitempty"`
	Session string `msgpack:"s,omitempty"`

	// Sizes is set on sizes records.
	Sizes *jdwp.IDSizes `msgpack:"sz,omitempty"`

	// Packet fields.
	Direction jdwp.Direction `msgpack:"d"`
	ID        uint32         `msgpack:"id"`
	Flags     uint8          `msgpack:"f"`
	CmdSet    uint8          `msgpack:"cs"`
	Cmd       uint8          `msgpack:"c"`
	Error     uint16         `msgpack:"e"`
	Data      []byte         `msgpack:"data,omitempty"`
}

func packetRecord(at time.Time, dir jdwp.Direction, p *jdwp.Packet) *Record {
	r := &Record{
		Kind:      KindPacket,
		Time:      at,
		Direction: dir,
		ID:        p.ID,
		Flags:     p.Flags,
		Data:      p.Data,
	}
	if p.IsReply() {
		r.Error = uint16(p.ErrorCode)
	} else {
		r.CmdSet = uint8(p.Command.Set)
		r.Cmd = p.Command.ID
	}
	return r
}

// Packet rebuilds the captured packet.
func (r *Record) Packet() *jdwp.Packet {
	p := &jdwp.Packet{ID: r.ID, Flags: r.Flags, Data: r.Data}
	if p.IsReply() {
		p.ErrorCode = jdwp.ErrorCode(r.Error)
	} else {
		p.Command = jdwp.Command{Set: jdwp.CommandSet(r.CmdSet), ID: r.Cmd}
	}
	return p
}

// String renders the record with protocol names.
func (r *Record) String() string {
	ts := r.Time.Format("15:04:05.000000")
	switch r.Kind {
	case KindHeader:
		return fmt.Sprintf("%s capture v%d session %s", ts, r.Version, r.Session)
	case KindSizes:
		if r.Sizes == nil {
			return ts + " sizes ?"
		}
		s := r.Sizes
		return fmt.Sprintf("%s sizes field=%d method=%d object=%d reftype=%d frame=%d",
			ts, s.FieldID, s.MethodID, s.ObjectID, s.ReferenceTypeID, s.FrameID)
	case KindPacket:
		return fmt.Sprintf("%s %-3s %s", ts, r.Direction, r.Packet())
	default:
		return fmt.Sprintf("%s %s", ts, r.Kind)
	}
}
