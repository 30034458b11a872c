package jdwp

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderLength is the size of a packet header in bytes.
const HeaderLength = 11

// MaxPacketLength is the largest packet accepted from a target (64MB).
const MaxPacketLength = 64 * 1024 * 1024

// FlagReply marks a reply packet.
const FlagReply uint8 = 0x80

// handshake is written by the client and echoed by the target.
var handshake = []byte("JDWP-Handshake")

// Packet is a single command or reply packet.
type Packet struct {
	ID    uint32
	Flags uint8

	// Command is valid for command packets.
	Command Command

	// ErrorCode is valid for reply packets.
	ErrorCode ErrorCode

	// Data is the packet body following the header.
	Data []byte
}

// IsReply reports whether the packet is a reply.
func (p *Packet) IsReply() bool {
	return p.Flags&FlagReply != 0
}

// String describes the packet for diagnostics.
func (p *Packet) String() string {
	if p.IsReply() {
		return fmt.Sprintf("reply id=%d error=%s len=%d", p.ID, p.ErrorCode, len(p.Data))
	}
	return fmt.Sprintf("command id=%d %s len=%d", p.ID, p.Command, len(p.Data))
}

// writePacket writes p to w as one header plus body.
func writePacket(w io.Writer, p *Packet) error {
	buf := make([]byte, HeaderLength+len(p.Data))
	binary.BigEndian.PutUint32(buf[0:4], uint32(HeaderLength+len(p.Data)))
	binary.BigEndian.PutUint32(buf[4:8], p.ID)
	buf[8] = p.Flags
	if p.IsReply() {
		binary.BigEndian.PutUint16(buf[9:11], uint16(p.ErrorCode))
	} else {
		buf[9] = uint8(p.Command.Set)
		buf[10] = p.Command.ID
	}
	copy(buf[HeaderLength:], p.Data)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

// readPacket reads one packet from r.
func readPacket(r io.Reader) (*Packet, error) {
	var hdr [HeaderLength]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	length := binary.BigEndian.Uint32(hdr[0:4])
	if length < HeaderLength {
		return nil, fmt.Errorf("invalid packet length %d", length)
	}
	if length > MaxPacketLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, length)
	}

	p := &Packet{
		ID:    binary.BigEndian.Uint32(hdr[4:8]),
		Flags: hdr[8],
	}
	if p.IsReply() {
		p.ErrorCode = ErrorCode(binary.BigEndian.Uint16(hdr[9:11]))
	} else {
		p.Command = Command{Set: CommandSet(hdr[9]), ID: hdr[10]}
	}

	p.Data = make([]byte, length-HeaderLength)
	if _, err := io.ReadFull(r, p.Data); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return p, nil
}

// Handshake performs the opening exchange on a freshly opened stream.
func Handshake(rw io.ReadWriter) error {
	if _, err := rw.Write(handshake); err != nil {
		return fmt.Errorf("%w: write: %v", ErrHandshake, err)
	}
	reply := make([]byte, len(handshake))
	if _, err := io.ReadFull(rw, reply); err != nil {
		return fmt.Errorf("%w: read: %v", ErrHandshake, err)
	}
	if string(reply) != string(handshake) {
		return fmt.Errorf("%w: unexpected reply %q", ErrHandshake, reply)
	}
	return nil
}

// AcceptHandshake performs the target side of the opening exchange.
func AcceptHandshake(rw io.ReadWriter) error {
	got := make([]byte, len(handshake))
	if _, err := io.ReadFull(rw, got); err != nil {
		return fmt.Errorf("%w: read: %v", ErrHandshake, err)
	}
	if string(got) != string(handshake) {
		return fmt.Errorf("%w: unexpected greeting %q", ErrHandshake, got)
	}
	if _, err := rw.Write(handshake); err != nil {
		return fmt.Errorf("%w: write: %v", ErrHandshake, err)
	}
	return nil
}
