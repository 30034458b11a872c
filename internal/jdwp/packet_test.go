package jdwp

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketFraming(t *testing.T) {
	tests := []struct {
		name string
		p    Packet
	}{
		{"command", Packet{ID: 7, Command: CmdVMVersion, Data: []byte{1, 2}}},
		{"empty command", Packet{ID: 8, Command: CmdVMIDSizes}},
		{"reply", Packet{ID: 9, Flags: FlagReply, ErrorCode: ErrInvalidObject}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writePacket(&buf, &tt.p))
			assert.Equal(t, uint32(HeaderLength+len(tt.p.Data)), binary.BigEndian.Uint32(buf.Bytes()))

			got, err := readPacket(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.p.ID, got.ID)
			assert.Equal(t, tt.p.IsReply(), got.IsReply())
			if tt.p.IsReply() {
				assert.Equal(t, tt.p.ErrorCode, got.ErrorCode)
			} else {
				assert.Equal(t, tt.p.Command, got.Command)
			}
			assert.Equal(t, len(tt.p.Data), len(got.Data))
		})
	}
}

func TestReadPacketRejectsBadLength(t *testing.T) {
	hdr := make([]byte, HeaderLength)
	binary.BigEndian.PutUint32(hdr, 3)
	_, err := readPacket(bytes.NewReader(hdr))
	assert.Error(t, err)

	binary.BigEndian.PutUint32(hdr, MaxPacketLength+1)
	_, err = readPacket(bytes.NewReader(hdr))
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	errc := make(chan error, 1)
	go func() { errc <- AcceptHandshake(server) }()

	require.NoError(t, Handshake(client))
	require.NoError(t, <-errc)
}

func TestHandshakeRejectsWrongEcho(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, len(handshake))
		server.Read(buf)
		server.Write([]byte("NOT-A-Handshak"))
	}()

	assert.ErrorIs(t, Handshake(client), ErrHandshake)
}
