package trace

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/jdwp/jdwptest"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// session runs IDSizes and Version through a recorder attached to a fake
// target.
func session(t *testing.T, rec *Recorder) {
	t.Helper()
	target := jdwptest.New(jdwp.IDSizes{FieldID: 8, MethodID: 8, ObjectID: 8, ReferenceTypeID: 8, FrameID: 4})
	defer target.Close()
	require.NoError(t, jdwp.Handshake(target.ClientConn()))

	conn := jdwp.NewConn(jdwp.NewStreamTransport(target.ClientConn()), jdwp.Options{Tap: rec})
	defer conn.Close()

	ctx := context.Background()
	_, err := conn.NegotiateIDSizes(ctx)
	require.NoError(t, err)
	_, err = conn.Call(ctx, jdwp.CmdVMVersion, nil)
	require.NoError(t, err)
}

func readAll(t *testing.T, r *Reader) []*Record {
	t.Helper()
	var out []*Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestRecordAndReadBack(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			rec, err := NewRecorder(&buf, Options{Session: "s-1", Compress: compress})
			require.NoError(t, err)
			session(t, rec)
			require.NoError(t, rec.Close())

			if compress {
				assert.True(t, bytes.HasPrefix(buf.Bytes(), zstdMagic))
			}

			r, err := NewReader(&buf)
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, "s-1", r.Header().Session)
			assert.Equal(t, FormatVersion, r.Header().Version)

			records := readAll(t, r)
			kinds := make([]Kind, len(records))
			for i, rec := range records {
				kinds[i] = rec.Kind
			}
			assert.Equal(t, []Kind{KindPacket, KindPacket, KindSizes, KindPacket, KindPacket}, kinds)

			first := records[0].Packet()
			assert.Equal(t, jdwp.CmdVMIDSizes, first.Command)
			assert.Equal(t, jdwp.Outbound, records[0].Direction)
			assert.True(t, records[1].Packet().IsReply())
			assert.Equal(t, first.ID, records[1].ID)

			sizes, ok := r.Sizes()
			require.True(t, ok)
			assert.Equal(t, 4, sizes.FrameID)
			assert.Equal(t, 8, sizes.ObjectID)

			assert.Equal(t, jdwp.CmdVMVersion, records[3].Packet().Command)
			assert.NotEmpty(t, records[4].Data)
		})
	}
}

func TestRecorderIgnoresPacketsAfterClose(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Session(), "a session id is generated")
	require.NoError(t, rec.Close())

	n := buf.Len()
	rec.Packet(jdwp.Outbound, &jdwp.Packet{ID: 1, Command: jdwp.CmdVMVersion})
	assert.Equal(t, n, buf.Len())
	assert.NoError(t, rec.Close())
}

type failingWriter struct{ fail bool }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.fail {
		return 0, errors.New("disk full")
	}
	return len(p), nil
}

func TestRecorderKeepsFirstWriteError(t *testing.T) {
	w := &failingWriter{}
	rec, err := NewRecorder(w, Options{})
	require.NoError(t, err)
	w.fail = true

	rec.Packet(jdwp.Outbound, &jdwp.Packet{ID: 1, Command: jdwp.CmdVMVersion})
	rec.Packet(jdwp.Inbound, &jdwp.Packet{ID: 1, Flags: jdwp.FlagReply})
	require.Error(t, rec.Err())
	assert.Contains(t, rec.Err().Error(), "disk full")
	assert.Equal(t, rec.Err(), rec.Close())
}

func TestRecorderSkipsFailedSizesReply(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, Options{})
	require.NoError(t, err)
	rec.Packet(jdwp.Outbound, &jdwp.Packet{ID: 3, Command: jdwp.CmdVMIDSizes})
	rec.Packet(jdwp.Inbound, &jdwp.Packet{ID: 3, Flags: jdwp.FlagReply, ErrorCode: jdwp.ErrVMDead})
	require.NoError(t, rec.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Len(t, readAll(t, r), 2)
	_, ok := r.Sizes()
	assert.False(t, ok)
}

func TestReaderRejectsForeignStreams(t *testing.T) {
	_, err := NewReader(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrBadCapture)

	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(&Record{Kind: KindPacket}))
	_, err = NewReader(&buf)
	assert.ErrorIs(t, err, ErrBadCapture)

	buf.Reset()
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(&Record{Kind: KindHeader, Version: FormatVersion + 1}))
	_, err = NewReader(&buf)
	assert.ErrorIs(t, err, ErrBadCapture)
}

func TestCreateAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jdwp")
	rec, err := Create(path, Options{Compress: true})
	require.NoError(t, err)
	rec.Packet(jdwp.Outbound, &jdwp.Packet{ID: 9, Command: jdwp.CmdVMAllThreads})
	require.NoError(t, rec.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, rec.Session(), r.Header().Session)

	records := readAll(t, r)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].String(), "VirtualMachine.AllThreads")
	assert.Contains(t, records[0].String(), "out")
}

func TestRecordString(t *testing.T) {
	reply := packetRecord(testTime, jdwp.Inbound, &jdwp.Packet{ID: 4, Flags: jdwp.FlagReply, ErrorCode: jdwp.ErrInvalidThread})
	assert.Contains(t, reply.String(), "in  reply id=4")
	assert.Contains(t, reply.String(), jdwp.ErrInvalidThread.String())

	sizes := &Record{Kind: KindSizes, Time: testTime, Sizes: &jdwp.DefaultIDSizes}
	assert.Contains(t, sizes.String(), "sizes field=8")
}
