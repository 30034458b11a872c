package trace

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/tliron/commonlog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dshills/jdwp/internal/jdwp"
)

// Options configure a Recorder.
type Options struct {
	// Session names the capture. A random UUID is used when empty.
	Session string

	// Compress wraps the stream in zstd.
	Compress bool
}

// Recorder writes every packet it observes to a capture stream.
// It implements jdwp.Tap and is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	enc     *msgpack.Encoder
	zw      *zstd.Encoder
	closer  io.Closer
	session string
	log     commonlog.Logger
	now     func() time.Time

	// sizesID is the id of the outstanding IDSizes command.
	sizesID uint32
	err     error
	closed  bool
}

var _ jdwp.Tap = (*Recorder)(nil)

// NewRecorder writes a header to w and returns a recorder appending to it.
func NewRecorder(w io.Writer, opts Options) (*Recorder, error) {
	r := &Recorder{
		session: opts.Session,
		log:     commonlog.GetLogger("trace"),
		now:     time.Now,
	}
	if r.session == "" {
		r.session = uuid.New().String()
	}

	if opts.Compress {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("trace: %w", err)
		}
		r.zw = zw
		w = zw
	}
	r.enc = msgpack.NewEncoder(w)

	header := &Record{Kind: KindHeader, Time: r.now(), Version: FormatVersion, Session: r.session}
	if err := r.enc.Encode(header); err != nil {
		return nil, fmt.Errorf("trace: writing header: %w", err)
	}
	return r, nil
}

// Create opens path for writing and returns a recorder that closes the file
// when it is closed.
func Create(path string, opts Options) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	r, err := NewRecorder(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Session returns the session id written in the header.
func (r *Recorder) Session() string {
	return r.session
}

// Packet records p. Write failures are kept and reported by Err and Close;
// the first one is logged.
func (r *Recorder) Packet(dir jdwp.Direction, p *jdwp.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.err != nil {
		return
	}

	at := r.now()
	r.write(packetRecord(at, dir, p))

	switch {
	case dir == jdwp.Outbound && !p.IsReply() && p.Command == jdwp.CmdVMIDSizes:
		r.sizesID = p.ID
	case dir == jdwp.Inbound && p.IsReply() && r.sizesID != 0 && p.ID == r.sizesID:
		r.sizesID = 0
		if p.ErrorCode != jdwp.ErrNone {
			return
		}
		sizes, err := jdwp.DecodeIDSizes(p.Data)
		if err != nil {
			r.log.Warningf("capture %s: undecodable id sizes: %s", r.session, err)
			return
		}
		r.write(&Record{Kind: KindSizes, Time: at, Sizes: &sizes})
	}
}

func (r *Recorder) write(rec *Record) {
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("trace: %w", err)
		r.log.Errorf("capture %s stopped: %s", r.session, err)
	}
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close flushes the stream. Packets observed afterwards are ignored.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return r.err
	}
	r.closed = true

	if r.zw != nil {
		if err := r.zw.Close(); err != nil && r.err == nil {
			r.err = fmt.Errorf("trace: %w", err)
		}
	}
	if r.closer != nil {
		if err := r.closer.Close(); err != nil && r.err == nil {
			r.err = fmt.Errorf("trace: %w", err)
		}
	}
	return r.err
}
