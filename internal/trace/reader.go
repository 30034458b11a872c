package trace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dshills/jdwp/internal/jdwp"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Reader iterates the records of a capture.
type Reader struct {
	dec    *msgpack.Decoder
	zr     *zstd.Decoder
	closer io.Closer
	header Record
	sizes  *jdwp.IDSizes
}

// NewReader reads the capture header from r. Compressed captures are
// detected automatically.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	rd := &Reader{}

	magic, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trace: %w", err)
	}
	var src io.Reader = br
	if bytes.Equal(magic, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("trace: %w", err)
		}
		rd.zr = zr
		src = zr
	}
	rd.dec = msgpack.NewDecoder(src)

	if err := rd.dec.Decode(&rd.header); err != nil {
		rd.Close()
		return nil, fmt.Errorf("%w: %v", ErrBadCapture, err)
	}
	if rd.header.Kind != KindHeader {
		rd.Close()
		return nil, fmt.Errorf("%w: first record is %s", ErrBadCapture, rd.header.Kind)
	}
	if rd.header.Version > FormatVersion {
		rd.Close()
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadCapture, rd.header.Version)
	}
	return rd, nil
}

// Open opens the capture at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Header returns the capture header.
func (r *Reader) Header() Record {
	return r.header
}

// Sizes returns the identifier sizes once a sizes record has been read.
func (r *Reader) Sizes() (jdwp.IDSizes, bool) {
	if r.sizes == nil {
		return jdwp.IDSizes{}, false
	}
	return *r.sizes, true
}

// Next returns the next record, or io.EOF at the end of the capture.
func (r *Reader) Next() (*Record, error) {
	rec := &Record{}
	if err := r.dec.Decode(rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("trace: %w", err)
	}
	if rec.Kind == KindSizes && rec.Sizes != nil {
		r.sizes = rec.Sizes
	}
	return rec, nil
}

// Close releases the decompressor and any file opened by Open.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
