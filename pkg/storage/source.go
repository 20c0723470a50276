package storage

import (
	"bytes"
	"errors"
	"io"
)

// MaxChunkBytes bounds a single blob or diff chunk on the wire.
const MaxChunkBytes = 4 * 1024 * 1024

// ChunkSegment is one bounded piece of a byte source. The final segment of a
// source always has EOF set, even when it is empty; no earlier segment does.
type ChunkSegment struct {
	Data []byte
	EOF  bool
}

// ByteSource supplies commit content. It is materialized exactly once, at
// send time, so a source built late (or mutated between registration and
// send) is read in its final state.
type ByteSource interface {
	open() (io.Reader, error)
}

type bytesSource struct {
	data []byte
}

func (s bytesSource) open() (io.Reader, error) {
	return bytes.NewReader(s.data), nil
}

// Bytes adapts an in-memory buffer into a ByteSource.
func Bytes(data []byte) ByteSource {
	return bytesSource{data: data}
}

type readerSource struct {
	r io.Reader
}

func (s readerSource) open() (io.Reader, error) {
	if s.r == nil {
		return nil, errors.New("unsupported content source; expected binary data")
	}
	return s.r, nil
}

// Reader adapts a stream into a ByteSource. The stream is consumed in a
// single pass at send time.
func Reader(r io.Reader) ByteSource {
	return readerSource{r: r}
}

// Chunks adapts an iterator of byte slices into a ByteSource. The iterator
// returns io.EOF when exhausted.
func Chunks(next func() ([]byte, error)) ByteSource {
	return readerSource{r: &chunkIteratorReader{next: next}}
}

type deferredSource struct {
	materialize func() (io.Reader, error)
}

func (s deferredSource) open() (io.Reader, error) {
	if s.materialize == nil {
		return nil, errors.New("unsupported content source; expected binary data")
	}
	return s.materialize()
}

// SourceFunc defers materialization of a source until send time. The
// function is invoked exactly once.
func SourceFunc(materialize func() (io.Reader, error)) ByteSource {
	return deferredSource{materialize: materialize}
}

// chunkIteratorReader flattens a chunk iterator into an io.Reader.
type chunkIteratorReader struct {
	next    func() ([]byte, error)
	pending []byte
	done    bool
}

func (r *chunkIteratorReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.done {
			return 0, io.EOF
		}
		if r.next == nil {
			return 0, errors.New("unsupported content source; expected binary data")
		}
		chunk, err := r.next()
		if err == io.EOF {
			r.done = true
			continue
		}
		if err != nil {
			return 0, err
		}
		r.pending = chunk
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// chunkSegments reads r in a single pass and emits ordered segments:
// every non-final segment is exactly max bytes, the final segment is 0..max
// bytes with EOF set. An empty reader yields one empty EOF segment.
func chunkSegments(r io.Reader, max int, emit func(ChunkSegment) error) error {
	var pending []byte
	for {
		buf := make([]byte, max)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if pending != nil {
				if emitErr := emit(ChunkSegment{Data: pending, EOF: false}); emitErr != nil {
					return emitErr
				}
			}
			pending = buf[:n]
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if pending == nil {
				pending = []byte{}
			}
			return emit(ChunkSegment{Data: pending, EOF: true})
		}
		if err != nil {
			return err
		}
	}
}
