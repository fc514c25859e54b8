package storage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/gasparian/pstable-lsh-go/lsh"
)

// Writer encodes records into a vector file, compressing by extension.
type Writer struct {
	path    string
	dst     *bufio.Writer
	closers []io.Closer
	dim     int
	buf     []byte
}

// Create truncates or creates path for writing.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := &Writer{path: path}
	switch CompressionOf(path) {
	case Gzip:
		zw := gzip.NewWriter(f)
		w.dst = bufio.NewWriterSize(zw, bufferSize)
		w.closers = []io.Closer{zw, f}
	case Zstd:
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		w.dst = bufio.NewWriterSize(zw, bufferSize)
		w.closers = []io.Closer{zw, f}
	default:
		w.dst = bufio.NewWriterSize(f, bufferSize)
		w.closers = []io.Closer{f}
	}
	return w, nil
}

func (w *Writer) record(values int, put func(payload []byte)) error {
	if values <= 0 {
		return fmt.Errorf("%s: %w: %d", w.path, ErrInvalidDimension, values)
	}
	if w.dim == 0 {
		w.dim = values
	} else if values != w.dim {
		return fmt.Errorf("%s: %w: %d != %d", w.path, ErrInconsistentDimension, values, w.dim)
	}
	if cap(w.buf) < 4+4*values {
		w.buf = make([]byte, 4+4*values)
	}
	b := w.buf[:4+4*values]
	binary.LittleEndian.PutUint32(b, uint32(values))
	put(b[4:])
	_, err := w.dst.Write(b)
	return err
}

// WriteVector appends one float record.
func (w *Writer) WriteVector(v []float32) error {
	return w.record(len(v), func(payload []byte) {
		for i, x := range v {
			binary.LittleEndian.PutUint32(payload[4*i:], math.Float32bits(x))
		}
	})
}

// WriteDataset appends every row of ds.
func (w *Writer) WriteDataset(ds *lsh.Dataset) error {
	for i := 0; i < ds.N; i++ {
		if err := w.WriteVector(ds.Row(i)); err != nil {
			return err
		}
	}
	return nil
}

// WriteIndices appends one integer record.
func (w *Writer) WriteIndices(v []int32) error {
	return w.record(len(v), func(payload []byte) {
		for i, x := range v {
			binary.LittleEndian.PutUint32(payload[4*i:], uint32(x))
		}
	})
}

// Close flushes buffered records and closes the file.
func (w *Writer) Close() error {
	if w.closers == nil {
		return nil
	}
	closers := w.closers
	w.closers = nil
	if err := w.dst.Flush(); err != nil {
		closeAll(closers)
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	return closeAll(closers)
}
