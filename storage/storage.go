// Package storage reads and writes the .fvecs/.ivecs vector files used by
// ANN benchmarks. Every record is a little-endian int32 dimension followed
// by that many 4-byte values. Plain files are memory-mapped; files ending in
// .gz or .zst are streamed through a decompressor.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/mmap"
)

const bufferSize = 1 << 20

var (
	// ErrNotEnoughRecords is returned when a file holds fewer records than requested.
	ErrNotEnoughRecords = errors.New("not enough records")
	// ErrInconsistentDimension is returned when a record header differs from the first one.
	ErrInconsistentDimension = errors.New("record dimension differs from the first record")
	// ErrInvalidDimension is returned for a record header that is not positive.
	ErrInvalidDimension = errors.New("record dimension must be positive")
	// ErrEmptyFile is returned when the dimension of a file without records is requested.
	ErrEmptyFile = errors.New("file holds no records")
)

// Compression is the container format of a vector file.
type Compression int

// Supported containers
const (
	Plain Compression = iota
	Gzip
	Zstd
)

// CompressionOf picks the container format from the file extension.
func CompressionOf(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	default:
		return Plain
	}
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

// open returns a buffered stream over the decoded content of path and the
// decoded size, or -1 when the size is only known after decoding.
func open(path string) (io.Reader, int64, []io.Closer, error) {
	if CompressionOf(path) == Plain {
		m, err := mmap.Open(path)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("mmap %s: %w", path, err)
		}
		size := int64(m.Len())
		src := io.NewSectionReader(m, 0, size)
		return bufio.NewReaderSize(src, bufferSize), size, []io.Closer{m}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("open %s: %w", path, err)
	}
	buffered := bufio.NewReaderSize(f, bufferSize)
	switch CompressionOf(path) {
	case Gzip:
		zr, err := gzip.NewReader(buffered)
		if err != nil {
			f.Close()
			return nil, 0, nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return bufio.NewReaderSize(zr, bufferSize), -1, []io.Closer{zr, f}, nil
	default:
		zr, err := zstd.NewReader(buffered)
		if err != nil {
			f.Close()
			return nil, 0, nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		release := closeFunc(func() error {
			zr.Close()
			return nil
		})
		return bufio.NewReaderSize(zr, bufferSize), -1, []io.Closer{release, f}, nil
	}
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
