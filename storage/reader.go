package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gasparian/pstable-lsh-go/lsh"
)

// Reader decodes records of one vector file sequentially.
type Reader struct {
	path    string
	src     io.Reader
	closers []io.Closer
	// size is the decoded length, -1 when unknown
	size int64

	dim     int
	pending int
	records int
	buf     []byte
}

// Open opens a vector file for reading.
func Open(path string) (*Reader, error) {
	src, size, closers, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		path:    path,
		src:     src,
		closers: closers,
		size:    size,
		pending: -1,
	}, nil
}

// Path returns the file the reader was opened on.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the file and any decompressor.
func (r *Reader) Close() error {
	closers := r.closers
	r.closers = nil
	return closeAll(closers)
}

// Dimension returns the dimension of the first record.
func (r *Reader) Dimension() (int, error) {
	if r.dim > 0 {
		return r.dim, nil
	}
	d, err := r.header()
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%s: %w", r.path, ErrEmptyFile)
	}
	return d, err
}

// header reads the next record header unless one is already pending. A
// clean end of file returns io.EOF.
func (r *Reader) header() (int, error) {
	if r.pending >= 0 {
		return r.pending, nil
	}
	var hdr [4]byte
	if _, err := io.ReadFull(r.src, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("%s: record %d header: %w", r.path, r.records, err)
	}
	d := int(int32(binary.LittleEndian.Uint32(hdr[:])))
	if d <= 0 {
		return 0, fmt.Errorf("%s: record %d: %w: %d", r.path, r.records, ErrInvalidDimension, d)
	}
	if r.dim == 0 {
		// later headers must repeat this one, so it bounds every payload
		if r.size >= 0 && 4+4*int64(d) > r.size {
			return 0, fmt.Errorf("%s: record %d: %w: %d does not fit a %d byte file",
				r.path, r.records, ErrInvalidDimension, d, r.size)
		}
		r.dim = d
	} else if d != r.dim {
		return 0, fmt.Errorf("%s: record %d: %w: %d != %d", r.path, r.records, ErrInconsistentDimension, d, r.dim)
	}
	r.pending = d
	return d, nil
}

// next returns the raw payload of the next record, valid until the
// following call.
func (r *Reader) next() ([]byte, error) {
	d, err := r.header()
	if err != nil {
		return nil, err
	}
	r.pending = -1
	if cap(r.buf) < 4*d {
		r.buf = make([]byte, 4*d)
	}
	payload := r.buf[:4*d]
	if _, err := io.ReadFull(r.src, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%s: record %d payload: %w", r.path, r.records, err)
	}
	r.records++
	return payload, nil
}

func (r *Reader) notEnough(got, want int) error {
	return fmt.Errorf("%s: %w: holds %d, %d requested", r.path, ErrNotEnoughRecords, got, want)
}

func decodeFloats(payload []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
	}
}

func decodeInts(payload []byte, dst []int32) {
	for i := range dst {
		dst[i] = int32(binary.LittleEndian.Uint32(payload[4*i:]))
	}
}

// ReadVectors reads the next n float records into a dense dataset. No
// dataset is returned if fewer than n records remain.
func (r *Reader) ReadVectors(n int) (*lsh.Dataset, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative record count %d", n)
	}
	if n == 0 {
		return lsh.NewDataset(nil, 0, r.dim, r.dim)
	}
	d, err := r.Dimension()
	if errors.Is(err, ErrEmptyFile) {
		return nil, r.notEnough(0, n)
	}
	if err != nil {
		return nil, err
	}
	data := make([]float32, n*d)
	for i := 0; i < n; i++ {
		payload, err := r.next()
		if errors.Is(err, io.EOF) {
			return nil, r.notEnough(i, n)
		}
		if err != nil {
			return nil, err
		}
		decodeFloats(payload, data[i*d:(i+1)*d])
	}
	return lsh.NewDataset(data, n, d, d)
}

// ReadAllVectors reads every remaining float record.
func (r *Reader) ReadAllVectors() (*lsh.Dataset, error) {
	var data []float32
	n := 0
	for {
		payload, err := r.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]float32, r.dim)
		decodeFloats(payload, row)
		data = append(data, row...)
		n++
	}
	return lsh.NewDataset(data, n, r.dim, r.dim)
}

// ReadGroundTruth reads the next n integer records.
func (r *Reader) ReadGroundTruth(n int) ([][]int32, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative record count %d", n)
	}
	rows := make([][]int32, 0, n)
	for i := 0; i < n; i++ {
		payload, err := r.next()
		if errors.Is(err, io.EOF) {
			return nil, r.notEnough(i, n)
		}
		if err != nil {
			return nil, err
		}
		row := make([]int32, len(payload)/4)
		decodeInts(payload, row)
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadAllGroundTruth reads every remaining integer record.
func (r *Reader) ReadAllGroundTruth() ([][]int32, error) {
	var rows [][]int32
	for {
		payload, err := r.next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row := make([]int32, len(payload)/4)
		decodeInts(payload, row)
		rows = append(rows, row)
	}
}

// LoadVectors reads n records of path, or all of them when n is negative.
func LoadVectors(path string, n int) (*lsh.Dataset, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if n < 0 {
		return r.ReadAllVectors()
	}
	return r.ReadVectors(n)
}

// LoadGroundTruth reads n records of path, or all of them when n is
// negative.
func LoadGroundTruth(path string, n int) ([][]int32, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if n < 0 {
		return r.ReadAllGroundTruth()
	}
	return r.ReadGroundTruth(n)
}
