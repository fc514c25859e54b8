//go:build !hdf5

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gasparian/pstable-lsh-go/annbench"
)

func TestConvertNeedsHDF5Support(t *testing.T) {
	t.Parallel()
	_, _, err := execute("convert", "--hdf5", "fashion-mnist-784-euclidean.hdf5", "--out-dir", t.TempDir())
	assert.ErrorIs(t, err, annbench.ErrHDF5Unsupported)
}

func TestConvertRejectsCompression(t *testing.T) {
	t.Parallel()
	_, _, err := execute("convert", "--hdf5", "x.hdf5", "--compress", "lz4", "--out-dir", filepath.Join(t.TempDir(), "out"))
	assert.ErrorContains(t, err, "unknown compression")
}

func TestConvertRequiresInput(t *testing.T) {
	t.Parallel()
	_, _, err := execute("convert")
	assert.ErrorContains(t, err, "hdf5")
}

func TestSearchWithHDF5Dataset(t *testing.T) {
	t.Parallel()
	_, _, err := execute(
		"--dataset", "glove.hdf5", "--queries", "glove.hdf5",
		"-q", "1", "-n", "1", "-L", "1", "-k", "1", "-w", "1",
	)
	assert.ErrorIs(t, err, annbench.ErrHDF5Unsupported)
}
