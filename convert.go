package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gasparian/pstable-lsh-go/annbench"
	"github.com/gasparian/pstable-lsh-go/common"
	"github.com/gasparian/pstable-lsh-go/config"
	"github.com/gasparian/pstable-lsh-go/storage"
)

var compressionSuffix = map[string]string{
	"none": "",
	"gz":   ".gz",
	"zst":  ".zst",
}

type convertOptions struct {
	input       string
	outDir      string
	compression string
	logLevel    string
}

// newConvertCommand splits an ann-benchmarks HDF5 file into the fvecs and
// ivecs files the search command reads.
func newConvertCommand(stderr io.Writer) *cobra.Command {
	var opts convertOptions
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert an ann-benchmarks HDF5 file into fvecs/ivecs files",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return convert(opts, stderr)
		},
	}
	cmd.Flags().StringVar(&opts.input, "hdf5", "", "ann-benchmarks .hdf5 file")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", ".", "directory of the written files")
	cmd.Flags().StringVar(&opts.compression, "compress", "none", "compression of the written files: none, gz or zst")
	cmd.Flags().StringVar(&opts.logLevel, config.KeyLogLevel, config.DefaultLogLevel, "log level")
	_ = cmd.MarkFlagRequired("hdf5")
	return cmd
}

func convert(opts convertOptions, stderr io.Writer) error {
	suffix, ok := compressionSuffix[opts.compression]
	if !ok {
		return fmt.Errorf("unknown compression %q", opts.compression)
	}
	logger, err := common.NewLogger(common.LogConfig{Level: opts.logLevel, Output: stderr})
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", common.NewRunID()), zap.String("input", opts.input))
	defer logger.Sync()

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	for _, set := range []string{annbench.TestSet, annbench.TrainSet} {
		ds, err := annbench.LoadHDF5(opts.input, set)
		if err != nil {
			return err
		}
		path := filepath.Join(opts.outDir, set+".fvecs"+suffix)
		w, err := storage.Create(path)
		if err != nil {
			return err
		}
		if err := w.WriteDataset(ds); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		logger.Info("vectors written",
			zap.String("path", path),
			zap.Int("vectors", ds.N),
			zap.Int("dimension", ds.D),
			zap.String("size", humanize.IBytes(ds.SizeBytes())),
		)
	}

	neighbors, err := annbench.LoadHDF5Neighbors(opts.input, annbench.NeighborsSet)
	if err != nil {
		return err
	}
	path := filepath.Join(opts.outDir, annbench.NeighborsSet+".ivecs"+suffix)
	w, err := storage.Create(path)
	if err != nil {
		return err
	}
	for _, row := range neighbors {
		if err := w.WriteIndices(row); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Info("ground truth written", zap.String("path", path), zap.Int("queries", len(neighbors)))
	return nil
}
