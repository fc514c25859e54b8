package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gasparian/pstable-lsh-go/annbench"
	"github.com/gasparian/pstable-lsh-go/common"
	"github.com/gasparian/pstable-lsh-go/config"
	"github.com/gasparian/pstable-lsh-go/lsh"
	"github.com/gasparian/pstable-lsh-go/metrics"
	"github.com/gasparian/pstable-lsh-go/storage"
)

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "lsh-search",
		Short: "Approximate nearest neighbor search with p-stable LSH",
		Long: `lsh-search indexes the vectors of --dataset into L hash tables of k
p-stable projections each, then answers the first -q vectors of --queries
with their n approximate nearest neighbors by squared Euclidean distance.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), configPath)
			if err != nil {
				var argErr *config.ArgumentError
				if errors.As(err, &argErr) {
					fmt.Fprint(stderr, cmd.UsageString())
				}
				return err
			}
			return run(cfg, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprint(stderr, c.UsageString())
		return err
	})
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with any of the settings above")
	cmd.Flags().SortFlags = false
	cmd.AddCommand(newConvertCommand(stderr))
	return cmd
}

func isHDF5(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".hdf5")
}

// loadVectors reads the first n vectors of path, or all of them when n is
// negative. HDF5 files are read from the named dataset.
func loadVectors(path, hdf5Set string, n int) (*lsh.Dataset, error) {
	if !isHDF5(path) {
		return storage.LoadVectors(path, n)
	}
	ds, err := annbench.LoadHDF5(path, hdf5Set)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return ds, nil
	}
	if ds.N < n {
		return nil, fmt.Errorf("%s: %w: holds %d, %d requested", path, storage.ErrNotEnoughRecords, ds.N, n)
	}
	return ds.Slice(0, n), nil
}

func loadGroundTruth(path string, n int) ([][]int32, error) {
	if !isHDF5(path) {
		return storage.LoadGroundTruth(path, n)
	}
	rows, err := annbench.LoadHDF5Neighbors(path, annbench.NeighborsSet)
	if err != nil {
		return nil, err
	}
	if len(rows) < n {
		return nil, fmt.Errorf("%s: %w: holds %d, %d requested", path, storage.ErrNotEnoughRecords, len(rows), n)
	}
	return rows[:n], nil
}

func run(cfg *config.Config, stdout, stderr io.Writer) error {
	logger, err := common.NewLogger(common.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: stderr,
	})
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", common.NewRunID()))
	defer logger.Sync()

	done := common.Timer(logger, "load")
	data, err := loadVectors(cfg.Dataset, annbench.TrainSet, -1)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	queries, err := loadVectors(cfg.Queries, annbench.TestSet, cfg.NumberOfQueries)
	if err != nil {
		return fmt.Errorf("load queries: %w", err)
	}
	var groundTruth [][]int32
	if cfg.GroundTruth != "" {
		groundTruth, err = loadGroundTruth(cfg.GroundTruth, cfg.NumberOfQueries)
		if err != nil {
			return fmt.Errorf("load ground truth: %w", err)
		}
	}
	done(
		zap.Int("vectors", data.N),
		zap.Int("dimension", data.D),
		zap.String("dataset_size", humanize.IBytes(data.SizeBytes())),
		zap.Int("queries", queries.N),
	)

	registry := prometheus.NewRegistry()
	opts := []lsh.Option{
		lsh.WithLogger(logger),
		lsh.WithMetrics(metrics.New(registry)),
	}
	if cfg.Progress {
		bar := pb.New(cfg.Tables)
		bar.SetWriter(stderr)
		bar.Start()
		defer bar.Finish()
		opts = append(opts, lsh.WithBuildObserver(func(int) { bar.Increment() }))
	}

	index, err := lsh.New(lsh.Config{
		K:       cfg.HashFunctions,
		L:       cfg.Tables,
		W:       cfg.BinWidth,
		Seed:    cfg.Seed,
		Workers: cfg.Workers,
	}, data, opts...)
	if err != nil {
		return err
	}

	done = common.Timer(logger, "build")
	if err := index.BuildIndex(); err != nil {
		return err
	}
	done(zap.Int("tables", cfg.Tables), zap.Int("hash_functions", cfg.HashFunctions))

	if cfg.Verify {
		for i, t := range index.Index().Tables() {
			if err := t.Validate(); err != nil {
				return fmt.Errorf("verify hash table %d: %w", i, err)
			}
		}
		logger.Info("hash tables verified", zap.Int("tables", cfg.Tables))
	}

	done = common.Timer(logger, "query")
	results, err := index.Query(queries, cfg.Neighbors)
	if err != nil {
		return err
	}
	done(zap.Int("queries", queries.N), zap.Int("neighbors", cfg.Neighbors))

	if err := writeResults(stdout, results, groundTruth, cfg.Neighbors); err != nil {
		return err
	}

	if groundTruth != nil {
		rep, err := annbench.Evaluate(results, groundTruth, cfg.Neighbors)
		if err != nil {
			return err
		}
		logger.Info("recall against ground truth",
			zap.Int("neighbors", rep.Neighbors),
			zap.Float64("mean_recall", rep.MeanRecall),
			zap.Float64("min_recall", rep.MinRecall),
			zap.Int("empty_results", rep.Empty),
		)
	}

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Info("metrics written", zap.String("path", cfg.MetricsFile))
	}
	return nil
}

// writeResults prints one line per query and, with ground truth, one line
// with its first n exact neighbors.
func writeResults(w io.Writer, results []lsh.QueryResult, groundTruth [][]int32, n int) error {
	out := bufio.NewWriter(w)
	line := make([]byte, 0, 256)
	for _, r := range results {
		line = append(line[:0], "query "...)
		line = strconv.AppendUint(line, uint64(r.QueryIdx), 10)
		line = append(line, ':')
		for _, idx := range r.ResultIdx {
			line = append(line, ' ')
			line = strconv.AppendUint(line, uint64(idx), 10)
		}
		line = append(line, '\n')
		if groundTruth != nil {
			truth := groundTruth[r.QueryIdx]
			truth = truth[:min(n, len(truth))]
			line = append(line, "groundtruth "...)
			line = strconv.AppendUint(line, uint64(r.QueryIdx), 10)
			line = append(line, ':')
			for _, idx := range truth {
				line = append(line, ' ')
				line = strconv.AppendInt(line, int64(idx), 10)
			}
			line = append(line, '\n')
		}
		if _, err := out.Write(line); err != nil {
			return err
		}
	}
	return out.Flush()
}
