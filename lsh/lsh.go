package lsh

import (
	"go.uber.org/zap"

	"github.com/gasparian/pstable-lsh-go/metrics"
)

// Config holds the parameters of an LSH index
type Config struct {
	// K is the number of hash functions per table
	K int
	// L is the number of hash tables
	L int
	// W is the quantization bin width
	W float32
	// Seed drives every random draw of the build
	Seed uint64
	// Workers bounds the parallelism, GOMAXPROCS when not positive
	Workers int
}

type options struct {
	seed         uint64
	workers      int
	logger       *zap.Logger
	metrics      *metrics.Metrics
	onTableBuilt func(table int)
	// prepareTable adjusts every table before it is built
	prepareTable func(t *HashTable)
}

func defaultOptions() options {
	return options{
		seed:   1,
		logger: zap.NewNop(),
	}
}

// Option configures an Index
type Option func(*options)

// WithSeed sets the seed of the projection draws.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithWorkers bounds the number of goroutines of every parallel stage.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets the logger of build and query summaries.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records build and query stages into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithBuildObserver calls fn after each successfully built table. fn may be
// called concurrently.
func WithBuildObserver(fn func(table int)) Option {
	return func(o *options) {
		o.onTableBuilt = fn
	}
}

// LSH is the entry point: it owns one Index over a caller provided dataset
type LSH struct {
	config Config
	index  *Index
}

// New creates an unbuilt LSH instance.
func New(config Config, data *Dataset, opts ...Option) (*LSH, error) {
	all := append([]Option{WithSeed(config.Seed), WithWorkers(config.Workers)}, opts...)
	index, err := NewIndex(config.K, config.L, config.W, data, all...)
	if err != nil {
		return nil, err
	}
	return &LSH{config: config, index: index}, nil
}

// Config returns the parameters the instance was created with.
func (l *LSH) Config() Config {
	return l.config
}

// BuildIndex builds all hash tables.
func (l *LSH) BuildIndex() error {
	return l.index.BuildIndex()
}

// Query returns up to n approximate nearest neighbors of every query.
func (l *LSH) Query(queries *Dataset, n int) ([]QueryResult, error) {
	return l.index.Query(queries, n)
}

// Index exposes the underlying index.
func (l *LSH) Index() *Index {
	return l.index
}
