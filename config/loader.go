package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix, e.g. LSH_BIN_WIDTH.
const envPrefix = "LSH"

// RegisterFlags defines every setting on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyDataset, "", "path to the dataset .fvecs file (.gz/.zst or .hdf5 accepted)")
	fs.String(KeyQueries, "", "path to the queries .fvecs file")
	fs.String(KeyGroundTruth, "", "path to the ground truth .ivecs file")
	fs.IntP(KeyNumberOfQueries, "q", 0, "number of queries to load")
	fs.IntP(KeyNeighbors, "n", 0, "number of neighbors per query")
	fs.IntP(KeyTables, "L", 0, "number of hash tables")
	fs.IntP(KeyHashFunctions, "k", 0, "number of hash functions per table")
	fs.Float32P(KeyBinWidth, "w", 0, "quantization bin width")
	fs.Uint64(KeySeed, DefaultSeed, "seed of the random projections")
	fs.Int(KeyWorkers, 0, "parallelism of every stage, 0 means GOMAXPROCS")
	fs.String(KeyLogLevel, DefaultLogLevel, "log level: debug, info, warn or error")
	fs.String(KeyLogFormat, DefaultLogFormat, "log format: console or json")
	fs.Bool(KeyProgress, false, "show a progress bar while building tables")
	fs.String(KeyMetricsFile, "", "write prometheus metrics to this file after the run")
	fs.Bool(KeyVerify, false, "check the structure of every built table")
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault(KeySeed, DefaultSeed)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyProgress, false)
	v.SetDefault(KeyVerify, false)
}

// Load resolves the configuration with precedence flag > env > file >
// default. flags may be nil and path may be empty. Mandatory settings given
// nowhere are reported together as an *ArgumentError.
func Load(flags *pflag.FlagSet, path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var missing []string
	for _, key := range Mandatory {
		if !v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &ArgumentError{Missing: missing}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
