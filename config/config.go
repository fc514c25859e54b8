// Package config resolves the settings of the lsh-search command from flags,
// LSH_* environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Setting keys, shared by flags, environment and config file
const (
	KeyDataset         = "dataset"
	KeyQueries         = "queries"
	KeyGroundTruth     = "groundtruth"
	KeyNumberOfQueries = "number-of-queries"
	KeyNeighbors       = "neighbors"
	KeyTables          = "tables"
	KeyHashFunctions   = "hash-functions"
	KeyBinWidth        = "bin-width"
	KeySeed            = "seed"
	KeyWorkers         = "workers"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyProgress        = "progress"
	KeyMetricsFile     = "metrics-file"
	KeyVerify          = "verify"
)

// Mandatory lists the keys that have no default.
var Mandatory = []string{
	KeyDataset,
	KeyQueries,
	KeyNumberOfQueries,
	KeyNeighbors,
	KeyTables,
	KeyHashFunctions,
	KeyBinWidth,
}

// Defaults of the optional settings
const (
	DefaultSeed      = 1
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Sentinel errors for invalid values.
var (
	ErrInvalidCount    = errors.New("count must be positive")
	ErrInvalidBinWidth = errors.New("bin width must be a positive finite number")
	ErrInvalidWorkers  = errors.New("workers must not be negative")
)

// ArgumentError reports mandatory settings that were given nowhere.
type ArgumentError struct {
	Missing []string
}

func (e *ArgumentError) Error() string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = "--" + m
	}
	return fmt.Sprintf("missing required options: %s", strings.Join(names, ", "))
}

// Config is the resolved configuration of one run.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Dataset         string  `mapstructure:"dataset"`
	Queries         string  `mapstructure:"queries"`
	GroundTruth     string  `mapstructure:"groundtruth"`
	NumberOfQueries int     `mapstructure:"number-of-queries"`
	Neighbors       int     `mapstructure:"neighbors"`
	Tables          int     `mapstructure:"tables"`
	HashFunctions   int     `mapstructure:"hash-functions"`
	BinWidth        float32 `mapstructure:"bin-width"`
	Seed            uint64  `mapstructure:"seed"`
	Workers         int     `mapstructure:"workers"`
	LogLevel        string  `mapstructure:"log-level"`
	LogFormat       string  `mapstructure:"log-format"`
	Progress        bool    `mapstructure:"progress"`
	MetricsFile     string  `mapstructure:"metrics-file"`
	Verify          bool    `mapstructure:"verify"`
}

// Validate checks value ranges. Presence is checked by Load.
func (c *Config) Validate() error {
	counts := []struct {
		key   string
		value int
	}{
		{KeyNumberOfQueries, c.NumberOfQueries},
		{KeyNeighbors, c.Neighbors},
		{KeyTables, c.Tables},
		{KeyHashFunctions, c.HashFunctions},
	}
	for _, cnt := range counts {
		if cnt.value <= 0 {
			return fmt.Errorf("%s=%d: %w", cnt.key, cnt.value, ErrInvalidCount)
		}
	}
	if !(c.BinWidth > 0) || math.IsInf(float64(c.BinWidth), 0) {
		return fmt.Errorf("%s=%v: %w", KeyBinWidth, c.BinWidth, ErrInvalidBinWidth)
	}
	if c.Workers < 0 {
		return ErrInvalidWorkers
	}
	return nil
}
