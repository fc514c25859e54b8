package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

var fullArgs = []string{
	"--dataset", "base.fvecs",
	"--queries", "query.fvecs",
	"-q", "10",
	"-n", "5",
	"-L", "8",
	"-k", "4",
	"-w", "2.5",
}

func TestLoadFromFlags(t *testing.T) {
	t.Parallel()
	cfg, err := Load(parseFlags(t, append(fullArgs, "--workers", "3", "--verify")...), "")
	require.NoError(t, err)
	assert.Equal(t, "base.fvecs", cfg.Dataset)
	assert.Equal(t, "query.fvecs", cfg.Queries)
	assert.Empty(t, cfg.GroundTruth)
	assert.Equal(t, 10, cfg.NumberOfQueries)
	assert.Equal(t, 5, cfg.Neighbors)
	assert.Equal(t, 8, cfg.Tables)
	assert.Equal(t, 4, cfg.HashFunctions)
	assert.InDelta(t, 2.5, cfg.BinWidth, 1e-6)
	assert.EqualValues(t, DefaultSeed, cfg.Seed)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.True(t, cfg.Verify)
	assert.False(t, cfg.Progress)
}

func TestLoadReportsAllMissing(t *testing.T) {
	t.Parallel()
	_, err := Load(parseFlags(t, "--dataset", "base.fvecs", "-k", "3"), "")
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, []string{
		KeyQueries,
		KeyNumberOfQueries,
		KeyNeighbors,
		KeyTables,
		KeyBinWidth,
	}, argErr.Missing)
	assert.Contains(t, err.Error(), "--bin-width")

	_, err = Load(nil, "")
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, Mandatory, argErr.Missing)
}

func TestLoadValidates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		err  error
	}{
		{"ZeroNeighbors", []string{"-n", "0"}, ErrInvalidCount},
		{"NegativeTables", []string{"-L", "-1"}, ErrInvalidCount},
		{"ZeroBinWidth", []string{"-w", "0"}, ErrInvalidBinWidth},
		{"NegativeWorkers", []string{"--workers", "-2"}, ErrInvalidWorkers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(append([]string{}, fullArgs...), tt.args...)
			_, err := Load(parseFlags(t, args...), "")
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsh.yaml")
	content := `dataset: base.fvecs
queries: query.fvecs
number-of-queries: 100
neighbors: 10
tables: 4
hash-functions: 6
bin-width: 1.5
seed: 99
log-format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("LSH_NEIGHBORS", "20")
	t.Setenv("LSH_BIN_WIDTH", "3")

	// flags override env, env overrides the file
	cfg, err := Load(parseFlags(t, "-L", "12"), path)
	require.NoError(t, err)
	assert.Equal(t, "base.fvecs", cfg.Dataset)
	assert.Equal(t, 100, cfg.NumberOfQueries)
	assert.Equal(t, 20, cfg.Neighbors)
	assert.Equal(t, 12, cfg.Tables)
	assert.Equal(t, 6, cfg.HashFunctions)
	assert.InDelta(t, 3, cfg.BinWidth, 1e-6)
	assert.EqualValues(t, 99, cfg.Seed)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Parallel()
	_, err := Load(parseFlags(t, fullArgs...), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
