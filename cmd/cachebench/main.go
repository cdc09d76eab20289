// Command cachebench drives the cache and bloom packages under synthetic
// load: a fixed-capacity Cache is hammered with concurrent Insert/Lookup/
// Release, and a Bloom filter is built over a batch of keys to report its
// size and empirical false-positive rate.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var verbose bool

	root := &cobra.Command{
		Use:           "cachebench",
		Short:         "Benchmark harness for the LRU cache and Bloom filter packages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().Uint64("capacity", 1<<20, "total cache capacity, in charge units")
	root.PersistentFlags().Int("shard_bits", 4, "cache shard count as a power of two")
	root.PersistentFlags().Int("operations", 100_000, "operations per worker")
	root.PersistentFlags().Int("workers", 8, "concurrent workers")
	root.PersistentFlags().Int("bits_per_key", 10, "bloom filter density")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	_ = v.BindPFlags(root.PersistentFlags())
	v.SetEnvPrefix("cachebench")
	v.AutomaticEnv()

	logger := func() zerolog.Logger {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	}

	root.AddCommand(newCacheBenchCmd(v, logger))
	root.AddCommand(newBloomCmd(v, logger))
	return root
}
