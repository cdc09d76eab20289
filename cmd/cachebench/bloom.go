package main

import (
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blockcache/lru/bloom"
)

func newBloomCmd(v *viper.Viper, loggerFor func() zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "bloom",
		Short: "Build a Bloom filter over synthetic keys and report size plus false-positive rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger := loggerFor()
			return runBloom(cfg, logger)
		},
	}
}

func runBloom(cfg Config, logger zerolog.Logger) error {
	n := cfg.Operations
	policy := bloom.NewPolicy(cfg.BitsPerKey)

	keys := make([][]byte, n)
	for i := range keys {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(i))
		keys[i] = b
	}
	filter := policy.CreateFilter(keys)

	probes := 10_000
	falsePositives := 0
	for i := 0; i < probes; i++ {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(i+1_000_000_000))
		if policy.KeyMayMatch(b, filter) {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / float64(probes)

	logger.Info().
		Int("keys", n).
		Int("filter_bytes", len(filter)).
		Int("bits_per_key", cfg.BitsPerKey).
		Float64("false_positive_rate", rate).
		Msg("bloom filter built")

	fmt.Printf("policy=%s keys=%d filter_bytes=%d false_positive_rate=%.4f\n",
		policy.Name(), n, len(filter), rate)
	return nil
}
