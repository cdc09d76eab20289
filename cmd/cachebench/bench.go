package main

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blockcache/lru/cache"
)

func newCacheBenchCmd(v *viper.Viper, loggerFor func() zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Hammer a Cache with concurrent Insert/Lookup/Release and report hit rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger := loggerFor()
			return runBench(cfg, logger)
		},
	}
}

func runBench(cfg Config, logger zerolog.Logger) error {
	c := cache.NewLRUCache(cfg.Capacity, cache.WithShardBits(cfg.ShardBits), cache.WithLogger(logger))

	registry := prometheus.NewRegistry()
	if err := registry.Register(c); err != nil {
		return err
	}

	var hits, misses uint64
	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			key := make([]byte, 8)
			for i := 0; i < cfg.Operations; i++ {
				binary.LittleEndian.PutUint64(key, uint64(worker)<<32|uint64(i))
				if h := c.Lookup(key); h != nil {
					atomic.AddUint64(&hits, 1)
					c.Release(h)
					continue
				}
				atomic.AddUint64(&misses, 1)
				h := c.Insert(append([]byte(nil), key...), i, 1, func([]byte, any) {})
				c.Release(h)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	logger.Info().
		Int("workers", cfg.Workers).
		Int("operations_per_worker", cfg.Operations).
		Uint64("hits", hits).
		Uint64("misses", misses).
		Uint64("total_charge", c.TotalCharge()).
		Dur("elapsed", elapsed).
		Msg("bench complete")

	fmt.Printf("hits=%d misses=%d total_charge=%d elapsed=%s\n", hits, misses, c.TotalCharge(), elapsed)
	return nil
}
