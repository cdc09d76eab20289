package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the layered configuration for cachebench: flags override
// environment variables (CACHEBENCH_*), courtesy of viper -- the same
// cobra+viper pairing codefang's CLI uses. No config file is read.
type Config struct {
	Capacity   uint64 `mapstructure:"capacity"`
	ShardBits  int    `mapstructure:"shard_bits"`
	Operations int    `mapstructure:"operations"`
	Workers    int    `mapstructure:"workers"`
	BitsPerKey int    `mapstructure:"bits_per_key"`
}

func defaultConfig() Config {
	return Config{
		Capacity:   1 << 20,
		ShardBits:  4,
		Operations: 100_000,
		Workers:    8,
		BitsPerKey: 10,
	}
}

func loadConfig(v *viper.Viper) (Config, error) {
	cfg := defaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "cachebench: decoding configuration")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ShardBits < 0 || c.ShardBits > 16 {
		return errors.Errorf("cachebench: shard-bits %d out of range [0, 16]", c.ShardBits)
	}
	if c.Operations <= 0 {
		return errors.New("cachebench: operations must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("cachebench: workers must be positive")
	}
	if c.BitsPerKey <= 0 {
		return errors.New("cachebench: bits-per-key must be positive")
	}
	return nil
}
