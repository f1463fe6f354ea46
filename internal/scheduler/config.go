package scheduler

import (
	"time"

	"github.com/smallbiznis/storefront/internal/config"
)

// Config controls the sweep interval, batch size and leader lock.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	MinAge      time.Duration
	LockTTL     time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: 5 * time.Minute,
		BatchSize:   100,
		JobTimeout:  2 * time.Minute,
		MinAge:      15 * time.Minute,
		LockTTL:     4 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Sweep.Enabled,
		RunInterval: cfg.Sweep.Interval,
		BatchSize:   cfg.Sweep.BatchSize,
		JobTimeout:  cfg.Sweep.JobTimeout,
		MinAge:      cfg.Sweep.MinAge,
		LockTTL:     cfg.Sweep.LockTTL,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.MinAge < 0 {
		c.MinAge = 0
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
