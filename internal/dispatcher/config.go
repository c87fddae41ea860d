package dispatcher

import (
	"time"
)

// Config controls tick cadence, claim batch sizes and rail timeouts.
type Config struct {
	TickInterval      time.Duration
	BatchSize         int
	Workers           int
	ExecutionTimeout  time.Duration
	RecoveryThreshold time.Duration
	LeaderLockTTL     time.Duration
	EnabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		TickInterval:      time.Minute,
		BatchSize:         50,
		Workers:           4,
		ExecutionTimeout:  15 * time.Second,
		RecoveryThreshold: 15 * time.Minute,
		LeaderLockTTL:     90 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = defaults.ExecutionTimeout
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = defaults.RecoveryThreshold
	}
	if c.LeaderLockTTL <= 0 {
		c.LeaderLockTTL = defaults.LeaderLockTTL
	}
	return c
}
