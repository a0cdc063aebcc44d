package dispatcher

import (
	"time"

	"github.com/smallbiznis/taxmate/internal/config"
)

// Config sizes the background dispatcher.
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   256,
		TaskTimeout: 2 * time.Minute,
	}
}

// NewConfig reads worker and queue sizes from the application config.
func NewConfig(cfg config.Config) Config {
	return Config{
		Workers:   cfg.Ingest.Workers,
		QueueSize: cfg.Ingest.QueueSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaults.QueueSize
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = defaults.TaskTimeout
	}
	return c
}
