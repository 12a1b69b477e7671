// Package writeback persists session documents in the background.
package writeback

import "time"

// Config defines the write-back worker configuration.
type Config struct {
	// QueueSize bounds the number of pending jobs. Enqueue fails when full.
	QueueSize int `yaml:"queue_size"`
	// WriteTimeout caps a single store call.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultConfig returns the default write-back configuration.
func DefaultConfig() *Config {
	return &Config{
		QueueSize:    256,
		WriteTimeout: 5 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.QueueSize <= 0 {
		out.QueueSize = d.QueueSize
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	return &out
}
