package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the render queue poller.
type Config struct {
	// PollInterval is how often the poller checks the remote queue for
	// in-flight jobs. Default: 15 seconds.
	PollInterval time.Duration

	// PollTimeout bounds a single polling pass across all users.
	// Default: 1 minute.
	PollTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for an in-progress pass to
	// finish. Default: 30 seconds.
	ShutdownTimeout time.Duration

	// MaxActiveJobs caps how many in-flight jobs one pass loads.
	// Default: 200.
	MaxActiveJobs int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		PollInterval:    15 * time.Second,
		PollTimeout:     time.Minute,
		ShutdownTimeout: 30 * time.Second,
		MaxActiveJobs:   200,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll interval must be at least 1 second, got %v", c.PollInterval)
	}
	if c.PollTimeout < time.Second {
		return fmt.Errorf("poll timeout must be at least 1 second, got %v", c.PollTimeout)
	}
	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	if c.MaxActiveJobs < 1 {
		return fmt.Errorf("max active jobs must be at least 1, got %d", c.MaxActiveJobs)
	}
	return nil
}
