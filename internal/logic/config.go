package logic

import (
	"fmt"
	"time"
)

const (
	// DefaultPublishInterval is the spacing between automatic publishes.
	DefaultPublishInterval = 10 * time.Second

	// MinSampleInterval is the shortest interval the DHT22 can be sampled at.
	MinSampleInterval = 2 * time.Second

	// MaxPublishInterval keeps every interval well inside the 32-bit
	// millisecond clock range.
	MaxPublishInterval = 24 * time.Hour
)

// Config is the durable runtime configuration.
type Config struct {
	PublishInterval time.Duration
	AutoPublish     bool
	ResetCount      uint32
}

// DefaultConfig returns the factory configuration.
func DefaultConfig() Config {
	return Config{
		PublishInterval: DefaultPublishInterval,
		AutoPublish:     true,
	}
}

// Mode returns the publishing mode implied by AutoPublish.
func (c Config) Mode() Mode {
	if c.AutoPublish {
		return ModeAuto
	}
	return ModeManual
}

// ValidateInterval checks d against the sampling bounds.
func ValidateInterval(d time.Duration) error {
	if d < MinSampleInterval {
		return fmt.Errorf("interval %v is below the minimum of %v", d, MinSampleInterval)
	}
	if d > MaxPublishInterval {
		return fmt.Errorf("interval %v is above the maximum of %v", d, MaxPublishInterval)
	}
	return nil
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	return ValidateInterval(c.PublishInterval)
}
