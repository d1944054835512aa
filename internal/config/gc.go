package config

import "time"

// GCConfig defines the parameters for the background active expiration
type GCConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`          // how often to run the background check
	SamplesPerCheck int           `mapstructure:"samples_per_check"` // how many keys to check per database per round
	MatchThreshold  float64       `mapstructure:"match_threshold"`   // 0.0-1.0. if expired/checked > threshold, repeat immediately
}

// DefaultGCConfig mirrors the sampling parameters of the server's active expire cycle
func DefaultGCConfig() GCConfig {
	return GCConfig{
		Enabled:         true,
		Interval:        100 * time.Millisecond,
		SamplesPerCheck: 20,
		MatchThreshold:  0.25,
	}
}
