package logging

import "go.uber.org/zap/zapcore"

// Config is the configuration for the logging subsystem.
type Config struct {
	// Level is the logging level.
	Level zapcore.Level `yaml:"level"`
}

// DefaultConfig returns the logging defaults used when a bifrost config
// file omits the "logging" section.
func DefaultConfig() Config {
	return Config{Level: zapcore.InfoLevel}
}
