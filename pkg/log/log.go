// Package log builds the zap loggers used across hubrelay.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

// Config configuration for setup logging.
type Config struct {
	Debug bool `yaml:"debug"`
}

// NewLogger creates a production logger, or a development one when Debug is set.
func NewLogger(config Config) (*zap.Logger, error) {
	var cfg zap.Config
	if config.Debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logger creation failed: %w", err)
	}
	return logger, nil
}
