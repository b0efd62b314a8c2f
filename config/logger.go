package config

import "fmt"

// LoggerConfig holds the configuration for logging.
type LoggerConfig struct {
	Level      string `json:"level" yaml:"level"`                                       // silent, error, warn, info, debug, verbose
	File       string `json:"file,omitempty" yaml:"file,omitempty"`                     // also write log output to this file
	TimeFormat string `json:"time_format,omitempty" yaml:"time_format,omitempty"`       // timestamp format (empty for no timestamp)
	AddSource  bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`         // include source file and line number
}

var validLogLevels = map[string]bool{
	"silent": true, "error": true, "warn": true,
	"info": true, "debug": true, "verbose": true,
}

// Validate validates the logger configuration.
func (lc *LoggerConfig) Validate() error {
	if lc.Level != "" && !validLogLevels[lc.Level] {
		return fmt.Errorf("invalid log level: %s (must be one of: silent, error, warn, info, debug, verbose)", lc.Level)
	}
	return nil
}

// ApplyDefaults sets default values for logger configuration.
func (lc *LoggerConfig) ApplyDefaults() {
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.TimeFormat == "" {
		lc.TimeFormat = "2006-01-02 15:04:05"
	}
}
