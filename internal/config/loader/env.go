package loader

import (
	"os"
	"strconv"
	"strings"
)

// EnvLoader loads configuration from environment variables.
// Only variables named in its mapping are consulted.
type EnvLoader struct {
	mapping map[string]string // env var -> config path
	lookup  func(string) (string, bool)
}

// NewEnvLoader creates a loader using the default JDWP_ mapping.
func NewEnvLoader() *EnvLoader {
	return NewEnvLoaderWithMapping(DefaultEnvMapping())
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		mapping: mapping,
		lookup:  os.LookupEnv,
	}
}

// DefaultEnvMapping returns the default environment variable mappings.
func DefaultEnvMapping() map[string]string {
	return map[string]string{
		"JDWP_ADDRESS":           "target.address",
		"JDWP_DIAL_TIMEOUT":      "target.dialTimeout",
		"JDWP_HANDSHAKE_TIMEOUT": "target.handshakeTimeout",
		"JDWP_LOG_LEVEL":         "logging.level",
		"JDWP_LOG_FILE":          "logging.file",
		"JDWP_LOG_TRACE":         "logging.trace",
		"JDWP_TRACE_FILE":        "trace.file",
		"JDWP_TRACE_COMPRESS":    "trace.compress",
		"JDWP_RESUME_UNHANDLED":  "events.resumeWhenUnhandled",
	}
}

// WithLookup replaces the environment lookup function.
func (l *EnvLoader) WithLookup(lookup func(string) (string, bool)) *EnvLoader {
	l.lookup = lookup
	return l
}

// Load reads the mapped environment variables and returns a configuration map.
// Empty string values are treated as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)
	for env, path := range l.mapping {
		if val, ok := l.lookup(env); ok {
			SetByPath(config, path, parseValue(val))
		}
	}
	return config, nil
}

// parseValue converts booleans and integers; everything else stays a string.
// Durations are left as strings for the typed decoder.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	return s
}
