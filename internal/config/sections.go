package config

import (
	"sort"
	"time"
)

// Section accessor methods return snapshot structs. Mutating the returned
// struct does not modify the underlying configuration. Use Config.Set()
// to update configuration values.

// TargetConfig describes how the client reaches a target VM.
type TargetConfig struct {
	// Address is the host:port the target listens on.
	Address string

	// DialTimeout bounds the TCP connect.
	DialTimeout time.Duration

	// HandshakeTimeout bounds the JDWP-Handshake exchange.
	HandshakeTimeout time.Duration
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	// Level is one of error, warn, notice, info or debug.
	Level string

	// File receives log output instead of stderr when set.
	File string

	// Trace names the enabled packet trace modes.
	Trace []string
}

// TraceConfig controls packet capture.
type TraceConfig struct {
	// File receives the capture. Capture is off when empty.
	File string

	// Compress wraps the capture in a zstd stream.
	Compress bool
}

// EventsConfig controls event dispatch.
type EventsConfig struct {
	// ResumeWhenUnhandled resumes suspend-all sets that no handler saw.
	ResumeWhenUnhandled bool
}

// Defaults returns the built-in defaults layer.
func Defaults() map[string]any {
	return map[string]any{
		"target": map[string]any{
			"address":          "localhost:5005",
			"dialTimeout":      "10s",
			"handshakeTimeout": "5s",
		},
		"logging": map[string]any{
			"level": "notice",
			"file":  "",
			"trace": []any{},
		},
		"trace": map[string]any{
			"file":     "",
			"compress": false,
		},
		"events": map[string]any{
			"resumeWhenUnhandled": false,
		},
	}
}

// Target returns the target settings.
func (c *Config) Target() TargetConfig {
	return TargetConfig{
		Address:          c.getStringOr("target.address", "localhost:5005"),
		DialTimeout:      c.getDurationOr("target.dialTimeout", 10*time.Second),
		HandshakeTimeout: c.getDurationOr("target.handshakeTimeout", 5*time.Second),
	}
}

// Logging returns the logging settings.
func (c *Config) Logging() LoggingConfig {
	return LoggingConfig{
		Level: c.getStringOr("logging.level", "notice"),
		File:  c.getStringOr("logging.file", ""),
		Trace: c.getStringSliceOr("logging.trace", nil),
	}
}

// Trace returns the packet capture settings.
func (c *Config) Trace() TraceConfig {
	return TraceConfig{
		File:     c.getStringOr("trace.file", ""),
		Compress: c.getBoolOr("trace.compress", false),
	}
}

// Events returns the event dispatch settings.
func (c *Config) Events() EventsConfig {
	return EventsConfig{
		ResumeWhenUnhandled: c.getBoolOr("events.resumeWhenUnhandled", false),
	}
}

// These methods only return the default for ErrSettingNotFound.
// Other errors are recorded and the default returned.

func (c *Config) getStringOr(path string, defaultValue string) string {
	v, err := c.GetString(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getBoolOr(path string, defaultValue bool) bool {
	v, err := c.GetBool(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getDurationOr(path string, defaultValue time.Duration) time.Duration {
	v, err := c.GetDuration(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getStringSliceOr(path string, defaultValue []string) []string {
	v, err := c.GetStringSlice(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		v = defaultValue
	}
	result := make([]string, len(v))
	copy(result, v)
	return result
}

// recordConfigError keeps the first error seen for each path.
func (c *Config) recordConfigError(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configErrors == nil {
		c.configErrors = make(map[string]error)
	}
	if _, exists := c.configErrors[path]; !exists {
		c.configErrors[path] = err
	}
}

// ConfigErrors returns any configuration errors encountered during access.
func (c *Config) ConfigErrors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.configErrors == nil {
		return nil
	}
	result := make(map[string]error, len(c.configErrors))
	for k, v := range c.configErrors {
		result[k] = v
	}
	return result
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
