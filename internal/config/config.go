package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dshills/jdwp/internal/config/loader"
)

// EnvConfigFile names the environment variable consulted for a config file
// when none is given explicitly.
const EnvConfigFile = "JDWP_CONFIG"

// Layer names in increasing priority.
const (
	LayerDefaults = "defaults"
	LayerFile     = "file"
	LayerEnv      = "env"
	LayerOverride = "override"
)

type layer struct {
	name string
	data map[string]any
}

// Config provides layered access to the client configuration.
// Sources are merged in order: built-in defaults, an optional TOML or YAML
// file, JDWP_ environment variables, then explicit overrides.
type Config struct {
	mu sync.RWMutex

	layers []layer
	merged map[string]any

	fs   loader.FileSystem
	file string
	env  *loader.EnvLoader

	// configErrors stores errors encountered during section access.
	configErrors map[string]error
}

// Option configures a Config instance.
type Option func(*Config)

// WithFile sets the configuration file. Its extension selects the format.
func WithFile(path string) Option {
	return func(c *Config) {
		c.file = path
	}
}

// WithFileSystem sets the file system the configuration file is read from.
func WithFileSystem(fsys loader.FileSystem) Option {
	return func(c *Config) {
		c.fs = fsys
	}
}

// WithEnvLoader replaces the environment source.
func WithEnvLoader(env *loader.EnvLoader) Option {
	return func(c *Config) {
		c.env = env
	}
}

// New creates a Config holding only the built-in defaults.
func New(opts ...Option) *Config {
	c := &Config{
		fs:  loader.DefaultFS(),
		env: loader.NewEnvLoader(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.layers = []layer{
		{name: LayerDefaults, data: Defaults()},
		{name: LayerFile},
		{name: LayerEnv},
		{name: LayerOverride, data: make(map[string]any)},
	}
	c.remerge()
	return c
}

// Load creates a Config and reads every source.
func Load(opts ...Option) (*Config, error) {
	c := New(opts...)
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the file and environment layers.
// Overrides set with Set are kept.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := c.loadFile()
	if err != nil {
		return err
	}
	env, err := c.env.Load()
	if err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}

	c.layer(LayerFile).data = file
	c.layer(LayerEnv).data = env
	c.configErrors = nil
	c.remerge()
	return nil
}

func (c *Config) loadFile() (map[string]any, error) {
	path := c.file
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		return nil, nil
	}

	if _, err := c.fs.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	l, err := loader.ForPath(c.fs, path)
	if err != nil {
		return nil, err
	}
	return l.LoadFrom(path)
}

func (c *Config) layer(name string) *layer {
	for i := range c.layers {
		if c.layers[i].name == name {
			return &c.layers[i]
		}
	}
	return nil
}

func (c *Config) remerge() {
	merged := make(map[string]any)
	for _, l := range c.layers {
		merged = loader.DeepMerge(merged, clone(l.data))
	}
	c.merged = merged
}

// Source returns the name of the highest layer that sets path.
func (c *Config) Source(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.layers) - 1; i >= 0; i-- {
		if c.layers[i].data == nil {
			continue
		}
		if _, ok := loader.GetByPath(c.layers[i].data, path); ok {
			return c.layers[i].name, true
		}
	}
	return "", false
}

// Get returns the value at the given path from the merged configuration.
func (c *Config) Get(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return loader.GetByPath(c.merged, path)
}

// GetString returns a string value at the given path.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", ErrSettingNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

// GetInt returns an integer value at the given path.
func (c *Config) GetInt(path string) (int, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case uint64:
		return int(val), nil
	default:
		return 0, &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
	}
}

// GetBool returns a boolean value at the given path.
func (c *Config) GetBool(path string) (bool, error) {
	v, ok := c.Get(path)
	if !ok {
		return false, ErrSettingNotFound
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
	}
	return b, nil
}

// GetDuration returns a duration at the given path.
// Strings are parsed with time.ParseDuration; bare integers count seconds.
func (c *Config) GetDuration(path string) (time.Duration, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	var d time.Duration
	switch val := v.(type) {
	case time.Duration:
		d = val
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return 0, &ValidationError{Path: path, Message: "invalid duration", Value: val}
		}
		d = parsed
	case int:
		d = time.Duration(val) * time.Second
	case int64:
		d = time.Duration(val) * time.Second
	case uint64:
		d = time.Duration(val) * time.Second
	default:
		return 0, &TypeError{Path: path, Expected: "duration", Actual: typeName(v)}
	}
	if d < 0 {
		return 0, &ValidationError{Path: path, Message: "negative duration", Value: v}
	}
	return d, nil
}

// GetStringSlice returns a string slice at the given path.
// A single string is split on commas.
func (c *Config) GetStringSlice(path string) ([]string, error) {
	v, ok := c.Get(path)
	if !ok {
		return nil, ErrSettingNotFound
	}

	switch val := v.(type) {
	case []string:
		return val, nil
	case string:
		var result []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				result = append(result, s)
			}
		}
		return result, nil
	case []any:
		result := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
			}
			result[i] = s
		}
		return result, nil
	default:
		return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
	}
}

// Set sets a value at the given path in the override layer.
func (c *Config) Set(path string, value any) error {
	if path == "" || strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	loader.SetByPath(c.layer(LayerOverride).data, path, value)
	delete(c.configErrors, path)
	c.remerge()
	return nil
}

// Validate reads every section and reports the recorded errors.
func (c *Config) Validate() error {
	c.Target()
	c.Logging()
	c.Trace()
	c.Events()

	errs := c.ConfigErrors()
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, 0, len(errs))
	for _, path := range sortedKeys(errs) {
		joined = append(joined, errs[path])
	}
	return fmt.Errorf("%w: %w", ErrValidationFailed, errors.Join(joined...))
}

func clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]any); ok {
			v = clone(m)
		}
		dst[k] = v
	}
	return dst
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64, uint64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	case []any:
		return "[]any"
	case map[string]any:
		return "map"
	default:
		return "unknown"
	}
}
