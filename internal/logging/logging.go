// Package logging configures the process logger and the packet trace modes.
package logging

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/dshills/jdwp/internal/config"
	"github.com/dshills/jdwp/internal/jdi"
	"github.com/dshills/jdwp/internal/jdwp"
)

// Errors returned by configuration.
var (
	ErrUnknownLevel = errors.New("unknown log level")
	ErrUnknownMode  = errors.New("unknown trace mode")
)

var levels = map[string]commonlog.Level{
	"error":   commonlog.Error,
	"warn":    commonlog.Warning,
	"warning": commonlog.Warning,
	"notice":  commonlog.Notice,
	"info":    commonlog.Info,
	"debug":   commonlog.Debug,
}

// ParseLevel maps a level name to a commonlog level.
func ParseLevel(name string) (commonlog.Level, error) {
	if name == "" {
		return commonlog.Notice, nil
	}
	level, ok := levels[strings.ToLower(name)]
	if !ok {
		return commonlog.None, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
	}
	return level, nil
}

// Mode is a packet trace mode.
type Mode uint8

// Trace modes.
const (
	TraceSends Mode = 1 << iota
	TraceReceives
	TraceEvents
	TraceRefTypes
	TraceObjRefs

	TraceAll = TraceSends | TraceReceives | TraceEvents | TraceRefTypes | TraceObjRefs
)

var modeNames = map[string]Mode{
	"sends":    TraceSends,
	"receives": TraceReceives,
	"events":   TraceEvents,
	"reftypes": TraceRefTypes,
	"objrefs":  TraceObjRefs,
	"all":      TraceAll,
}

// ParseModes combines trace mode names. "none" clears everything named
// before it.
func ParseModes(names []string) (Mode, error) {
	var m Mode
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "none" {
			m = 0
			continue
		}
		mode, ok := modeNames[name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
		}
		m |= mode
	}
	return m, nil
}

// Has reports whether every mode in o is enabled.
func (m Mode) Has(o Mode) bool {
	return o != 0 && m&o == o
}

// String lists the enabled modes.
func (m Mode) String() string {
	if m == 0 {
		return "none"
	}
	var names []string
	for name, mode := range modeNames {
		if mode != TraceAll && m&mode != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// ConnOptions applies the wire trace modes to conn options.
func (m Mode) ConnOptions(opts jdwp.Options) jdwp.Options {
	opts.TraceSends = m.Has(TraceSends)
	opts.TraceReceives = m.Has(TraceReceives)
	return opts
}

// VMConfig applies the mirror trace modes to a VM configuration.
func (m Mode) VMConfig(cfg jdi.Config) jdi.Config {
	cfg.TraceEvents = m.Has(TraceEvents)
	cfg.TraceRefTypes = m.Has(TraceRefTypes)
	cfg.TraceObjRefs = m.Has(TraceObjRefs)
	return cfg
}

// Configure sets up the commonlog backend and returns the trace modes.
// Any trace mode raises the level to debug, where traces are logged.
func Configure(cfg config.LoggingConfig) (Mode, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return 0, err
	}
	modes, err := ParseModes(cfg.Trace)
	if err != nil {
		return 0, err
	}
	if modes != 0 {
		level = commonlog.Debug
	}

	var path *string
	if cfg.File != "" {
		path = &cfg.File
	}
	commonlog.Configure(0, path)
	commonlog.SetMaxLevel(level)

	return modes, nil
}
