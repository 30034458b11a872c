// Package config provides layered configuration for the JDWP client.
//
// # Architecture
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Overrides (Set)         │  ← Highest priority, command line flags
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← JDWP_ADDRESS, JDWP_LOG_LEVEL, ...
//	├─────────────────────────────┤
//	│  2. Config File             │  ← jdwp.toml or jdwp.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// The file is chosen with WithFile or the JDWP_CONFIG variable. Its extension
// selects the format: .toml, .yaml or .yml.
//
// # Sections
//
//	[target]
//	address = "localhost:5005"
//	dialTimeout = "10s"
//	handshakeTimeout = "5s"
//
//	[logging]
//	level = "info"
//	file = ""
//	trace = ["sends", "events"]
//
//	[trace]
//	file = "session.jdwp"
//	compress = true
//
//	[events]
//	resumeWhenUnhandled = false
//
// Durations are Go duration strings; bare integers count seconds.
//
// # Usage
//
//	cfg, err := config.Load(config.WithFile("jdwp.toml"))
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	target := cfg.Target()
package config
