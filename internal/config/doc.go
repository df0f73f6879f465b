// Package config loads codeintel settings and publishes them as resolver
// snapshots.
//
// # Architecture
//
// Settings are organized in layers; higher layers override lower ones key
// by key (nested maps merge, lists replace):
//
//	┌─────────────────────────────┐
//	│  6. Session overrides       │  ← Set / Unset, highest priority
//	├─────────────────────────────┤
//	│  5. Environment Variables   │  ← CODEINTEL_*
//	├─────────────────────────────┤
//	│  4. Host payload            │  ← ApplyPayload
//	├─────────────────────────────┤
//	│  3. Project settings        │  ← <project>/.codeintel/settings.*
//	├─────────────────────────────┤
//	│  2. User settings           │  ← ~/.config/codeintel/settings.*
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← embedded schema, lowest priority
//	└─────────────────────────────┘
//
// Every change produces a candidate table that is validated against the
// embedded schema. Only a valid table is published; the resolver keeps
// serving the previous snapshot otherwise. Problems inside the
// codeintel_config language overrides are reported as warnings because
// the resolver falls back to global defaults for malformed values.
//
// # Sub-packages
//
//   - loader: settings files (JSONC, TOML, YAML, Lua) and environment variables
//   - registry: option catalog built from the schema
//   - layer: layer management and merging
//   - schema: JSON Schema validation
//   - watcher: file watching for live reload
//   - notify: change notification
//
// # Basic Usage
//
//	cfg, err := config.New(config.WithProjectDir(root))
//	if err != nil {
//	    return err
//	}
//	defer cfg.Close()
//
//	if err := cfg.Load(ctx); err != nil {
//	    return err
//	}
//
//	eff := cfg.Resolver().Resolve("JavaScript")
//	depth := eff.MaxRecursiveDirDepth()
package config
