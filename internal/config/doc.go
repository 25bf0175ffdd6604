// Package config provides centralized configuration management for both the
// chat orchestrator and the execution worker. A single YAML file drives every
// process; defaults are applied for any omitted section so a minimal file is
// enough for local development.
package config
