// Package config handles configuration loading and management for httphelper.
//
// It provides functionality for:
//   - Loading configuration from .httphelper.json or .httphelper.yaml files
//   - Default configuration values
//   - ${VAR} expansion and HTTPHELPER_* environment overrides
//   - Translating a configuration into http client options
package config
