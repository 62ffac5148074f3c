// Package config loads report layout and output settings.
//
// Settings live in a flat JSON or YAML document. The canonical defaults are
// kept in config/report.defaults.json at the repository root; any subset of
// keys may be given and the remainder fall back to the same defaults.
package config
