// Package config loads, normalizes, and validates synthgear configuration.
//
// It supplies the gear's default directory layout (rooted at /flywheel/v0),
// expands user paths, reads TOML files, and layers SYNTHGEAR_* environment
// variables on top. Directory fields left blank are derived from the base
// directory so a container run needs no configuration file at all.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
