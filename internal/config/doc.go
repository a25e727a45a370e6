// Package config defines the settings of a fetch run and provides helpers
// to load, validate and save them in YAML format.
//
// The file is optional: Load returns defaults when it does not exist, so a
// plain invocation needs nothing beyond the command-line flags.
package config
