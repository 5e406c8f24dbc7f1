// Package config implements the configuration store for the transmitter
// aggregation daemon.
//
// Configuration is layered: built-in defaults, then a YAML file, then
// TXAGG_* environment overrides, then validation. Transmitter sections are
// flat maps of upper-case keys to string values, read through Value so that
// a *Config can be handed to the transmitter registry directly.
package config
