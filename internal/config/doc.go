// Package config defines the relay-switch settings and provides helpers to
// load, validate and save them in YAML format.
//
// Validate fills defaults for every optional field, so a zero Config is a
// working single-host setup: stream "rm8", the fixed scheme, Redis on
// localhost and the RF transmitter on GPIO17.
package config
