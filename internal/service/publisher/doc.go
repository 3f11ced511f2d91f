// Package publisher implements the publish command: it appends one relay
// command to the command stream, either directly to the configured store
// or through the daemon's HTTP ingress.
package publisher
