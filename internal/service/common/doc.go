// Package common holds helpers shared by several services.
//
// It provides a gRPC health client wrapper with timeouts, detection of the
// current system actor (hostname/username) used as the origin of published
// commands, and process lookup for the single-consumer guard and updates.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
