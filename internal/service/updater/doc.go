// Package updater replaces the installed relay-switch files with a newer
// release published under the configured update folder.
//
// A release is a folder holding the artifacts and a YAML manifest listing
// the version and a SHA-512 checksum per artifact. Package writes that
// manifest; Run downloads what differs, applies it atomically and stops the
// running daemon so its supervisor starts the new binary.
package updater
