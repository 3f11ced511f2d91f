// Package version holds the build metadata of relay-switch.
//
// Version, Commit and BuildTime are set through -ldflags "-X ..." by the
// release build; local builds keep the defaults.
package version
