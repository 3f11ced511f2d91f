//go:build !linux

package realtime

// Raise is a no-op reporting ErrUnsupported.
func Raise() error {
	return ErrUnsupported
}
