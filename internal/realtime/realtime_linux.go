//go:build linux

package realtime

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// schedFIFO is SCHED_FIFO from <sched.h>.
const schedFIFO = 1

// Raise switches the calling thread to SCHED_FIFO at Priority and locks the
// calling goroutine to it. Callers must invoke it from the goroutine that
// drives the transmitter; the lock is never released.
func Raise() error {
	runtime.LockOSThread()

	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   schedFIFO,
		Priority: Priority,
	}

	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		if errors.Is(err, unix.EPERM) {
			return fmt.Errorf("%w: %w", ErrPrivilege, err)
		}

		return fmt.Errorf("set SCHED_FIFO: %w", err)
	}

	return nil
}
