// Package realtime raises the scheduling priority of the calling thread so the
// busy-wait RF pulse timing is not preempted by ordinary processes.
package realtime

import "errors"

// ErrPrivilege is returned when the process may not switch to real-time scheduling.
var ErrPrivilege = errors.New("real-time scheduling not permitted")

// ErrUnsupported is returned on platforms without SCHED_FIFO.
var ErrUnsupported = errors.New("real-time scheduling not supported on this platform")

// Priority is the SCHED_FIFO priority requested by Raise.
const Priority = 99
