// Package controller is the relay-switch daemon.
//
// It consumes the command stream through a stream.Pipeline whose strategies
// parse entries into relay commands, fold each batch last-write-wins and
// reconcile the result against the hardware. The first batch after start is a
// cold start: every known relay is re-sent so the hardware matches the
// persisted snapshot even if it was power-cycled. A governor ticked after
// every batch forces relays off when nobody has commanded them for a while.
// Fatal errors drive every known relay off before the daemon exits.
package controller
