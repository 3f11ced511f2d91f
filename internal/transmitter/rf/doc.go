// Package rf encodes relay commands into the Tri-State protocol understood by
// common 433 MHz remote sockets and emits them as a pulse train on a GPIO pin.
//
// Timing correctness depends on the delay between pin writes staying well
// below the 300 us unit pulse; the default busy-wait achieves that on a
// Raspberry Pi when the process runs with real-time priority. A hardware
// PWM/timer peripheral would remove the dependency on the scheduler but is
// not needed for receivers to accept the frames.
package rf
