// Package relay contains the core domain types for relay control.
//
// An Address names one relay in one of two shapes: the fixed scheme (relays
// 1..8 wired to a relay board) or the Tri-State scheme (a 5-bit system code
// plus a channel A..E of a 433 MHz remote socket). States is the small
// ordered map of last-known relay positions that the controller reconciles
// and persists.
package relay
