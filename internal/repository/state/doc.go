// Package state implements persistence for the relay state snapshot.
//
// The StoreRepository keeps the last reconciled relay.States as JSON under
// the "{name}_state" key of the command store and exposes a Repository
// interface that the controller service depends on.
package state
