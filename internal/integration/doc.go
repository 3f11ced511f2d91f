// Package integration runs the daemon components together: stores,
// controller, transmitters and the HTTP and gRPC surfaces.
package integration
