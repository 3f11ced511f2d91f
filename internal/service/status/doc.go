// Package status implements the status command, which queries the gRPC
// health service of a running daemon and prints the pipeline status.
package status
