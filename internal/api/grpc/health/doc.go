// Package health implements the gRPC transport for pipeline health.
//
// It wraps the standard grpc.health.v1 service and reports the pipeline
// under ServiceName: NOT_SERVING until the first batch is committed and
// again after a fatal error, SERVING in between.
package health
