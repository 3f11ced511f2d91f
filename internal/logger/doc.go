// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder on stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing and the -v/-q verbosity mapping,
//   - an adapter that routes badger's internal logging through zap.
//
// Services accept a context and extract the logger from it, so every
// message carries the name of the component that wrote it.
package logger
