// Package http serves metrics, pipeline health and command ingress over HTTP.
//
// POST /v1/commands appends a JSON object of string fields, for example
// {"relay":"3","state":"On"}, to the command stream. It is the way to
// publish into an embedded store, which only the daemon process can open.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/relay-switch/internal/logger"
	"github.com/oshokin/relay-switch/internal/stream"
)

const (
	// maxBodyBytes bounds the size of one command request.
	maxBodyBytes    = 64 << 10
	readHeaderLimit = 5 * time.Second
)

//nolint:gochecknoglobals // Shared codec configuration.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Health reports the pipeline serving status.
type Health interface {
	Status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus
}

// Options wires the handler to the rest of the process.
type Options struct {
	// Stream is the command stream name.
	Stream string
	// Appender receives ingress commands. Nil disables the ingress route.
	Appender stream.Appender
	// Validate, when set, rejects commands before they are appended.
	Validate func(fields map[string]string) error
	// Gatherer is served on /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	// Health backs /healthz. Nil reports healthy.
	Health Health
}

type handler struct {
	opts Options
}

type appendResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler builds the HTTP routes.
func NewHandler(opts Options) http.Handler {
	h := &handler{opts: opts}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.healthz)

	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	if opts.Appender != nil {
		mux.HandleFunc("POST /v1/commands", h.appendCommand)
	}

	return mux
}

// NewServer returns an http.Server for handler on addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderLimit,
	}
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Health != nil {
		if st := h.opts.Health.Status(r.Context()); st != healthpb.HealthCheckResponse_SERVING {
			http.Error(w, st.String(), http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *handler) appendCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(ctx, w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
		return
	}

	var fields map[string]string
	if err = json.Unmarshal(body, &fields); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "body must be a JSON object of strings"})
		return
	}

	if len(fields) == 0 {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "no fields"})
		return
	}

	if h.opts.Validate != nil {
		if err = h.opts.Validate(fields); err != nil {
			writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}

	id, err := h.opts.Appender.Append(ctx, h.opts.Stream, fields)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, stream.ErrStore) {
			status = http.StatusBadGateway
		}

		logger.ErrorKV(ctx, "Failed to append command", "stream", h.opts.Stream, "error", err)
		writeJSON(ctx, w, status, errorResponse{Error: "append failed"})

		return
	}

	logger.DebugKV(ctx, "Command appended", "stream", h.opts.Stream, "entry_id", id.String())
	writeJSON(ctx, w, http.StatusAccepted, appendResponse{ID: id.String()})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.DebugKV(ctx, "Failed to write response", "error", err)
	}
}
