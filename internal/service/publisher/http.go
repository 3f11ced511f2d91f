package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/oshokin/relay-switch/internal/stream"
)

const (
	commandsPath     = "/v1/commands"
	maxResponseBytes = 64 << 10
)

// ErrRejected is returned when the daemon refuses a command.
var ErrRejected = errors.New("command rejected")

//nolint:gochecknoglobals // Shared codec configuration.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPAppender appends commands through the daemon's HTTP ingress. The
// daemon decides the stream, so the name passed to Append is informational.
type HTTPAppender struct {
	url    string
	client *http.Client
}

// NewHTTPAppender targets the ingress at baseURL ("host:port" or a full URL).
func NewHTTPAppender(baseURL string, timeout time.Duration) *HTTPAppender {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	return &HTTPAppender{
		url:    strings.TrimSuffix(baseURL, "/") + commandsPath,
		client: &http.Client{Timeout: timeout},
	}
}

// Append implements stream.Appender.
func (a *HTTPAppender) Append(ctx context.Context, _ string, fields map[string]string) (stream.EntryID, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("encode command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("%w: post %s: %w", stream.ErrStore, a.url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("%w: read response: %w", stream.ErrStore, err)
	}

	var payload struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}

	_ = json.Unmarshal(raw, &payload)

	switch {
	case resp.StatusCode == http.StatusAccepted:
		id, err := stream.ParseEntryID(payload.ID)
		if err != nil {
			return stream.EntryID{}, fmt.Errorf("unexpected entry id: %w", err)
		}

		return id, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return stream.EntryID{}, fmt.Errorf("%w: %s: %s", stream.ErrStore, resp.Status, payload.Error)
	default:
		return stream.EntryID{}, fmt.Errorf("%w: %s: %s", ErrRejected, resp.Status, payload.Error)
	}
}
