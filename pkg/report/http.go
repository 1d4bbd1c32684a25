package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// timeLayout is RFC 3339 with fixed millisecond precision, in UTC.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// statusBody is the wire form of a status event.
type statusBody struct {
	TrackingID string    `json:"trackingId"`
	ModuleID   string    `json:"moduleId"`
	Operation  Operation `json:"operation"`
	Variant    string    `json:"impairmentVariant"`
	Requested  string    `json:"requestedStatus"`
	Success    *bool     `json:"success,omitempty"`
	Timestamp  string    `json:"timestampUtc"`
}

// infoBody is the wire form of a progress note.
type infoBody struct {
	TrackingID string `json:"trackingId"`
	ModuleID   string `json:"moduleId"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestampUtc"`
}

// HTTP posts events to the coordinator's REST endpoint: status events to
// /v1/status and progress notes to /v1/info. Every event is stamped with
// the campaign's tracking id, the module id, and a UTC timestamp.
type HTTP struct {
	endpoint string
	tracking string
	module   string
	client   *http.Client
	now      func() time.Time
}

// NewHTTP creates a reporter posting to the given endpoint.
func NewHTTP(endpoint, trackingID, moduleID string) *HTTP {
	return &HTTP{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		tracking: trackingID,
		module:   moduleID,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// Status implements Reporter.
func (h *HTTP) Status(ctx context.Context, event StatusEvent) error {
	return h.post(ctx, "/v1/status", statusBody{
		TrackingID: h.tracking,
		ModuleID:   h.module,
		Operation:  event.Operation,
		Variant:    string(event.Variant),
		Requested:  event.Requested.String(),
		Success:    event.Success,
		Timestamp:  h.timestamp(),
	})
}

// Info implements Reporter.
func (h *HTTP) Info(ctx context.Context, message string) error {
	return h.post(ctx, "/v1/info", infoBody{
		TrackingID: h.tracking,
		ModuleID:   h.module,
		Message:    message,
		Timestamp:  h.timestamp(),
	})
}

func (h *HTTP) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("report to %s rejected: %s", path, resp.Status)
	}

	return nil
}

func (h *HTTP) timestamp() string {
	return h.now().UTC().Format(timeLayout)
}
