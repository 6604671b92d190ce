package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Dispatcher hands one due call to the initiator.
type Dispatcher interface {
	Dispatch(ctx context.Context, callID string) error
}

// HTTPDispatcher invokes the initiator endpoint over HTTP, the same way the
// production scheduler trigger does. Failures here are transient dispatch
// failures counted against the call's retry budget.
type HTTPDispatcher struct {
	initiateURL string
	client      *http.Client
}

// NewHTTPDispatcher creates a dispatcher POSTing to baseURL's initiate endpoint.
func NewHTTPDispatcher(baseURL string, timeout time.Duration) *HTTPDispatcher {
	return &HTTPDispatcher{
		initiateURL: baseURL + "/calls/initiate",
		client:      &http.Client{Timeout: timeout},
	}
}

type initiateRequest struct {
	CallID string `json:"callId"`
}

// Dispatch POSTs the call id to the initiator and fails on any non-2xx.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, callID string) error {
	body, err := json.Marshal(initiateRequest{CallID: callID})
	if err != nil {
		return fmt.Errorf("encode initiate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.initiateURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build initiate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to initiate call: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to initiate call: %s", resp.Status)
	}
	return nil
}
