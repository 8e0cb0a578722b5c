package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Completion statuses reported to the orchestrator.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// CompletionNotifier reports the outcome of a hook invocation back to
// whatever triggered it. The migration core never sees this protocol.
type CompletionNotifier interface {
	Notify(ctx context.Context, status string, data any) error
}

// NopNotifier is used for direct invocations with no response URL.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(_ context.Context, _ string, _ any) error { return nil }

// HTTPNotifier PUTs a completion payload to the event's pre-signed
// response URL, the protocol deployment orchestrators use to unblock a
// waiting rollout.
type HTTPNotifier struct {
	client             *http.Client
	url                string
	physicalResourceID string
	stackID            string
	requestID          string
	logicalResourceID  string
}

// NewHTTPNotifier builds a notifier for one event. physicalResourceID
// identifies this invocation to the orchestrator (any stable string).
func NewHTTPNotifier(e Event, physicalResourceID string) *HTTPNotifier {
	return &HTTPNotifier{
		client:             &http.Client{Timeout: 30 * time.Second},
		url:                e.ResponseURL,
		physicalResourceID: physicalResourceID,
		stackID:            e.StackID,
		requestID:          e.RequestID,
		logicalResourceID:  e.LogicalResourceID,
	}
}

// completionPayload is the wire shape the orchestrator expects.
type completionPayload struct {
	Status             string `json:"Status"`
	Reason             string `json:"Reason"`
	PhysicalResourceID string `json:"PhysicalResourceId"`
	StackID            string `json:"StackId"`
	RequestID          string `json:"RequestId"`
	LogicalResourceID  string `json:"LogicalResourceId"`
	Data               any    `json:"Data,omitempty"`
}

// Notify sends the completion payload. Failures are returned to the
// caller for logging but cannot be retried meaningfully: the response
// URL is single-use.
func (n *HTTPNotifier) Notify(ctx context.Context, status string, data any) error {
	body, err := json.Marshal(completionPayload{
		Status:             status,
		Reason:             "see migration runner logs for detail",
		PhysicalResourceID: n.physicalResourceID,
		StackID:            n.stackID,
		RequestID:          n.requestID,
		LogicalResourceID:  n.logicalResourceID,
		Data:               data,
	})
	if err != nil {
		return fmt.Errorf("encoding completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building completion request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending completion response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("completion response rejected: %s", resp.Status)
	}

	return nil
}
