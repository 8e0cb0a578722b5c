// Package hook adapts deployment lifecycle events into migration
// invocations and reports completion back to the orchestrator, so an
// infrastructure rollout is never left waiting on a silent failure.
package hook

import "encoding/json"

// Lifecycle tags carried by orchestrator events.
const (
	RequestCreate = "Create"
	RequestUpdate = "Update"
	RequestDelete = "Delete"
)

// Event is the trigger payload. Orchestrator events carry a
// RequestType and response plumbing; direct invocations carry an
// action instead.
type Event struct {
	RequestType       string `json:"RequestType,omitempty"`
	ResponseURL       string `json:"ResponseURL,omitempty"`
	StackID           string `json:"StackId,omitempty"`
	RequestID         string `json:"RequestId,omitempty"`
	LogicalResourceID string `json:"LogicalResourceId,omitempty"`

	Action  string `json:"action,omitempty"`
	Version string `json:"version,omitempty"`
	DryRun  bool   `json:"dryRun,omitempty"`
}

// ParseEvent decodes a JSON event payload.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}

	return e, nil
}
