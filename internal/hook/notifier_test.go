package hook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phaserai/schema-migrate/internal/hook"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()

	e, err := hook.ParseEvent([]byte(`{
		"RequestType": "Create",
		"ResponseURL": "https://callback.example/response",
		"StackId": "stack-1",
		"RequestId": "req-1",
		"LogicalResourceId": "MigrationRunner"
	}`))
	require.NoError(t, err)

	assert.Equal(t, hook.RequestCreate, e.RequestType)
	assert.Equal(t, "https://callback.example/response", e.ResponseURL)
	assert.Equal(t, "stack-1", e.StackID)
}

func TestParseEvent_invalidJSON(t *testing.T) {
	t.Parallel()

	_, err := hook.ParseEvent([]byte(`{not json`))
	assert.Error(t, err)
}

func TestHTTPNotifier_putsCompletionPayload(t *testing.T) {
	t.Parallel()

	var (
		gotMethod string
		gotBody   map[string]any
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := hook.NewHTTPNotifier(hook.Event{
		ResponseURL:       srv.URL,
		StackID:           "stack-1",
		RequestID:         "req-1",
		LogicalResourceID: "MigrationRunner",
	}, "schema-migrate")

	err := n.Notify(context.Background(), hook.StatusSuccess, map[string]any{"applied_count": 3})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "SUCCESS", gotBody["Status"])
	assert.Equal(t, "stack-1", gotBody["StackId"])
	assert.Equal(t, "req-1", gotBody["RequestId"])
	assert.Equal(t, "MigrationRunner", gotBody["LogicalResourceId"])
	assert.Equal(t, map[string]any{"applied_count": float64(3)}, gotBody["Data"])
}

func TestHTTPNotifier_serverRejects_returnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := hook.NewHTTPNotifier(hook.Event{ResponseURL: srv.URL}, "schema-migrate")

	err := n.Notify(context.Background(), hook.StatusFailed, nil)
	assert.Error(t, err)
}

func TestNopNotifier(t *testing.T) {
	t.Parallel()

	assert.NoError(t, hook.NopNotifier{}.Notify(context.Background(), hook.StatusSuccess, nil))
}
