package hook

import (
	"context"
	"log/slog"

	"github.com/phaserai/schema-migrate/internal/invoke"
)

// MigrationInvoker abstracts the invocation adapter for testability.
type MigrationInvoker interface {
	Invoke(ctx context.Context, req invoke.Request) *invoke.Result
}

// Handler translates one hook event into a migration invocation and
// always reports completion, even when the invocation itself failed,
// so the deployment process is never left hanging.
type Handler struct {
	invoker     MigrationInvoker
	logger      *slog.Logger
	newNotifier func(Event) CompletionNotifier
}

// NewHandler builds a Handler around the given invoker.
func NewHandler(inv MigrationInvoker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		invoker: inv,
		logger:  logger,
		newNotifier: func(e Event) CompletionNotifier {
			if e.ResponseURL == "" {
				return NopNotifier{}
			}

			return NewHTTPNotifier(e, "schema-migrate")
		},
	}
}

// Handle processes one event and returns the invocation result.
func (h *Handler) Handle(ctx context.Context, e Event) *invoke.Result {
	result := h.dispatch(ctx, e)

	status := StatusSuccess
	if !result.Success {
		status = StatusFailed
	}

	if err := h.newNotifier(e).Notify(ctx, status, result); err != nil {
		h.logger.Error("sending completion notification failed", "error", err)
	}

	return result
}

// dispatch maps the event's lifecycle tag (or direct action) to a
// runner invocation.
func (h *Handler) dispatch(ctx context.Context, e Event) *invoke.Result {
	switch e.RequestType {
	case RequestCreate, RequestUpdate:
		h.logger.Info("deployment event: applying migrations", "request_type", e.RequestType)

		return h.invoker.Invoke(ctx, invoke.Request{Action: invoke.ActionUp})
	case RequestDelete:
		// Deleting the stack must not touch data.
		h.logger.Info("deployment event: stack deletion, no action taken")

		return &invoke.Result{Success: true, Message: "No action taken on stack deletion"}
	}

	actionName := e.Action
	if actionName == "" {
		actionName = "up"
	}

	action, err := invoke.ParseAction(actionName)
	if err != nil {
		h.logger.Error("unknown action in event", "action", e.Action)

		return &invoke.Result{Success: false, Message: err.Error(), Error: err.Error()}
	}

	return h.invoker.Invoke(ctx, invoke.Request{
		Action:  action,
		Version: e.Version,
		DryRun:  e.DryRun,
	})
}
