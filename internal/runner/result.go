package runner

import "fmt"

// MigrationReport describes one migration processed in a batch.
type MigrationReport struct {
	Version         string `json:"version"`
	Description     string `json:"description"`
	ExecutionTimeMs int    `json:"execution_time_ms"`
}

// Result is the structured outcome of a Run or Down batch. Adapters
// serialize it back to their caller (exit code, JSON payload).
type Result struct {
	Success              bool              `json:"success"`
	Message              string            `json:"message"`
	AppliedCount         int               `json:"applied_count"`
	Applied              []MigrationReport `json:"applied_migrations,omitempty"`
	TotalExecutionTimeMs int               `json:"total_execution_time_ms,omitempty"`
	Error                string            `json:"error,omitempty"`
}

// Status summarizes ledger state against the compiled catalog.
type Status struct {
	TotalDefinitions int      `json:"total_migrations"`
	AppliedCount     int      `json:"applied_count"`
	PendingCount     int      `json:"pending_count"`
	AppliedVersions  []string `json:"applied_migrations"`
	PendingVersions  []string `json:"pending_migrations"`
}

// failure builds a failed Result from a batch error, preserving
// whatever was applied before the failure.
func failure(err error, applied []MigrationReport, total int) *Result {
	return &Result{
		Success:              false,
		Message:              fmt.Sprintf("migration failed: %v", err),
		AppliedCount:         len(applied),
		Applied:              applied,
		TotalExecutionTimeMs: total,
		Error:                err.Error(),
	}
}
