package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/phaserai/schema-migrate/internal/hook"
	"github.com/phaserai/schema-migrate/internal/invoke"
	"github.com/phaserai/schema-migrate/internal/secrets"
)

// errHookFailed makes the process exit non-zero after the completion
// notification has already been sent.
var errHookFailed = errors.New("hook invocation failed")

var hookCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "hook",
	Short: "Process a deployment lifecycle event",
	Long: `Read a deployment hook event (create/update/delete lifecycle tag or a
direct action), run the corresponding migration action, and report
completion back to the orchestrator's response URL when one is given.
Credentials are resolved from the secret store named by SECRET_ARN,
falling back to DB_* environment variables.`,
	RunE: runHook,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	hookCmd.Flags().String("event", "-", "path to event JSON file, or - for stdin")
	rootCmd.AddCommand(hookCmd)
}

func runHook(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	ctx := commandContext(cmd.Context())

	data, err := readEvent(cmd)
	if err != nil {
		return err
	}

	event, err := hook.ParseEvent(data)
	if err != nil {
		return fmt.Errorf("parsing hook event: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), nil))

	resolver, err := hookResolver(ctx)
	if err != nil {
		return err
	}

	inv := invoke.New(resolver,
		invoke.WithLockTimeout(cfg.LockTimeout),
		invoke.WithStatementTimeout(cfg.StatementTimeout),
		invoke.WithLogger(logger),
	)

	result := hook.NewHandler(inv, logger).Handle(ctx, event)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if !result.Success {
		return errHookFailed
	}

	return nil
}

// readEvent loads the event payload from the flagged file or stdin.
func readEvent(cmd *cobra.Command) ([]byte, error) {
	path, _ := cmd.Flags().GetString("event")

	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading event from stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading event file %s: %w", path, err)
	}

	return data, nil
}

// hookResolver picks the credential source a hook runs under: the
// secret store when SECRET_ARN is set, DB_* variables otherwise.
func hookResolver(ctx context.Context) (secrets.Resolver, error) {
	if os.Getenv("SECRET_ARN") != "" {
		resolver, err := secrets.NewSecretsManagerFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("building secret resolver: %w", err)
		}

		return resolver, nil
	}

	return secrets.Env{}, nil
}
