package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/phaserai/schema-migrate/internal/analyzer"
	"github.com/phaserai/schema-migrate/internal/ledger"
	"github.com/phaserai/schema-migrate/internal/registry"
	"github.com/phaserai/schema-migrate/internal/runner"
)

// errBlockingMigrations is returned when up is blocked by destructive findings.
var errBlockingMigrations = errors.New("up aborted: destructive migrations detected (use --force to override)")

var upCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "up",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations from the compiled catalog in ascending
version order, recording each in the ledger. Stops at the first failure.`,
	RunE: runUp,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	upCmd.Flags().String("target", "", "apply only migrations up to and including this version")
	upCmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	upCmd.Flags().Bool("force", false, "apply even when the safety screen finds destructive operations")
	upCmd.Flags().Duration("lock-timeout", 0, "override lock timeout (e.g., 10s, 1m)")
	upCmd.Flags().Duration("statement-timeout", 0, "override statement timeout (e.g., 30s, 5m)")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	target, _ := cmd.Flags().GetString("target")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")

	lockTimeout := cfg.LockTimeout
	if cmd.Flags().Changed("lock-timeout") {
		lockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	}

	stmtTimeout := cfg.StatementTimeout
	if cmd.Flags().Changed("statement-timeout") {
		stmtTimeout, _ = cmd.Flags().GetDuration("statement-timeout")
	}

	defs, err := registry.Load()
	if err != nil {
		return fmt.Errorf("loading migration catalog: %w", err)
	}

	if !force {
		if blocked, screenErr := screenCatalog(out, defs); screenErr != nil {
			return screenErr
		} else if blocked {
			return errBlockingMigrations
		}
	}

	ctx := commandContext(cmd.Context())

	pool, err := connectDB(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer pool.Close()

	r := runner.New(pool, ledger.New(pool), defs,
		runner.WithTarget(target),
		runner.WithDryRun(dryRun),
		runner.WithLockTimeout(lockTimeout),
		runner.WithStatementTimeout(stmtTimeout),
		runner.WithProgressCallback(printProgress(out)),
	)

	if dryRun {
		fmt.Fprintln(out, "\n--- DRY RUN (no changes will be made) ---")
	}

	result, err := r.Run(ctx)
	if err != nil {
		fmt.Fprintf(out, "\n%s\n", result.Message)
		return err
	}

	if dryRun {
		fmt.Fprintf(out, "\nDry run complete: %d migration(s) would be applied.\n", len(result.Applied))
	} else {
		fmt.Fprintf(out, "\n%s (total: %dms)\n", result.Message, result.TotalExecutionTimeMs)
	}

	return nil
}

// screenCatalog runs the destructive-DDL screen and prints findings.
// Returns true when a blocking finding should stop the apply.
func screenCatalog(out io.Writer, defs []registry.Definition) (bool, error) {
	reports, err := analyzer.Screen(defs)
	if err != nil {
		return false, fmt.Errorf("screening migrations: %w", err)
	}

	blocked := false

	for _, r := range reports {
		for _, f := range r.Findings {
			fmt.Fprintf(out, "[%s] %s %s: %s\n", f.Severity, r.Definition.Version, f.Table, f.Message)

			if f.Suggestion != "" {
				fmt.Fprintf(out, "        suggestion: %s\n", f.Suggestion)
			}
		}

		if r.Blocking() {
			blocked = true
		}
	}

	return blocked, nil
}

// printProgress renders runner events for terminal output.
func printProgress(out io.Writer) func(runner.Event) {
	return func(e runner.Event) {
		switch e.Phase {
		case runner.PhaseStarting:
			fmt.Fprintf(out, "  Applying %s (%s) ... ", e.Definition.Version, e.Definition.Description)
		case runner.PhaseApplied:
			fmt.Fprintf(out, "done (%s)\n", e.Duration.Truncate(time.Millisecond))
		case runner.PhaseDryRun:
			fmt.Fprintf(out, "  Would apply %s (%s)\n", e.Definition.Version, e.Definition.Description)
		case runner.PhaseRollingBack:
			fmt.Fprintf(out, "  Rolling back %s (%s) ... ", e.Definition.Version, e.Definition.Description)
		case runner.PhaseRolledBack:
			fmt.Fprintf(out, "done (%s)\n", e.Duration.Truncate(time.Millisecond))
		case runner.PhaseFailed:
			fmt.Fprintf(out, "FAILED\n    Error: %v\n", e.Err)
		}
	}
}
