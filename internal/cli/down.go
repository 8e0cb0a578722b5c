package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phaserai/schema-migrate/internal/ledger"
	"github.com/phaserai/schema-migrate/internal/registry"
	"github.com/phaserai/schema-migrate/internal/runner"
)

var downCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "down",
	Short: "Roll back applied migrations",
	Long: `Roll back previously applied migrations in descending version order
using their down SQL, deleting each ledger entry as it is reversed.`,
	RunE: runDown,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	downCmd.Flags().Int("steps", 1, "number of migrations to roll back")
	downCmd.Flags().String("target", "", "roll back every migration above this version")
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	steps, _ := cmd.Flags().GetInt("steps")
	target, _ := cmd.Flags().GetString("target")

	defs, err := registry.Load()
	if err != nil {
		return fmt.Errorf("loading migration catalog: %w", err)
	}

	ctx := commandContext(cmd.Context())

	pool, err := connectDB(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer pool.Close()

	r := runner.New(pool, ledger.New(pool), defs,
		runner.WithTarget(target),
		runner.WithDownSteps(steps),
		runner.WithLockTimeout(cfg.LockTimeout),
		runner.WithStatementTimeout(cfg.StatementTimeout),
		runner.WithProgressCallback(printProgress(out)),
	)

	result, err := r.Down(ctx)
	if err != nil {
		fmt.Fprintf(out, "\n%s\n", result.Message)
		return err
	}

	fmt.Fprintf(out, "\n%s\n", result.Message)

	return nil
}
