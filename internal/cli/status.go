package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phaserai/schema-migrate/internal/ledger"
	"github.com/phaserai/schema-migrate/internal/registry"
	"github.com/phaserai/schema-migrate/internal/runner"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `Display applied and pending migrations by comparing the ledger
against the compiled catalog.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	statusCmd.Flags().String("format", "", "output format (text, json); defaults to config")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	format := cfg.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}

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

	r := runner.New(pool, ledger.New(pool), defs)

	status, err := r.Status(ctx)
	if err != nil {
		return fmt.Errorf("querying migration status: %w", err)
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(status)
	}

	fmt.Fprintf(out, "Migrations: %d total, %d applied, %d pending\n",
		status.TotalDefinitions, status.AppliedCount, status.PendingCount)

	for _, v := range status.AppliedVersions {
		fmt.Fprintf(out, "  applied  %s\n", v)
	}

	for _, v := range status.PendingVersions {
		fmt.Fprintf(out, "  pending  %s\n", v)
	}

	return nil
}
