package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tollkeeper/internal/cli"
	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/service"
)

func verdictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verdicts",
		Short: "List recorded verdicts",
		Long: `List the verdicts recorded by validation runs, most recently updated first.

Use --unreconciled to only see transactions whose vendor amount did not match
any pricing hypothesis.`,
		RunE: runVerdicts,
	}

	cmd.Flags().Bool("unreconciled", false, "Only show discrepancies")
	cmd.Flags().IntP("limit", "n", 50, "Maximum number of verdicts to show (0 for all)")
	cmd.Flags().Bool("last-run", false, "Show the summary of the latest validation run")

	return cmd
}

func runVerdicts(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	unreconciled, _ := cmd.Flags().GetBool("unreconciled")
	limit, _ := cmd.Flags().GetInt("limit")
	lastRun, _ := cmd.Flags().GetBool("last-run")

	if limit < 0 {
		return common.NewUserError("limit must not be negative", common.ErrInvalidConfig)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return common.NewUserError("failed to open database", err)
	}
	defer func() { _ = store.Close() }()

	if lastRun {
		run, err := store.GetLatestRun(ctx)
		if err != nil {
			return common.NewUserError("no validation run recorded yet", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRunSummary(run))
	}

	verdicts, err := store.ListVerdicts(ctx, service.VerdictFilter{
		UnreconciledOnly: unreconciled,
		Limit:            limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list verdicts: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderVerdicts(verdicts))
	return nil
}
