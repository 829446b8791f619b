package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tollkeeper/internal/cli"
	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/config"
	"github.com/Veraticus/tollkeeper/internal/fixture"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import sales, pricing and discount data",
		Long: `Import normalized marketplace data from JSON files.

A file may hold any mix of transactions, pricing schedules, resellers and
discount adjustments. Re-importing a changed transaction bumps its version so
the next validation run checks it again; unchanged records are left alone.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("dry-run", false, "Parse files and show what would be imported without saving")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	parser := fixture.NewParser()
	bundles := make([]*fixture.Bundle, 0, len(args))
	for _, path := range args {
		bundle, err := parseFile(cmd, parser, path)
		if err != nil {
			return err
		}
		bundles = append(bundles, bundle)
	}

	if dryRun {
		slog.Info(cli.FormatWarning("Dry run mode - not saving to database"))
		for i, bundle := range bundles {
			slog.Info("Parsed file",
				"file", args[i],
				"transactions", len(bundle.Transactions),
				"schedules", len(bundle.Schedules),
				"resellers", len(bundle.Resellers),
				"adjustments", len(bundle.Adjustments))
		}
		return nil
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return common.NewUserError("failed to open database", err)
	}
	defer func() { _ = store.Close() }()

	var total fixture.Summary
	for i, bundle := range bundles {
		summary, err := fixture.Load(ctx, store, bundle)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", args[i], err)
		}
		total.Transactions += summary.Transactions
		total.Schedules += summary.Schedules
		total.Resellers += summary.Resellers
		total.Adjustments += summary.Adjustments
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
		"Imported %d transactions, %d pricing schedules, %d resellers and %d adjustments",
		total.Transactions, total.Schedules, total.Resellers, total.Adjustments)))
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Run 'tollkeeper validate' to check them"))

	return nil
}

func parseFile(cmd *cobra.Command, parser *fixture.Parser, path string) (*fixture.Bundle, error) {
	f, err := os.Open(config.ExpandPath(path))
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot open %s", path), err)
	}
	defer func() { _ = f.Close() }()

	bundle, err := parser.ParseFile(cmd.Context(), f)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot parse %s", path), err)
	}
	return bundle, nil
}
