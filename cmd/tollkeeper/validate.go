package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/tollkeeper/internal/cli"
	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/config"
	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/pricing"
	"github.com/Veraticus/tollkeeper/internal/storage"
	"github.com/Veraticus/tollkeeper/internal/validation"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate sale prices against the pricing catalog",
		Long: `Recompute the expected vendor amount of every transaction sold since the
given date and record whether it reconciles with what was actually paid.

Transactions whose current version already has a verdict are skipped, so an
interrupted run can simply be started again.`,
		RunE: runValidate,
	}

	cmd.Flags().String("since", "", "Only validate sales on or after this date (format: 2006-01-02)")
	cmd.Flags().StringSlice("partner-opt-out", nil, "Add-on keys that do not take part in the partner program")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")

	_ = viper.BindPFlag(config.KeySince, cmd.Flags().Lookup("since"))
	_ = viper.BindPFlag(config.KeyPartnerOptOut, cmd.Flags().Lookup("partner-opt-out"))

	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	interruptHandler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interruptHandler.HandleInterrupts(cmd.Context(), "Run 'tollkeeper validate' again to continue.")

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return common.NewUserError("failed to open database", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.WarmResellerCache(ctx); err != nil {
		return fmt.Errorf("failed to load resellers: %w", err)
	}

	opts := []validation.RunnerOption{}
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
		opts = append(opts, validation.WithProgress(cli.NewRunProgress(cmd.ErrOrStderr()).Update))
	}

	runner := newRunner(store, cfg, opts...)

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle(
		"Validating sales since "+cfg.Since.Format(model.DateLayout)))

	run, err := runner.Run(ctx, cfg.Since)
	if err != nil {
		if interruptHandler.WasInterrupted() && errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRunSummary(run))
	if run.Processed > run.Reconciled {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Run 'tollkeeper verdicts --unreconciled' to list discrepancies"))
	}
	return nil
}

func newValidator(store *storage.SQLiteStorage, cfg *config.Config) (*validation.Validator, *pricing.Catalog) {
	catalog := pricing.NewCatalog(store)
	validator := validation.NewValidator(store, store, catalog, validation.Config{
		PartnerOptOut: cfg.PartnerOptOut,
	})
	return validator, catalog
}

func newRunner(store *storage.SQLiteStorage, cfg *config.Config, opts ...validation.RunnerOption) *validation.Runner {
	validator, catalog := newValidator(store, cfg)
	opts = append(opts, validation.WithClock(func() time.Time { return time.Now().UTC() }))
	return validation.NewRunner(store, catalog, validator, opts...)
}
