package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tollkeeper/internal/cli"
	"github.com/Veraticus/tollkeeper/internal/common"
)

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <transaction-id>",
		Short: "Show how a transaction's expected price is derived",
		Long: `Validate a single transaction and print every pricing step, the previous
purchase it builds on and the hypothesis that was selected.

Nothing is written to the database.`,
		Args: cobra.ExactArgs(1),
		RunE: runExplain,
	}
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return common.NewUserError("failed to open database", err)
	}
	defer func() { _ = store.Close() }()

	txn, err := store.GetTransaction(ctx, args[0])
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NewUserError(fmt.Sprintf("no transaction %q", args[0]), err)
		}
		return err
	}

	validator, _ := newValidator(store, cfg)
	outcome, err := validator.Validate(ctx, *txn)
	if err != nil {
		if common.IsPricingError(err) {
			return common.NewUserError(fmt.Sprintf("transaction %s cannot be priced", txn.ID), err)
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderExplanation(txn, outcome))
	return nil
}
