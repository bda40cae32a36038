package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/infra/cache"
	"github.com/ssraminder/financial-dashboard/internal/infra/observability"
	"github.com/ssraminder/financial-dashboard/internal/reconcile"
	"github.com/ssraminder/financial-dashboard/internal/service"
)

type reconcileFlags struct {
	account   string
	statement string
	status    string
	asJSON    bool
	strict    bool
}

func newReconcileCommand(root *rootFlags) *cobra.Command {
	var flags reconcileFlags

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Print the running-balance ledger and balance check for one statement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context(), cmd.OutOrStdout(), root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.account, "account", "", "bank account ID (required)")
	cmd.Flags().StringVar(&flags.statement, "statement", "", "statement import ID (required)")
	cmd.Flags().StringVar(&flags.status, "status", "", "only show rows with this status (changed, needs_review, edited)")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print the ledger as JSON")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "exit non-zero when the statement does not balance")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("statement")

	return cmd
}

func runReconcile(ctx context.Context, out io.Writer, root *rootFlags, flags reconcileFlags) error {
	cfg := loadConfig(root)
	if root.logLevel == "" {
		cfg.LogLevel = "warn"
	}
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	be, err := openBackend(cfg, root, logger)
	if err != nil {
		return err
	}

	refs := cache.New[any](time.Minute)
	defer refs.Close()
	svc := service.NewReconcileService(be.store, refs, service.Options{}, observability.NewMetrics(), logger)
	defer svc.Close()

	sess, err := svc.CreateSession(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.Select(ctx, sess.SessionID, flags.account, flags.statement); err != nil {
		return fmt.Errorf("load statement: %w", err)
	}
	view, err := svc.Ledger(ctx, sess.SessionID, reconcile.Criteria{Status: reconcile.StatusFilter(flags.status)})
	if err != nil {
		return err
	}

	if flags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return err
		}
	} else {
		printLedger(out, view)
	}

	logger.Debug("reconcile report printed",
		zap.String("statement_id", flags.statement),
		zap.Bool("balanced", view.Balance.IsBalanced),
	)
	if flags.strict && !view.Balance.IsBalanced {
		return fmt.Errorf("statement %s is out of balance by %.2f", flags.statement, view.Balance.Difference)
	}
	return nil
}

func printLedger(out io.Writer, v *service.LedgerView) {
	st := v.Statement
	fmt.Fprintf(out, "%s  %s  %s to %s  (%s)\n\n",
		v.BankAccount.Name, st.ID, st.PeriodStart, st.PeriodEnd, st.Status)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDATE\tDESCRIPTION\tTYPE\tAMOUNT\tBALANCE\tFLAGS\t")
	for _, r := range v.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%s\t\n",
			r.Index+1, r.TransactionDate, r.Description, r.EditedType, r.EditedAmount, r.CalculatedBalance, rowFlags(r))
	}
	tw.Flush()

	b := v.Balance
	fmt.Fprintf(out, "\nopening %.2f  calculated %.2f  statement %.2f  difference %.2f\n",
		b.OpeningBalance, b.CalculatedBalance, b.ClosingBalance, b.Difference)
	if b.IsBalanced {
		fmt.Fprintln(out, "BALANCED")
	} else {
		fmt.Fprintln(out, "OUT OF BALANCE")
	}
}

func rowFlags(r service.LedgerRow) string {
	var f []byte
	if r.Locked {
		f = append(f, 'L')
	}
	if r.Edited {
		f = append(f, 'E')
	}
	if r.NeedsReview {
		f = append(f, 'R')
	}
	return string(f)
}
