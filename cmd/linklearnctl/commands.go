package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dom/linklearn/internal/bus"
	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/reconcile"
	"github.com/dom/linklearn/internal/repository/postgres"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errReconcileMismatch = errors.New("ledger does not reconcile")

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			db, err := postgres.NewConnection(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer postgres.Close(db)

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newReconcileCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check every balance against the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "yaml" && output != "text" {
				return fmt.Errorf("unknown output %q", output)
			}
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			pool, err := reconcile.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := reconcile.NewChecker(pool).Check(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), report, output); err != nil {
				return err
			}
			if !report.OK() {
				return errReconcileMismatch
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "yaml", "Report format: yaml or text")
	return cmd
}

func writeReport(w io.Writer, report *reconcile.Report, output string) error {
	if output == "yaml" {
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "checked %d users at %s\n", report.UsersChecked, report.CheckedAt.Format(time.RFC3339))
	for _, m := range report.Mismatches {
		fmt.Fprintf(w, "MISMATCH %s (%s): credits %s, ledger %s\n", m.DisplayName, m.UserID, m.Credits, m.LedgerSum)
	}
	status := "ok"
	if !report.Bank.OK {
		status = "MISMATCH"
	}
	fmt.Fprintf(w, "bank %s: actual %s, expected %s\n", status, report.Bank.Actual, report.Bank.Expected)
	return nil
}

func newEndSessionsCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "end-sessions",
		Short: "End and settle active sessions started before a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			summaries, err := a.services.Session.EndStaleSessions(cmd.Context(), olderThan)
			for _, s := range summaries {
				fmt.Fprintf(cmd.OutOrStdout(), "ended %s: bank cut %s\n", s.SessionID, s.BankCut)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d sessions ended\n", len(summaries))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only end sessions started at least this long ago")
	return cmd
}

func newBankCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Inspect and draw on the community bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newBankShowCommand())
	cmd.AddCommand(newBankGrantCommand())
	return cmd
}

func newBankShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the bank total",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			bank, err := a.services.Ledger.Bank(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bank: %s credits (updated %s)\n", bank.TotalCredits, bank.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newBankGrantCommand() *cobra.Command {
	var (
		user        string
		amount      string
		description string
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Move credits from the bank to a user as SUPPORT",
		RunE: func(cmd *cobra.Command, args []string) error {
			credits, err := domain.ParseCredits(amount)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			userID, err := resolveUser(cmd.Context(), a, user)
			if err != nil {
				return err
			}

			entry, err := a.services.Ledger.GrantFromBank(cmd.Context(), userID, credits, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %s to %s, balance now %s\n", entry.Amount, user, entry.BalanceAfter)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User id or display name")
	cmd.Flags().StringVar(&amount, "amount", "", "Credits to grant, e.g. 5.00")
	cmd.Flags().StringVar(&description, "description", "Bank support", "Ledger description")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func resolveUser(ctx context.Context, a *app, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	u, err := a.repos.User.GetByDisplayName(ctx, ref)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user %q: %w", ref, err)
	}
	return u.ID, nil
}

func newSettlementsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settlements",
		Short: "Settlement event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newSettlementsTailCommand())
	return cmd
}

func newSettlementsTailCommand() *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print settlements published to NATS until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.NATSURL == "" {
				return errors.New("NATS_URL is not set")
			}

			b, err := bus.New(cfg.NATSURL, nats.Name("linklearnctl-tail"))
			if err != nil {
				return err
			}
			defer b.Close()

			out := cmd.OutOrStdout()
			sub, err := b.SubscribeSettlements(cmd.Context(), durable, func(_ context.Context, s *domain.SettlementSummary) error {
				return printSettlement(out, s)
			})
			if err != nil {
				return err
			}
			defer sub.Close()

			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&durable, "durable", "linklearnctl", "Durable consumer name")
	return cmd
}

func printSettlement(w io.Writer, s *domain.SettlementSummary) error {
	_, err := fmt.Fprintf(w, "%s session=%s %s taught %ds earned %s | %s taught %ds earned %s | bank %s\n",
		time.Now().Format(time.RFC3339), s.SessionID,
		s.User1.DisplayName, s.User1.TeachingSeconds, s.User1.CreditsEarned,
		s.User2.DisplayName, s.User2.TeachingSeconds, s.User2.CreditsEarned,
		s.BankCut)
	return err
}
