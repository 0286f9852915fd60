// Package cmd wires the transmail subcommands. Every command builds its own
// context, logger and collaborators explicitly; nothing is shared through
// globals beyond the cobra command tree itself.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ncastellanos/transmail/internal/config"
	"github.com/ncastellanos/transmail/internal/gmail"
	"github.com/ncastellanos/transmail/internal/logger"
	"github.com/ncastellanos/transmail/internal/normalize"
	"github.com/ncastellanos/transmail/internal/parser"
	"github.com/ncastellanos/transmail/internal/pipeline"
	"github.com/ncastellanos/transmail/internal/reconcile"
	"github.com/ncastellanos/transmail/internal/store"
	"github.com/ncastellanos/transmail/internal/ynab"
)

const (
	flagConfig       = "config"
	flagLookbackDays = "lookback-days"
	flagMinDate      = "min-date"
	flagDryRun       = "dry-run"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "transmail",
	Short: "Ingest bank notification emails and reconcile them into a budgeting ledger",
	Long: `transmail reads bank notification emails from a Gmail mailbox, parses
them into canonical transactions, stores them durably, and reconciles the
stored records into a YNAB budget. Re-running any command is safe: documents
and transactions are deduplicated by content.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, flagConfig, "",
		"config file (default searches ./transmail.yaml)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(dryRunCmd)
	rootCmd.AddCommand(statusCmd)
}

// runContext builds the interrupt-aware context and run-scoped logger every
// command starts from.
func runContext() (context.Context, context.CancelFunc, zerolog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	log, runID := logger.WithRun(logger.New())
	ctx = logger.WithContext(ctx, log)
	log.Debug().Str("run_id", runID).Msg("Run starting")
	return ctx, stop, log
}

// resolveAfter turns the date flags into the received-after bound for the
// mailbox query: an explicit --min-date wins, then --lookback-days, then the
// configured lookback.
func resolveAfter(ccmd *cobra.Command, cfg *config.Config) (civil.Date, error) {
	if minDate, _ := ccmd.Flags().GetString(flagMinDate); minDate != "" {
		d, err := civil.ParseDate(minDate)
		if err != nil {
			return civil.Date{}, fmt.Errorf("invalid --min-date %q, expected YYYY-MM-DD", minDate)
		}
		return d, nil
	}

	days, _ := ccmd.Flags().GetInt(flagLookbackDays)
	if days <= 0 {
		days = cfg.LookbackDays
	}
	if days <= 0 {
		days = 30
	}
	return civil.DateOf(time.Now().AddDate(0, 0, -days)), nil
}

// newPipeline wires the mailbox, parser registry and normalization rules.
// st may be nil for dry runs, which never touch the store.
func newPipeline(ctx context.Context, cfg *config.Config, st *store.Store) (*pipeline.Pipeline, error) {
	mail, err := gmail.New(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile)
	if err != nil {
		return nil, err
	}
	rules, err := normalize.Compile(cfg.Rules)
	if err != nil {
		return nil, err
	}
	return pipeline.New(mail, parser.New(cfg.MyInstruments()), rules, st), nil
}

// newEngine validates the ledger settings and wires the reconciliation
// engine over the store.
func newEngine(cfg *config.Config, st *store.Store) (*reconcile.Engine, error) {
	if err := cfg.ValidateLedger(); err != nil {
		return nil, err
	}
	client := ynab.New(ynab.Config{
		BaseURL:  cfg.Ledger.BaseURL,
		Token:    cfg.Ledger.Token,
		BudgetID: cfg.Ledger.BudgetID,
		Retry:    cfg.Retry.Policy(),
	})
	return reconcile.New(st, client, cfg.Accounts), nil
}

func printIngestSummary(s pipeline.IngestSummary) {
	fmt.Println("\n=== Ingestion ===")
	fmt.Printf("Fetched:           %d\n", s.Fetched)
	fmt.Printf("Already processed: %d\n", s.AlreadyProcessed)
	fmt.Printf("Unmatched:         %d\n", s.Unmatched)
	fmt.Printf("Quarantined:       %d\n", s.Quarantined)
	fmt.Printf("Inserted:          %d\n", s.Inserted)
	fmt.Printf("Duplicates:        %d\n", s.Duplicates)
}

func printReconcileSummary(s reconcile.Summary) {
	fmt.Println("\n=== Reconciliation ===")
	fmt.Printf("Selected: %d\n", s.Selected)
	fmt.Printf("Synced:   %d\n", s.Synced)
	fmt.Printf("Failed:   %d\n", s.Failed)
	for kind, n := range s.FailedByKind {
		fmt.Printf("  %s: %d\n", kind, n)
	}
}
