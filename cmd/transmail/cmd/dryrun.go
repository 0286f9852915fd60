package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/ncastellanos/transmail/internal/config"
)

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Parse matching notifications and report, without writing anything",
	Long: `dry-run fetches and parses every matching document in range and prints
the transactions a real sync would ingest. The store is never opened and the
ledger is never called, so it is safe to run against a live mailbox while
tuning parsers or normalization rules.`,
	RunE: runDryRun,
}

func init() {
	dryRunCmd.Flags().Int(flagLookbackDays, 0, "how many days back to search (overrides config)")
	dryRunCmd.Flags().String(flagMinDate, "", "parse documents received on or after this date (YYYY-MM-DD)")
}

func runDryRun(ccmd *cobra.Command, args []string) error {
	ctx, stop, _ := runContext()
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	after, err := resolveAfter(ccmd, cfg)
	if err != nil {
		return err
	}
	return dryRunReport(ctx, cfg, after)
}

func dryRunReport(ctx context.Context, cfg *config.Config, after civil.Date) error {
	p, err := newPipeline(ctx, cfg, nil)
	if err != nil {
		return err
	}

	records, err := p.DryRun(ctx, after)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Transactions (%d) ===\n", len(records))
	for i, tx := range records {
		fmt.Printf("\n%d. %s\n", i+1, tx.Payee)
		fmt.Printf("   Date:      %s\n", tx.Date)
		fmt.Printf("   Amount:    %s %s (%s)\n", tx.Amount.StringFixed(2), tx.Currency, tx.Direction)
		fmt.Printf("   Issuer:    %s\n", tx.Issuer)
		if tx.Account != "" {
			fmt.Printf("   Account:   %s\n", tx.Account)
		}
		if tx.Memo != "" {
			fmt.Printf("   Memo:      %s\n", tx.Memo)
		}
	}
	fmt.Println()
	return nil
}
