package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ncastellanos/transmail/internal/config"
	"github.com/ncastellanos/transmail/internal/reconcile"
	"github.com/ncastellanos/transmail/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ingest new notifications, then reconcile pending transactions",
	Long: `sync runs one full pass: list matching mailbox documents, parse and
store new transactions, then submit every pending transaction to the ledger.
An incomplete ledger configuration aborts only the reconciliation half; the
ingestion results are kept and reported either way.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Int(flagLookbackDays, 0, "how many days back to search (overrides config)")
	syncCmd.Flags().String(flagMinDate, "", "ingest documents received on or after this date (YYYY-MM-DD)")
	syncCmd.Flags().Bool(flagDryRun, false, "parse and report only, no writes and no submissions")
}

func runSync(ccmd *cobra.Command, args []string) error {
	ctx, stop, log := runContext()
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	after, err := resolveAfter(ccmd, cfg)
	if err != nil {
		return err
	}

	if dryRun, _ := ccmd.Flags().GetBool(flagDryRun); dryRun {
		return dryRunReport(ctx, cfg, after)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := newPipeline(ctx, cfg, st)
	if err != nil {
		return err
	}

	summary, ingestErr := p.Ingest(ctx, after)
	printIngestSummary(summary)
	if ingestErr != nil {
		return ingestErr
	}

	engine, err := newEngine(cfg, st)
	if err != nil {
		log.Error().Err(err).Msg("Skipping reconciliation")
		return err
	}

	reconciled, err := engine.Run(ctx, reconcile.ScopePending)
	printReconcileSummary(reconciled)
	return err
}
