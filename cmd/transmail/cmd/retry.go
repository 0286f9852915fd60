package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ncastellanos/transmail/internal/config"
	"github.com/ncastellanos/transmail/internal/reconcile"
	"github.com/ncastellanos/transmail/internal/store"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Resubmit every unsynced transaction to the ledger",
	Long: `retry reconciles without ingesting: it selects all stored transactions
that never reached the ledger, including ones whose last attempt failed, and
submits them again. Previously recorded errors are cleared on success.`,
	RunE: runRetry,
}

func runRetry(ccmd *cobra.Command, args []string) error {
	ctx, stop, _ := runContext()
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := newEngine(cfg, st)
	if err != nil {
		return err
	}

	summary, err := engine.Run(ctx, reconcile.ScopeUnsynced)
	printReconcileSummary(summary)
	return err
}
