package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ncastellanos/transmail/internal/config"
	"github.com/ncastellanos/transmail/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored transaction counts and quarantined documents",
	RunE:  runStatus,
}

func runStatus(ccmd *cobra.Command, args []string) error {
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

	counts, err := st.CountByStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Transactions ===")
	fmt.Printf("Pending: %d\n", counts.Pending)
	fmt.Printf("Failed:  %d\n", counts.Failed)
	fmt.Printf("Synced:  %d\n", counts.Synced)

	quarantined, err := st.SelectQuarantine(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Quarantine (%d) ===\n", len(quarantined))
	for _, row := range quarantined {
		fmt.Printf("\n%s\n", row.DocumentID)
		fmt.Printf("   Subject:  %s\n", row.Subject)
		fmt.Printf("   Reason:   %s\n", row.Reason)
		fmt.Printf("   Attempts: %d (last %s)\n", row.Attempts, row.LastAttempt.Format("2006-01-02 15:04"))
	}
	fmt.Println()
	return nil
}
