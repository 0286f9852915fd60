// Package reconcile pushes stored transactions into the external budgeting
// ledger and writes the per-row outcome back. Rows are grouped per ledger
// account and submitted as batches; a retryable batch failure degrades to
// one submission per row so a single poison row cannot block its siblings.
package reconcile

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/ncastellanos/transmail/internal/classify"
	"github.com/ncastellanos/transmail/internal/logger"
	"github.com/ncastellanos/transmail/internal/store"
)

const (
	opSubmitBatch    = "ledger.submitBatch"
	opSubmitOne      = "ledger.submitOne"
	opResolveAccount = "reconcile.resolveAccount"
)

// Ledger is the external budgeting system. SubmitBatch returns one ledger
// transaction id per submitted row in order; an empty string means the
// ledger accepted the batch but produced no id for that row.
type Ledger interface {
	SubmitBatch(ctx context.Context, ledgerAccountID string, rows []store.TransactionRow) ([]string, error)
	SubmitOne(ctx context.Context, ledgerAccountID string, row store.TransactionRow) (string, error)
}

// Store is the slice of the durable store the engine depends on.
type Store interface {
	SelectPending(ctx context.Context) ([]store.TransactionRow, error)
	SelectUnsynced(ctx context.Context) ([]store.TransactionRow, error)
	RecordSynced(ctx context.Context, id, ledgerTransactionID string) error
	RecordError(ctx context.Context, id, message string, kind classify.Kind) error
}

// Scope selects which rows a run submits.
type Scope string

const (
	// ScopePending is the fresh-sync scope: rows never attempted.
	ScopePending Scope = "pending"
	// ScopeUnsynced is the retry scope: failed and pending rows alike.
	ScopeUnsynced Scope = "unsynced"
)

// Summary is the end-of-run report.
type Summary struct {
	Selected     int
	Synced       int
	Failed       int
	FailedByKind map[classify.Kind]int
}

// MarshalZerologObject emits the summary as structured fields.
func (s Summary) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int("selected", s.Selected).Int("synced", s.Synced).Int("failed", s.Failed)
	if len(s.FailedByKind) > 0 {
		d := zerolog.Dict()
		for kind, n := range s.FailedByKind {
			d.Int(string(kind), n)
		}
		ev.Dict("failed_by_kind", d)
	}
}

// Engine drives one reconciliation run.
type Engine struct {
	store    Store
	ledger   Ledger
	accounts map[string]string // bank instrument (last 4) -> ledger account id
}

// New builds an engine over the store, the ledger client and the configured
// instrument-to-ledger-account mapping.
func New(st Store, ledger Ledger, accounts map[string]string) *Engine {
	return &Engine{store: st, ledger: ledger, accounts: accounts}
}

// outcome is the per-row result of a group submission.
type outcome struct {
	ledgerID string
	err      *classify.Error
}

// Run selects the rows in scope, submits them grouped by ledger account in
// stable date order, and records every outcome. Store bookkeeping failures
// are collected and returned once the run finishes; they never abort
// sibling rows or groups. The returned summary always reflects the ledger
// outcomes observed.
func (e *Engine) Run(ctx context.Context, scope Scope) (Summary, error) {
	log := logger.FromContext(ctx)

	rows, err := e.selectScope(ctx, scope)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Selected: len(rows), FailedByKind: make(map[classify.Kind]int)}
	log.Info().Str("scope", string(scope)).Int("selected", len(rows)).Msg("Starting reconciliation")
	if len(rows) == 0 {
		return summary, nil
	}

	var errs *multierror.Error

	// Group by resolved ledger account, keeping the stable row order inside
	// each group and first-appearance order across groups. Rows without a
	// mapping fail as configuration errors and are never submitted.
	groups := make(map[string][]store.TransactionRow)
	var order []string
	for _, row := range rows {
		ledgerAccount, ok := e.accounts[row.Account]
		if !ok || ledgerAccount == "" {
			cerr := classify.NewError(classify.KindConfiguration, opResolveAccount,
				fmt.Sprintf("no ledger account mapping for instrument %q", row.Account))
			log.Warn().Str("transaction_id", row.ID).Object("error", cerr).Msg("Skipping unmapped transaction")
			e.recordFailure(ctx, row.ID, cerr, &summary, &errs)
			continue
		}
		if _, seen := groups[ledgerAccount]; !seen {
			order = append(order, ledgerAccount)
		}
		groups[ledgerAccount] = append(groups[ledgerAccount], row)
	}

	for _, ledgerAccount := range order {
		// A run aborted between groups leaves untouched rows pending, which
		// the next run picks up again.
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}

		group := groups[ledgerAccount]
		outcomes := e.submitGroup(ctx, ledgerAccount, group)
		for i, row := range group {
			out := outcomes[i]
			if out.ledgerID != "" {
				if err := e.store.RecordSynced(ctx, row.ID, out.ledgerID); err != nil {
					errs = multierror.Append(errs, err)
				}
				summary.Synced++
				log.Debug().
					Str("transaction_id", row.ID).
					Str("ledger_transaction_id", out.ledgerID).
					Msg("Transaction synced")
				continue
			}

			cerr := out.err
			if cerr == nil {
				// Batch accepted but no id came back for this row; surface it
				// so the retry scope and reports see it.
				cerr = classify.NewError(classify.KindUnknown, opSubmitBatch, "ledger returned no transaction id")
			}
			log.Warn().Str("transaction_id", row.ID).Object("error", cerr).Msg("Transaction failed to sync")
			e.recordFailure(ctx, row.ID, cerr, &summary, &errs)
		}
	}

	log.Info().Object("summary", summary).Msg("Reconciliation completed")
	return summary, errs.ErrorOrNil()
}

func (e *Engine) selectScope(ctx context.Context, scope Scope) ([]store.TransactionRow, error) {
	switch scope {
	case ScopeUnsynced:
		rows, err := e.store.SelectUnsynced(ctx)
		if err != nil {
			return nil, fmt.Errorf("reconcile: select unsynced: %w", err)
		}
		return rows, nil
	default:
		rows, err := e.store.SelectPending(ctx)
		if err != nil {
			return nil, fmt.Errorf("reconcile: select pending: %w", err)
		}
		return rows, nil
	}
}

func (e *Engine) recordFailure(ctx context.Context, id string, cerr *classify.Error, summary *Summary, errs **multierror.Error) {
	if err := e.store.RecordError(ctx, id, cerr.Message, cerr.Kind); err != nil {
		*errs = multierror.Append(*errs, err)
	}
	summary.Failed++
	summary.FailedByKind[cerr.Kind]++
}

// submitGroup submits one ledger-account group and returns an outcome per
// row, index-aligned with group. The whole batch goes first; on a
// classified-retryable failure of a multi-row group it degrades to one
// submission per row, so unrelated rows survive a poison sibling. A
// non-retryable failure, or a single-row group, fails outright with the
// batch classification.
func (e *Engine) submitGroup(ctx context.Context, ledgerAccount string, group []store.TransactionRow) []outcome {
	log := logger.FromContext(ctx)
	outcomes := make([]outcome, len(group))

	ids, err := e.ledger.SubmitBatch(ctx, ledgerAccount, group)
	if err == nil {
		for i := range group {
			if i < len(ids) {
				outcomes[i].ledgerID = ids[i]
			}
		}
		return outcomes
	}

	cerr := classify.Classify(err, opSubmitBatch)
	log.Warn().
		Str("ledger_account_id", ledgerAccount).
		Int("rows", len(group)).
		Object("error", cerr).
		Msg("Batch submission failed")

	if !cerr.Retryable() || len(group) == 1 {
		for i := range outcomes {
			outcomes[i].err = cerr
		}
		return outcomes
	}

	log.Info().
		Str("ledger_account_id", ledgerAccount).
		Int("rows", len(group)).
		Msg("Degrading to per-row submission")

	for i, row := range group {
		id, err := e.ledger.SubmitOne(ctx, ledgerAccount, row)
		if err != nil {
			outcomes[i].err = classify.Classify(err, opSubmitOne)
			continue
		}
		if id == "" {
			outcomes[i].err = classify.NewError(classify.KindUnknown, opSubmitOne, "ledger returned no transaction id")
			continue
		}
		outcomes[i].ledgerID = id
	}
	return outcomes
}
