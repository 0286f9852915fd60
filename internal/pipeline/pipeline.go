// Package pipeline drives one ingestion run: list matching mailbox
// documents, parse each into a transaction, normalize, and insert into the
// durable store. Per-document failures are recorded and skipped; they never
// abort the run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/ncastellanos/transmail/internal/domain"
	"github.com/ncastellanos/transmail/internal/logger"
	"github.com/ncastellanos/transmail/internal/normalize"
	"github.com/ncastellanos/transmail/internal/parser"
)

// MailSource lists and fetches mailbox documents.
type MailSource interface {
	ListMatching(ctx context.Context, query string) ([]string, error)
	Fetch(ctx context.Context, id string) (domain.Document, error)
}

// Store is the slice of the durable store the pipeline writes to.
type Store interface {
	IsProcessed(ctx context.Context, documentID string) (bool, error)
	MarkProcessed(ctx context.Context, documentID string) error
	InsertIfAbsent(ctx context.Context, tx domain.Transaction) (bool, error)
	Quarantine(ctx context.Context, documentID, reason, subject string, date time.Time) error
}

// IngestSummary counts how each listed document settled during one run.
type IngestSummary struct {
	Fetched          int // fetched this run (listed minus skips and fetch failures)
	AlreadyProcessed int
	Unmatched        int
	Quarantined      int
	Inserted         int
	Duplicates       int
}

// MarshalZerologObject emits the summary as structured fields.
func (s IngestSummary) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int("fetched", s.Fetched).
		Int("already_processed", s.AlreadyProcessed).
		Int("unmatched", s.Unmatched).
		Int("quarantined", s.Quarantined).
		Int("inserted", s.Inserted).
		Int("duplicates", s.Duplicates)
}

// Pipeline wires the mail source, the parser registry, the normalization
// rules and the store for one run. Construction is explicit; there are no
// package globals.
type Pipeline struct {
	mail    MailSource
	parsers *parser.Registry
	rules   normalize.Rules
	store   Store
}

// New builds a pipeline.
func New(mail MailSource, parsers *parser.Registry, rules normalize.Rules, st Store) *Pipeline {
	return &Pipeline{mail: mail, parsers: parsers, rules: rules, store: st}
}

// Ingest runs one ingestion pass over every document received after the
// given date. Each store mutation commits individually, so an aborted run
// leaves resumable state: unprocessed documents are simply picked up again.
// Fetch failures are logged and skipped; store failures abort the run.
func (p *Pipeline) Ingest(ctx context.Context, after civil.Date) (IngestSummary, error) {
	log := logger.FromContext(ctx)
	var summary IngestSummary

	query := p.parsers.Query(after)
	ids, err := p.mail.ListMatching(ctx, query)
	if err != nil {
		return summary, fmt.Errorf("pipeline: list documents: %w", err)
	}
	log.Info().Str("query", query).Int("documents", len(ids)).Msg("Starting ingestion")

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		processed, err := p.store.IsProcessed(ctx, id)
		if err != nil {
			return summary, fmt.Errorf("pipeline: check processed: %w", err)
		}
		if processed {
			summary.AlreadyProcessed++
			continue
		}

		doc, err := p.mail.Fetch(ctx, id)
		if err != nil {
			log.Warn().Str("document_id", id).Err(err).Msg("Fetch failed, skipping document")
			continue
		}
		summary.Fetched++

		if err := p.ingestDocument(ctx, doc, &summary); err != nil {
			return summary, err
		}
	}

	log.Info().Object("summary", summary).Msg("Ingestion completed")
	return summary, nil
}

// ingestDocument settles one fetched document. Documents are only marked
// processed after their terminal outcome (inserted or duplicate) committed;
// unmatched and quarantined documents stay unmarked so later runs retry
// them, bumping the quarantine attempt counter.
func (p *Pipeline) ingestDocument(ctx context.Context, doc domain.Document, summary *IngestSummary) error {
	log := logger.FromContext(ctx).With().Str("document_id", doc.ID).Logger()

	pr := p.parsers.Match(doc)
	if pr == nil {
		summary.Unmatched++
		log.Debug().
			Str("sender", doc.Sender).
			Str("subject", doc.Subject).
			Msg("No parser matched document")
		return nil
	}

	tx := pr.Extract(doc)
	if tx == nil {
		return p.quarantine(ctx, doc, summary,
			fmt.Sprintf("parser %s could not extract a transaction", pr.Name()))
	}

	record := p.rules.Apply(*tx)
	record.Finalize()

	if err := record.Validate(); err != nil {
		return p.quarantine(ctx, doc, summary,
			fmt.Sprintf("parser %s produced an invalid transaction: %v", pr.Name(), err))
	}

	inserted, err := p.store.InsertIfAbsent(ctx, record)
	if err != nil {
		return fmt.Errorf("pipeline: insert transaction: %w", err)
	}
	if inserted {
		summary.Inserted++
		log.Info().
			Str("parser", pr.Name()).
			Str("transaction_id", record.ID).
			Str("payee", record.Payee).
			Str("amount", record.Amount.StringFixed(2)).
			Str("date", record.Date.String()).
			Msg("Transaction ingested")
	} else {
		summary.Duplicates++
		log.Info().
			Str("parser", pr.Name()).
			Str("transaction_id", record.ID).
			Msg("Duplicate transaction skipped")
	}

	if err := p.store.MarkProcessed(ctx, doc.ID); err != nil {
		return fmt.Errorf("pipeline: mark processed: %w", err)
	}
	return nil
}

func (p *Pipeline) quarantine(ctx context.Context, doc domain.Document, summary *IngestSummary, reason string) error {
	summary.Quarantined++
	log := logger.FromContext(ctx)
	log.Warn().
		Str("document_id", doc.ID).
		Str("subject", doc.Subject).
		Str("reason", reason).
		Msg("Document quarantined")

	if err := p.store.Quarantine(ctx, doc.ID, reason, doc.Subject, doc.ReceivedAt); err != nil {
		return fmt.Errorf("pipeline: quarantine document: %w", err)
	}
	return nil
}

// DryRun parses and normalizes every matching document without touching the
// store, logging a diagnostic line per document. It returns the transactions
// a real run would attempt to insert, including ones already stored.
func (p *Pipeline) DryRun(ctx context.Context, after civil.Date) ([]domain.Transaction, error) {
	log := logger.FromContext(ctx)

	query := p.parsers.Query(after)
	ids, err := p.mail.ListMatching(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list documents: %w", err)
	}
	log.Info().Str("query", query).Int("documents", len(ids)).Msg("Starting dry run")

	var records []domain.Transaction
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		doc, err := p.mail.Fetch(ctx, id)
		if err != nil {
			log.Warn().Str("document_id", id).Err(err).Msg("Fetch failed, skipping document")
			continue
		}

		pr := p.parsers.Match(doc)
		if pr == nil {
			log.Info().
				Str("document_id", doc.ID).
				Str("sender", doc.Sender).
				Str("subject", doc.Subject).
				Msg("No parser matched document")
			continue
		}

		tx := pr.Extract(doc)
		if tx == nil {
			log.Warn().
				Str("document_id", doc.ID).
				Str("parser", pr.Name()).
				Str("subject", doc.Subject).
				Msg("Extraction failed")
			continue
		}

		record := p.rules.Apply(*tx)
		record.Finalize()
		log.Info().
			Str("parser", pr.Name()).
			Str("payee", record.Payee).
			Str("amount", record.Amount.StringFixed(2)).
			Str("date", record.Date.String()).
			Str("direction", string(record.Direction)).
			Msg("Would ingest transaction")
		records = append(records, record)
	}

	return records, nil
}
