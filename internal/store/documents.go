package store

import (
	"context"
	"fmt"
	"time"
)

const queryMarkProcessed = `
	INSERT INTO processed_documents (document_id, processed_at)
	VALUES (?, ?)
	ON CONFLICT(document_id) DO NOTHING
`

// MarkProcessed records that documentID has been fully handled so later
// runs skip it before fetching. Marking twice is a no-op.
func (s *Store) MarkProcessed(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, queryMarkProcessed, documentID, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("store: mark processed %s: %w", documentID, err)
	}
	return nil
}

const queryIsProcessed = `
	SELECT EXISTS (SELECT 1 FROM processed_documents WHERE document_id = ?)
`

// IsProcessed reports whether documentID was handled by an earlier run.
func (s *Store) IsProcessed(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, queryIsProcessed, documentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: is processed %s: %w", documentID, err)
	}
	return exists, nil
}

const queryQuarantine = `
	INSERT INTO quarantine (document_id, reason, subject, date, attempts, last_attempt)
	VALUES (?, ?, ?, ?, 1, ?)
	ON CONFLICT(document_id) DO UPDATE SET
		reason = excluded.reason,
		subject = excluded.subject,
		date = excluded.date,
		attempts = quarantine.attempts + 1,
		last_attempt = excluded.last_attempt
`

// Quarantine upserts an unparsable document. A repeat failure for the same
// document id bumps its attempt counter instead of adding a row.
func (s *Store) Quarantine(ctx context.Context, documentID, reason, subject string, date time.Time) error {
	_, err := s.db.ExecContext(ctx, queryQuarantine,
		documentID, reason, subject, formatTime(date), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("store: quarantine %s: %w", documentID, err)
	}
	return nil
}

// QuarantineRow is one document an issuer parser recognized but could not
// extract a transaction from.
type QuarantineRow struct {
	DocumentID  string
	Reason      string
	Subject     string
	Date        time.Time
	Attempts    int
	LastAttempt time.Time
}

const querySelectQuarantine = `
	SELECT document_id, reason, subject, date, attempts, last_attempt
	FROM quarantine
	ORDER BY last_attempt DESC
`

// SelectQuarantine lists quarantined documents, most recently attempted
// first.
func (s *Store) SelectQuarantine(ctx context.Context) ([]QuarantineRow, error) {
	rows, err := s.db.QueryContext(ctx, querySelectQuarantine)
	if err != nil {
		return nil, fmt.Errorf("store: select quarantine: %w", err)
	}
	defer rows.Close()

	var result []QuarantineRow
	for rows.Next() {
		var (
			row         QuarantineRow
			date        string
			lastAttempt string
		)
		if err := rows.Scan(&row.DocumentID, &row.Reason, &row.Subject, &date, &row.Attempts, &lastAttempt); err != nil {
			return nil, fmt.Errorf("store: scan quarantine: %w", err)
		}
		if row.Date, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("store: quarantine %s: %w", row.DocumentID, err)
		}
		if row.LastAttempt, err = parseTime(lastAttempt); err != nil {
			return nil, fmt.Errorf("store: quarantine %s: %w", row.DocumentID, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: select quarantine: %w", err)
	}
	return result, nil
}
