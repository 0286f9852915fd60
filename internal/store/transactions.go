package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/ncastellanos/transmail/internal/classify"
	"github.com/ncastellanos/transmail/internal/domain"
)

// Status is the reconciliation state of a stored transaction. The three
// values partition the table: a row is synced once it has a ledger id,
// failed while it carries an error, pending otherwise.
type Status string

const (
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
	StatusSynced  Status = "synced"
)

// TransactionRow is a stored transaction plus the reconciliation columns
// owned by the reconcile engine. Zero times and empty strings stand in for
// SQL NULLs.
type TransactionRow struct {
	domain.Transaction

	CreatedAt           time.Time
	LedgerTransactionID string
	SyncedAt            time.Time
	LastError           string
	LastErrorKind       classify.Kind
	RetryCount          int
	LastRetryAt         time.Time
}

// Status derives the row's reconciliation state.
func (r TransactionRow) Status() Status {
	switch {
	case r.LedgerTransactionID != "":
		return StatusSynced
	case r.LastError != "":
		return StatusFailed
	default:
		return StatusPending
	}
}

const queryInsertTransaction = `
	INSERT INTO transactions (
		id, issuer, account, date, payee, memo,
		amount, currency, direction,
		source_document_id, source_thread_id, created_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
`

// InsertIfAbsent stores tx unless a row with the same fingerprint already
// exists. A primary-key collision is the dedup working as intended, so it
// reports inserted=false with no error. Financial columns are never updated
// after this point.
func (s *Store) InsertIfAbsent(ctx context.Context, tx domain.Transaction) (bool, error) {
	if tx.ID == "" {
		return false, fmt.Errorf("store: transaction has no fingerprint id")
	}

	res, err := s.db.ExecContext(ctx, queryInsertTransaction,
		tx.ID,
		tx.Issuer,
		tx.Account,
		tx.Date.String(),
		tx.Payee,
		tx.Memo,
		tx.Amount.StringFixed(2),
		tx.Currency,
		string(tx.Direction),
		tx.SourceDocumentID,
		tx.SourceThreadID,
		formatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("store: insert transaction %s: %w", tx.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: insert transaction %s: %w", tx.ID, err)
	}
	return affected > 0, nil
}

var transactionColumns = []string{
	"id", "issuer", "account", "date", "payee", "memo",
	"amount", "currency", "direction",
	"source_document_id", "source_thread_id", "created_at",
	"ledger_transaction_id", "synced_at",
	"last_error", "last_error_kind", "retry_count", "last_retry_at",
}

// stableOrder is the submission order the reconcile engine depends on:
// oldest transaction date first, insertion order breaking ties.
var stableOrder = []string{"date ASC", "created_at ASC", "rowid ASC"}

// SelectPending returns the rows a fresh sync submits: never synced and not
// carrying an error from an earlier attempt.
func (s *Store) SelectPending(ctx context.Context) ([]TransactionRow, error) {
	return s.selectRows(ctx, sq.And{
		sq.Eq{"synced_at": nil},
		sq.Eq{"last_error": nil},
	})
}

// SelectUnsynced returns everything without a ledger id, pending and failed
// alike. This is the retry scope.
func (s *Store) SelectUnsynced(ctx context.Context) ([]TransactionRow, error) {
	return s.selectRows(ctx, sq.Eq{"ledger_transaction_id": nil})
}

func (s *Store) selectRows(ctx context.Context, where sq.Sqlizer) ([]TransactionRow, error) {
	query, args, err := sq.Select(transactionColumns...).
		From("transactions").
		Where(where).
		OrderBy(stableOrder...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: select transactions: %w", err)
	}
	defer rows.Close()

	var result []TransactionRow
	for rows.Next() {
		row, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: select transactions: %w", err)
	}
	return result, nil
}

func scanTransaction(rows *sql.Rows) (TransactionRow, error) {
	var (
		row       TransactionRow
		date      string
		amount    string
		direction string
		createdAt string
		ledgerID  sql.NullString
		syncedAt  sql.NullString
		lastErr   sql.NullString
		errKind   sql.NullString
		retryAt   sql.NullString
	)

	err := rows.Scan(
		&row.ID, &row.Issuer, &row.Account, &date, &row.Payee, &row.Memo,
		&amount, &row.Currency, &direction,
		&row.SourceDocumentID, &row.SourceThreadID, &createdAt,
		&ledgerID, &syncedAt,
		&lastErr, &errKind, &row.RetryCount, &retryAt,
	)
	if err != nil {
		return TransactionRow{}, fmt.Errorf("store: scan transaction: %w", err)
	}

	if row.Date, err = civil.ParseDate(date); err != nil {
		return TransactionRow{}, fmt.Errorf("store: transaction %s: parse date %q: %w", row.ID, date, err)
	}
	if row.Amount, err = decimal.NewFromString(amount); err != nil {
		return TransactionRow{}, fmt.Errorf("store: transaction %s: parse amount %q: %w", row.ID, amount, err)
	}
	row.Direction = domain.Direction(direction)

	if row.CreatedAt, err = parseTime(createdAt); err != nil {
		return TransactionRow{}, fmt.Errorf("store: transaction %s: %w", row.ID, err)
	}
	if row.SyncedAt, err = parseNullTime(syncedAt); err != nil {
		return TransactionRow{}, fmt.Errorf("store: transaction %s: %w", row.ID, err)
	}
	if row.LastRetryAt, err = parseNullTime(retryAt); err != nil {
		return TransactionRow{}, fmt.Errorf("store: transaction %s: %w", row.ID, err)
	}

	row.LedgerTransactionID = ledgerID.String
	row.LastError = lastErr.String
	row.LastErrorKind = classify.Kind(errKind.String)
	return row, nil
}

const queryRecordSynced = `
	UPDATE transactions
	SET ledger_transaction_id = ?,
	    synced_at = ?,
	    last_error = NULL,
	    last_error_kind = NULL
	WHERE id = ?
`

// RecordSynced stamps the ledger's id on the row and clears any error from
// earlier attempts. A synced row is terminal: selection never returns it
// again.
func (s *Store) RecordSynced(ctx context.Context, id, ledgerTransactionID string) error {
	res, err := s.db.ExecContext(ctx, queryRecordSynced, ledgerTransactionID, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("store: record synced %s: %w", id, err)
	}
	return requireOneRow(res, "record synced", id)
}

const queryRecordError = `
	UPDATE transactions
	SET last_error = ?,
	    last_error_kind = ?,
	    retry_count = retry_count + 1,
	    last_retry_at = ?
	WHERE id = ?
`

// RecordError attaches a classified failure to the row and bumps its retry
// counter. The row stays in the retry scope until a later run syncs it.
func (s *Store) RecordError(ctx context.Context, id, message string, kind classify.Kind) error {
	res, err := s.db.ExecContext(ctx, queryRecordError, message, string(kind), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("store: record error %s: %w", id, err)
	}
	return requireOneRow(res, "record error", id)
}

func requireOneRow(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s %s: %w", op, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("store: %s %s: no such transaction", op, id)
	}
	return nil
}

// StatusCounts is the per-state row tally for operator reports.
type StatusCounts struct {
	Pending int
	Failed  int
	Synced  int
}

const queryCountByStatus = `
	SELECT
		COALESCE(SUM(CASE WHEN ledger_transaction_id IS NULL AND last_error IS NULL THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN ledger_transaction_id IS NULL AND last_error IS NOT NULL THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN ledger_transaction_id IS NOT NULL THEN 1 ELSE 0 END), 0)
	FROM transactions
`

// CountByStatus tallies rows per reconciliation state.
func (s *Store) CountByStatus(ctx context.Context) (StatusCounts, error) {
	var counts StatusCounts
	err := s.db.QueryRowContext(ctx, queryCountByStatus).Scan(&counts.Pending, &counts.Failed, &counts.Synced)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("store: count by status: %w", err)
	}
	return counts, nil
}
