// Package ynab talks to the YNAB-style budgeting API the reconcile engine
// submits into. Amounts go over the wire in milliunits (one-thousandth of
// the main currency unit), negative for outflows.
package ynab

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ncastellanos/transmail/internal/classify"
	"github.com/ncastellanos/transmail/internal/domain"
	"github.com/ncastellanos/transmail/internal/store"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.ynab.com/v1"

const requestTimeout = 30 * time.Second

const (
	opSubmitBatch = "ledger.submitBatch"
	opSubmitOne   = "ledger.submitOne"
)

// Config carries what the client needs to reach one budget.
type Config struct {
	BaseURL  string // empty uses DefaultBaseURL
	Token    string
	BudgetID string
	Retry    classify.RetryConfig
}

// Client submits transactions to one budget. It satisfies the reconcile
// engine's Ledger interface.
type Client struct {
	http     *resty.Client
	budgetID string
	retry    classify.RetryConfig
}

// New builds a client with bearer authentication and a request timeout.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := resty.New().
		SetBaseURL(base).
		SetAuthToken(cfg.Token).
		SetHeader("Accept", "application/json").
		SetTimeout(requestTimeout)

	return &Client{http: httpClient, budgetID: cfg.BudgetID, retry: cfg.Retry}
}

// wireTransaction is the API's save-transaction shape.
type wireTransaction struct {
	AccountID string `json:"account_id"`
	Date      string `json:"date"`
	Amount    int64  `json:"amount"`
	PayeeName string `json:"payee_name"`
	Memo      string `json:"memo,omitempty"`
	Cleared   string `json:"cleared"`
	ImportID  string `json:"import_id"`
}

type savedTransaction struct {
	ID       string `json:"id"`
	ImportID string `json:"import_id"`
}

type batchRequest struct {
	Transactions []wireTransaction `json:"transactions"`
}

type singleRequest struct {
	Transaction wireTransaction `json:"transaction"`
}

type saveResponse struct {
	Data struct {
		TransactionIDs     []string           `json:"transaction_ids"`
		Transaction        *savedTransaction  `json:"transaction"`
		Transactions       []savedTransaction `json:"transactions"`
		DuplicateImportIDs []string           `json:"duplicate_import_ids"`
	} `json:"data"`
}

// SubmitBatch posts the whole group in one request. The returned slice is
// index-aligned with rows; ids are matched back by import id, not array
// position, so a row the ledger reported as a duplicate import comes back
// as an empty string. Retryable failures are retried with backoff before
// the classified error surfaces.
func (c *Client) SubmitBatch(ctx context.Context, ledgerAccountID string, rows []store.TransactionRow) ([]string, error) {
	wire := make([]wireTransaction, len(rows))
	for i, row := range rows {
		wire[i] = toWire(ledgerAccountID, row)
	}

	var out saveResponse
	err := classify.Retry(ctx, c.retry, opSubmitBatch, func() error {
		out = saveResponse{}
		return c.post(ctx, batchRequest{Transactions: wire}, &out)
	})
	if err != nil {
		return nil, err
	}

	byImport := make(map[string]string, len(out.Data.Transactions))
	for _, saved := range out.Data.Transactions {
		if saved.ImportID != "" {
			byImport[saved.ImportID] = saved.ID
		}
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = byImport[wire[i].ImportID]
	}
	return ids, nil
}

// SubmitOne posts a single transaction and returns its ledger id.
func (c *Client) SubmitOne(ctx context.Context, ledgerAccountID string, row store.TransactionRow) (string, error) {
	wire := toWire(ledgerAccountID, row)

	var out saveResponse
	err := classify.Retry(ctx, c.retry, opSubmitOne, func() error {
		out = saveResponse{}
		return c.post(ctx, singleRequest{Transaction: wire}, &out)
	})
	if err != nil {
		return "", err
	}

	if out.Data.Transaction != nil && out.Data.Transaction.ID != "" {
		return out.Data.Transaction.ID, nil
	}
	if len(out.Data.TransactionIDs) > 0 {
		return out.Data.TransactionIDs[0], nil
	}
	return "", nil
}

func (c *Client) post(ctx context.Context, body, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(out).
		Post(fmt.Sprintf("/budgets/%s/transactions", c.budgetID))
	if err != nil {
		return fmt.Errorf("ynab: send request: %w", err)
	}
	if resp.IsError() {
		return &classify.StatusError{Code: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

func toWire(ledgerAccountID string, row store.TransactionRow) wireTransaction {
	return wireTransaction{
		AccountID: ledgerAccountID,
		Date:      row.Date.String(),
		Amount:    Milliunits(row.Amount, row.Direction),
		PayeeName: row.Payee,
		Memo:      row.Memo,
		Cleared:   "cleared",
		ImportID:  ImportID(row.ID),
	}
}

var milliFactor = decimal.NewFromInt(1000)

// Milliunits converts a non-negative decimal amount to the ledger's integer
// minor-unit-of-1000 form, sign-flipped for outflows. Rounding only ever
// touches sub-milliunit noise: amounts are already truncated to two decimal
// places at parse time.
func Milliunits(amount decimal.Decimal, direction domain.Direction) int64 {
	m := amount.Mul(milliFactor).Round(0).IntPart()
	if direction == domain.Outflow {
		return -m
	}
	return m
}

// FromMilliunits converts a wire amount back to the positive main-unit
// decimal it came from.
func FromMilliunits(m int64) decimal.Decimal {
	return decimal.NewFromInt(m).Abs().Div(milliFactor)
}

// importIDMaxLen is the ledger's limit on import identifiers.
const importIDMaxLen = 36

// ImportID derives the dedup identifier the ledger sees from a transaction
// fingerprint.
func ImportID(fingerprint string) string {
	if len(fingerprint) > importIDMaxLen {
		return fingerprint[:importIDMaxLen]
	}
	return fingerprint
}
