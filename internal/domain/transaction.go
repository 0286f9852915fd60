package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Direction tells whether money left or entered the tracked instrument.
type Direction string

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == Inflow || d == Outflow
}

// maxPayeeLen is the upper bound on payee length; longer values are
// truncated at finalization so the fingerprint always matches the stored
// payee.
const maxPayeeLen = 200

// Transaction is one canonical money movement extracted from an issuer
// notification email. Financial fields never change after the record is
// stored; reconciliation state is tracked by the store, not here.
type Transaction struct {
	ID               string // content fingerprint, set by Finalize
	Issuer           string // name of the parser that produced the record
	Account          string // bank instrument designator, "" when unknown
	Date             civil.Date
	Payee            string
	Memo             string
	Amount           decimal.Decimal // non-negative; Direction carries the sign
	Currency         string
	Direction        Direction
	SourceDocumentID string
	SourceThreadID   string
}

// Fingerprint derives the content-addressed identity of the transaction:
// the SHA-256 hex digest over issuer, account, date, amount, payee and
// direction. Two extractions of the same movement collide here, which is
// what makes re-ingestion idempotent.
func (t Transaction) Fingerprint() string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		t.Issuer,
		t.Account,
		t.Date.String(),
		t.Amount.StringFixed(2),
		t.Payee,
		t.Direction,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Finalize truncates the payee to its bound and stamps the fingerprint ID.
// It must run after normalization so the ID reflects the rewritten payee.
func (t *Transaction) Finalize() {
	t.Payee = TruncatePayee(t.Payee)
	t.ID = t.Fingerprint()
}

// TruncatePayee clamps a payee to maxPayeeLen runes.
func TruncatePayee(payee string) string {
	runes := []rune(payee)
	if len(runes) <= maxPayeeLen {
		return payee
	}
	return string(runes[:maxPayeeLen])
}

// Validate checks the structural invariants every stored transaction must
// hold. A violation means the producing parser is broken, so callers treat
// it like a parse failure.
func (t Transaction) Validate() error {
	if t.Issuer == "" {
		return errors.New("transaction: missing issuer")
	}
	if !t.Date.IsValid() {
		return fmt.Errorf("transaction: invalid date %q", t.Date.String())
	}
	if t.Payee == "" {
		return errors.New("transaction: missing payee")
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction: negative amount %s", t.Amount.String())
	}
	if len(t.Currency) != 3 {
		return fmt.Errorf("transaction: invalid currency %q", t.Currency)
	}
	if !t.Direction.Valid() {
		return fmt.Errorf("transaction: invalid direction %q", t.Direction)
	}
	if t.SourceDocumentID == "" {
		return errors.New("transaction: missing source document id")
	}
	return nil
}
