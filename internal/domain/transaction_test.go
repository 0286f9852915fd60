package domain

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func baseTransaction() Transaction {
	return Transaction{
		Issuer:           "bancolombia",
		Account:          "0014",
		Date:             civil.Date{Year: 2026, Month: time.January, Day: 5},
		Payee:            "EXITO CALLE 80",
		Memo:             "Compra aprobada",
		Amount:           decimal.RequireFromString("45000.00"),
		Currency:         "COP",
		Direction:        Outflow,
		SourceDocumentID: "doc-1",
		SourceThreadID:   "thread-1",
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := baseTransaction()
	b := baseTransaction()

	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("Expected identical fingerprints, got %s and %s", a.Fingerprint(), b.Fingerprint())
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("Expected 64-char hex digest, got %d chars", len(a.Fingerprint()))
	}
}

func TestFingerprint_FieldSensitivity(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Transaction)
		wantSame bool
	}{
		{
			name:   "issuer changes identity",
			mutate: func(tx *Transaction) { tx.Issuer = "nequi" },
		},
		{
			name:   "account changes identity",
			mutate: func(tx *Transaction) { tx.Account = "9999" },
		},
		{
			name:   "date changes identity",
			mutate: func(tx *Transaction) { tx.Date.Day = 6 },
		},
		{
			name:   "amount changes identity",
			mutate: func(tx *Transaction) { tx.Amount = decimal.RequireFromString("45000.01") },
		},
		{
			name:   "payee changes identity",
			mutate: func(tx *Transaction) { tx.Payee = "EXITO CALLE 81" },
		},
		{
			name:   "direction changes identity",
			mutate: func(tx *Transaction) { tx.Direction = Inflow },
		},
		{
			name:     "memo does not change identity",
			mutate:   func(tx *Transaction) { tx.Memo = "something else" },
			wantSame: true,
		},
		{
			name:     "source document does not change identity",
			mutate:   func(tx *Transaction) { tx.SourceDocumentID = "doc-2" },
			wantSame: true,
		},
		{
			name:     "amount scale does not change identity",
			mutate:   func(tx *Transaction) { tx.Amount = decimal.RequireFromString("45000") },
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := baseTransaction()
			mutated := baseTransaction()
			tt.mutate(&mutated)

			same := original.Fingerprint() == mutated.Fingerprint()
			if same != tt.wantSame {
				t.Errorf("Fingerprint equality = %v, want %v", same, tt.wantSame)
			}
		})
	}
}

func TestFinalize_TruncatesPayee(t *testing.T) {
	tx := baseTransaction()
	tx.Payee = strings.Repeat("ñ", 250)

	tx.Finalize()

	if got := len([]rune(tx.Payee)); got != 200 {
		t.Errorf("Expected payee truncated to 200 runes, got %d", got)
	}
	if tx.ID != tx.Fingerprint() {
		t.Error("Expected ID to match fingerprint of the truncated payee")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr bool
	}{
		{
			name:   "valid transaction",
			mutate: func(tx *Transaction) {},
		},
		{
			name:    "missing issuer",
			mutate:  func(tx *Transaction) { tx.Issuer = "" },
			wantErr: true,
		},
		{
			name:   "unknown account allowed",
			mutate: func(tx *Transaction) { tx.Account = "" },
		},
		{
			name:    "invalid date",
			mutate:  func(tx *Transaction) { tx.Date = civil.Date{} },
			wantErr: true,
		},
		{
			name:    "missing payee",
			mutate:  func(tx *Transaction) { tx.Payee = "" },
			wantErr: true,
		},
		{
			name:    "negative amount",
			mutate:  func(tx *Transaction) { tx.Amount = decimal.RequireFromString("-1") },
			wantErr: true,
		},
		{
			name:    "bad currency",
			mutate:  func(tx *Transaction) { tx.Currency = "PESOS" },
			wantErr: true,
		},
		{
			name:    "bad direction",
			mutate:  func(tx *Transaction) { tx.Direction = "sideways" },
			wantErr: true,
		},
		{
			name:    "missing source document",
			mutate:  func(tx *Transaction) { tx.SourceDocumentID = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := baseTransaction()
			tt.mutate(&tx)

			err := tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDirectionValid(t *testing.T) {
	if !Inflow.Valid() || !Outflow.Valid() {
		t.Error("Expected both known directions to be valid")
	}
	if Direction("transfer").Valid() {
		t.Error("Expected unknown direction to be invalid")
	}
}
