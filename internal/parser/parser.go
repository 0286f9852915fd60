// Package parser turns issuer notification emails into canonical
// transactions. Each issuer gets its own Parser; dispatch walks the
// registered list in order and the first match wins.
package parser

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/ncastellanos/transmail/internal/domain"
)

// Parser handles one issuer's notification template family.
type Parser interface {
	// Name tags transactions and quarantine records produced by this parser.
	Name() string

	// CanParse reports whether doc belongs to this parser. Implementations
	// combine a sender-domain check with a subject keyword check so issuers
	// sharing mail infrastructure do not cross-match.
	CanParse(doc domain.Document) bool

	// SearchTerms returns mailbox query fragments that pre-filter this
	// parser's documents server-side.
	SearchTerms() []string

	// Extract pulls a transaction out of doc. Nil means the document was
	// recognized but is structurally unparsable; the caller routes it to
	// quarantine. Extract is deterministic and must not panic on malformed
	// input.
	Extract(doc domain.Document) *domain.Transaction
}

// Registry holds parsers in registration order. Order is significant:
// dispatch is first-match-wins, so narrower parsers must precede looser ones
// that accept the same sender domain.
type Registry struct {
	parsers []Parser
}

// New builds the default registry. The Bancolombia transfer parser is
// registered before the general alert parser on purpose: both accept the
// bancolombia.com sender domain.
func New(myInstruments []string) *Registry {
	return NewWithParsers(
		NewBancolombiaTransfer(myInstruments),
		NewBancolombia(),
		NewNequi(),
		NewDavivienda(),
	)
}

// NewWithParsers assembles a registry from an explicit ordered list.
func NewWithParsers(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Match returns the first registered parser that accepts doc, or nil when no
// parser recognizes it.
func (r *Registry) Match(doc domain.Document) Parser {
	for _, p := range r.parsers {
		if p.CanParse(doc) {
			return p
		}
	}
	return nil
}

// Parsers returns the registration order, for diagnostics.
func (r *Registry) Parsers() []Parser {
	return r.parsers
}

// Query builds the mailbox pre-filter for one sync run by OR-joining every
// parser's search terms behind a received-after bound.
func (r *Registry) Query(after civil.Date) string {
	var terms []string
	seen := make(map[string]bool)
	for _, p := range r.parsers {
		for _, t := range p.SearchTerms() {
			if seen[t] {
				continue
			}
			seen[t] = true
			terms = append(terms, t)
		}
	}
	return fmt.Sprintf("after:%04d/%02d/%02d (%s)",
		after.Year, after.Month, after.Day, strings.Join(terms, " OR "))
}

// defaultCurrency applies when a notification does not name one; all
// supported issuers operate in Colombian pesos.
const defaultCurrency = "COP"

// reversalKeywords flip a consumption notice from outflow to inflow when
// they appear in the payee text or an explicit type column (refunds, payment
// reversals, credit vouchers).
var reversalKeywords = []string{
	"reversion",
	"reversión",
	"devolucion",
	"devolución",
	"abono",
	"reintegro",
	"reembolso",
}

func hasReversalKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range reversalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func containsAnyFold(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}
