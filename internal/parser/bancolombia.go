package parser

import (
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/ncastellanos/transmail/internal/domain"
)

// Bancolombia alerts and transfer confirmations share the same sender
// domain, so both parsers here pair it with a subject check. Dispatch order
// does the final disambiguation: the transfer parser is registered first.
const bancolombiaSender = "bancolombia.com"

const bancolombiaSearchTerm = "from:alertasynotificaciones@notificacionesbancolombia.com"

// BancolombiaTransfer parses transfer confirmations between products. Which
// instrument the record books against, and in which direction, depends on
// which side of the transfer belongs to the configured instrument set.
type BancolombiaTransfer struct {
	mine map[string]bool
}

// NewBancolombiaTransfer builds the parser around the set of instrument
// identifiers considered ours.
func NewBancolombiaTransfer(myInstruments []string) *BancolombiaTransfer {
	mine := make(map[string]bool, len(myInstruments))
	for _, id := range myInstruments {
		mine[id] = true
	}
	return &BancolombiaTransfer{mine: mine}
}

func (p *BancolombiaTransfer) Name() string { return "bancolombia-transfer" }

func (p *BancolombiaTransfer) SearchTerms() []string {
	return []string{bancolombiaSearchTerm}
}

func (p *BancolombiaTransfer) CanParse(doc domain.Document) bool {
	return containsFold(doc.Sender, bancolombiaSender) &&
		containsFold(doc.Subject, "transferencia")
}

var (
	// "por $500.000,00 desde el producto *0014 hacia el producto *9999"
	transferAmount = regexp.MustCompile(`(?i)por\s+\$?\s*([\d.,]+)`)
	transferOrigin = regexp.MustCompile(`(?i)desde\s+(?:el\s+|la\s+)?(?:producto|cuenta)\s+\*?(\d{4})`)
	transferDest   = regexp.MustCompile(`(?i)hacia\s+(?:el\s+|la\s+)?(?:producto|cuenta)\s+\*?(\d{4})`)
)

func (p *BancolombiaTransfer) Extract(doc domain.Document) *domain.Transaction {
	text := flatText(doc)

	m := transferAmount.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	amount, err := parseAmount(m[1])
	if err != nil {
		return nil
	}

	var origin, dest string
	if om := transferOrigin.FindStringSubmatch(text); om != nil {
		origin = om[1]
	}
	if dm := transferDest.FindStringSubmatch(text); dm != nil {
		dest = dm[1]
	}

	account, direction, ok := p.resolve(origin, dest)
	if !ok {
		return nil
	}

	date, found, err := findNumericDate(text)
	if err != nil {
		return nil
	}
	if !found {
		date = civil.DateOf(doc.ReceivedAt)
	}

	return &domain.Transaction{
		Issuer:           p.Name(),
		Account:          account,
		Date:             date,
		Payee:            "Transferencia Bancolombia",
		Memo:             transferMemo(origin, dest),
		Amount:           amount,
		Currency:         defaultCurrency,
		Direction:        direction,
		SourceDocumentID: doc.ID,
		SourceThreadID:   doc.ThreadID,
	}
}

// resolve books the transfer against the instrument whose balance it
// affects: destination ours and origin not (or unknown) means an inflow to
// the destination; origin ours and destination not means an outflow from
// the origin. When both sides are ours the movement is kept as the single
// inflow leg on the destination. When neither side is ours there is nothing
// to record.
func (p *BancolombiaTransfer) resolve(origin, dest string) (string, domain.Direction, bool) {
	destMine := dest != "" && p.mine[dest]
	originMine := origin != "" && p.mine[origin]

	switch {
	case destMine && !originMine:
		return dest, domain.Inflow, true
	case originMine && !destMine:
		return origin, domain.Outflow, true
	case destMine && originMine:
		return dest, domain.Inflow, true
	default:
		return "", "", false
	}
}

func transferMemo(origin, dest string) string {
	switch {
	case origin != "" && dest != "":
		return fmt.Sprintf("de *%s a *%s", origin, dest)
	case dest != "":
		return fmt.Sprintf("a *%s", dest)
	case origin != "":
		return fmt.Sprintf("de *%s", origin)
	default:
		return ""
	}
}

// Bancolombia parses the tabular purchase/withdrawal alert mails. The
// template is an HTML table whose data row is anchored by a full date-time
// cell; neighboring cells carry currency, amount, payee, status and an
// optional movement type.
type Bancolombia struct{}

func NewBancolombia() *Bancolombia { return &Bancolombia{} }

func (p *Bancolombia) Name() string { return "bancolombia" }

func (p *Bancolombia) SearchTerms() []string {
	return []string{bancolombiaSearchTerm}
}

func (p *Bancolombia) CanParse(doc domain.Document) bool {
	return containsFold(doc.Sender, bancolombiaSender) &&
		containsAnyFold(doc.Subject, "alerta", "compra", "retiro")
}

var (
	// "2026/01/05 19:42", optionally with seconds
	alertDateTime = regexp.MustCompile(`^(\d{4}/\d{2}/\d{2})\s+\d{2}:\d{2}(?::\d{2})?$`)
	alertAccount  = regexp.MustCompile(`(?i)(?:producto|cuenta)\s+\*?(\d{4})`)
	currencyCode  = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

func (p *Bancolombia) Extract(doc domain.Document) *domain.Transaction {
	rows := tableRows(doc.HTMLBody)
	if len(rows) == 0 {
		rows = plainRows(doc.PlainBody)
	}

	// First structurally matching row wins.
	for _, cells := range rows {
		if tx := p.extractRow(cells, doc); tx != nil {
			return tx
		}
	}
	return nil
}

// extractRow matches one [currency, amount, datetime, payee, status, type?]
// row. Nil unless the datetime anchor is present with enough neighbors on
// both sides.
func (p *Bancolombia) extractRow(cells []string, doc domain.Document) *domain.Transaction {
	anchor := -1
	var dateToken string
	for i, cell := range cells {
		if m := alertDateTime.FindStringSubmatch(cell); m != nil {
			anchor, dateToken = i, m[1]
			break
		}
	}
	if anchor < 2 || anchor+1 >= len(cells) {
		return nil
	}

	date, err := parseDateLayouts(dateToken, "2006/01/02")
	if err != nil {
		return nil
	}
	amount, err := parseAmount(cells[anchor-1])
	if err != nil {
		return nil
	}
	payee := cells[anchor+1]
	if payee == "" {
		return nil
	}

	currency := defaultCurrency
	if cur := strings.ToUpper(cells[anchor-2]); currencyCode.MatchString(cur) {
		currency = cur
	}

	var status, movType string
	if anchor+2 < len(cells) {
		status = cells[anchor+2]
	}
	if anchor+3 < len(cells) {
		movType = cells[anchor+3]
	}

	direction := domain.Outflow
	if hasReversalKeyword(movType) || hasReversalKeyword(payee) {
		direction = domain.Inflow
	}

	var account string
	if m := alertAccount.FindStringSubmatch(flatText(doc)); m != nil {
		account = m[1]
	}

	return &domain.Transaction{
		Issuer:           p.Name(),
		Account:          account,
		Date:             date,
		Payee:            payee,
		Memo:             collapseSpaces(movType + " " + status),
		Amount:           amount,
		Currency:         currency,
		Direction:        direction,
		SourceDocumentID: doc.ID,
		SourceThreadID:   doc.ThreadID,
	}
}
