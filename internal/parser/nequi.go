package parser

import (
	"regexp"

	"cloud.google.com/go/civil"

	"github.com/ncastellanos/transmail/internal/domain"
)

// Nequi parses wallet payment notifications. The template is narrative
// prose that drifts between campaign versions, so every field is extracted
// through an ordered fallback chain.
type Nequi struct{}

func NewNequi() *Nequi { return &Nequi{} }

func (p *Nequi) Name() string { return "nequi" }

func (p *Nequi) SearchTerms() []string {
	return []string{"from:notificaciones@nequi.com.co"}
}

func (p *Nequi) CanParse(doc domain.Document) bool {
	return containsFold(doc.Sender, "nequi.com") &&
		containsAnyFold(doc.Subject, "pago", "compra", "uso de tu tarjeta")
}

var (
	// "Pagaste $45.000 en EXITO CALLE 80 el 5 de enero de 2026"
	nequiAmounts = []*regexp.Regexp{
		regexp.MustCompile(`(?i)pagaste\s+\$\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)pago\s+por\s+\$\s*([\d.,]+)`),
		regexp.MustCompile(`\$\s*([\d.,]+)`),
	}
	nequiPayees = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\ben\s+([^\d].*?)\s+el\s+\d`),
		regexp.MustCompile(`(?i)comercio:?\s+(.+?)(?:\s+el\s+\d|\.|$)`),
	}
	nequiAccount = regexp.MustCompile(`(?i)(?:termina\w*\s+en|cuenta)\s+\*?(\d{4})`)
)

const nequiDefaultPayee = "Compra Nequi"

func (p *Nequi) Extract(doc domain.Document) *domain.Transaction {
	text := flatText(doc)

	amount, ok := firstAmount(nequiAmounts, text)
	if !ok {
		return nil
	}

	payee := firstCapture(nequiPayees, text)
	if payee == "" {
		payee = nequiDefaultPayee
	}

	date, found, err := findSpanishDate(text)
	if err != nil {
		return nil
	}
	if !found {
		date, found, err = findNumericDate(text)
		if err != nil {
			return nil
		}
		if !found {
			date = civil.DateOf(doc.ReceivedAt)
		}
	}

	var account string
	if m := nequiAccount.FindStringSubmatch(text); m != nil {
		account = m[1]
	}

	direction := domain.Outflow
	if hasReversalKeyword(payee) || hasReversalKeyword(doc.Subject) {
		direction = domain.Inflow
	}

	return &domain.Transaction{
		Issuer:           p.Name(),
		Account:          account,
		Date:             date,
		Payee:            payee,
		Amount:           amount,
		Currency:         defaultCurrency,
		Direction:        direction,
		SourceDocumentID: doc.ID,
		SourceThreadID:   doc.ThreadID,
	}
}
