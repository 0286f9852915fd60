package parser

import (
	"regexp"

	"cloud.google.com/go/civil"

	"github.com/ncastellanos/transmail/internal/domain"
)

// Davivienda parses card transaction notices. Narrative template; the card
// is named by its last four digits and an optional movement-type phrase
// decides between consumption and reversal.
type Davivienda struct{}

func NewDavivienda() *Davivienda { return &Davivienda{} }

func (p *Davivienda) Name() string { return "davivienda" }

func (p *Davivienda) SearchTerms() []string {
	return []string{"from:serviciosvirtuales@davivienda.com"}
}

func (p *Davivienda) CanParse(doc domain.Document) bool {
	return containsFold(doc.Sender, "davivienda.com") &&
		containsAnyFold(doc.Subject, "transacci", "comprobante", "compra")
}

var (
	// "con su Tarjeta de Crédito terminada en 1610"
	daviviendaAccount = regexp.MustCompile(`(?i)termina\w*\s+en\s+\*?(\d{4})`)

	// "Compra por valor de $120.000,00 en RAPPI COLOMBIA el 05/01/2026"
	daviviendaAmounts = []*regexp.Regexp{
		regexp.MustCompile(`(?i)por\s+(?:un\s+)?valor\s+de\s+\$?\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)valor:?\s*\$?\s*([\d.,]+)`),
		regexp.MustCompile(`\$\s*([\d.,]+)`),
	}
	daviviendaPayees = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\ben\s+([^\d].*?)\s+el\s+\d{1,2}/`),
		regexp.MustCompile(`(?i)establecimiento:?\s+(.+?)(?:\s+el\s+\d|[.,]|$)`),
	}
	daviviendaType = regexp.MustCompile(`(?i)tipo(?:\s+de\s+transacci[oó]n)?:?\s+([a-záéíóúñ]+(?:\s+[a-záéíóúñ]+)?)`)
)

const daviviendaDefaultPayee = "Compra Davivienda"

func (p *Davivienda) Extract(doc domain.Document) *domain.Transaction {
	text := flatText(doc)

	amount, ok := firstAmount(daviviendaAmounts, text)
	if !ok {
		return nil
	}

	payee := firstCapture(daviviendaPayees, text)
	if payee == "" {
		payee = daviviendaDefaultPayee
	}

	date, found, err := findNumericDate(text)
	if err != nil {
		return nil
	}
	if !found {
		date, found, err = findSpanishDate(text)
		if err != nil {
			return nil
		}
		if !found {
			date = civil.DateOf(doc.ReceivedAt)
		}
	}

	var account string
	if m := daviviendaAccount.FindStringSubmatch(text); m != nil {
		account = m[1]
	}

	var movType string
	if m := daviviendaType.FindStringSubmatch(text); m != nil {
		movType = collapseSpaces(m[1])
	}

	direction := domain.Outflow
	if hasReversalKeyword(movType) || hasReversalKeyword(payee) {
		direction = domain.Inflow
	}

	return &domain.Transaction{
		Issuer:           p.Name(),
		Account:          account,
		Date:             date,
		Payee:            payee,
		Memo:             movType,
		Amount:           amount,
		Currency:         defaultCurrency,
		Direction:        direction,
		SourceDocumentID: doc.ID,
		SourceThreadID:   doc.ThreadID,
	}
}
