package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncastellanos/transmail/internal/domain"
)

func daviviendaDoc(body string) domain.Document {
	return domain.Document{
		ID:         "doc-davi-1",
		ThreadID:   "thread-4",
		Sender:     "Davivienda <serviciosvirtuales@davivienda.com>",
		Subject:    "Comprobante de transacción",
		ReceivedAt: time.Date(2026, 1, 5, 13, 15, 0, 0, time.UTC),
		HTMLBody:   body,
	}
}

func TestDavivienda_ExtractPurchase(t *testing.T) {
	p := NewDavivienda()
	doc := daviviendaDoc(`<p>Davivienda le informa una transacción con su
		Tarjeta de Crédito terminada en 1610: Compra por valor de $120.000,00
		en RAPPI COLOMBIA el 05/01/2026 a las 13:10. Tipo: Compra.</p>`)

	tx := p.Extract(doc)

	require.NotNil(t, tx)
	assert.Equal(t, "davivienda", tx.Issuer)
	assert.Equal(t, "1610", tx.Account)
	assert.Equal(t, "120000", tx.Amount.String())
	assert.Equal(t, "RAPPI COLOMBIA", tx.Payee)
	assert.Equal(t, "2026-01-05", tx.Date.String())
	assert.Equal(t, domain.Outflow, tx.Direction)
	assert.Equal(t, "Compra", tx.Memo)
}

func TestDavivienda_ReversalTypeFlipsDirection(t *testing.T) {
	p := NewDavivienda()
	doc := daviviendaDoc(`<p>Transacción con su Tarjeta terminada en 1610:
		movimiento por valor de $120.000,00 en RAPPI COLOMBIA el 05/01/2026.
		Tipo: Reversión de compra.</p>`)

	tx := p.Extract(doc)

	require.NotNil(t, tx)
	assert.Equal(t, domain.Inflow, tx.Direction)
	assert.Equal(t, "RAPPI COLOMBIA", tx.Payee)
}

func TestDavivienda_DefaultPayee(t *testing.T) {
	p := NewDavivienda()
	doc := daviviendaDoc(`<p>Retiro por valor de $200.000 de su cuenta de
		ahorros terminada en 0014 - 06/01/2026.</p>`)

	tx := p.Extract(doc)

	require.NotNil(t, tx)
	assert.Equal(t, "Compra Davivienda", tx.Payee)
	assert.Equal(t, "200000", tx.Amount.String())
	assert.Equal(t, "0014", tx.Account)
	assert.Equal(t, "2026-01-06", tx.Date.String())
}

func TestDavivienda_AmountLabelFallback(t *testing.T) {
	p := NewDavivienda()
	doc := daviviendaDoc(`<p>Compra aprobada. Valor: $85.900 en MERCADO PAGO
		el 05/01/2026.</p>`)

	tx := p.Extract(doc)

	require.NotNil(t, tx)
	assert.Equal(t, "85900", tx.Amount.String())
	assert.Equal(t, "MERCADO PAGO", tx.Payee)
}

func TestDavivienda_NoAmountIsUnparsable(t *testing.T) {
	p := NewDavivienda()
	doc := daviviendaDoc(`<p>Su tarjeta terminada en 1610 fue utilizada
		en RAPPI COLOMBIA el 05/01/2026.</p>`)

	assert.Nil(t, p.Extract(doc))
}

func TestDavivienda_BadExplicitDateIsUnparsable(t *testing.T) {
	p := NewDavivienda()
	doc := daviviendaDoc(`<p>Compra por valor de $10.000 en TIENDA
		el 45/01/2026.</p>`)

	assert.Nil(t, p.Extract(doc))
}

func TestDavivienda_CanParse(t *testing.T) {
	p := NewDavivienda()

	assert.True(t, p.CanParse(domain.Document{
		Sender:  "serviciosvirtuales@davivienda.com",
		Subject: "Comprobante de transacción",
	}))
	assert.True(t, p.CanParse(domain.Document{
		Sender:  "serviciosvirtuales@davivienda.com",
		Subject: "Transaccion aprobada",
	}))
	assert.False(t, p.CanParse(domain.Document{
		Sender:  "serviciosvirtuales@davivienda.com",
		Subject: "Extracto mensual disponible",
	}))
	assert.False(t, p.CanParse(domain.Document{
		Sender:  "notificaciones@nequi.com.co",
		Subject: "Comprobante de transacción",
	}))
}
