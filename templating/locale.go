package templating

import (
	"time"
	_ "time/tzdata"

	"golang.org/x/text/language"
)

// Locale carries every presentation choice the engine needs. Nothing in
// this package reads global state; callers pass a Locale explicitly.
type Locale struct {
	Language       language.Tag
	Location       *time.Location
	CurrencySymbol string
	DateLayout     string
	DateTimeLayout string

	ZeroCurrency  string
	DateUndefined string
	DateInvalid   string
	TimeUndefined string
	UnknownDevice string
	DeviceJoiner  string

	AwaitingSignature string
	InvalidSignature  string
	SignatureAlt      string

	// ScopeClass is the class of the container that CSS is scoped to.
	ScopeClass string
}

func DefaultLocale() Locale {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return Locale{
		Language:       language.BrazilianPortuguese,
		Location:       loc,
		CurrencySymbol: "R$",
		DateLayout:     "02/01/2006",
		DateTimeLayout: "02/01/2006 15:04",

		ZeroCurrency:  "R$ 0,00",
		DateUndefined: "A definir",
		DateInvalid:   "Data inválida",
		TimeUndefined: "A definir",
		UnknownDevice: "Dispositivo desconhecido",
		DeviceJoiner:  " em ",

		AwaitingSignature: "Aguardando assinatura",
		InvalidSignature:  "Assinatura inválida",
		SignatureAlt:      "Assinatura",

		ScopeClass: "document-content",
	}
}
