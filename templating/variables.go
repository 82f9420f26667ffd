package templating

import (
	"strconv"
	"time"

	"github.com/mbolis/cerimonial/model"
)

// Placeholder tokens shared with template authors. The names are part of
// the contract with existing templates and must not change.
const (
	TokenDocumentID   = "{ID_DOCUMENTO}"
	TokenDocumentType = "{TIPO_DOCUMENTO}"

	TokenClientName    = "{NOME_CLIENTE}"
	TokenClientEmail   = "{EMAIL_CLIENTE}"
	TokenClientPhone   = "{TELEFONE_CLIENTE}"
	TokenClientAddress = "{ENDERECO_CLIENTE}"

	TokenEventType     = "{TIPO_EVENTO}"
	TokenEventDate     = "{DATA_EVENTO}"
	TokenEventTime     = "{HORARIO_EVENTO}"
	TokenEventLocation = "{LOCAL_EVENTO}"
	TokenGuestCount    = "{NUMERO_CONVIDADOS}"

	TokenTotalPrice           = "{VALOR_TOTAL}"
	TokenDownPayment          = "{VALOR_ENTRADA}"
	TokenRemainingAmount      = "{VALOR_RESTANTE}"
	TokenDownPaymentDate      = "{DATA_ENTRADA}"
	TokenRemainingPaymentDate = "{DATA_PAGAMENTO_RESTANTE}"
	TokenPaymentTerms         = "{CONDICOES_PAGAMENTO}"
	TokenValidUntil           = "{VALIDADE_PROPOSTA}"

	TokenVersion     = "{VERSAO}"
	TokenVersionDate = "{DATA_VERSAO}"
	TokenNotes       = "{OBSERVACOES}"
	TokenCreatedAt   = "{DATA_CRIACAO}"
	TokenToday       = "{DATA_ATUAL}"

	TokenSignerIP         = "{IP_ASSINATURA}"
	TokenSignerDevice     = "{DISPOSITIVO_ASSINATURA}"
	TokenSignedAt         = "{DATA_ASSINATURA}"
	TokenDocumentHash     = "{HASH_DOCUMENTO}"
	TokenClientSignature  = "{ASSINATURA_CLIENTE}"
	TokenCompanySignature = "{ASSINATURA_EMPRESA}"
)

// Variables maps a placeholder token, braces included, to its value.
type Variables map[string]string

// Signatures are the already resolved signature values of a document.
type Signatures struct {
	Client  string
	Company string
}

type Engine struct {
	Locale Locale
	Now    func() time.Time
}

func New(l Locale) *Engine {
	return &Engine{Locale: l, Now: time.Now}
}

// BuildVariableMap computes the value of every known token for doc.
// All values are defined strings; no token ever maps to "null" or an error.
func (e *Engine) BuildVariableMap(doc model.Document, sigs Signatures) Variables {
	l := e.Locale

	guests := ""
	if doc.GuestCount != nil {
		guests = strconv.Itoa(*doc.GuestCount)
	}
	version := ""
	if doc.Version > 0 {
		version = strconv.Itoa(doc.Version)
	}
	created := l.DateUndefined
	if !doc.CreatedAt.IsZero() {
		created = doc.CreatedAt.In(l.location()).Format(l.DateLayout)
	}

	return Variables{
		TokenDocumentID:   doc.ID,
		TokenDocumentType: string(doc.Kind),

		TokenClientName:    doc.ClientName,
		TokenClientEmail:   doc.ClientEmail,
		TokenClientPhone:   doc.ClientPhone,
		TokenClientAddress: doc.ClientAddress,

		TokenEventType:     doc.EventType,
		TokenEventDate:     l.FormatDate(doc.EventDate),
		TokenEventTime:     l.FormatTime(doc.EventTime),
		TokenEventLocation: doc.EventLocation,
		TokenGuestCount:    guests,

		TokenTotalPrice:           l.FormatCurrency(doc.TotalPrice),
		TokenDownPayment:          l.FormatCurrency(doc.DownPayment),
		TokenRemainingAmount:      l.FormatCurrency(remaining(doc)),
		TokenDownPaymentDate:      l.FormatDate(doc.DownPaymentDate),
		TokenRemainingPaymentDate: l.FormatDate(doc.RemainingPaymentDate),
		TokenPaymentTerms:         doc.PaymentTerms,
		TokenValidUntil:           l.FormatDate(doc.ValidUntil),

		TokenVersion:     version,
		TokenVersionDate: l.FormatTimestamp(doc.VersionTimestamp),
		TokenNotes:       doc.Notes,
		TokenCreatedAt:   created,
		TokenToday:       e.now().In(l.location()).Format(l.DateLayout),

		TokenSignerIP:         doc.SignerIP,
		TokenSignerDevice:     l.DescribeDevice(doc.SignerUserAgent),
		TokenSignedAt:         l.FormatTimestamp(doc.SignedAt),
		TokenDocumentHash:     DocumentHash(doc),
		TokenClientSignature:  l.SignatureMarkup(sigs.Client),
		TokenCompanySignature: l.SignatureMarkup(sigs.Company),
	}
}

// remaining falls back to total minus down payment when the remaining
// amount was never stored.
func remaining(doc model.Document) *float64 {
	if doc.RemainingAmount != nil || doc.TotalPrice == nil {
		return doc.RemainingAmount
	}
	r := *doc.TotalPrice
	if doc.DownPayment != nil {
		r -= *doc.DownPayment
	}
	return &r
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Render substitutes doc into tpl and scopes css to the result.
func (e *Engine) Render(tpl, css string, doc model.Document, sigs Signatures) string {
	return CombineWithStyles(Substitute(tpl, e.BuildVariableMap(doc, sigs)), css, e.Locale.ScopeClass)
}
