package model

import "time"

type AnswerType string

const (
	AnswerShortText AnswerType = "short_text"
	AnswerLongText  AnswerType = "long_text"
	AnswerNumber    AnswerType = "number"
	AnswerDate      AnswerType = "date"
	AnswerEmail     AnswerType = "email"
	AnswerPhone     AnswerType = "phone"
)

func (t AnswerType) Valid() bool {
	switch t {
	case AnswerShortText, AnswerLongText, AnswerNumber, AnswerDate, AnswerEmail, AnswerPhone:
		return true
	}
	return false
}

type QuestionnaireStructure struct {
	ID         string     `json:"id,omitempty"`
	Version    int        `json:"version,omitempty"`
	Title      string     `json:"title" validate:"required"`
	IsTemplate bool       `json:"is_template"`
	Sections   []Section  `json:"sections" validate:"dive"`
	Questions  []Question `json:"questions" validate:"dive"`
}

type Section struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order" validate:"gte=0"`
	Active      bool   `json:"active"`
}

type Question struct {
	ID          string     `json:"id" validate:"required"`
	SectionID   string     `json:"section_id" validate:"required"`
	Text        string     `json:"text" validate:"required"`
	AnswerType  AnswerType `json:"answer_type" validate:"required,oneof=short_text long_text number date email phone"`
	Placeholder string     `json:"placeholder,omitempty"`
	Required    bool       `json:"required"`
	Order       int        `json:"order" validate:"gte=0"`
	Active      bool       `json:"active"`
}

// Answers maps a question ID to the respondent's answer text.
// A missing key means the question was never answered.
type Answers map[string]string

type ResponseStatus string

const (
	StatusDraft     ResponseStatus = "draft"
	StatusActive    ResponseStatus = "active"
	StatusFinalized ResponseStatus = "finalized"
	StatusArchived  ResponseStatus = "archived"
)

type QuestionnaireResponse struct {
	ID          string         `json:"id"`
	StructureID string         `json:"structure_id"`
	Token       string         `json:"token,omitempty"`
	ClientName  string         `json:"client_name,omitempty"`
	Answers     Answers        `json:"answers"`
	Status      ResponseStatus `json:"status"`
	LastSavedAt *time.Time     `json:"last_saved_at,omitempty"`
	FinalizedAt *time.Time     `json:"finalized_at,omitempty"`
	ArchivedAt  *time.Time     `json:"archived_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ResponseChanged is pushed by the realtime feed whenever a response is
// persisted by someone other than the current editor.
type ResponseChanged struct {
	QuestionnaireID string         `json:"questionnaire_id"`
	Answers         Answers        `json:"answers"`
	Status          ResponseStatus `json:"status"`
	SavedAt         time.Time      `json:"saved_at"`
	// Origin identifies the editor that saved, so it can skip its own echo.
	Origin string `json:"origin,omitempty"`
}

type DocumentKind string

const (
	KindContract DocumentKind = "contract"
	KindProposal DocumentKind = "proposal"
)

func (k DocumentKind) Valid() bool {
	return k == KindContract || k == KindProposal
}

// Document is either a contract or a proposal. Dates are kept as the raw
// text they were stored with so that missing and malformed values can be
// told apart at render time.
type Document struct {
	ID   string       `json:"id"`
	Kind DocumentKind `json:"kind"`

	ClientName    string `json:"client_name"`
	ClientEmail   string `json:"client_email"`
	ClientPhone   string `json:"client_phone"`
	ClientAddress string `json:"client_address"`

	EventType     string `json:"event_type"`
	EventDate     string `json:"event_date"`
	EventTime     string `json:"event_time"`
	EventLocation string `json:"event_location"`
	GuestCount    *int   `json:"guest_count,omitempty"`

	TotalPrice           *float64 `json:"total_price"`
	DownPayment          *float64 `json:"down_payment"`
	RemainingAmount      *float64 `json:"remaining_amount"`
	DownPaymentDate      string   `json:"down_payment_date"`
	RemainingPaymentDate string   `json:"remaining_payment_date"`
	PaymentTerms         string   `json:"payment_terms"`
	ValidUntil           string   `json:"valid_until"`

	Version          int        `json:"version"`
	VersionTimestamp *time.Time `json:"version_timestamp,omitempty"`
	Notes            string     `json:"notes"`

	SignerIP        string     `json:"signer_ip"`
	SignerUserAgent string     `json:"signer_user_agent"`
	SignedAt        *time.Time `json:"signed_at,omitempty"`
	ClientSignature string     `json:"client_signature,omitempty"`
	DocumentHash    string     `json:"document_hash,omitempty"`
	// SignToken is the unguessable part of the client's signing link.
	SignToken string `json:"sign_token,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
