package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mbolis/cerimonial/model"
	"github.com/mbolis/cerimonial/templating"
)

type DocumentStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db, now: time.Now}
}

const documentColumns = `
	id, kind,
	client_name, client_email, client_phone, client_address,
	event_type, event_date, event_time, event_location, guest_count,
	total_price, down_payment, remaining_amount,
	down_payment_date, remaining_payment_date, payment_terms, valid_until,
	version, version_timestamp, notes,
	signer_ip, signer_user_agent, signed_at, client_signature, document_hash,
	created_at, sign_token`

func (s *DocumentStore) LoadDocument(ctx context.Context, kind model.DocumentKind, id string) (model.Document, error) {
	return loadDocument(ctx, s.db, "id = ? AND kind = ?", id, string(kind))
}

func loadDocument(ctx context.Context, q querier, where string, args ...any) (model.Document, error) {
	doc := model.Document{}
	var (
		kindText                   string
		guests                     sql.NullInt64
		total, down, remaining     sql.NullFloat64
		versionTimestamp, signedAt sql.NullTime
		signToken                  sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT`+documentColumns+`
		FROM document
		WHERE `+where,
		args...,
	).Scan(
		&doc.ID, &kindText,
		&doc.ClientName, &doc.ClientEmail, &doc.ClientPhone, &doc.ClientAddress,
		&doc.EventType, &doc.EventDate, &doc.EventTime, &doc.EventLocation, &guests,
		&total, &down, &remaining,
		&doc.DownPaymentDate, &doc.RemainingPaymentDate, &doc.PaymentTerms, &doc.ValidUntil,
		&doc.Version, &versionTimestamp, &doc.Notes,
		&doc.SignerIP, &doc.SignerUserAgent, &signedAt, &doc.ClientSignature, &doc.DocumentHash,
		&doc.CreatedAt, &signToken,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return doc, ErrNotFound
	}
	if err != nil {
		return doc, err
	}

	doc.Kind = model.DocumentKind(kindText)
	if guests.Valid {
		n := int(guests.Int64)
		doc.GuestCount = &n
	}
	doc.TotalPrice = floatPtr(total)
	doc.DownPayment = floatPtr(down)
	doc.RemainingAmount = floatPtr(remaining)
	doc.VersionTimestamp = timePtr(versionTimestamp)
	doc.SignedAt = timePtr(signedAt)
	doc.SignToken = signToken.String
	return doc, nil
}

// SaveDocument inserts doc or updates the stored one, and stores its
// integrity hash. A document without ID gets one, along with version 1 and a
// creation time. New documents get a random sign token; an update keeps the
// stored one. Signed documents are never overwritten: ErrSigned.
func (s *DocumentStore) SaveDocument(ctx context.Context, doc model.Document) (model.Document, error) {
	if !doc.Kind.Valid() {
		return doc, fmt.Errorf("invalid document kind %q", doc.Kind)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Version < 1 {
		doc.Version = 1
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now().UTC()
	}
	doc.DocumentHash = templating.DocumentHash(doc)

	var guests sql.NullInt64
	if doc.GuestCount != nil {
		guests = sql.NullInt64{Int64: int64(*doc.GuestCount), Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO document (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			client_name = excluded.client_name,
			client_email = excluded.client_email,
			client_phone = excluded.client_phone,
			client_address = excluded.client_address,
			event_type = excluded.event_type,
			event_date = excluded.event_date,
			event_time = excluded.event_time,
			event_location = excluded.event_location,
			guest_count = excluded.guest_count,
			total_price = excluded.total_price,
			down_payment = excluded.down_payment,
			remaining_amount = excluded.remaining_amount,
			down_payment_date = excluded.down_payment_date,
			remaining_payment_date = excluded.remaining_payment_date,
			payment_terms = excluded.payment_terms,
			valid_until = excluded.valid_until,
			version = excluded.version,
			version_timestamp = excluded.version_timestamp,
			notes = excluded.notes,
			signer_ip = excluded.signer_ip,
			signer_user_agent = excluded.signer_user_agent,
			signed_at = excluded.signed_at,
			client_signature = excluded.client_signature,
			document_hash = excluded.document_hash,
			created_at = excluded.created_at
		WHERE document.signed_at IS NULL
			AND document.kind = excluded.kind
		RETURNING sign_token`,
		doc.ID, string(doc.Kind),
		doc.ClientName, doc.ClientEmail, doc.ClientPhone, doc.ClientAddress,
		doc.EventType, doc.EventDate, doc.EventTime, doc.EventLocation, guests,
		nullFloat(doc.TotalPrice), nullFloat(doc.DownPayment), nullFloat(doc.RemainingAmount),
		doc.DownPaymentDate, doc.RemainingPaymentDate, doc.PaymentTerms, doc.ValidUntil,
		doc.Version, nullTime(doc.VersionTimestamp), doc.Notes,
		doc.SignerIP, doc.SignerUserAgent, nullTime(doc.SignedAt), doc.ClientSignature, doc.DocumentHash,
		doc.CreatedAt, uuid.NewString(),
	).Scan(&doc.SignToken)
	if errors.Is(err, sql.ErrNoRows) {
		// the conflict update was refused
		return doc, s.refusal(ctx, doc)
	}
	if err != nil {
		return doc, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

func (s *DocumentStore) refusal(ctx context.Context, doc model.Document) error {
	var (
		kind     string
		signedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, signed_at FROM document WHERE id = ?`,
		doc.ID,
	).Scan(&kind, &signedAt)
	switch {
	case err != nil:
		return fmt.Errorf("save document: %w", err)
	case kind != string(doc.Kind):
		return fmt.Errorf("%w: document %s is a %s", ErrConflict, doc.ID, kind)
	case signedAt.Valid:
		return ErrSigned
	}
	return fmt.Errorf("save document %s: not written", doc.ID)
}

// Signing is what a client hands over when signing a document.
type Signing struct {
	Signature string
	IP        string
	UserAgent string
}

// Sign records the client's signature on the document behind token. The
// write only happens while the document is still unsigned, so of two
// concurrent signatures exactly one wins and the other gets ErrAlreadySigned.
func (s *DocumentStore) Sign(ctx context.Context, token string, sig Signing) (model.Document, error) {
	if token == "" {
		return model.Document{}, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Document{}, err
	}
	defer tx.Rollback()

	doc, err := loadDocument(ctx, tx, "sign_token = ?", token)
	if err != nil {
		return doc, err
	}
	if doc.SignedAt != nil {
		return doc, ErrAlreadySigned
	}

	now := s.now().UTC()
	doc.ClientSignature = sig.Signature
	doc.SignerIP = sig.IP
	doc.SignerUserAgent = sig.UserAgent
	doc.SignedAt = &now
	doc.DocumentHash = templating.DocumentHash(doc)

	res, err := tx.ExecContext(ctx, `
		UPDATE document
		SET client_signature = ?, signer_ip = ?, signer_user_agent = ?, signed_at = ?, document_hash = ?
		WHERE id = ?
			AND signed_at IS NULL`,
		doc.ClientSignature, doc.SignerIP, doc.SignerUserAgent, now, doc.DocumentHash,
		doc.ID,
	)
	if err != nil {
		return doc, fmt.Errorf("sign document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return doc, err
	}
	if n == 0 {
		return doc, ErrAlreadySigned
	}
	return doc, tx.Commit()
}

// DocumentTemplate is the administrator-authored body and stylesheet for
// one document kind.
type DocumentTemplate struct {
	Kind    model.DocumentKind `json:"kind"`
	Content string             `json:"content"`
	CSS     string             `json:"css"`
}

func (s *DocumentStore) LoadTemplate(ctx context.Context, kind model.DocumentKind) (DocumentTemplate, error) {
	tpl := DocumentTemplate{Kind: kind}
	err := s.db.QueryRowContext(ctx, `
		SELECT content, css FROM document_template WHERE kind = ?`,
		string(kind),
	).Scan(&tpl.Content, &tpl.CSS)
	if errors.Is(err, sql.ErrNoRows) {
		return tpl, ErrNotFound
	}
	return tpl, err
}

func (s *DocumentStore) SaveTemplate(ctx context.Context, tpl DocumentTemplate) error {
	if !tpl.Kind.Valid() {
		return fmt.Errorf("invalid document kind %q", tpl.Kind)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_template (kind, content, css) VALUES (?, ?, ?)
		ON CONFLICT (kind) DO UPDATE SET content = excluded.content, css = excluded.css`,
		string(tpl.Kind), tpl.Content, tpl.CSS,
	)
	return err
}
