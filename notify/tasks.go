package notify

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mbolis/cerimonial/model"
)

const (
	TypeQuestionnaireFinalized = "questionnaire:finalized"
	TypeDocumentSigned         = "document:signed"
)

type QuestionnaireFinalizedPayload struct {
	QuestionnaireID string    `json:"questionnaireId"`
	ClientName      string    `json:"clientName"`
	FinalizedAt     time.Time `json:"finalizedAt"`
}

func (p *QuestionnaireFinalizedPayload) Normalize() {
	p.QuestionnaireID = strings.TrimSpace(p.QuestionnaireID)
	p.ClientName = strings.TrimSpace(p.ClientName)
}

func QuestionnaireFinalized(r model.QuestionnaireResponse) QuestionnaireFinalizedPayload {
	p := QuestionnaireFinalizedPayload{
		QuestionnaireID: r.ID,
		ClientName:      r.ClientName,
	}
	if r.FinalizedAt != nil {
		p.FinalizedAt = *r.FinalizedAt
	}
	p.Normalize()
	return p
}

type DocumentSignedPayload struct {
	DocumentID   string             `json:"documentId"`
	Kind         model.DocumentKind `json:"kind"`
	ClientName   string             `json:"clientName"`
	DocumentHash string             `json:"documentHash"`
	SignedAt     time.Time          `json:"signedAt"`
}

func DocumentSigned(doc model.Document) DocumentSignedPayload {
	p := DocumentSignedPayload{
		DocumentID:   strings.TrimSpace(doc.ID),
		Kind:         doc.Kind,
		ClientName:   strings.TrimSpace(doc.ClientName),
		DocumentHash: doc.DocumentHash,
	}
	if doc.SignedAt != nil {
		p.SignedAt = *doc.SignedAt
	}
	return p
}

func NewTask(event string, payload any) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(event, b), nil
}

// TaskID keeps one task per event and subject, so a retried request does
// not notify twice.
func TaskID(event string, payload any) string {
	switch p := payload.(type) {
	case QuestionnaireFinalizedPayload:
		return event + "-" + p.QuestionnaireID
	case DocumentSignedPayload:
		return event + "-" + p.DocumentID + "-" + p.DocumentHash
	}
	return ""
}
