package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/mbolis/cerimonial/log"
)

func NewServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeQuestionnaireFinalized, HandleQuestionnaireFinalized)
	mux.HandleFunc(TypeDocumentSigned, HandleDocumentSigned)
	return mux
}

func HandleQuestionnaireFinalized(ctx context.Context, t *asynq.Task) error {
	var p QuestionnaireFinalizedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	p.Normalize()
	if p.QuestionnaireID == "" {
		return fmt.Errorf("%s without questionnaire: %w", t.Type(), asynq.SkipRetry)
	}

	log.WithFields(log.Fields{
		"questionnaire": p.QuestionnaireID,
		"client":        p.ClientName,
		"finalized_at":  p.FinalizedAt,
	}).Info("notify.questionnaire_finalized")
	return nil
}

func HandleDocumentSigned(ctx context.Context, t *asynq.Task) error {
	var p DocumentSignedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.DocumentID == "" {
		return fmt.Errorf("%s without document: %w", t.Type(), asynq.SkipRetry)
	}

	log.WithFields(log.Fields{
		"document": p.DocumentID,
		"kind":     p.Kind,
		"hash":     p.DocumentHash,
		"signed":   p.SignedAt,
	}).Info("notify.document_signed")
	return nil
}

// StartWorker processes notification tasks until ctx is done.
func StartWorker(ctx context.Context, redisAddr string) error {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{Concurrency: 2, Logger: log.Logger},
	)
	if err := srv.Start(NewServeMux()); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()
	return nil
}
