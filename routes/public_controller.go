package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/cerimonial/app"
	"github.com/mbolis/cerimonial/database"
	"github.com/mbolis/cerimonial/httpx"
	"github.com/mbolis/cerimonial/log"
	"github.com/mbolis/cerimonial/model"
	"github.com/mbolis/cerimonial/notify"
	"github.com/mbolis/cerimonial/questionnaire"
)

type sectionView struct {
	model.Section
	Questions []model.Question `json:"questions"`
}

type questionnaireView struct {
	ID          string               `json:"id"`
	ClientName  string               `json:"client_name"`
	Status      model.ResponseStatus `json:"status"`
	Answers     model.Answers        `json:"answers"`
	LastSavedAt *time.Time           `json:"last_saved_at,omitempty"`
	FinalizedAt *time.Time           `json:"finalized_at,omitempty"`

	Title    string                `json:"title"`
	Sections []sectionView         `json:"sections"`
	Summary  questionnaire.Summary `json:"summary"`
}

func newQuestionnaireView(st model.QuestionnaireStructure, resp model.QuestionnaireResponse, threshold float64) questionnaireView {
	v := questionnaireView{
		ID:          resp.ID,
		ClientName:  resp.ClientName,
		Status:      resp.Status,
		Answers:     resp.Answers,
		LastSavedAt: resp.LastSavedAt,
		FinalizedAt: resp.FinalizedAt,
		Title:       st.Title,
		Sections:    []sectionView{},
		Summary:     questionnaire.Summarize(st, resp, threshold),
	}
	for _, sec := range questionnaire.ActiveSections(st) {
		v.Sections = append(v.Sections, sectionView{sec, questionnaire.SectionQuestions(st, sec.ID)})
	}
	return v
}

// editorHeader carries an id the client picks per editing tab. Saves are
// published with it and the event stream of that tab leaves them out.
const editorHeader = "X-Editor-ID"

type answersRequest struct {
	Answers []questionnaire.AnswerEdit `json:"answers" validate:"dive"`
}

type saveResponse struct {
	database.SaveResult
	Summary questionnaire.Summary `json:"summary"`
}

// loadByToken resolves the link token of a public request. It writes the
// error response itself and reports whether the handler may go on.
func loadByToken(app app.App, w http.ResponseWriter, r *http.Request) (model.QuestionnaireResponse, model.QuestionnaireStructure, bool) {
	token := chi.URLParam(r, "token")
	resp, err := app.Responses.LoadResponseByToken(r.Context(), token)
	if errors.Is(err, database.ErrNotFound) {
		httpx.LogNotFound(w, "get_questionnaire", token)
		return resp, model.QuestionnaireStructure{}, false
	}
	if err != nil {
		httpx.LogInternalError(w, "db.get_questionnaire", err)
		return resp, model.QuestionnaireStructure{}, false
	}

	st, err := app.Structures.GetStructure(r.Context(), resp.StructureID)
	if err != nil {
		httpx.LogInternalError(w, "db.get_questionnaire.structure", err)
		return resp, st, false
	}
	return resp, st, true
}

func PublicGetQuestionnaire(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, st, ok := loadByToken(app, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, newQuestionnaireView(st, resp, app.Locale.FinalizeThreshold))
	}
}

func decodeAnswers(w http.ResponseWriter, r *http.Request, st model.QuestionnaireStructure, allowEmpty bool) (model.Answers, bool) {
	req := answersRequest{}
	err := render.DecodeJSON(r.Body, &req)
	if err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
		return nil, false
	}
	if err = validate.Struct(req); err != nil {
		httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.validate", "%s", err)
		return nil, false
	}
	if err = questionnaire.ValidateAnswers(st, req.Answers); err != nil {
		httpx.LogError(w, r, "request.validate_answers", err)
		return nil, false
	}
	return questionnaire.MergeAnswers(model.Answers{}, req.Answers), true
}

func PublicSaveAnswers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, st, ok := loadByToken(app, w, r)
		if !ok {
			return
		}
		answers, ok := decodeAnswers(w, r, st, false)
		if !ok {
			return
		}

		res, err := app.Responses.SaveResponse(r.Context(), resp.ID, answers, false)
		if err != nil {
			httpx.LogError(w, r, "db.save_response", err)
			return
		}
		saved := afterSave(r, app, resp.ID, st)
		render.JSON(w, r, saveResponse{res, saved})
	}
}

func PublicFinalize(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, st, ok := loadByToken(app, w, r)
		if !ok {
			return
		}
		answers, ok := decodeAnswers(w, r, st, true)
		if !ok {
			return
		}

		res, err := app.Responses.SaveResponse(r.Context(), resp.ID, answers, true)
		if errors.Is(err, questionnaire.ErrPreconditionFailed) {
			// answers were kept, tell the client where it stands
			summary := afterSave(r, app, resp.ID, st)
			log.Debugf("finalize.threshold: %s", err)
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, map[string]any{
				"error":   err.Error(),
				"status":  res.Status,
				"summary": summary,
			})
			return
		}
		if err != nil {
			httpx.LogError(w, r, "db.finalize_response", err)
			return
		}

		summary := afterSave(r, app, resp.ID, st)
		render.JSON(w, r, saveResponse{res, summary})
	}
}

// afterSave reloads the stored response, publishes it to other editors and
// notifies about finalization. Failures here never undo the save.
func afterSave(r *http.Request, app app.App, id string, st model.QuestionnaireStructure) questionnaire.Summary {
	ctx := r.Context()
	threshold := app.Locale.FinalizeThreshold
	resp, err := app.Responses.LoadResponse(ctx, id)
	if err != nil {
		log.Errorf("db.reload_response: %s", err)
		return questionnaire.Summary{Threshold: threshold}
	}

	if app.Feed != nil {
		ev := model.ResponseChanged{
			QuestionnaireID: resp.ID,
			Answers:         resp.Answers,
			Status:          resp.Status,
			Origin:          r.Header.Get(editorHeader),
		}
		if resp.LastSavedAt != nil {
			ev.SavedAt = *resp.LastSavedAt
		}
		if err = app.Feed.Publish(ctx, ev); err != nil {
			log.Warnf("feed.publish: %s", err)
		}
	}

	if resp.Status == model.StatusFinalized {
		err = app.Notifier.Notify(ctx, notify.TypeQuestionnaireFinalized, notify.QuestionnaireFinalized(resp))
		if err != nil {
			log.Errorf("notify.questionnaire_finalized: %s", err)
		}
	}

	return questionnaire.Summarize(st, resp, threshold)
}

// PublicEvents streams changes saved elsewhere as server-sent events. With
// ?editor=<id> the saves made under that editor id are left out.
func PublicEvents(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.Feed == nil {
			httpx.LogStatus(w, http.StatusNotImplemented, log.DebugLevel, "events.disabled")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpx.LogStatus(w, http.StatusNotImplemented, log.DebugLevel, "events.flush")
			return
		}

		resp, _, ok := loadByToken(app, w, r)
		if !ok {
			return
		}

		editor := r.URL.Query().Get("editor")
		session := questionnaire.NewSession(resp)

		w.Header().Set("content-type", "text/event-stream")
		w.Header().Set("cache-control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for ev := range app.Feed.Subscribe(r.Context(), resp.ID) {
			if editor != "" && ev.Origin == editor {
				continue
			}
			if !session.Reconcile(ev) {
				continue
			}
			b, err := json.Marshal(ev)
			if err != nil {
				log.Errorf("events.encode: %s", err)
				continue
			}
			if _, err = fmt.Fprintf(w, "event: changed\ndata: %s\n\n", b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type signRequest struct {
	Signature string `json:"signature" validate:"required"`
}

// PublicSignDocument records the client's signature with the audit trail
// of the request that carried it. The document is found by its sign token
// only.
func PublicSignDocument(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := signRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.validate", "%s", err)
			return
		}

		doc, err := app.Documents.Sign(r.Context(), chi.URLParam(r, "token"), database.Signing{
			Signature: strings.TrimSpace(req.Signature),
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			httpx.LogError(w, r, "db.sign_document", err)
			return
		}

		err = app.Notifier.Notify(r.Context(), notify.TypeDocumentSigned, notify.DocumentSigned(doc))
		if err != nil {
			log.Errorf("notify.document_signed: %s", err)
		}

		render.JSON(w, r, map[string]any{
			"id":            doc.ID,
			"kind":          doc.Kind,
			"signed_at":     doc.SignedAt,
			"document_hash": doc.DocumentHash,
		})
	}
}

// RealIP may have replaced RemoteAddr with a forwarded address, which
// carries no port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
