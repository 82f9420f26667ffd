package routes

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/cerimonial/app"
	"github.com/mbolis/cerimonial/database"
	"github.com/mbolis/cerimonial/httpx"
	"github.com/mbolis/cerimonial/log"
	"github.com/mbolis/cerimonial/model"
	"github.com/mbolis/cerimonial/templating"
)

func CreateStructure(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := model.QuestionnaireStructure{}
		err := render.DecodeJSON(r.Body, &st)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		st.ID = ""

		st, err = app.Structures.SaveStructure(r.Context(), st)
		if err != nil {
			httpx.LogError(w, r, "db.insert_structure", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, st)
	}
}

func ListStructures(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templatesOnly := r.URL.Query().Get("templates") == "true"
		structures, err := app.Structures.ListStructures(r.Context(), templatesOnly)
		if err != nil {
			httpx.LogInternalError(w, "db.get_structures", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"structures": structures,
		})
	}
}

func GetStructureById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		st, err := app.Structures.GetStructure(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "get_structure", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_structure", err)
			return
		}

		render.JSON(w, r, st)
	}
}

// UpdateStructure replaces a structure. The body must carry the version it
// was read at; a stale version is answered with 409.
func UpdateStructure(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := model.QuestionnaireStructure{}
		err := render.DecodeJSON(r.Body, &st)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		st.ID = chi.URLParam(r, "id")
		if st.Version < 1 {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.version", "missing structure version")
			return
		}

		st, err = app.Structures.SaveStructure(r.Context(), st)
		if err != nil {
			httpx.LogError(w, r, "db.update_structure", err)
			return
		}

		render.JSON(w, r, st)
	}
}

func CloneStructure(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := app.Structures.CloneTemplate(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogError(w, r, "db.clone_structure", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, st)
	}
}

type createQuestionnaireRequest struct {
	StructureID string `json:"structure_id" validate:"required"`
	ClientName  string `json:"client_name" validate:"required"`
}

// CreateQuestionnaire issues a new link for a client to answer a structure.
func CreateQuestionnaire(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := createQuestionnaireRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err = validate.Struct(req); err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.validate", "%s", err)
			return
		}

		_, err = app.Structures.GetStructure(r.Context(), req.StructureID)
		if err != nil {
			httpx.LogError(w, r, "db.create_questionnaire.structure", err)
			return
		}

		resp, err := app.Responses.CreateResponse(r.Context(), req.StructureID, req.ClientName)
		if err != nil {
			httpx.LogInternalError(w, "db.create_questionnaire", err)
			return
		}
		log.WithFields(log.Fields{"questionnaire": resp.ID, "structure": resp.StructureID}).Info("questionnaire issued")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":    resp.ID,
			"token": resp.Token,
			"url":   app.Url() + "/api/questionnaires/" + resp.Token,
		})
	}
}

func GetQuestionnaireById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		resp, err := app.Responses.LoadResponse(r.Context(), id)
		if err != nil {
			httpx.LogError(w, r, "db.get_questionnaire", err)
			return
		}
		st, err := app.Structures.GetStructure(r.Context(), resp.StructureID)
		if err != nil {
			httpx.LogInternalError(w, "db.get_questionnaire.structure", err)
			return
		}

		render.JSON(w, r, newQuestionnaireView(st, resp, app.Locale.FinalizeThreshold))
	}
}

func ArchiveQuestionnaire(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := app.Responses.ArchiveResponse(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogError(w, r, "db.archive_questionnaire", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"id":          resp.ID,
			"status":      resp.Status,
			"archived_at": resp.ArchivedAt,
		})
	}
}

func documentKind(w http.ResponseWriter, r *http.Request) (model.DocumentKind, bool) {
	kind := model.DocumentKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		httpx.LogNotFound(w, "document.kind", kind)
		return kind, false
	}
	return kind, true
}

func loadDocument(app app.App, w http.ResponseWriter, r *http.Request) (model.Document, bool) {
	kind, ok := documentKind(w, r)
	if !ok {
		return model.Document{}, false
	}
	doc, err := app.Documents.LoadDocument(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		httpx.LogError(w, r, "db.get_document", err)
		return doc, false
	}
	return doc, true
}

func SaveDocument(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := documentKind(w, r)
		if !ok {
			return
		}
		doc := model.Document{}
		if err := render.DecodeJSON(r.Body, &doc); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		doc.Kind = kind
		doc.ID = chi.URLParam(r, "id")

		// the signature trail is only written by the signing route
		doc.ClientSignature, doc.SignerIP, doc.SignerUserAgent, doc.SignedAt = "", "", "", nil
		doc.SignToken = ""

		prev, err := app.Documents.LoadDocument(r.Context(), kind, doc.ID)
		switch {
		case errors.Is(err, database.ErrNotFound):
			doc.CreatedAt = time.Time{}
		case err != nil:
			httpx.LogInternalError(w, "db.save_document.load", err)
			return
		case prev.SignedAt != nil:
			// the store refuses signatures landing after this check too
			httpx.LogStatus(w, http.StatusLocked, log.DebugLevel, "save_document.signed")
			return
		default:
			doc.CreatedAt = prev.CreatedAt
		}

		doc, err = app.Documents.SaveDocument(r.Context(), doc)
		if err != nil {
			httpx.LogError(w, r, "db.save_document", err)
			return
		}

		render.JSON(w, r, doc)
	}
}

func SaveDocumentTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := documentKind(w, r)
		if !ok {
			return
		}
		tpl := database.DocumentTemplate{}
		if err := render.DecodeJSON(r.Body, &tpl); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		tpl.Kind = kind

		if err := app.Documents.SaveTemplate(r.Context(), tpl); err != nil {
			httpx.LogInternalError(w, "db.save_document_template", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"kind":   tpl.Kind,
			"tokens": templating.Tokens(tpl.Content),
		})
	}
}

func GetDocumentVariables(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := loadDocument(app, w, r)
		if !ok {
			return
		}

		render.JSON(w, r, app.Engine.BuildVariableMap(doc, app.Signatures.Resolve(doc)))
	}
}

type renderRequest struct {
	Template string `json:"template"`
	CSS      string `json:"css"`
}

// RenderDocument fills a template with the document's values. Without a
// template in the body, the stored one for the document kind is used.
func RenderDocument(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := loadDocument(app, w, r)
		if !ok {
			return
		}

		req := renderRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if req.Template == "" {
			tpl, err := app.Documents.LoadTemplate(r.Context(), doc.Kind)
			if err != nil {
				httpx.LogError(w, r, "db.get_document_template", err)
				return
			}
			req.Template, req.CSS = tpl.Content, tpl.CSS
		}

		sigs := app.Signatures.Resolve(doc)
		vars := app.Engine.BuildVariableMap(doc, sigs)

		render.JSON(w, r, map[string]any{
			"html":       app.Engine.Render(req.Template, req.CSS, doc, sigs),
			"unresolved": templating.Unresolved(req.Template, vars),
		})
	}
}
