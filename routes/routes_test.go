package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mbolis/cerimonial/app"
	"github.com/mbolis/cerimonial/config"
	"github.com/mbolis/cerimonial/database"
	"github.com/mbolis/cerimonial/httpx"
	"github.com/mbolis/cerimonial/model"
	"github.com/mbolis/cerimonial/notify"
	"github.com/mbolis/cerimonial/templating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordedEvent struct {
	event   string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Notify(_ context.Context, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event, payload})
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.event)
	}
	return out
}

type fakeFeed struct {
	mu        sync.Mutex
	published []model.ResponseChanged
}

func (f *fakeFeed) Publish(_ context.Context, ev model.ResponseChanged) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeFeed) Subscribe(_ context.Context, id string) <-chan model.ResponseChanged {
	ch := make(chan model.ResponseChanged, 3)
	ch <- model.ResponseChanged{QuestionnaireID: "elsewhere", Status: model.StatusActive}
	ch <- model.ResponseChanged{QuestionnaireID: id, Answers: model.Answers{"q1": "mine"}, Status: model.StatusActive, Origin: "tab-1"}
	ch <- model.ResponseChanged{QuestionnaireID: id, Answers: model.Answers{"q1": "theirs"}, Status: model.StatusActive, Origin: "tab-2"}
	close(ch)
	return ch
}

type testEnv struct {
	app      app.App
	handler  http.Handler
	admin    http.Handler
	notifier *recorder
	feed     *fakeFeed
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		Addr:           "127.0.0.1:8080",
		TokenSecret:    "test-secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: []string{"*"},
		AutosaveRate:   1000,
		Locale:         config.DefaultLocale(),
	}
	a := app.New(db, httpx.NewBearerServer(db, cfg), cfg, templating.DefaultLocale())
	env := &testEnv{notifier: &recorder{}, feed: &fakeFeed{}}
	a.Notifier = env.notifier
	a.Feed = env.feed

	env.app = a
	env.handler = Wire(a)
	env.admin = adminRouter(a)
	return env
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("content-type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func weddingStructure() map[string]any {
	return map[string]any{
		"title":       "Casamento",
		"is_template": true,
		"sections": []map[string]any{
			{"id": "couple", "title": "O casal", "order": 1, "active": true},
			{"id": "party", "title": "A festa", "order": 2, "active": true},
		},
		"questions": []map[string]any{
			{"id": "q1", "section_id": "couple", "text": "Nomes", "answer_type": "short_text", "order": 1, "active": true},
			{"id": "q2", "section_id": "couple", "text": "E-mail", "answer_type": "email", "order": 2, "active": true},
			{"id": "q3", "section_id": "party", "text": "Data", "answer_type": "date", "order": 1, "active": true},
			{"id": "q4", "section_id": "party", "text": "Convidados", "answer_type": "number", "order": 2, "active": true},
			{"id": "q5", "section_id": "party", "text": "Observações", "answer_type": "long_text", "order": 3, "active": true},
		},
	}
}

func edits(kv ...string) map[string]any {
	var list []map[string]string
	for i := 0; i+1 < len(kv); i += 2 {
		list = append(list, map[string]string{"question_id": kv[i], "value": kv[i+1]})
	}
	return map[string]any{"answers": list}
}

func issueQuestionnaire(t *testing.T, env *testEnv) (structureID, id, token string) {
	t.Helper()
	w := do(t, env.admin, http.MethodPost, "/structures", weddingStructure())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var st model.QuestionnaireStructure
	decode(t, w, &st)

	w = do(t, env.admin, http.MethodPost, "/questionnaires", map[string]string{
		"structure_id": st.ID,
		"client_name":  "Ana & João",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var issued struct{ ID, Token string }
	decode(t, w, &issued)
	return st.ID, issued.ID, issued.Token
}

func TestQuestionnaireLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, id, token := issueQuestionnaire(t, env)
	base := "/api/questionnaires/" + token

	w := do(t, env.handler, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view questionnaireView
	decode(t, w, &view)
	assert.Equal(t, model.StatusDraft, view.Status)
	assert.Equal(t, 5, view.Summary.Progress.TotalCount)
	require.Len(t, view.Sections, 2)
	assert.Len(t, view.Sections[1].Questions, 3)
	assert.True(t, view.Summary.CanEdit)

	w = do(t, env.handler, http.MethodPut, base+"/answers", edits("q1", "Ana e João"), editorHeader, "tab-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved saveResponse
	decode(t, w, &saved)
	assert.Equal(t, model.StatusActive, saved.Status)
	assert.Equal(t, database.MsgSaved, saved.Message)
	assert.Equal(t, 1, saved.Summary.Progress.AnsweredCount)
	require.Len(t, env.feed.published, 1)
	assert.Equal(t, id, env.feed.published[0].QuestionnaireID)
	assert.Equal(t, "tab-1", env.feed.published[0].Origin)

	w = do(t, env.handler, http.MethodPut, base+"/answers", edits("q2", "not-an-email"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var problems httpx.ErrorBody
	decode(t, w, &problems)
	assert.Len(t, problems.Problems, 1)

	w = do(t, env.handler, http.MethodPost, base+"/finalize", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "20% answered is below the threshold")

	w = do(t, env.handler, http.MethodPost, base+"/finalize", edits("q2", "ana@example.com", "q3", "2025-11-08", "q4", "120"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &saved)
	assert.Equal(t, model.StatusFinalized, saved.Status)
	assert.Equal(t, database.MsgFinalized, saved.Message)
	assert.False(t, saved.Summary.CanEdit)
	assert.Equal(t, []string{notify.TypeQuestionnaireFinalized}, env.notifier.names())

	w = do(t, env.handler, http.MethodPut, base+"/answers", edits("q5", "tarde demais"))
	assert.Equal(t, http.StatusLocked, w.Code)

	w = do(t, env.admin, http.MethodGet, "/questionnaires/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, "", view.Answers["q5"])
	assert.Equal(t, "120", view.Answers["q4"])

	w = do(t, env.admin, http.MethodPost, "/questionnaires/"+id+"/archive", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, env.admin, http.MethodPost, "/questionnaires/"+id+"/archive", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPublicQuestionnaire_NotFound(t *testing.T) {
	env := newTestEnv(t)
	w := do(t, env.handler, http.MethodGet, "/api/questionnaires/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, env.handler, http.MethodPut, "/api/questionnaires/unknown/answers", edits("q1", "x"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicSaveAnswers_BadRequest(t *testing.T) {
	env := newTestEnv(t)
	_, _, token := issueQuestionnaire(t, env)

	w := do(t, env.handler, http.MethodPut, "/api/questionnaires/"+token+"/answers", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "autosave needs a body")

	w = do(t, env.handler, http.MethodPut, "/api/questionnaires/"+token+"/answers", edits("", "x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublicEvents(t *testing.T) {
	env := newTestEnv(t)
	_, _, token := issueQuestionnaire(t, env)

	w := do(t, env.handler, http.MethodGet, "/api/questionnaires/"+token+"/events", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("content-type"))
	assert.Equal(t, 2, strings.Count(w.Body.String(), "event: changed\ndata: "))
	assert.NotContains(t, w.Body.String(), `"questionnaire_id":"elsewhere"`, "other questionnaires are not streamed")

	w = do(t, env.handler, http.MethodGet, "/api/questionnaires/"+token+"/events?editor=tab-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, strings.Count(w.Body.String(), "event: changed\ndata: "))
	assert.NotContains(t, w.Body.String(), `"mine"`, "own saves are not echoed")
	assert.Contains(t, w.Body.String(), `"theirs"`)

	env.app.Feed = nil
	w = do(t, Wire(env.app), http.MethodGet, "/api/questionnaires/"+token+"/events", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestStructures(t *testing.T) {
	env := newTestEnv(t)
	structureID, _, _ := issueQuestionnaire(t, env)

	w := do(t, env.admin, http.MethodGet, "/structures?templates=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Structures []model.QuestionnaireStructure `json:"structures"`
	}
	decode(t, w, &list)
	require.Len(t, list.Structures, 1)

	w = do(t, env.admin, http.MethodPost, "/structures/"+structureID+"/clone", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var clone model.QuestionnaireStructure
	decode(t, w, &clone)
	assert.NotEqual(t, structureID, clone.ID)
	assert.False(t, clone.IsTemplate)
	assert.Len(t, clone.Questions, 5)

	clone.Title = "Casamento na praia"
	w = do(t, env.admin, http.MethodPut, "/structures/"+clone.ID, clone)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated model.QuestionnaireStructure
	decode(t, w, &updated)
	assert.Equal(t, clone.Version+1, updated.Version)

	w = do(t, env.admin, http.MethodPut, "/structures/"+clone.ID, clone)
	assert.Equal(t, http.StatusConflict, w.Code, "stale version")

	bad := weddingStructure()
	bad["title"] = ""
	w = do(t, env.admin, http.MethodPost, "/structures", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, env.admin, http.MethodGet, "/structures/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, env.admin, http.MethodPost, "/questionnaires", map[string]string{"structure_id": "missing", "client_name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, env.admin, http.MethodPost, "/questionnaires", map[string]string{"structure_id": structureID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocuments(t *testing.T) {
	env := newTestEnv(t)

	w := do(t, env.admin, http.MethodPut, "/documents/contract/c-1", map[string]any{
		"client_name":      "Ana & João",
		"client_email":     "ana@example.com",
		"event_date":       "2025-11-08",
		"event_time":       "16:00:00",
		"total_price":      8500,
		"down_payment":     2500,
		"client_signature": "data:image/png;base64,forged",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doc model.Document
	decode(t, w, &doc)
	assert.Len(t, doc.DocumentHash, 64)
	assert.Empty(t, doc.ClientSignature)

	w = do(t, env.admin, http.MethodGet, "/documents/contract/c-1/variables", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var vars templating.Variables
	decode(t, w, &vars)
	assert.Equal(t, "08/11/2025", vars[templating.TokenEventDate])
	assert.Equal(t, "R$ 6.000,00", vars[templating.TokenRemainingAmount])
	assert.Equal(t, doc.DocumentHash, vars[templating.TokenDocumentHash])

	w = do(t, env.admin, http.MethodPost, "/documents/contract/c-1/render", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "no stored template yet")

	w = do(t, env.admin, http.MethodPut, "/documents/contract/template", map[string]string{
		"content": "<p>{NOME_CLIENTE} em {DATA_EVENTO}</p><p>{CAMPO_NOVO}</p>",
		"css":     "body p { color: #333; }",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, env.admin, http.MethodPost, "/documents/contract/c-1/render", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rendered struct {
		HTML       string   `json:"html"`
		Unresolved []string `json:"unresolved"`
	}
	decode(t, w, &rendered)
	assert.Contains(t, rendered.HTML, "Ana & João em 08/11/2025")
	assert.Contains(t, rendered.HTML, ".document-content p")
	assert.Equal(t, []string{"{CAMPO_NOVO}"}, rendered.Unresolved)

	w = do(t, env.admin, http.MethodGet, "/documents/invoice/c-1/variables", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, env.admin, http.MethodGet, "/documents/proposal/c-1/variables", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignDocument(t *testing.T) {
	env := newTestEnv(t)
	env.app.TrustProxy = true
	h := Wire(env.app)

	w := do(t, env.admin, http.MethodPut, "/documents/proposal/p-1", map[string]any{"client_name": "Ana"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doc model.Document
	decode(t, w, &doc)
	require.NotEmpty(t, doc.SignToken)
	signURL := "/api/documents/sign/" + doc.SignToken

	sign := map[string]string{"signature": "data:image/png;base64,iVBORw0KGgo="}
	w = do(t, h, http.MethodPost, "/api/documents/sign/p-1", sign)
	assert.Equal(t, http.StatusNotFound, w.Code, "the document id is not a signing token")
	w = do(t, h, http.MethodPost, "/api/documents/proposal/p-1/sign", sign)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, signURL, sign,
		"user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/126.0 Safari/537.36",
		"x-forwarded-for", "203.0.113.7")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{notify.TypeDocumentSigned}, env.notifier.names())

	w = do(t, env.admin, http.MethodGet, "/documents/proposal/p-1/variables", nil)
	var vars templating.Variables
	decode(t, w, &vars)
	assert.Equal(t, "203.0.113.7", vars[templating.TokenSignerIP])
	assert.Equal(t, "Chrome em Windows", vars[templating.TokenSignerDevice])
	assert.Contains(t, vars[templating.TokenClientSignature], "<img")

	w = do(t, h, http.MethodPost, signURL, sign)
	assert.Equal(t, http.StatusConflict, w.Code, "signed only once")

	w = do(t, env.admin, http.MethodPut, "/documents/proposal/p-1", map[string]any{"client_name": "Outra"})
	assert.Equal(t, http.StatusLocked, w.Code)

	w = do(t, h, http.MethodPost, signURL, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignDocument_IgnoresForwardedFor(t *testing.T) {
	env := newTestEnv(t)

	w := do(t, env.admin, http.MethodPut, "/documents/contract/c-1", map[string]any{"client_name": "Ana"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doc model.Document
	decode(t, w, &doc)

	w = do(t, env.handler, http.MethodPost, "/api/documents/sign/"+doc.SignToken,
		map[string]string{"signature": "data:image/png;base64,iVBORw0KGgo="},
		"x-forwarded-for", "203.0.113.7")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, env.admin, http.MethodGet, "/documents/contract/c-1/variables", nil)
	var vars templating.Variables
	decode(t, w, &vars)
	assert.Equal(t, "192.0.2.1", vars[templating.TokenSignerIP], "forwarding headers need a trusted proxy")
}

func TestLoginAndAdminAuth(t *testing.T) {
	env := newTestEnv(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("segredo"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = env.app.Exec("INSERT INTO user (username, password_hash) VALUES (?, ?)", "admin", hash)
	require.NoError(t, err)

	w := do(t, env.handler, http.MethodGet, "/api/admin/structures", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.SetBasicAuth("admin", "segredo")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decode(t, w, &tokens)
	require.NotEmpty(t, tokens.AccessToken)

	w = do(t, env.handler, http.MethodGet, "/api/admin/structures", nil, "authorization", "Bearer "+tokens.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, env.handler, http.MethodPost, "/api/refresh", nil, "authorization", "Refresh "+tokens.RefreshToken)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, env.handler, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.SetBasicAuth("admin", "errado")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusOK, w.Code)
}
