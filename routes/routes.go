package routes

import (
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/mbolis/cerimonial/app"
	"github.com/mbolis/cerimonial/log"
	"github.com/mbolis/cerimonial/routes/middlewares"
	"github.com/rs/cors"
)

var validate = validator.New()

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID)
	if app.TrustProxy {
		root.Use(middleware.RealIP)
	}
	root.Use(
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.Logger, NoColor: true}),
		middleware.Recoverer,
		cors.New(cors.Options{
			AllowedOrigins:   app.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut},
			AllowedHeaders:   []string{"Authorization", "Content-Type", editorHeader},
			AllowCredentials: false,
		}).Handler,
	)

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	burst := int(math.Ceil(app.AutosaveRate))
	throttle := middlewares.Throttle(app.AutosaveRate, max(burst, 1), middlewares.URLParam("token"))

	api.Route("/questionnaires/{token}", func(r chi.Router) {
		r.Get("/", PublicGetQuestionnaire(app))
		r.With(throttle).Put("/answers", PublicSaveAnswers(app))
		r.Post("/finalize", PublicFinalize(app))
		r.Get("/events", PublicEvents(app))
	})
	api.Post("/documents/sign/{token}", PublicSignDocument(app))

	api.With(middlewares.Admin(app.TokenSecret)).Mount("/admin", adminRouter(app))

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}

func adminRouter(app app.App) chi.Router {
	r := chi.NewRouter()

	// structures
	r.Post("/structures", CreateStructure(app))
	r.Get("/structures", ListStructures(app))
	r.Get("/structures/{id}", GetStructureById(app))
	r.Put("/structures/{id}", UpdateStructure(app))
	r.Post("/structures/{id}/clone", CloneStructure(app))

	// questionnaires
	r.Post("/questionnaires", CreateQuestionnaire(app))
	r.Get("/questionnaires/{id}", GetQuestionnaireById(app))
	r.Post("/questionnaires/{id}/archive", ArchiveQuestionnaire(app))

	// documents
	r.Put("/documents/{kind}/template", SaveDocumentTemplate(app))
	r.Put("/documents/{kind}/{id}", SaveDocument(app))
	r.Get("/documents/{kind}/{id}/variables", GetDocumentVariables(app))
	r.Post("/documents/{kind}/{id}/render", RenderDocument(app))

	return r
}
