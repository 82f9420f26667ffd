package app

import (
	"context"
	"database/sql"

	"github.com/go-chi/oauth"
	"github.com/mbolis/cerimonial/config"
	"github.com/mbolis/cerimonial/database"
	"github.com/mbolis/cerimonial/model"
	"github.com/mbolis/cerimonial/notify"
	"github.com/mbolis/cerimonial/templating"
)

// ChangeFeed publishes saved responses to other instances and lets a
// client follow one questionnaire.
type ChangeFeed interface {
	Publish(ctx context.Context, ev model.ResponseChanged) error
	Subscribe(ctx context.Context, questionnaireID string) <-chan model.ResponseChanged
}

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config

	Structures *database.StructureStore
	Responses  *database.ResponseStore
	Documents  *database.DocumentStore
	Signatures database.SignatureResolver
	Engine     *templating.Engine
	Notifier   notify.Dispatcher
	// Feed is nil when Redis is not configured.
	Feed ChangeFeed
}

// New builds the stores and the document engine around an open database.
func New(db *sql.DB, bearer *oauth.BearerServer, cfg config.Config, locale templating.Locale) App {
	return App{
		DB:           db,
		BearerServer: bearer,
		Config:       cfg,
		Structures:   database.NewStructureStore(db),
		Responses:    database.NewResponseStore(db, cfg.Locale.FinalizeThreshold),
		Documents:    database.NewDocumentStore(db),
		Signatures:   database.SignatureResolver{CompanyURL: cfg.CompanySignatureURL},
		Engine:       templating.New(locale),
		Notifier:     notify.LogDispatcher{},
	}
}
