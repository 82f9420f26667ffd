package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/cerimonial/database"
	"github.com/mbolis/cerimonial/log"
	"github.com/mbolis/cerimonial/questionnaire"
)

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %s", code, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Will log a debug message, and send an HTTP response with status 404 and default text
func LogNotFound(w http.ResponseWriter, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}

// Will log an error code and message at the given level,
// and send an HTTP response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	http.Error(w, errMsg, status)
}

// ErrorBody is the JSON shape of every domain error response.
type ErrorBody struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// StatusOf maps a domain error to the HTTP status that reports it.
func StatusOf(err error) int {
	var verr *questionnaire.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, questionnaire.ErrFinalized),
		errors.Is(err, database.ErrSigned):
		return http.StatusLocked
	case errors.Is(err, questionnaire.ErrPreconditionFailed),
		errors.Is(err, questionnaire.ErrInvalidTransition),
		errors.Is(err, database.ErrConflict),
		errors.Is(err, database.ErrAlreadySigned):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// LogError answers with the status StatusOf picks. Unexpected errors are
// logged as internal and never leak their text.
func LogError(w http.ResponseWriter, r *http.Request, code string, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		LogInternalError(w, code, err)
		return
	}

	log.Debugf("%s: %s", code, err)
	body := ErrorBody{Error: err.Error()}
	var verr *questionnaire.ValidationError
	if errors.As(err, &verr) {
		body.Problems = verr.Problems
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}
