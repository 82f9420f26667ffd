package questionnaire

import (
	"fmt"
	"maps"
	"time"

	"github.com/mbolis/cerimonial/model"
)

const DefaultFinalizeThreshold = 80.0

// CanEdit reports whether the respondent may still change answers.
func CanEdit(r model.QuestionnaireResponse) bool {
	return r.Status != model.StatusFinalized
}

func CanFinalize(progressPercent, thresholdPercent float64) bool {
	return progressPercent >= thresholdPercent
}

// Activate moves a draft to active on its first save. Active responses are
// returned unchanged.
func Activate(r model.QuestionnaireResponse) (model.QuestionnaireResponse, error) {
	switch r.Status {
	case model.StatusDraft, "":
		r = cloneResponse(r)
		r.Status = model.StatusActive
		return r, nil
	case model.StatusActive:
		return r, nil
	default:
		return r, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, model.StatusActive)
	}
}

// Apply records a single respondent edit: it refuses locked responses,
// activates drafts and stamps LastSavedAt.
func Apply(r model.QuestionnaireResponse, questionID, value string, now time.Time) (model.QuestionnaireResponse, error) {
	return ApplyAll(r, []AnswerEdit{{QuestionID: questionID, Value: value}}, now)
}

func ApplyAll(r model.QuestionnaireResponse, edits []AnswerEdit, now time.Time) (model.QuestionnaireResponse, error) {
	if !CanEdit(r) || r.Status == model.StatusArchived {
		return r, ErrFinalized
	}
	r, err := Activate(r)
	if err != nil {
		return r, err
	}
	r.Answers = MergeAnswers(r.Answers, edits)
	r.LastSavedAt = &now
	return r, nil
}

// Finalize freezes the response. It is the only place a response becomes
// finalized, and only when the completion computed from the current answers
// reaches threshold.
func Finalize(r model.QuestionnaireResponse, s model.QuestionnaireStructure, threshold float64, now time.Time) (model.QuestionnaireResponse, error) {
	if r.Status != model.StatusActive {
		return r, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, model.StatusFinalized)
	}

	p := ComputeProgress(s, r.Answers)
	if !CanFinalize(p.Percent, threshold) {
		return r, fmt.Errorf("%w: %.1f%% answered, %.1f%% required", ErrPreconditionFailed, p.Percent, threshold)
	}

	r = cloneResponse(r)
	r.Status = model.StatusFinalized
	r.FinalizedAt = &now
	r.LastSavedAt = &now
	return r, nil
}

// Archive is an administrator action on finalized responses.
func Archive(r model.QuestionnaireResponse, now time.Time) (model.QuestionnaireResponse, error) {
	if r.Status != model.StatusFinalized {
		return r, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, model.StatusArchived)
	}
	r = cloneResponse(r)
	r.Status = model.StatusArchived
	r.ArchivedAt = &now
	return r, nil
}

func cloneResponse(r model.QuestionnaireResponse) model.QuestionnaireResponse {
	r.Answers = maps.Clone(r.Answers)
	return r
}
