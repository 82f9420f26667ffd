package questionnaire

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mbolis/cerimonial/model"
)

// SetAnswer returns a copy of answers with questionID set to value.
// The input map is never modified. Empty values are kept, they clear the
// answer for progress purposes. Question IDs are not checked against any
// structure.
func SetAnswer(answers model.Answers, questionID, value string) model.Answers {
	next := make(model.Answers, len(answers)+1)
	maps.Copy(next, answers)
	next[questionID] = value
	return next
}

// MergeAnswers applies a batch of edits in order, last write wins.
func MergeAnswers(answers model.Answers, edits []AnswerEdit) model.Answers {
	next := maps.Clone(answers)
	if next == nil {
		next = model.Answers{}
	}
	for _, e := range edits {
		next[e.QuestionID] = e.Value
	}
	return next
}

type AnswerEdit struct {
	QuestionID string `json:"question_id" validate:"required"`
	Value      string `json:"value"`
}

// ValidateAnswer checks a value against the rules of its answer type.
// Blank values are always accepted.
func ValidateAnswer(q model.Question, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	switch q.AnswerType {
	case model.AnswerShortText, model.AnswerLongText:
		return nil
	case model.AnswerNumber:
		if _, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64); err != nil {
			return fmt.Errorf("question %s: %q is not a number", q.ID, value)
		}
	case model.AnswerDate:
		if _, err := time.Parse(time.DateOnly, value); err != nil {
			return fmt.Errorf("question %s: %q is not a date", q.ID, value)
		}
	case model.AnswerEmail:
		if err := validate.Var(value, "email"); err != nil {
			return fmt.Errorf("question %s: %q is not an email address", q.ID, value)
		}
	case model.AnswerPhone:
		digits := 0
		for _, r := range value {
			switch {
			case unicode.IsDigit(r):
				digits++
			case strings.ContainsRune("+()- .", r):
			default:
				return fmt.Errorf("question %s: %q is not a phone number", q.ID, value)
			}
		}
		if digits < 10 || digits > 13 {
			return fmt.Errorf("question %s: %q is not a phone number", q.ID, value)
		}
	default:
		return fmt.Errorf("question %s: unknown answer type %q", q.ID, q.AnswerType)
	}
	return nil
}

// ValidateAnswers checks every edit that targets a known question. Edits for
// unknown questions are left alone.
func ValidateAnswers(s model.QuestionnaireStructure, edits []AnswerEdit) error {
	byID := make(map[string]model.Question, len(s.Questions))
	for _, q := range s.Questions {
		byID[q.ID] = q
	}

	verr := &ValidationError{Subject: "answers"}
	for _, e := range edits {
		if err := validate.Struct(e); err != nil {
			verr.add("answer without question_id")
			continue
		}
		q, ok := byID[e.QuestionID]
		if !ok {
			continue
		}
		if err := ValidateAnswer(q, e.Value); err != nil {
			verr.add(err.Error())
		}
	}
	return verr.orNil()
}
