package questionnaire

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mbolis/cerimonial/model"
)

var validate = validator.New()

// ValidateStructure checks an authored structure: required fields, known
// answer types, section references and order uniqueness.
func ValidateStructure(s model.QuestionnaireStructure) error {
	verr := &ValidationError{}

	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verr.add(fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
		}
	}

	sections := make(map[string]bool, len(s.Sections))
	sectionOrders := make(map[int]string, len(s.Sections))
	for _, sec := range s.Sections {
		if sections[sec.ID] {
			verr.add(fmt.Sprintf("duplicate section id %q", sec.ID))
		}
		sections[sec.ID] = true

		if other, ok := sectionOrders[sec.Order]; ok {
			verr.add(fmt.Sprintf("sections %q and %q share order %d", other, sec.ID, sec.Order))
		}
		sectionOrders[sec.Order] = sec.ID
	}

	questions := make(map[string]bool, len(s.Questions))
	questionOrders := make(map[string]map[int]string)
	for _, q := range s.Questions {
		if questions[q.ID] {
			verr.add(fmt.Sprintf("duplicate question id %q", q.ID))
		}
		questions[q.ID] = true

		if !sections[q.SectionID] {
			verr.add(fmt.Sprintf("question %q references missing section %q", q.ID, q.SectionID))
			continue
		}

		orders := questionOrders[q.SectionID]
		if orders == nil {
			orders = make(map[int]string)
			questionOrders[q.SectionID] = orders
		}
		if other, ok := orders[q.Order]; ok {
			verr.add(fmt.Sprintf("questions %q and %q share order %d in section %q", other, q.ID, q.Order, q.SectionID))
		}
		orders[q.Order] = q.ID
	}

	return verr.orNil()
}

// ActiveSections returns the active sections sorted by order.
func ActiveSections(s model.QuestionnaireStructure) []model.Section {
	var out []model.Section
	for _, sec := range s.Sections {
		if sec.Active {
			out = append(out, sec)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Section) int { return a.Order - b.Order })
	return out
}

// SectionQuestions returns the active questions of a section sorted by order.
func SectionQuestions(s model.QuestionnaireStructure, sectionID string) []model.Question {
	var out []model.Question
	for _, q := range s.Questions {
		if q.Active && q.SectionID == sectionID {
			out = append(out, q)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Question) int { return a.Order - b.Order })
	return out
}

// CloneStructure copies a template into a new, non-template structure with
// fresh section and question IDs.
func CloneStructure(tpl model.QuestionnaireStructure, newID string) model.QuestionnaireStructure {
	out := model.QuestionnaireStructure{
		ID:        newID,
		Title:     tpl.Title,
		Sections:  make([]model.Section, len(tpl.Sections)),
		Questions: make([]model.Question, len(tpl.Questions)),
	}

	ids := make(map[string]string, len(tpl.Sections))
	for i, sec := range tpl.Sections {
		ids[sec.ID] = uuid.NewString()
		sec.ID = ids[sec.ID]
		out.Sections[i] = sec
	}
	for i, q := range tpl.Questions {
		q.ID = uuid.NewString()
		if id, ok := ids[q.SectionID]; ok {
			q.SectionID = id
		}
		out.Questions[i] = q
	}
	return out
}
