package questionnaire

import "github.com/mbolis/cerimonial/model"

// Summary is the view state handed to the questionnaire editor.
type Summary struct {
	Progress    Progress          `json:"progress"`
	Sections    []SectionProgress `json:"sections"`
	CanEdit     bool              `json:"can_edit"`
	CanFinalize bool              `json:"can_finalize"`
	Threshold   float64           `json:"threshold"`
}

func Summarize(s model.QuestionnaireStructure, r model.QuestionnaireResponse, threshold float64) Summary {
	p := ComputeProgress(s, r.Answers)

	sum := Summary{
		Progress:  p,
		Sections:  []SectionProgress{},
		CanEdit:   CanEdit(r) && r.Status != model.StatusArchived,
		Threshold: threshold,
	}
	sum.CanFinalize = sum.CanEdit && CanFinalize(p.Percent, threshold)

	for _, sec := range ActiveSections(s) {
		sum.Sections = append(sum.Sections, ComputeSectionProgress(s, sec, r.Answers))
	}
	return sum
}
