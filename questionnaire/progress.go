package questionnaire

import (
	"strings"

	"github.com/mbolis/cerimonial/model"
)

type Progress struct {
	AnsweredCount int     `json:"answered_count"`
	TotalCount    int     `json:"total_count"`
	Percent       float64 `json:"percent"`
}

type SectionProgress struct {
	SectionID string `json:"section_id"`
	Answered  int    `json:"answered"`
	Total     int    `json:"total"`
}

// ComputeProgress counts the active questions of the active sections and how
// many of them carry a non-blank answer. Percent is not rounded.
func ComputeProgress(s model.QuestionnaireStructure, answers model.Answers) Progress {
	active := make(map[string]bool, len(s.Sections))
	for _, sec := range s.Sections {
		if sec.Active {
			active[sec.ID] = true
		}
	}

	var p Progress
	for _, q := range s.Questions {
		if !q.Active || !active[q.SectionID] {
			continue
		}
		p.TotalCount++
		if isAnswered(answers, q.ID) {
			p.AnsweredCount++
		}
	}
	p.Percent = percent(p.AnsweredCount, p.TotalCount)
	return p
}

// ComputeSectionProgress applies the same counting rule to the questions of
// one section.
func ComputeSectionProgress(s model.QuestionnaireStructure, section model.Section, answers model.Answers) SectionProgress {
	sp := SectionProgress{SectionID: section.ID}
	for _, q := range s.Questions {
		if !q.Active || q.SectionID != section.ID {
			continue
		}
		sp.Total++
		if isAnswered(answers, q.ID) {
			sp.Answered++
		}
	}
	return sp
}

func isAnswered(answers model.Answers, questionID string) bool {
	return len(strings.TrimSpace(answers[questionID])) > 0
}

func percent(answered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(answered) / float64(total) * 100
}
