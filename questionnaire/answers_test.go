package questionnaire

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mbolis/cerimonial/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAnswer(t *testing.T) {
	in := model.Answers{"q1": "a"}

	out := SetAnswer(in, "q2", "b")
	assert.Equal(t, model.Answers{"q1": "a", "q2": "b"}, out)
	assert.Equal(t, model.Answers{"q1": "a"}, in, "input must not change")

	cleared := SetAnswer(out, "q1", "")
	v, ok := cleared["q1"]
	assert.True(t, ok)
	assert.Empty(t, v)

	assert.Equal(t, model.Answers{"anything": "x"}, SetAnswer(nil, "anything", "x"))
}

func TestMergeAnswers(t *testing.T) {
	got := MergeAnswers(model.Answers{"q1": "a"}, []AnswerEdit{
		{QuestionID: "q1", Value: "b"},
		{QuestionID: "q2", Value: "c"},
		{QuestionID: "q1", Value: "d"},
	})
	assert.Equal(t, model.Answers{"q1": "d", "q2": "c"}, got)
}

func TestAnswerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("SetAnswer is idempotent", prop.ForAll(
		func(a map[string]string, q, v string) bool {
			once := SetAnswer(a, q, v)
			twice := SetAnswer(once, q, v)
			if len(once) != len(twice) {
				return false
			}
			for k, val := range once {
				if twice[k] != val {
					return false
				}
			}
			return true
		},
		gen.MapOf(gen.AlphaString(), gen.AlphaString()),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("last write wins", prop.ForAll(
		func(a map[string]string, q, v1, v2 string) bool {
			return SetAnswer(SetAnswer(a, q, v1), q, v2)[q] == v2
		},
		gen.MapOf(gen.AlphaString(), gen.AlphaString()),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("answered never exceeds total", prop.ForAll(
		func(active []bool, answered []string) bool {
			s := model.QuestionnaireStructure{
				Sections: []model.Section{{ID: "on", Active: true}, {ID: "off", Active: false}},
			}
			answers := model.Answers{}
			for i, on := range active {
				id := string(rune('a'+i%26)) + string(rune('0'+i/26%10))
				section := "on"
				if i%3 == 0 {
					section = "off"
				}
				s.Questions = append(s.Questions, model.Question{ID: id, SectionID: section, Active: on})
				if i < len(answered) {
					answers[id] = answered[i]
				}
			}
			p := ComputeProgress(s, answers)
			return p.AnsweredCount <= p.TotalCount && p.Percent >= 0 && p.Percent <= 100
		},
		gen.SliceOf(gen.Bool()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestValidateAnswer(t *testing.T) {
	q := func(typ model.AnswerType) model.Question {
		return model.Question{ID: "q", AnswerType: typ}
	}

	cases := []struct {
		typ   model.AnswerType
		value string
		ok    bool
	}{
		{model.AnswerShortText, "qualquer coisa", true},
		{model.AnswerLongText, "linha 1\nlinha 2", true},
		{model.AnswerNumber, "150", true},
		{model.AnswerNumber, "12,5", true},
		{model.AnswerNumber, "doze", false},
		{model.AnswerDate, "2025-09-20", true},
		{model.AnswerDate, "20/09/2025", false},
		{model.AnswerEmail, "noivos@exemplo.com.br", true},
		{model.AnswerEmail, "noivos@", false},
		{model.AnswerPhone, "+55 (11) 98765-4321", true},
		{model.AnswerPhone, "123", false},
		{model.AnswerPhone, "11 9876x4321", false},
		{model.AnswerDate, "   ", true},
		{model.AnswerType("color"), "red", false},
	}
	for _, c := range cases {
		err := ValidateAnswer(q(c.typ), c.value)
		if c.ok {
			assert.NoError(t, err, "%s %q", c.typ, c.value)
		} else {
			assert.Error(t, err, "%s %q", c.typ, c.value)
		}
	}
}

func TestValidateAnswers(t *testing.T) {
	s := weddingStructure()

	assert.NoError(t, ValidateAnswers(s, []AnswerEdit{
		{QuestionID: "q2", Value: "2025-01-01"},
		{QuestionID: "unknown", Value: "anything"},
	}))

	err := ValidateAnswers(s, []AnswerEdit{
		{QuestionID: "q2", Value: "ontem"},
		{QuestionID: "", Value: "x"},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
	assert.True(t, strings.HasPrefix(err.Error(), "questionnaire: invalid answers: "), err.Error())
	assert.NotContains(t, err.Error(), "structure")
}
