package questionnaire

import (
	"context"
	"testing"
	"time"

	"github.com/mbolis/cerimonial/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_LocalEditsWin(t *testing.T) {
	s := NewSession(model.QuestionnaireResponse{ID: "r1", Status: model.StatusActive, Answers: model.Answers{"q1": "a"}})

	_, gen, err := s.Edit("q1", "local", now)
	require.NoError(t, err)
	assert.True(t, s.Dirty())

	applied := s.Reconcile(model.ResponseChanged{QuestionnaireID: "r1", Answers: model.Answers{"q1": "remote"}, SavedAt: now})
	assert.False(t, applied)
	assert.Equal(t, "local", s.Response().Answers["q1"])

	s.Saved(gen, model.StatusActive)
	assert.False(t, s.Dirty())

	applied = s.Reconcile(model.ResponseChanged{QuestionnaireID: "r1", Answers: model.Answers{"q1": "remote"}, SavedAt: now})
	assert.True(t, applied)
	assert.Equal(t, "remote", s.Response().Answers["q1"])
}

func TestSession_StaleAckKeepsDirty(t *testing.T) {
	s := NewSession(model.QuestionnaireResponse{ID: "r1", Status: model.StatusActive})

	_, first, err := s.Edit("q1", "a", now)
	require.NoError(t, err)
	_, second, err := s.Edit("q1", "b", now)
	require.NoError(t, err)

	s.Saved(first, "")
	assert.True(t, s.Dirty())
	s.Saved(second, "")
	assert.False(t, s.Dirty())
}

func TestSession_IgnoresOtherQuestionnaires(t *testing.T) {
	s := NewSession(model.QuestionnaireResponse{ID: "r1"})
	assert.False(t, s.Reconcile(model.ResponseChanged{QuestionnaireID: "r2", Answers: model.Answers{"q": "x"}}))
	assert.Empty(t, s.Response().Answers)
}

func TestSession_FinalizedIsLocked(t *testing.T) {
	s := NewSession(model.QuestionnaireResponse{ID: "r1", Status: model.StatusFinalized})
	_, _, err := s.Edit("q1", "a", now)
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestSession_Run(t *testing.T) {
	s := NewSession(model.QuestionnaireResponse{ID: "r1", Status: model.StatusActive})
	events := make(chan model.ResponseChanged)
	done := make(chan struct{})

	go func() {
		s.Run(context.Background(), events)
		close(done)
	}()

	events <- model.ResponseChanged{QuestionnaireID: "r1", Answers: model.Answers{"q1": "x"}, Status: model.StatusFinalized, SavedAt: now}
	close(events)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the feed closed")
	}

	r := s.Response()
	assert.Equal(t, "x", r.Answers["q1"])
	assert.Equal(t, model.StatusFinalized, r.Status)
	assert.False(t, CanEdit(r))
}
