package questionnaire

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/mbolis/cerimonial/model"
)

// Session holds the answers of one questionnaire while it is being edited.
// Local edits win: remote snapshots are only taken while no local edit is
// waiting to be persisted.
type Session struct {
	mu       sync.Mutex
	response model.QuestionnaireResponse
	gen      uint64
	savedGen uint64
}

func NewSession(r model.QuestionnaireResponse) *Session {
	r.Answers = maps.Clone(r.Answers)
	if r.Answers == nil {
		r.Answers = model.Answers{}
	}
	return &Session{response: r}
}

// Edit applies a local change and returns the snapshot to persist together
// with its generation, to be passed back to Saved.
func (s *Session) Edit(questionID, value string, now time.Time) (model.QuestionnaireResponse, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Apply(s.response, questionID, value, now)
	if err != nil {
		return s.response, s.gen, err
	}
	s.response = next
	s.gen++
	return cloneResponse(s.response), s.gen, nil
}

// Saved acknowledges that the snapshot of generation gen was persisted with
// the given status. Older acknowledgements do not clear newer edits.
func (s *Session) Saved(gen uint64, status model.ResponseStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen > s.savedGen {
		s.savedGen = gen
	}
	if status != "" {
		s.response.Status = status
	}
}

func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savedGen < s.gen
}

// Reconcile takes a remote snapshot if it belongs to this questionnaire and
// nothing local is in flight. It reports whether the snapshot was applied.
func (s *Session) Reconcile(ev model.ResponseChanged) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.QuestionnaireID != s.response.ID || s.savedGen < s.gen {
		return false
	}
	s.response.Answers = maps.Clone(ev.Answers)
	if s.response.Answers == nil {
		s.response.Answers = model.Answers{}
	}
	if ev.Status != "" {
		s.response.Status = ev.Status
	}
	saved := ev.SavedAt
	s.response.LastSavedAt = &saved
	return true
}

func (s *Session) Response() model.QuestionnaireResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneResponse(s.response)
}

// Run reconciles events until ctx is done or the channel closes. A closed
// channel only means no more live updates; the session stays usable.
func (s *Session) Run(ctx context.Context, events <-chan model.ResponseChanged) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Reconcile(ev)
		}
	}
}
