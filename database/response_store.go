package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbolis/cerimonial/model"
	"github.com/mbolis/cerimonial/questionnaire"
)

const (
	MsgSaved     = "Respostas salvas com sucesso"
	MsgFinalized = "Questionário finalizado com sucesso"
)

// SaveResult tells the caller which status the response ended up in, so a
// finalize request that fell short can be told apart from one that worked.
type SaveResult struct {
	Status  model.ResponseStatus `json:"status"`
	Message string               `json:"message"`
}

type ResponseStore struct {
	db        *sql.DB
	threshold float64
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewResponseStore(db *sql.DB, threshold float64) *ResponseStore {
	return &ResponseStore{
		db:        db,
		threshold: threshold,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lock serialises writes per questionnaire so they apply in arrival order.
func (s *ResponseStore) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// CreateResponse issues a new questionnaire link for a structure.
func (s *ResponseStore) CreateResponse(ctx context.Context, structureID, clientName string) (model.QuestionnaireResponse, error) {
	r := model.QuestionnaireResponse{
		ID:          uuid.NewString(),
		StructureID: structureID,
		Token:       uuid.NewString(),
		ClientName:  clientName,
		Answers:     model.Answers{},
		Status:      model.StatusDraft,
		CreatedAt:   s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO questionnaire (id, structure_id, token, client_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.StructureID, r.Token, r.ClientName, string(r.Status), r.CreatedAt,
	)
	return r, err
}

func (s *ResponseStore) LoadResponse(ctx context.Context, id string) (model.QuestionnaireResponse, error) {
	return loadResponse(ctx, s.db, "id", id)
}

func (s *ResponseStore) LoadResponseByToken(ctx context.Context, token string) (model.QuestionnaireResponse, error) {
	return loadResponse(ctx, s.db, "token", token)
}

// SaveResponse persists answers and, when finalize is set, tries to
// finalize. Answers are committed even if finalization is refused; in that
// case the returned error wraps questionnaire.ErrPreconditionFailed.
func (s *ResponseStore) SaveResponse(ctx context.Context, id string, answers model.Answers, finalize bool) (SaveResult, error) {
	defer s.lock(id)()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, err
	}
	defer tx.Rollback()

	r, err := loadResponse(ctx, tx, "id", id)
	if err != nil {
		return SaveResult{}, err
	}

	now := s.now().UTC()
	edits := sortedEdits(answers)
	next, err := questionnaire.ApplyAll(r, edits, now)
	if err != nil {
		return SaveResult{Status: r.Status}, err
	}

	for _, e := range edits {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO answer (questionnaire_id, question_id, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (questionnaire_id, question_id)
			DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			id, e.QuestionID, e.Value, now,
		)
		if err != nil {
			return SaveResult{}, fmt.Errorf("upsert answer %s: %w", e.QuestionID, err)
		}
	}

	var finalizeErr error
	if finalize {
		st, err := loadStructure(ctx, tx, next.StructureID, false)
		if err != nil {
			return SaveResult{}, err
		}
		finalized, err := questionnaire.Finalize(next, st, s.threshold, now)
		if err == nil {
			next = finalized
		} else if errors.Is(err, questionnaire.ErrPreconditionFailed) {
			finalizeErr = err
		} else {
			return SaveResult{}, err
		}
	}

	err = updateStatus(ctx, tx, next)
	if err != nil {
		return SaveResult{}, err
	}
	if err = tx.Commit(); err != nil {
		return SaveResult{}, err
	}

	res := SaveResult{Status: next.Status, Message: MsgSaved}
	if next.Status == model.StatusFinalized {
		res.Message = MsgFinalized
	}
	return res, finalizeErr
}

// ArchiveResponse is the administrator's finalized -> archived transition.
func (s *ResponseStore) ArchiveResponse(ctx context.Context, id string) (model.QuestionnaireResponse, error) {
	defer s.lock(id)()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.QuestionnaireResponse{}, err
	}
	defer tx.Rollback()

	r, err := loadResponse(ctx, tx, "id", id)
	if err != nil {
		return r, err
	}
	r, err = questionnaire.Archive(r, s.now().UTC())
	if err != nil {
		return r, err
	}
	if err = updateStatus(ctx, tx, r); err != nil {
		return r, err
	}
	return r, tx.Commit()
}

func sortedEdits(answers model.Answers) []questionnaire.AnswerEdit {
	edits := make([]questionnaire.AnswerEdit, 0, len(answers))
	for qid, value := range answers {
		edits = append(edits, questionnaire.AnswerEdit{QuestionID: qid, Value: value})
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].QuestionID < edits[j].QuestionID })
	return edits
}

func updateStatus(ctx context.Context, q querier, r model.QuestionnaireResponse) error {
	_, err := q.ExecContext(ctx, `
		UPDATE questionnaire
		SET
			status = ?,
			last_saved_at = ?,
			finalized_at = ?,
			archived_at = ?
		WHERE id = ?`,
		string(r.Status),
		nullTime(r.LastSavedAt),
		nullTime(r.FinalizedAt),
		nullTime(r.ArchivedAt),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update questionnaire status: %w", err)
	}
	return nil
}

func loadResponse(ctx context.Context, q querier, column, value string) (model.QuestionnaireResponse, error) {
	r := model.QuestionnaireResponse{Answers: model.Answers{}}
	var (
		status                         string
		lastSaved, finalized, archived sql.NullTime
	)
	// column is one of two constants, never user input
	err := q.QueryRowContext(ctx, `
		SELECT id, structure_id, token, client_name, status, last_saved_at, finalized_at, archived_at, created_at
		FROM questionnaire
		WHERE `+column+` = ?`,
		value,
	).Scan(&r.ID, &r.StructureID, &r.Token, &r.ClientName, &status, &lastSaved, &finalized, &archived, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	r.Status = model.ResponseStatus(status)
	r.LastSavedAt = timePtr(lastSaved)
	r.FinalizedAt = timePtr(finalized)
	r.ArchivedAt = timePtr(archived)

	rows, err := q.QueryContext(ctx, `
		SELECT question_id, value FROM answer WHERE questionnaire_id = ?`,
		r.ID,
	)
	if err != nil {
		return r, err
	}
	defer rows.Close()
	for rows.Next() {
		var qid, v string
		if err = rows.Scan(&qid, &v); err != nil {
			return r, err
		}
		r.Answers[qid] = v
	}
	return r, rows.Err()
}
