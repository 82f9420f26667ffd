package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mbolis/cerimonial/model"
	"github.com/mbolis/cerimonial/questionnaire"
)

type StructureStore struct {
	db *sql.DB
}

func NewStructureStore(db *sql.DB) *StructureStore {
	return &StructureStore{db}
}

// LoadStructure returns the structure a questionnaire was issued with.
func (s *StructureStore) LoadStructure(ctx context.Context, questionnaireID string) (model.QuestionnaireStructure, error) {
	var structureID string
	err := s.db.QueryRowContext(ctx, `
		SELECT structure_id FROM questionnaire WHERE id = ?`,
		questionnaireID,
	).Scan(&structureID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.QuestionnaireStructure{}, ErrNotFound
	}
	if err != nil {
		return model.QuestionnaireStructure{}, err
	}
	return loadStructure(ctx, s.db, structureID, false)
}

func (s *StructureStore) LoadTemplateStructure(ctx context.Context, templateID string) (model.QuestionnaireStructure, error) {
	return loadStructure(ctx, s.db, templateID, true)
}

func (s *StructureStore) GetStructure(ctx context.Context, id string) (model.QuestionnaireStructure, error) {
	return loadStructure(ctx, s.db, id, false)
}

func (s *StructureStore) ListStructures(ctx context.Context, templatesOnly bool) ([]model.QuestionnaireStructure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, title, is_template
		FROM structure
		WHERE is_template = 1 OR ? = 0
		ORDER BY title`,
		templatesOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	structures := []model.QuestionnaireStructure{}
	for rows.Next() {
		st := model.QuestionnaireStructure{}
		err = rows.Scan(&st.ID, &st.Version, &st.Title, &st.IsTemplate)
		if err != nil {
			return nil, err
		}
		structures = append(structures, st)
	}
	return structures, rows.Err()
}

// SaveStructure validates st and stores it. A structure without ID is
// created; otherwise its sections and questions are replaced, guarded by
// an optimistic lock on Version.
func (s *StructureStore) SaveStructure(ctx context.Context, st model.QuestionnaireStructure) (model.QuestionnaireStructure, error) {
	if err := questionnaire.ValidateStructure(st); err != nil {
		return st, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return st, err
	}
	defer tx.Rollback()

	if st.ID == "" {
		st.ID = uuid.NewString()
		st.Version = 1
		_, err = tx.ExecContext(ctx, `
			INSERT INTO structure (id, version, title, is_template) VALUES (?, ?, ?, ?)`,
			st.ID, st.Version, st.Title, st.IsTemplate,
		)
		if err != nil {
			return st, fmt.Errorf("insert structure: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE structure
			SET
				title = ?,
				is_template = ?,
				version = version+1
			WHERE id = ?
				AND version = ?`,
			st.Title, st.IsTemplate, st.ID, st.Version,
		)
		if err != nil {
			return st, fmt.Errorf("update structure: %w", err)
		}
		// optimistic lock
		n, err := res.RowsAffected()
		if err != nil {
			return st, err
		}
		if n < 1 {
			return st, ErrConflict
		}
		st.Version++

		_, err = tx.ExecContext(ctx, `DELETE FROM question WHERE structure_id = ?`, st.ID)
		if err != nil {
			return st, fmt.Errorf("delete questions: %w", err)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM section WHERE structure_id = ?`, st.ID)
		if err != nil {
			return st, fmt.Errorf("delete sections: %w", err)
		}
	}

	for _, sec := range st.Sections {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO section (structure_id, id, title, description, ord, active)
			VALUES (?, ?, ?, ?, ?, ?)`,
			st.ID, sec.ID, sec.Title, sec.Description, sec.Order, sec.Active,
		)
		if err != nil {
			return st, fmt.Errorf("insert section %s: %w", sec.ID, err)
		}
	}
	for _, q := range st.Questions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO question (structure_id, id, section_id, text, answer_type, placeholder, required, ord, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			st.ID, q.ID, q.SectionID, q.Text, string(q.AnswerType), q.Placeholder, q.Required, q.Order, q.Active,
		)
		if err != nil {
			return st, fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}

	return st, tx.Commit()
}

// CloneTemplate copies a template structure into a new editable structure.
func (s *StructureStore) CloneTemplate(ctx context.Context, templateID string) (model.QuestionnaireStructure, error) {
	tpl, err := s.LoadTemplateStructure(ctx, templateID)
	if err != nil {
		return tpl, err
	}
	clone := questionnaire.CloneStructure(tpl, "")
	return s.SaveStructure(ctx, clone)
}

func loadStructure(ctx context.Context, q querier, id string, templateOnly bool) (model.QuestionnaireStructure, error) {
	st := model.QuestionnaireStructure{Sections: []model.Section{}, Questions: []model.Question{}}
	err := q.QueryRowContext(ctx, `
		SELECT id, version, title, is_template
		FROM structure
		WHERE id = ?`,
		id,
	).Scan(&st.ID, &st.Version, &st.Title, &st.IsTemplate)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && templateOnly && !st.IsTemplate) {
		return st, ErrNotFound
	}
	if err != nil {
		return st, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, title, description, ord, active
		FROM section
		WHERE structure_id = ?
		ORDER BY ord`,
		id,
	)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		sec := model.Section{}
		err = rows.Scan(&sec.ID, &sec.Title, &sec.Description, &sec.Order, &sec.Active)
		if err != nil {
			return st, err
		}
		st.Sections = append(st.Sections, sec)
	}
	if err = rows.Err(); err != nil {
		return st, err
	}

	qrows, err := q.QueryContext(ctx, `
		SELECT id, section_id, text, answer_type, placeholder, required, ord, active
		FROM question
		WHERE structure_id = ?
		ORDER BY section_id, ord`,
		id,
	)
	if err != nil {
		return st, err
	}
	defer qrows.Close()
	for qrows.Next() {
		qu := model.Question{}
		var answerType string
		err = qrows.Scan(&qu.ID, &qu.SectionID, &qu.Text, &answerType, &qu.Placeholder, &qu.Required, &qu.Order, &qu.Active)
		if err != nil {
			return st, err
		}
		qu.AnswerType = model.AnswerType(answerType)
		st.Questions = append(st.Questions, qu)
	}
	return st, qrows.Err()
}
