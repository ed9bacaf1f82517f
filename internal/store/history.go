package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) recordQuestionHistory(ctx context.Context, questionID, editorID string, changes []FieldChange) {
	for _, change := range changes {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO question_history (question_id, user_id, field_changed, old_value, new_value)
			VALUES ($1, $2, $3, $4, $5)
		`, questionID, editorID, change.Field, change.OldValue, change.NewValue)
		if err != nil {
			s.historyFailed(ctx, "question", err, "question_id", questionID, "field", change.Field)
		}
	}
}

func (s *PostgresStore) recordAnswerHistory(ctx context.Context, answerID, editorID, oldNote, newNote string) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO answer_history (answer_id, user_id, old_note, new_note)
		VALUES ($1, $2, $3, $4)
	`, answerID, editorID, oldNote, newNote)
	if err != nil {
		s.historyFailed(ctx, "answer", err, "answer_id", answerID)
	}
}

func (s *PostgresStore) historyFailed(ctx context.Context, kind string, err error, attrs ...any) {
	s.logger.ErrorContext(ctx, "history write failed", append([]any{"kind", kind, "error", err}, attrs...)...)
	if s.onHistoryFailure != nil {
		s.onHistoryFailure(kind)
	}
}

// ListQuestionHistory returns edits newest first with the editor's current name.
func (s *PostgresStore) ListQuestionHistory(ctx context.Context, questionID string) ([]QuestionHistory, error) {
	items := []QuestionHistory{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT h.id, h.question_id, h.user_id, COALESCE(u.name, '') AS user_name,
			h.field_changed, h.old_value, h.new_value, h.created_at
		FROM question_history h
		LEFT JOIN users u ON u.id = h.user_id
		WHERE h.question_id = $1
		ORDER BY h.created_at DESC, h.id DESC
	`, questionID)
	if isInvalidInput(err) {
		return []QuestionHistory{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list question history: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAnswerHistory(ctx context.Context, answerID string) ([]AnswerHistory, error) {
	items := []AnswerHistory{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT h.id, h.answer_id, h.user_id, COALESCE(u.name, '') AS user_name,
			h.old_note, h.new_note, h.created_at
		FROM answer_history h
		LEFT JOIN users u ON u.id = h.user_id
		WHERE h.answer_id = $1
		ORDER BY h.created_at DESC, h.id DESC
	`, answerID)
	if isInvalidInput(err) {
		return []AnswerHistory{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list answer history: %w", err)
	}
	return items, nil
}
