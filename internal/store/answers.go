package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"advisory/api/internal/advisory"
)

const answerColumns = `id, question_id, user_id, no_registrasi, technical_advisory_note, tanggal_jawaban, created_at, updated_at`

// CreateAnswer answers a question in one transaction: the question row is
// locked, its status flips only if still unanswered, a registration number is
// allocated from the per category and year counter, and the answer is inserted.
func (s *PostgresStore) CreateAnswer(ctx context.Context, in NewAnswer) (Answer, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Answer{}, fmt.Errorf("begin answer: %w", err)
	}
	defer rollback(tx)

	var current struct {
		Status        string `db:"status"`
		JenisAdvisory string `db:"jenis_advisory"`
	}
	err = tx.GetContext(ctx, &current, `
		SELECT status, array_to_string(jenis_advisory, ',') AS jenis_advisory
		FROM questions WHERE id=$1 FOR UPDATE`, in.QuestionID)
	if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
		return Answer{}, ErrNotFound
	}
	if err != nil {
		return Answer{}, fmt.Errorf("lock question: %w", err)
	}
	if advisory.Status(current.Status) != advisory.StatusUnanswered {
		return Answer{}, ErrAlreadyAnswered
	}
	if !advisory.ContainsCategory(advisory.SplitCategories(current.JenisAdvisory), in.Category) {
		return Answer{}, ErrCategoryMismatch
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE questions SET status=$2, updated_at=NOW()
		WHERE id=$1 AND status=$3`,
		in.QuestionID, string(advisory.StatusAnswered), string(advisory.StatusUnanswered))
	if err != nil {
		return Answer{}, fmt.Errorf("mark question answered: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return Answer{}, fmt.Errorf("mark question answered rows: %w", err)
	} else if affected == 0 {
		return Answer{}, ErrAlreadyAnswered
	}

	seq, err := nextSequence(ctx, tx, in.Category, in.Year)
	if err != nil {
		return Answer{}, err
	}
	number := advisory.RegistrationNumber{Seq: seq, Category: in.Category, Year: in.Year}

	var answer Answer
	err = tx.GetContext(ctx, &answer, `
		INSERT INTO answers (question_id, user_id, no_registrasi, technical_advisory_note)
		VALUES ($1, $2, $3, $4)
		RETURNING `+answerColumns, in.QuestionID, in.AnswererID, number.String(), in.Note)
	if isUniqueViolationOn(err, "answers_question_id_key") {
		return Answer{}, ErrAlreadyAnswered
	}
	if err != nil {
		return Answer{}, fmt.Errorf("insert answer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Answer{}, fmt.Errorf("commit answer: %w", err)
	}
	return answer, nil
}

func (s *PostgresStore) GetAnswer(ctx context.Context, answerID string) (Answer, error) {
	var answer Answer
	err := s.db.GetContext(ctx, &answer, `SELECT `+answerColumns+` FROM answers WHERE id=$1`, answerID)
	if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
		return Answer{}, ErrNotFound
	}
	if err != nil {
		return Answer{}, fmt.Errorf("get answer: %w", err)
	}
	return answer, nil
}

// UpdateAnswerNote replaces the technical advisory note. A history row is
// written only when the text actually changed.
func (s *PostgresStore) UpdateAnswerNote(ctx context.Context, answerID, editorID, note string) (Answer, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Answer{}, fmt.Errorf("begin update answer: %w", err)
	}
	defer rollback(tx)

	var oldNote string
	err = tx.GetContext(ctx, &oldNote, `SELECT technical_advisory_note FROM answers WHERE id=$1 FOR UPDATE`, answerID)
	if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
		return Answer{}, ErrNotFound
	}
	if err != nil {
		return Answer{}, fmt.Errorf("load answer for update: %w", err)
	}

	var answer Answer
	err = tx.GetContext(ctx, &answer, `
		UPDATE answers SET technical_advisory_note=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING `+answerColumns, answerID, note)
	if err != nil {
		return Answer{}, fmt.Errorf("update answer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Answer{}, fmt.Errorf("commit update answer: %w", err)
	}

	if oldNote != note {
		s.recordAnswerHistory(ctx, answerID, editorID, oldNote, note)
	}
	return answer, nil
}
