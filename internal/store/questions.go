package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"advisory/api/internal/advisory"
)

const questionColumns = `id, user_id, divisi_instansi, nama_pemohon, unit_bisnis, tanggal_permohonan,
	data_informasi, advisory_diinginkan, array_to_string(jenis_advisory, ',') AS jenis_advisory,
	status, created_at, updated_at`

const questionAnswerSelect = `
	SELECT q.id, q.user_id, q.divisi_instansi, q.nama_pemohon, q.unit_bisnis, q.tanggal_permohonan,
		q.data_informasi, q.advisory_diinginkan, array_to_string(q.jenis_advisory, ',') AS jenis_advisory,
		q.status, q.created_at, q.updated_at,
		a.id AS answer_id, a.user_id AS answerer_id, a.no_registrasi, a.tanggal_jawaban,
		a.technical_advisory_note, a.created_at AS answer_created_at, a.updated_at AS answer_updated_at,
		u.name AS answerer_name
	FROM questions q
	LEFT JOIN answers a ON a.question_id = q.id
	LEFT JOIN users u ON u.id = a.user_id`

// CreateQuestion stores a new unanswered question owned by ownerID.
func (s *PostgresStore) CreateQuestion(ctx context.Context, ownerID string, in QuestionFields) (Question, error) {
	var row questionRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO questions (user_id, divisi_instansi, nama_pemohon, unit_bisnis, data_informasi, advisory_diinginkan, jenis_advisory, status)
		VALUES ($1, $2, $3, $4, $5, $6, string_to_array($7::text, ','), $8)
		RETURNING `+questionColumns,
		ownerID, in.DivisiInstansi, in.NamaPemohon, in.UnitBisnis, in.DataInformasi, in.AdvisoryDiinginkan,
		advisory.JoinCategories(in.JenisAdvisory), string(advisory.StatusUnanswered))
	if err != nil {
		return Question{}, fmt.Errorf("insert question: %w", err)
	}
	return row.toQuestion(), nil
}

// GetQuestion returns a question with its answer, if any. A non-empty scope
// hides questions that belong to someone else.
func (s *PostgresStore) GetQuestion(ctx context.Context, scope ListScope, questionID string) (QuestionWithAnswer, error) {
	query := questionAnswerSelect + ` WHERE q.id = $1`
	args := []any{questionID}
	if scope.OwnerID != "" {
		query += ` AND q.user_id = $2`
		args = append(args, scope.OwnerID)
	}
	var row questionAnswerRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
		return QuestionWithAnswer{}, ErrNotFound
	}
	if err != nil {
		return QuestionWithAnswer{}, fmt.Errorf("get question: %w", err)
	}
	return row.toModel(), nil
}

// GetQuestionsByIDs loads the given questions in the order of ids, skipping
// any that no longer exist or fall outside scope.
func (s *PostgresStore) GetQuestionsByIDs(ctx context.Context, scope ListScope, ids []string) ([]QuestionWithAnswer, error) {
	if len(ids) == 0 {
		return []QuestionWithAnswer{}, nil
	}
	query := questionAnswerSelect + ` WHERE q.id::text = ANY(string_to_array($1::text, ','))`
	args := []any{joinIDs(ids)}
	if scope.OwnerID != "" {
		query += ` AND q.user_id = $2`
		args = append(args, scope.OwnerID)
	}
	var rows []questionAnswerRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get questions by id: %w", err)
	}
	byID := make(map[string]QuestionWithAnswer, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.toModel()
	}
	out := make([]QuestionWithAnswer, 0, len(rows))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// UpdateQuestion overwrites an owner's unanswered question and returns the
// changed fields. History rows are written after commit; a failure there is
// logged and does not undo the update.
func (s *PostgresStore) UpdateQuestion(ctx context.Context, ownerID, questionID string, in QuestionFields) ([]FieldChange, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update question: %w", err)
	}
	defer rollback(tx)

	var current questionRow
	err = tx.GetContext(ctx, &current, `
		SELECT `+questionColumns+`
		FROM questions
		WHERE id=$1 AND user_id=$2 AND status=$3
		FOR UPDATE`, questionID, ownerID, string(advisory.StatusUnanswered))
	if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
		return nil, ErrNotFoundOrAlreadyAnswered
	}
	if err != nil {
		return nil, fmt.Errorf("load question for update: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE questions
		SET divisi_instansi=$4, nama_pemohon=$5, unit_bisnis=$6, data_informasi=$7,
			advisory_diinginkan=$8, jenis_advisory=string_to_array($9::text, ','), updated_at=NOW()
		WHERE id=$1 AND user_id=$2 AND status=$3`,
		questionID, ownerID, string(advisory.StatusUnanswered),
		in.DivisiInstansi, in.NamaPemohon, in.UnitBisnis, in.DataInformasi, in.AdvisoryDiinginkan,
		advisory.JoinCategories(in.JenisAdvisory))
	if err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update question rows: %w", err)
	} else if affected == 0 {
		return nil, ErrNotFoundOrAlreadyAnswered
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update question: %w", err)
	}

	changes := diffQuestion(current.toQuestion(), in)
	s.recordQuestionHistory(ctx, questionID, ownerID, changes)
	return changes, nil
}

// DeleteQuestion removes an owner's unanswered question along with its history.
func (s *PostgresStore) DeleteQuestion(ctx context.Context, ownerID, questionID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM questions WHERE id=$1 AND user_id=$2 AND status=$3
	`, questionID, ownerID, string(advisory.StatusUnanswered))
	if isInvalidInput(err) {
		return ErrNotFoundOrAlreadyAnswered
	}
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete question rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFoundOrAlreadyAnswered
	}
	return nil
}

func diffQuestion(old Question, in QuestionFields) []FieldChange {
	var changes []FieldChange
	add := func(field, before, after string) {
		if before != after {
			changes = append(changes, FieldChange{Field: field, OldValue: before, NewValue: after})
		}
	}
	add("divisi_instansi", old.DivisiInstansi, in.DivisiInstansi)
	add("nama_pemohon", old.NamaPemohon, in.NamaPemohon)
	add("unit_bisnis", old.UnitBisnis, in.UnitBisnis)
	add("data_informasi", old.DataInformasi, in.DataInformasi)
	add("advisory_diinginkan", old.AdvisoryDiinginkan, in.AdvisoryDiinginkan)
	add("jenis_advisory",
		advisory.JoinCategories(advisory.NormalizeCategories(old.JenisAdvisory)),
		advisory.JoinCategories(advisory.NormalizeCategories(in.JenisAdvisory)))
	return changes
}
