package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisory/api/internal/advisory"
	"advisory/api/internal/rbac"
)

const (
	ownerID    = "11111111-1111-1111-1111-111111111111"
	answererID = "22222222-2222-2222-2222-222222222222"
	questionID = "33333333-3333-3333-3333-333333333333"
	answerID   = "44444444-4444-4444-4444-444444444444"
)

var questionCols = []string{
	"id", "user_id", "divisi_instansi", "nama_pemohon", "unit_bisnis", "tanggal_permohonan",
	"data_informasi", "advisory_diinginkan", "jenis_advisory", "status", "created_at", "updated_at",
}

var answerCols = []string{
	"id", "question_id", "user_id", "no_registrasi", "technical_advisory_note", "tanggal_jawaban", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "pgx"), nil), mock
}

func sampleFields() QuestionFields {
	return QuestionFields{
		DivisiInstansi:     "Divisi Hukum",
		NamaPemohon:        "Rina",
		UnitBisnis:         "Retail",
		DataInformasi:      "Kontrak vendor",
		AdvisoryDiinginkan: "Review klausul",
		JenisAdvisory:      []string{"01", "05"},
	}
}

func questionRowValues(status string, categories string) []driver.Value {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return []driver.Value{
		questionID, ownerID, "Divisi Hukum", "Rina", "Retail", now,
		"Kontrak vendor", "Review klausul", categories, status, now, now,
	}
}

func TestCreateQuestionStoresCategorySet(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO questions`)).
		WithArgs(ownerID, "Divisi Hukum", "Rina", "Retail", "Kontrak vendor", "Review klausul", "01,05", "belum_dijawab").
		WillReturnRows(sqlmock.NewRows(questionCols).AddRow(questionRowValues("belum_dijawab", "01,05")...))

	q, err := s.CreateQuestion(context.Background(), ownerID, sampleFields())
	require.NoError(t, err)
	assert.Equal(t, questionID, q.ID)
	assert.Equal(t, []string{"01", "05"}, q.JenisAdvisory)
	assert.Equal(t, advisory.StatusUnanswered, q.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateQuestionRecordsOneRowPerChangedField(t *testing.T) {
	s, mock := newMockStore(t)

	in := sampleFields()
	in.NamaPemohon = "Rina Sari"
	in.JenisAdvisory = []string{"05", "01", "07"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM questions`) + `.*FOR UPDATE`).
		WithArgs(questionID, ownerID, "belum_dijawab").
		WillReturnRows(sqlmock.NewRows(questionCols).AddRow(questionRowValues("belum_dijawab", "01,05")...))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE questions`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO question_history`)).
		WithArgs(questionID, ownerID, "nama_pemohon", "Rina", "Rina Sari").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO question_history`)).
		WithArgs(questionID, ownerID, "jenis_advisory", "01,05", "01,05,07").
		WillReturnResult(sqlmock.NewResult(2, 1))

	changes, err := s.UpdateQuestion(context.Background(), ownerID, questionID, in)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "nama_pemohon", changes[0].Field)
	assert.Equal(t, "jenis_advisory", changes[1].Field)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateQuestionReorderedCategoriesIsNotAChange(t *testing.T) {
	s, mock := newMockStore(t)

	in := sampleFields()
	in.JenisAdvisory = []string{"05", "01"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(questionCols).AddRow(questionRowValues("belum_dijawab", "01,05")...))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE questions`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changes, err := s.UpdateQuestion(context.Background(), ownerID, questionID, in)
	require.NoError(t, err)
	assert.Empty(t, changes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateQuestionMissingOrAnsweredIsAmbiguous(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(questionID, ownerID, "belum_dijawab").
		WillReturnRows(sqlmock.NewRows(questionCols))
	mock.ExpectRollback()

	_, err := s.UpdateQuestion(context.Background(), ownerID, questionID, sampleFields())
	require.ErrorIs(t, err, ErrNotFoundOrAlreadyAnswered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateQuestionHistoryFailureIsSwallowed(t *testing.T) {
	s, mock := newMockStore(t)
	var failures []string
	s.OnHistoryFailure(func(kind string) { failures = append(failures, kind) })

	in := sampleFields()
	in.UnitBisnis = "Korporat"

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(questionCols).AddRow(questionRowValues("belum_dijawab", "01,05")...))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE questions`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO question_history`)).
		WillReturnError(errors.New("disk full"))

	changes, err := s.UpdateQuestion(context.Background(), ownerID, questionID, in)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
	assert.Equal(t, []string{"question"}, failures)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteQuestionZeroRowsIsAmbiguous(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM questions`)).
		WithArgs(questionID, ownerID, "belum_dijawab").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteQuestion(context.Background(), ownerID, questionID)
	require.ErrorIs(t, err, ErrNotFoundOrAlreadyAnswered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAnswerFlipsStatusAndAllocatesNumber(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, .* FOR UPDATE`).
		WithArgs(questionID).
		WillReturnRows(sqlmock.NewRows([]string{"status", "jenis_advisory"}).AddRow("belum_dijawab", "01,05"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE questions SET status=$2`)).
		WithArgs(questionID, "dijawab", "belum_dijawab").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO registration_counters`)).
		WithArgs("05", 2025, "%/05/2025").
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO answers`)).
		WithArgs(questionID, answererID, "003/05/2025", "Catatan").
		WillReturnRows(sqlmock.NewRows(answerCols).AddRow(answerID, questionID, answererID, "003/05/2025", "Catatan", now, now, now))
	mock.ExpectCommit()

	answer, err := s.CreateAnswer(context.Background(), NewAnswer{
		QuestionID: questionID, AnswererID: answererID, Category: "05", Year: 2025, Note: "Catatan",
	})
	require.NoError(t, err)
	assert.Equal(t, "003/05/2025", answer.NoRegistrasi)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAnswerRejectsAnsweredQuestion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "jenis_advisory"}).AddRow("dijawab", "01"))
	mock.ExpectRollback()

	_, err := s.CreateAnswer(context.Background(), NewAnswer{QuestionID: questionID, AnswererID: answererID, Category: "01", Year: 2025, Note: "x"})
	require.ErrorIs(t, err, ErrAlreadyAnswered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAnswerRejectsForeignCategory(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "jenis_advisory"}).AddRow("belum_dijawab", "01,05"))
	mock.ExpectRollback()

	_, err := s.CreateAnswer(context.Background(), NewAnswer{QuestionID: questionID, AnswererID: answererID, Category: "09", Year: 2025, Note: "x"})
	require.ErrorIs(t, err, ErrCategoryMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAnswerMissingQuestion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"status", "jenis_advisory"}))
	mock.ExpectRollback()

	_, err := s.CreateAnswer(context.Background(), NewAnswer{QuestionID: questionID, AnswererID: answererID, Category: "01", Year: 2025, Note: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAnswerDuplicateInsertMapsToAlreadyAnswered(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "jenis_advisory"}).AddRow("belum_dijawab", "01"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE questions SET status=$2`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO registration_counters`)).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO answers`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "answers_question_id_key"})
	mock.ExpectRollback()

	_, err := s.CreateAnswer(context.Background(), NewAnswer{QuestionID: questionID, AnswererID: answererID, Category: "01", Year: 2025, Note: "x"})
	require.ErrorIs(t, err, ErrAlreadyAnswered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeekRegistrationNumber(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM registration_counters`)).
		WithArgs("12", 2025, "%/12/2025").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(8))

	number, err := s.PeekRegistrationNumber(context.Background(), "12", 2025)
	require.NoError(t, err)
	assert.Equal(t, "008/12/2025", number.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAnswerNoteWritesHistoryOnlyWhenChanged(t *testing.T) {
	now := time.Now().UTC()

	t.Run("changed", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT technical_advisory_note FROM answers`)).
			WithArgs(answerID).
			WillReturnRows(sqlmock.NewRows([]string{"technical_advisory_note"}).AddRow("lama"))
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE answers SET technical_advisory_note=$2`)).
			WithArgs(answerID, "baru").
			WillReturnRows(sqlmock.NewRows(answerCols).AddRow(answerID, questionID, answererID, "001/01/2025", "baru", now, now, now))
		mock.ExpectCommit()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO answer_history`)).
			WithArgs(answerID, answererID, "lama", "baru").
			WillReturnResult(sqlmock.NewResult(1, 1))

		answer, err := s.UpdateAnswerNote(context.Background(), answerID, answererID, "baru")
		require.NoError(t, err)
		assert.Equal(t, "baru", answer.TechnicalAdvisoryNote)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unchanged", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT technical_advisory_note FROM answers`)).
			WillReturnRows(sqlmock.NewRows([]string{"technical_advisory_note"}).AddRow("sama"))
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE answers`)).
			WillReturnRows(sqlmock.NewRows(answerCols).AddRow(answerID, questionID, answererID, "001/01/2025", "sama", now, now, now))
		mock.ExpectCommit()

		_, err := s.UpdateAnswerNote(context.Background(), answerID, answererID, "sama")
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT technical_advisory_note FROM answers`)).
			WillReturnRows(sqlmock.NewRows([]string{"technical_advisory_note"}))
		mock.ExpectRollback()

		_, err := s.UpdateAnswerNote(context.Background(), answerID, answererID, "x")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListQuestionHistoryNewestFirst(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM question_history h.*ORDER BY h.created_at DESC, h.id DESC`).
		WithArgs(questionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "question_id", "user_id", "user_name", "field_changed", "old_value", "new_value", "created_at"}).
			AddRow(2, questionID, ownerID, "Rina", "unit_bisnis", "Retail", "Korporat", now).
			AddRow(1, questionID, ownerID, "Rina", "nama_pemohon", "R", "Rina", now.Add(-time.Minute)))

	items, err := s.ListQuestionHistory(context.Background(), questionID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[0].ID)
	assert.Equal(t, "Rina", items[0].UserName)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("a@example.com", "hash", "A", "penanya").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := s.CreateUser(context.Background(), NewUser{Email: "a@example.com", PasswordHash: "hash", Name: "A", Role: rbac.RolePenanya})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLookupSessionMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE token_hash=$1`)).
		WithArgs("deadbeef").
		WillReturnError(sql.ErrNoRows)

	_, err := s.LookupSession(context.Background(), "deadbeef")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeExpiredSessionsReportsRemovedRows(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE expires_at <= $1`)).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := s.PurgeExpiredSessions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
