package store

import (
	"database/sql"
	"time"

	"advisory/api/internal/advisory"
	"advisory/api/internal/rbac"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         rbac.Role `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

type NewUser struct {
	Email        string
	PasswordHash string
	Name         string
	Role         rbac.Role
}

// SessionRecord is what a session backend knows about a token hash.
type SessionRecord struct {
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
}

// QuestionFields are the requester-editable parts of a question.
type QuestionFields struct {
	DivisiInstansi     string
	NamaPemohon        string
	UnitBisnis         string
	DataInformasi      string
	AdvisoryDiinginkan string
	JenisAdvisory      []string
}

type Question struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"userId"`
	DivisiInstansi     string          `json:"divisiInstansi"`
	NamaPemohon        string          `json:"namaPemohon"`
	UnitBisnis         string          `json:"unitBisnis"`
	TanggalPermohonan  time.Time       `json:"tanggalPermohonan"`
	DataInformasi      string          `json:"dataInformasi"`
	AdvisoryDiinginkan string          `json:"advisoryDiinginkan"`
	JenisAdvisory      []string        `json:"jenisAdvisory"`
	Status             advisory.Status `json:"status"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

type Answer struct {
	ID                    string    `db:"id" json:"id"`
	QuestionID            string    `db:"question_id" json:"questionId"`
	UserID                string    `db:"user_id" json:"answererId"`
	NoRegistrasi          string    `db:"no_registrasi" json:"noRegistrasi"`
	TechnicalAdvisoryNote string    `db:"technical_advisory_note" json:"technicalAdvisoryNote"`
	TanggalJawaban        time.Time `db:"tanggal_jawaban" json:"tanggalJawaban"`
	CreatedAt             time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time `db:"updated_at" json:"updatedAt"`
}

type NewAnswer struct {
	QuestionID string
	AnswererID string
	Category   string
	Year       int
	Note       string
}

type QuestionWithAnswer struct {
	Question
	Answer       *Answer `json:"answer,omitempty"`
	AnswererName string  `json:"answererName,omitempty"`
}

type QuestionPage struct {
	Items      []QuestionWithAnswer `json:"questions"`
	TotalCount int                  `json:"totalCount"`
	TotalPages int                  `json:"totalPages"`
	Page       int                  `json:"page"`
}

// ListScope restricts a list to one owner; an empty OwnerID lists everything.
type ListScope struct {
	OwnerID string
}

// FieldChange is one audited difference between the stored and submitted question.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}

type QuestionHistory struct {
	ID           int64     `db:"id" json:"id"`
	QuestionID   string    `db:"question_id" json:"questionId"`
	UserID       string    `db:"user_id" json:"userId"`
	UserName     string    `db:"user_name" json:"userName"`
	FieldChanged string    `db:"field_changed" json:"fieldChanged"`
	OldValue     string    `db:"old_value" json:"oldValue"`
	NewValue     string    `db:"new_value" json:"newValue"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type AnswerHistory struct {
	ID        int64     `db:"id" json:"id"`
	AnswerID  string    `db:"answer_id" json:"answerId"`
	UserID    string    `db:"user_id" json:"userId"`
	UserName  string    `db:"user_name" json:"userName"`
	OldNote   string    `db:"old_note" json:"oldNote"`
	NewNote   string    `db:"new_note" json:"newNote"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// questionRow mirrors questionColumns; jenis_advisory travels as comma-joined text.
type questionRow struct {
	ID                 string    `db:"id"`
	UserID             string    `db:"user_id"`
	DivisiInstansi     string    `db:"divisi_instansi"`
	NamaPemohon        string    `db:"nama_pemohon"`
	UnitBisnis         string    `db:"unit_bisnis"`
	TanggalPermohonan  time.Time `db:"tanggal_permohonan"`
	DataInformasi      string    `db:"data_informasi"`
	AdvisoryDiinginkan string    `db:"advisory_diinginkan"`
	JenisAdvisory      string    `db:"jenis_advisory"`
	Status             string    `db:"status"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r questionRow) toQuestion() Question {
	return Question{
		ID:                 r.ID,
		UserID:             r.UserID,
		DivisiInstansi:     r.DivisiInstansi,
		NamaPemohon:        r.NamaPemohon,
		UnitBisnis:         r.UnitBisnis,
		TanggalPermohonan:  r.TanggalPermohonan,
		DataInformasi:      r.DataInformasi,
		AdvisoryDiinginkan: r.AdvisoryDiinginkan,
		JenisAdvisory:      advisory.SplitCategories(r.JenisAdvisory),
		Status:             advisory.Status(r.Status),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type questionAnswerRow struct {
	questionRow
	AnswerID              sql.NullString `db:"answer_id"`
	AnswererID            sql.NullString `db:"answerer_id"`
	NoRegistrasi          sql.NullString `db:"no_registrasi"`
	TanggalJawaban        sql.NullTime   `db:"tanggal_jawaban"`
	TechnicalAdvisoryNote sql.NullString `db:"technical_advisory_note"`
	AnswerCreatedAt       sql.NullTime   `db:"answer_created_at"`
	AnswerUpdatedAt       sql.NullTime   `db:"answer_updated_at"`
	AnswererName          sql.NullString `db:"answerer_name"`
}

func (r questionAnswerRow) toModel() QuestionWithAnswer {
	item := QuestionWithAnswer{Question: r.questionRow.toQuestion()}
	if r.AnswerID.Valid {
		item.Answer = &Answer{
			ID:                    r.AnswerID.String,
			QuestionID:            r.ID,
			UserID:                r.AnswererID.String,
			NoRegistrasi:          r.NoRegistrasi.String,
			TechnicalAdvisoryNote: r.TechnicalAdvisoryNote.String,
			TanggalJawaban:        r.TanggalJawaban.Time,
			CreatedAt:             r.AnswerCreatedAt.Time,
			UpdatedAt:             r.AnswerUpdatedAt.Time,
		}
		item.AnswererName = r.AnswererName.String
	}
	return item
}
