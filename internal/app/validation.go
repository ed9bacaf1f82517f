package app

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"advisory/api/internal/advisory"
	"advisory/api/internal/rbac"
	"advisory/api/internal/store"
)

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required,role"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// QuestionInput fields are declared in the order their messages are reported.
type QuestionInput struct {
	DivisiInstansi     string   `json:"divisiInstansi" validate:"required"`
	NamaPemohon        string   `json:"namaPemohon" validate:"required"`
	UnitBisnis         string   `json:"unitBisnis" validate:"required"`
	DataInformasi      string   `json:"dataInformasi" validate:"required"`
	AdvisoryDiinginkan string   `json:"advisoryDiinginkan" validate:"required"`
	JenisAdvisory      []string `json:"jenisAdvisory" validate:"required,min=1,dive,category"`
}

type AnswerInput struct {
	NoRegistrasi          string `json:"noRegistrasi" validate:"required"`
	TechnicalAdvisoryNote string `json:"technicalAdvisoryNote" validate:"required"`
}

type AnswerNoteInput struct {
	TechnicalAdvisoryNote string `json:"technicalAdvisoryNote" validate:"required"`
}

func (in RegisterInput) normalized() RegisterInput {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.TrimSpace(in.Role)
	return in
}

func (in LoginInput) normalized() LoginInput {
	in.Email = strings.TrimSpace(in.Email)
	return in
}

func (in ProfileInput) normalized() ProfileInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	return in
}

func (in QuestionInput) normalized() QuestionInput {
	in.DivisiInstansi = strings.TrimSpace(in.DivisiInstansi)
	in.NamaPemohon = strings.TrimSpace(in.NamaPemohon)
	in.UnitBisnis = strings.TrimSpace(in.UnitBisnis)
	in.DataInformasi = strings.TrimSpace(in.DataInformasi)
	in.AdvisoryDiinginkan = strings.TrimSpace(in.AdvisoryDiinginkan)
	in.JenisAdvisory = advisory.NormalizeCategories(in.JenisAdvisory)
	return in
}

func (in QuestionInput) fields() store.QuestionFields {
	return store.QuestionFields{
		DivisiInstansi:     in.DivisiInstansi,
		NamaPemohon:        in.NamaPemohon,
		UnitBisnis:         in.UnitBisnis,
		DataInformasi:      in.DataInformasi,
		AdvisoryDiinginkan: in.AdvisoryDiinginkan,
		JenisAdvisory:      in.JenisAdvisory,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return advisory.IsCategory(fl.Field().String())
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, ok := rbac.Parse(fl.Field().String())
		return ok
	})
	return v
}

type messageKey struct {
	field string // Struct.jsonName
	tag   string // "*" matches any tag
}

var fieldMessages = map[messageKey]string{
	{"RegisterInput.email", "required"}:    "Semua field harus diisi",
	{"RegisterInput.password", "required"}: "Semua field harus diisi",
	{"RegisterInput.name", "required"}:     "Semua field harus diisi",
	{"RegisterInput.role", "required"}:     "Semua field harus diisi",
	{"RegisterInput.email", "email"}:       "Format email tidak valid",
	{"RegisterInput.password", "min"}:      "Password minimal 6 karakter",
	{"RegisterInput.role", "role"}:         "Role harus penanya atau penjawab",

	{"LoginInput.email", "*"}:    "Email dan password harus diisi",
	{"LoginInput.password", "*"}: "Email dan password harus diisi",

	{"ProfileInput.name", "*"}:         "Nama dan email harus diisi",
	{"ProfileInput.email", "required"}: "Nama dan email harus diisi",
	{"ProfileInput.email", "email"}:    "Format email tidak valid",

	{"QuestionInput.divisiInstansi", "*"}:       "Divisi/Instansi Pemohon harus diisi",
	{"QuestionInput.namaPemohon", "*"}:          "Nama Pemohon harus diisi",
	{"QuestionInput.unitBisnis", "*"}:           "Unit Bisnis/Proyek/Anak Usaha harus diisi",
	{"QuestionInput.dataInformasi", "*"}:        "Data/Informasi Yang Diberikan harus diisi",
	{"QuestionInput.advisoryDiinginkan", "*"}:   "Advisory Yang Diinginkan harus diisi",
	{"QuestionInput.jenisAdvisory", "*"}:        "Pilih minimal 1 jenis advisory",
	{"QuestionInput.jenisAdvisory", "category"}: msgInvalidCategory,

	{"AnswerInput.noRegistrasi", "*"}:          "Semua field harus diisi",
	{"AnswerInput.technicalAdvisoryNote", "*"}: "Semua field harus diisi",

	{"AnswerNoteInput.technicalAdvisoryNote", "*"}: "Technical Advisory Note harus diisi",
}

// validateInput reports the first failing field with its message. A missing
// required field wins over a malformed one, so an incomplete form always
// gets the "required" message first.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return validationError("", "Data tidak valid")
	}
	fe := verrs[0]
	for _, candidate := range verrs {
		if candidate.Tag() == "required" {
			fe = candidate
			break
		}
	}
	return validationError(trimIndex(fe.Field()), messageFor(fe))
}

// trimIndex drops the element index validator appends inside slices, so
// "jenisAdvisory[0]" reports as "jenisAdvisory".
func trimIndex(field string) string {
	if i := strings.IndexByte(field, '['); i >= 0 {
		return field[:i]
	}
	return field
}

func messageFor(fe validator.FieldError) string {
	field := trimIndex(fe.Namespace())
	if msg, ok := fieldMessages[messageKey{field, fe.Tag()}]; ok {
		return msg
	}
	if msg, ok := fieldMessages[messageKey{field, "*"}]; ok {
		return msg
	}
	return "Data tidak valid"
}

func filterError(err error) error {
	switch {
	case errors.Is(err, advisory.ErrInvalidStatusFilter):
		return validationError("status", "Status harus all, belum_dijawab atau dijawab")
	case errors.Is(err, advisory.ErrInvalidSortOrder):
		return validationError("sortBy", "Urutan harus newest atau oldest")
	case errors.Is(err, advisory.ErrInvalidDate):
		return validationError("date", "Format tanggal harus YYYY-MM-DD")
	}
	return validationError("", err.Error())
}
