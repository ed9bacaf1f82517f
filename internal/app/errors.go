package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Messages shown to callers. Raw store errors only reach the log.
const (
	msgUnauthorized         = "Unauthorized"
	msgNotFoundOrAnswered   = "Pertanyaan tidak ditemukan atau sudah dijawab"
	msgQuestionNotFound     = "Pertanyaan tidak ditemukan"
	msgAlreadyAnswered      = "Pertanyaan sudah dijawab"
	msgAnswerNotFound       = "Jawaban tidak ditemukan"
	msgEmailRegistered      = "Email sudah terdaftar"
	msgInvalidCredentials   = "Email atau password salah"
	msgRegisterFailed       = "Terjadi kesalahan saat registrasi"
	msgLoginFailed          = "Terjadi kesalahan saat login"
	msgLogoutFailed         = "Terjadi kesalahan saat logout"
	msgProfileFailed        = "Gagal memperbarui profil"
	msgCreateQuestionFailed = "Gagal membuat pertanyaan"
	msgUpdateQuestionFailed = "Gagal mengupdate pertanyaan"
	msgDeleteQuestionFailed = "Gagal menghapus pertanyaan"
	msgLoadQuestionsFailed  = "Gagal memuat pertanyaan"
	msgAnswerFailed         = "Gagal menjawab pertanyaan"
	msgUpdateAnswerFailed   = "Gagal mengupdate jawaban"
	msgLoadHistoryFailed    = "Gagal memuat riwayat"
	msgSearchFailed         = "Gagal mencari pertanyaan"
	msgExportFailed         = "Gagal membuat ekspor"
	msgExportUnavailable    = "Ekspor PDF/PNG tidak tersedia di server ini"
	msgArchiveUnavailable   = "Penyimpanan ekspor tidak tersedia"
	msgCategoryMismatch     = "Jenis advisory tidak sesuai dengan pertanyaan"
	msgInvalidRegistration  = "Format no registrasi tidak valid"
	msgInvalidCategory      = "Jenis advisory tidak valid"
	msgInvalidExportFormat  = "Format ekspor harus pdf atau png"
	msgTooManyAttempts      = "Terlalu banyak percobaan. Coba beberapa saat lagi."
)

func errUnauthenticated() *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHENTICATED", msgUnauthorized, nil)
}

func errForbidden() *DomainError {
	return domainError(http.StatusForbidden, "UNAUTHORIZED", msgUnauthorized, nil)
}

func validationError(field, message string) *DomainError {
	var details any
	if field != "" {
		details = map[string]any{"field": field}
	}
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

// errNotFoundOrAnswered does not say whether the question is missing, foreign
// or already answered.
func errNotFoundOrAnswered() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND_OR_ANSWERED", msgNotFoundOrAnswered, nil)
}

func operationFailed(message string) *DomainError {
	return domainError(http.StatusInternalServerError, "OPERATION_FAILED", message, nil)
}
