package search

import "advisory/api/internal/store"

// Query describes a search request. OwnerID limits hits to one requester.
type Query struct {
	Text    string
	OwnerID string
	Status  string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Questions  []store.QuestionWithAnswer `json:"questions"`
	TotalCount int                        `json:"totalCount"`
	TotalPages int                        `json:"totalPages"`
	Page       int                        `json:"page"`
	Query      string                     `json:"query"`
	Source     string                     `json:"source"`
}

const (
	SourceMeili = "meilisearch"
	SourceSQL   = "sql"
)

// Searcher can execute a full-text search and returns matching question ids.
type Searcher interface {
	Search(q Query) ([]string, int, error)
	Healthy() bool
}

// QuestionRecord is the data we index for a question.
type QuestionRecord struct {
	ID                 string   `json:"id"`
	UserID             string   `json:"userId"`
	DivisiInstansi     string   `json:"divisiInstansi"`
	NamaPemohon        string   `json:"namaPemohon"`
	UnitBisnis         string   `json:"unitBisnis"`
	DataInformasi      string   `json:"dataInformasi"`
	AdvisoryDiinginkan string   `json:"advisoryDiinginkan"`
	JenisAdvisory      []string `json:"jenisAdvisory"`
	Status             string   `json:"status"`
	NoRegistrasi       string   `json:"noRegistrasi,omitempty"`
	TanggalPermohonan  int64    `json:"tanggalPermohonan"`
}

// RecordFromQuestion flattens a stored question for indexing.
func RecordFromQuestion(q store.QuestionWithAnswer) QuestionRecord {
	record := QuestionRecord{
		ID:                 q.ID,
		UserID:             q.UserID,
		DivisiInstansi:     q.DivisiInstansi,
		NamaPemohon:        q.NamaPemohon,
		UnitBisnis:         q.UnitBisnis,
		DataInformasi:      q.DataInformasi,
		AdvisoryDiinginkan: q.AdvisoryDiinginkan,
		JenisAdvisory:      q.JenisAdvisory,
		Status:             string(q.Status),
		TanggalPermohonan:  q.TanggalPermohonan.UTC().Unix(),
	}
	if q.Answer != nil {
		record.NoRegistrasi = q.Answer.NoRegistrasi
	}
	return record
}
