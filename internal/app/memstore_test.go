package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"advisory/api/internal/advisory"
	"advisory/api/internal/authpw"
	"advisory/api/internal/email"
	"advisory/api/internal/export"
	"advisory/api/internal/session"
	"advisory/api/internal/storage"
	"advisory/api/internal/store"
)

// memStore is an in-memory stand-in for the Postgres store. It keeps the
// same contracts: ownership in the lookup predicate, the status guard on
// edits, and one answer per question.
type memStore struct {
	mu        sync.Mutex
	now       func() time.Time
	users     map[string]store.User
	questions map[string]store.Question
	answers   map[string]store.Answer
	byQ       map[string]string
	counters  map[string]int
	qHistory  []store.QuestionHistory
	aHistory  []store.AnswerHistory
	sessions  map[string]store.SessionRecord
	tick      int

	pingErr error
	peekErr error
}

func newMemStore() *memStore {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	m := &memStore{
		users:     map[string]store.User{},
		questions: map[string]store.Question{},
		answers:   map[string]store.Answer{},
		byQ:       map[string]string{},
		counters:  map[string]int{},
		sessions:  map[string]store.SessionRecord{},
	}
	// every write advances the clock a minute so ordering is deterministic
	m.now = func() time.Time {
		m.tick++
		return base.Add(time.Duration(m.tick) * time.Minute)
	}
	return m
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

// Users

func (m *memStore) CreateUser(_ context.Context, in store.NewUser) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == in.Email {
			return store.User{}, store.ErrEmailTaken
		}
	}
	now := m.now()
	user := store.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return store.User{}, store.ErrNotFound
}

func (m *memStore) UpdateUserProfile(_ context.Context, userID, name, email string, passwordHash *string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	for _, u := range m.users {
		if u.ID != userID && u.Email == email {
			return store.User{}, store.ErrEmailTaken
		}
	}
	user.Name, user.Email = name, email
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	user.UpdatedAt = m.now()
	m.users[userID] = user
	return user, nil
}

// Sessions

func (m *memStore) SaveSession(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tokenHash] = store.SessionRecord{UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (m *memStore) LookupSession(_ context.Context, tokenHash string) (store.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.sessions[tokenHash]; ok {
		return rec, nil
	}
	return store.SessionRecord{}, store.ErrNotFound
}

func (m *memStore) DeleteSession(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

// Questions

func (m *memStore) CreateQuestion(_ context.Context, ownerID string, in store.QuestionFields) (store.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	q := store.Question{
		ID:                 uuid.NewString(),
		UserID:             ownerID,
		DivisiInstansi:     in.DivisiInstansi,
		NamaPemohon:        in.NamaPemohon,
		UnitBisnis:         in.UnitBisnis,
		TanggalPermohonan:  now,
		DataInformasi:      in.DataInformasi,
		AdvisoryDiinginkan: in.AdvisoryDiinginkan,
		JenisAdvisory:      in.JenisAdvisory,
		Status:             advisory.StatusUnanswered,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	m.questions[q.ID] = q
	return q, nil
}

// backdate moves a question's submission date, which the service never sets.
func (m *memStore) backdate(questionID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.questions[questionID]
	q.TanggalPermohonan = at
	m.questions[questionID] = q
}

func (m *memStore) withAnswer(q store.Question) store.QuestionWithAnswer {
	out := store.QuestionWithAnswer{Question: q}
	if id, ok := m.byQ[q.ID]; ok {
		answer := m.answers[id]
		out.Answer = &answer
		out.AnswererName = m.users[answer.UserID].Name
	}
	return out
}

func (m *memStore) GetQuestion(_ context.Context, scope store.ListScope, questionID string) (store.QuestionWithAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[questionID]
	if !ok || (scope.OwnerID != "" && q.UserID != scope.OwnerID) {
		return store.QuestionWithAnswer{}, store.ErrNotFound
	}
	return m.withAnswer(q), nil
}

func (m *memStore) GetQuestionsByIDs(_ context.Context, scope store.ListScope, ids []string) ([]store.QuestionWithAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.QuestionWithAnswer
	for _, id := range ids {
		q, ok := m.questions[id]
		if !ok || (scope.OwnerID != "" && q.UserID != scope.OwnerID) {
			continue
		}
		out = append(out, m.withAnswer(q))
	}
	return out, nil
}

func (m *memStore) UpdateQuestion(_ context.Context, ownerID, questionID string, in store.QuestionFields) ([]store.FieldChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[questionID]
	if !ok || q.UserID != ownerID || q.Status != advisory.StatusUnanswered {
		return nil, store.ErrNotFoundOrAlreadyAnswered
	}
	var changes []store.FieldChange
	diff := func(field, old, updated string) {
		if old != updated {
			changes = append(changes, store.FieldChange{Field: field, OldValue: old, NewValue: updated})
		}
	}
	diff("divisi_instansi", q.DivisiInstansi, in.DivisiInstansi)
	diff("nama_pemohon", q.NamaPemohon, in.NamaPemohon)
	diff("unit_bisnis", q.UnitBisnis, in.UnitBisnis)
	diff("data_informasi", q.DataInformasi, in.DataInformasi)
	diff("advisory_diinginkan", q.AdvisoryDiinginkan, in.AdvisoryDiinginkan)
	diff("jenis_advisory", advisory.JoinCategories(q.JenisAdvisory), advisory.JoinCategories(in.JenisAdvisory))

	q.DivisiInstansi = in.DivisiInstansi
	q.NamaPemohon = in.NamaPemohon
	q.UnitBisnis = in.UnitBisnis
	q.DataInformasi = in.DataInformasi
	q.AdvisoryDiinginkan = in.AdvisoryDiinginkan
	q.JenisAdvisory = in.JenisAdvisory
	q.UpdatedAt = m.now()
	m.questions[questionID] = q

	for _, c := range changes {
		m.qHistory = append(m.qHistory, store.QuestionHistory{
			ID:           int64(len(m.qHistory) + 1),
			QuestionID:   questionID,
			UserID:       ownerID,
			UserName:     m.users[ownerID].Name,
			FieldChanged: c.Field,
			OldValue:     c.OldValue,
			NewValue:     c.NewValue,
			CreatedAt:    q.UpdatedAt,
		})
	}
	return changes, nil
}

func (m *memStore) DeleteQuestion(_ context.Context, ownerID, questionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[questionID]
	if !ok || q.UserID != ownerID || q.Status != advisory.StatusUnanswered {
		return store.ErrNotFoundOrAlreadyAnswered
	}
	delete(m.questions, questionID)
	return nil
}

// Answers

func (m *memStore) CreateAnswer(_ context.Context, in store.NewAnswer) (store.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[in.QuestionID]
	if !ok {
		return store.Answer{}, store.ErrNotFound
	}
	if q.Status != advisory.StatusUnanswered {
		return store.Answer{}, store.ErrAlreadyAnswered
	}
	if !advisory.ContainsCategory(q.JenisAdvisory, in.Category) {
		return store.Answer{}, store.ErrCategoryMismatch
	}
	key := fmt.Sprintf("%s/%d", in.Category, in.Year)
	m.counters[key]++
	now := m.now()
	answer := store.Answer{
		ID:                    uuid.NewString(),
		QuestionID:            in.QuestionID,
		UserID:                in.AnswererID,
		NoRegistrasi:          advisory.RegistrationNumber{Seq: m.counters[key], Category: in.Category, Year: in.Year}.String(),
		TechnicalAdvisoryNote: in.Note,
		TanggalJawaban:        now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	q.Status = advisory.StatusAnswered
	q.UpdatedAt = now
	m.questions[q.ID] = q
	m.answers[answer.ID] = answer
	m.byQ[q.ID] = answer.ID
	return answer, nil
}

func (m *memStore) GetAnswer(_ context.Context, answerID string) (store.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.answers[answerID]; ok {
		return a, nil
	}
	return store.Answer{}, store.ErrNotFound
}

func (m *memStore) UpdateAnswerNote(_ context.Context, answerID, editorID, note string) (store.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[answerID]
	if !ok {
		return store.Answer{}, store.ErrNotFound
	}
	old := a.TechnicalAdvisoryNote
	a.TechnicalAdvisoryNote = note
	a.UpdatedAt = m.now()
	m.answers[answerID] = a
	if old != note {
		m.aHistory = append(m.aHistory, store.AnswerHistory{
			ID:        int64(len(m.aHistory) + 1),
			AnswerID:  answerID,
			UserID:    editorID,
			UserName:  m.users[editorID].Name,
			OldNote:   old,
			NewNote:   note,
			CreatedAt: a.UpdatedAt,
		})
	}
	return a, nil
}

func (m *memStore) ListQuestionHistory(_ context.Context, questionID string) ([]store.QuestionHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.QuestionHistory
	for i := len(m.qHistory) - 1; i >= 0; i-- {
		if m.qHistory[i].QuestionID == questionID {
			out = append(out, m.qHistory[i])
		}
	}
	return out, nil
}

func (m *memStore) ListAnswerHistory(_ context.Context, answerID string) ([]store.AnswerHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.AnswerHistory
	for i := len(m.aHistory) - 1; i >= 0; i-- {
		if m.aHistory[i].AnswerID == answerID {
			out = append(out, m.aHistory[i])
		}
	}
	return out, nil
}

func (m *memStore) PeekRegistrationNumber(_ context.Context, category string, year int) (advisory.RegistrationNumber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.peekErr != nil {
		return advisory.RegistrationNumber{}, m.peekErr
	}
	return advisory.RegistrationNumber{
		Seq:      m.counters[fmt.Sprintf("%s/%d", category, year)] + 1,
		Category: category,
		Year:     year,
	}, nil
}

// Lists

func (m *memStore) matching(scope store.ListScope, f advisory.Filter) []store.QuestionWithAnswer {
	f = f.Normalize()
	needle := strings.ToLower(f.Search)
	var out []store.QuestionWithAnswer
	for _, q := range m.questions {
		if scope.OwnerID != "" && q.UserID != scope.OwnerID {
			continue
		}
		if f.Status != advisory.StatusAll && string(q.Status) != string(f.Status) {
			continue
		}
		if needle != "" {
			haystack := strings.ToLower(strings.Join([]string{q.DivisiInstansi, q.NamaPemohon, q.UnitBisnis, q.DataInformasi}, "\n"))
			if !strings.Contains(haystack, needle) {
				continue
			}
		}
		if f.DateFrom != nil && q.TanggalPermohonan.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && !q.TanggalPermohonan.Before(f.DateTo.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, m.withAnswer(q))
	}
	sort.Slice(out, func(i, j int) bool {
		if f.SortBy == advisory.SortOldest {
			return out[i].TanggalPermohonan.Before(out[j].TanggalPermohonan)
		}
		return out[i].TanggalPermohonan.After(out[j].TanggalPermohonan)
	})
	return out
}

func (m *memStore) ListQuestions(_ context.Context, scope store.ListScope, filter advisory.Filter) (store.QuestionPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filter = filter.Normalize()
	all := m.matching(scope, filter)
	start := filter.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + advisory.PageSize
	if end > len(all) {
		end = len(all)
	}
	return store.QuestionPage{
		Items:      all[start:end],
		TotalCount: len(all),
		TotalPages: advisory.TotalPages(len(all)),
		Page:       filter.Page,
	}, nil
}

func (m *memStore) ListAllQuestions(_ context.Context, scope store.ListScope, filter advisory.Filter) ([]store.QuestionWithAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matching(scope, filter), nil
}

// Optional collaborators

type fakeRenderer struct {
	err    error
	format export.Format
}

func (f *fakeRenderer) RenderQuestion(_ context.Context, q store.QuestionWithAnswer, format export.Format) (*export.Result, error) {
	f.format = format
	if f.err != nil {
		return nil, f.err
	}
	return &export.Result{Data: []byte("%PDF-1.4"), Filename: "advisory_" + q.ID + "." + string(format), MimeType: "application/pdf"}, nil
}

type fakeExports struct {
	puts []string
	err  error
}

func (f *fakeExports) PutExport(_ context.Context, filename, _ string, data []byte) (storage.Object, error) {
	if f.err != nil {
		return storage.Object{}, f.err
	}
	f.puts = append(f.puts, filename)
	return storage.Object{Key: "exports/2025/03/" + filename, URL: "http://minio.local/" + filename + "?sig", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []email.AnswerNotice
	to      []string
	enabled bool
}

func (f *fakeMailer) IsConfigured() bool { return f.enabled }

func (f *fakeMailer) SendAnswerNotification(to string, notice email.AnswerNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.sent = append(f.sent, notice)
	return nil
}

// Fixtures

type fixture struct {
	store   *memStore
	svc     *Service
	mailer  *fakeMailer
	exports *fakeExports
	render  *fakeRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ms := newMemStore()
	f := &fixture{
		store:   ms,
		mailer:  &fakeMailer{enabled: true},
		exports: &fakeExports{},
		render:  &fakeRenderer{},
	}
	f.svc = New(Deps{
		Store:       ms,
		Sessions:    session.NewManager(ms, ms, session.DefaultTTL, nil),
		Credentials: authpw.NewServiceWithCost(ms, bcrypt.MinCost),
		Renderer:    f.render,
		Exports:     f.exports,
		Mailer:      f.mailer,
		AppURL:      "https://advisory.example.com/",
	})
	f.svc.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) register(t *testing.T, emailAddr, role string) *session.Session {
	t.Helper()
	sess, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    emailAddr,
		Password: "secret123",
		Name:     "User " + role,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", emailAddr, err)
	}
	return &sess
}

func sampleQuestion() QuestionInput {
	return QuestionInput{
		DivisiInstansi:     "Divisi Lingkungan",
		NamaPemohon:        "Budi",
		UnitBisnis:         "PLTU Suralaya",
		DataInformasi:      "Dokumen AMDAL 2019",
		AdvisoryDiinginkan: "Perlu addendum?",
		JenisAdvisory:      []string{"04", "13"},
	}
}

func domainCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}
