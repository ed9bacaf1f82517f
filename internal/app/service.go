package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"advisory/api/internal/advisory"
	"advisory/api/internal/authpw"
	"advisory/api/internal/email"
	"advisory/api/internal/export"
	"advisory/api/internal/logging"
	"advisory/api/internal/metrics"
	"advisory/api/internal/rbac"
	"advisory/api/internal/search"
	"advisory/api/internal/session"
	"advisory/api/internal/storage"
	"advisory/api/internal/store"
)

// DataStore is the persistence the service needs; *store.PostgresStore
// satisfies it.
type DataStore interface {
	search.QuestionSource
	CreateQuestion(ctx context.Context, ownerID string, in store.QuestionFields) (store.Question, error)
	GetQuestion(ctx context.Context, scope store.ListScope, questionID string) (store.QuestionWithAnswer, error)
	UpdateQuestion(ctx context.Context, ownerID, questionID string, in store.QuestionFields) ([]store.FieldChange, error)
	DeleteQuestion(ctx context.Context, ownerID, questionID string) error
	CreateAnswer(ctx context.Context, in store.NewAnswer) (store.Answer, error)
	GetAnswer(ctx context.Context, answerID string) (store.Answer, error)
	UpdateAnswerNote(ctx context.Context, answerID, editorID, note string) (store.Answer, error)
	ListQuestionHistory(ctx context.Context, questionID string) ([]store.QuestionHistory, error)
	ListAnswerHistory(ctx context.Context, answerID string) ([]store.AnswerHistory, error)
	PeekRegistrationNumber(ctx context.Context, category string, year int) (advisory.RegistrationNumber, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	Ping(ctx context.Context) error
}

// Renderer turns one question into a PDF or PNG; *export.Chrome satisfies it.
type Renderer interface {
	RenderQuestion(ctx context.Context, q store.QuestionWithAnswer, format export.Format) (*export.Result, error)
}

type Notifier interface {
	IsConfigured() bool
	SendAnswerNotification(to string, notice email.AnswerNotice) error
}

// Deps wires the service. Renderer, Exports and Mailer are optional.
type Deps struct {
	Store       DataStore
	Sessions    *session.Manager
	Credentials *authpw.Service
	Search      *search.Service
	Renderer    Renderer
	Exports     storage.Exports
	Mailer      Notifier
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	// AppURL prefixes links in notification emails.
	AppURL string
}

type Service struct {
	store       DataStore
	sessions    *session.Manager
	credentials *authpw.Service
	search      *search.Service
	renderer    Renderer
	exports     storage.Exports
	mailer      Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
	appURL      string
	now         func() time.Time
	background  sync.WaitGroup
}

func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	searchSvc := deps.Search
	if searchSvc == nil {
		searchSvc = search.NewService(nil, deps.Store, logger)
	}
	return &Service{
		store:       deps.Store,
		sessions:    deps.Sessions,
		credentials: deps.Credentials,
		search:      searchSvc,
		renderer:    deps.Renderer,
		exports:     deps.Exports,
		mailer:      deps.Mailer,
		metrics:     deps.Metrics,
		logger:      logger,
		appURL:      strings.TrimRight(deps.AppURL, "/"),
		now:         time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Wait blocks until background work (indexing, notifications) has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) goBackground(ctx context.Context, fn func(context.Context)) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		fn(context.WithoutCancel(ctx))
	}()
}

// Auth

func (s *Service) Register(ctx context.Context, in RegisterInput) (session.Session, error) {
	in = in.normalized()
	if err := validateInput(in); err != nil {
		return session.Session{}, err
	}
	role, _ := rbac.Parse(in.Role)
	user, err := s.credentials.Register(ctx, authpw.RegisterRequest{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Role:     role,
	})
	if err != nil {
		switch {
		case errors.Is(err, authpw.ErrEmailRegistered):
			return session.Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", msgEmailRegistered, nil)
		case errors.Is(err, authpw.ErrPasswordTooShort):
			return session.Session{}, validationError("password", "Password minimal 6 karakter")
		case errors.Is(err, authpw.ErrInvalidRole):
			return session.Session{}, validationError("role", "Role harus penanya atau penjawab")
		}
		s.logger.ErrorContext(ctx, "register failed", "error", err)
		return session.Session{}, operationFailed(msgRegisterFailed)
	}
	sess, err := s.sessions.Create(ctx, user)
	if err != nil {
		s.logger.ErrorContext(ctx, "session after register failed", "user_id", user.ID, "error", err)
		return session.Session{}, operationFailed(msgRegisterFailed)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return sess, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (session.Session, error) {
	in = in.normalized()
	if err := validateInput(in); err != nil {
		return session.Session{}, err
	}
	user, err := s.credentials.SignIn(ctx, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return session.Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", msgInvalidCredentials, nil)
		}
		s.logger.ErrorContext(ctx, "login failed", "error", err)
		return session.Session{}, operationFailed(msgLoginFailed)
	}
	sess, err := s.sessions.Create(ctx, user)
	if err != nil {
		s.logger.ErrorContext(ctx, "create session failed", "user_id", user.ID, "error", err)
		return session.Session{}, operationFailed(msgLoginFailed)
	}
	return sess, nil
}

// Logout is idempotent; an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		s.logger.ErrorContext(ctx, "logout failed", "error", err)
		return operationFailed(msgLogoutFailed)
	}
	return nil
}

// CurrentSession resolves a token. Any failure means "no session" so callers
// can always fall back to the login page.
func (s *Service) CurrentSession(ctx context.Context, token string) *session.Session {
	if token == "" {
		return nil
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			s.logger.WarnContext(ctx, "session lookup failed", "error", err)
		}
		return nil
	}
	return &sess
}

func (s *Service) SessionTTL() time.Duration {
	return s.sessions.TTL()
}

func (s *Service) UpdateProfile(ctx context.Context, sess *session.Session, in ProfileInput) (store.User, error) {
	if sess == nil {
		return store.User{}, errUnauthenticated()
	}
	in = in.normalized()
	if err := validateInput(in); err != nil {
		return store.User{}, err
	}
	user, err := s.credentials.UpdateProfile(ctx, sess.User.ID, authpw.ProfileRequest{
		Name:            in.Name,
		Email:           in.Email,
		CurrentPassword: in.CurrentPassword,
		NewPassword:     in.NewPassword,
		ConfirmPassword: in.ConfirmPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, authpw.ErrProfileIncomplete):
			return store.User{}, validationError("name", "Nama dan email harus diisi")
		case errors.Is(err, authpw.ErrCurrentPasswordRequired):
			return store.User{}, validationError("currentPassword", "Password saat ini harus diisi untuk mengubah password")
		case errors.Is(err, authpw.ErrPasswordConfirmMismatch):
			return store.User{}, validationError("confirmPassword", "Password baru dan konfirmasi tidak sesuai")
		case errors.Is(err, authpw.ErrPasswordTooShort):
			return store.User{}, validationError("newPassword", "Password baru minimal 6 karakter")
		case errors.Is(err, authpw.ErrCurrentPasswordMismatch):
			return store.User{}, validationError("currentPassword", "Password saat ini tidak sesuai")
		case errors.Is(err, authpw.ErrEmailRegistered):
			return store.User{}, domainError(http.StatusConflict, "EMAIL_EXISTS", msgEmailRegistered, nil)
		}
		s.logger.ErrorContext(ctx, "update profile failed", "user_id", sess.User.ID, "error", err)
		return store.User{}, operationFailed(msgProfileFailed)
	}
	return user, nil
}

// Questions

func (s *Service) Categories() []advisory.Category {
	return advisory.Categories()
}

func (s *Service) SubmitQuestion(ctx context.Context, sess *session.Session, in QuestionInput) (store.Question, error) {
	if err := authorize(sess, rbac.ActionSubmitQuestion); err != nil {
		return store.Question{}, err
	}
	in = in.normalized()
	if err := validateInput(in); err != nil {
		return store.Question{}, err
	}
	question, err := s.store.CreateQuestion(ctx, sess.User.ID, in.fields())
	if err != nil {
		s.logger.ErrorContext(ctx, "create question failed", "user_id", sess.User.ID, "error", err)
		return store.Question{}, operationFailed(msgCreateQuestionFailed)
	}
	s.metrics.QuestionCreated()
	s.goBackground(ctx, func(ctx context.Context) {
		s.search.IndexQuestion(ctx, store.QuestionWithAnswer{Question: question})
	})
	return question, nil
}

// EditQuestion overwrites an unanswered question owned by the caller and
// returns the audited changes.
func (s *Service) EditQuestion(ctx context.Context, sess *session.Session, questionID string, in QuestionInput) ([]store.FieldChange, error) {
	if err := authorize(sess, rbac.ActionEditQuestion); err != nil {
		return nil, err
	}
	in = in.normalized()
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if !isID(questionID) {
		return nil, errNotFoundOrAnswered()
	}
	changes, err := s.store.UpdateQuestion(ctx, sess.User.ID, questionID, in.fields())
	if err != nil {
		if errors.Is(err, store.ErrNotFoundOrAlreadyAnswered) {
			return nil, errNotFoundOrAnswered()
		}
		s.logger.ErrorContext(ctx, "update question failed", "question_id", questionID, "error", err)
		return nil, operationFailed(msgUpdateQuestionFailed)
	}
	if len(changes) > 0 {
		s.reindex(ctx, questionID)
	}
	return changes, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, sess *session.Session, questionID string) error {
	if err := authorize(sess, rbac.ActionDeleteQuestion); err != nil {
		return err
	}
	if !isID(questionID) {
		return errNotFoundOrAnswered()
	}
	if err := s.store.DeleteQuestion(ctx, sess.User.ID, questionID); err != nil {
		if errors.Is(err, store.ErrNotFoundOrAlreadyAnswered) {
			return errNotFoundOrAnswered()
		}
		s.logger.ErrorContext(ctx, "delete question failed", "question_id", questionID, "error", err)
		return operationFailed(msgDeleteQuestionFailed)
	}
	s.goBackground(ctx, func(ctx context.Context) {
		s.search.DeleteQuestion(ctx, questionID)
	})
	return nil
}

func (s *Service) GetQuestion(ctx context.Context, sess *session.Session, questionID string) (store.QuestionWithAnswer, error) {
	if err := authorize(sess, rbac.ActionListQuestions); err != nil {
		return store.QuestionWithAnswer{}, err
	}
	return s.visibleQuestion(ctx, sess, questionID)
}

func (s *Service) visibleQuestion(ctx context.Context, sess *session.Session, questionID string) (store.QuestionWithAnswer, error) {
	if !isID(questionID) {
		return store.QuestionWithAnswer{}, notFound(msgQuestionNotFound)
	}
	question, err := s.store.GetQuestion(ctx, readScope(sess), questionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.QuestionWithAnswer{}, notFound(msgQuestionNotFound)
		}
		s.logger.ErrorContext(ctx, "get question failed", "question_id", questionID, "error", err)
		return store.QuestionWithAnswer{}, operationFailed(msgLoadQuestionsFailed)
	}
	return question, nil
}

func (s *Service) ListQuestions(ctx context.Context, sess *session.Session, filter advisory.Filter) (store.QuestionPage, error) {
	if err := authorize(sess, rbac.ActionListQuestions); err != nil {
		return store.QuestionPage{}, err
	}
	if err := filter.Validate(); err != nil {
		return store.QuestionPage{}, filterError(err)
	}
	page, err := s.store.ListQuestions(ctx, readScope(sess), filter.Normalize())
	if err != nil {
		s.logger.ErrorContext(ctx, "list questions failed", "user_id", sess.User.ID, "error", err)
		return store.QuestionPage{}, operationFailed(msgLoadQuestionsFailed)
	}
	return page, nil
}

// QuestionHistory is visible to whoever can see the question.
func (s *Service) QuestionHistory(ctx context.Context, sess *session.Session, questionID string) ([]store.QuestionHistory, error) {
	if err := authorize(sess, rbac.ActionViewHistory); err != nil {
		return nil, err
	}
	if _, err := s.visibleQuestion(ctx, sess, questionID); err != nil {
		return nil, err
	}
	history, err := s.store.ListQuestionHistory(ctx, questionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "question history failed", "question_id", questionID, "error", err)
		return nil, operationFailed(msgLoadHistoryFailed)
	}
	return history, nil
}

// Answers

// SubmitAnswer records the single answer for a question. The submitted
// registration number picks the category; the sequence is allocated by the
// store so concurrent answers never share a number.
func (s *Service) SubmitAnswer(ctx context.Context, sess *session.Session, questionID string, in AnswerInput) (store.Answer, error) {
	if err := authorize(sess, rbac.ActionAnswerQuestion); err != nil {
		return store.Answer{}, err
	}
	in.NoRegistrasi = strings.TrimSpace(in.NoRegistrasi)
	in.TechnicalAdvisoryNote = export.SanitizeNote(in.TechnicalAdvisoryNote)
	if export.StripTags(in.TechnicalAdvisoryNote) == "" {
		in.TechnicalAdvisoryNote = ""
	}
	if err := validateInput(in); err != nil {
		return store.Answer{}, err
	}
	number, err := advisory.ParseRegistrationNumber(in.NoRegistrasi)
	if err != nil {
		return store.Answer{}, validationError("noRegistrasi", msgInvalidRegistration)
	}
	if !isID(questionID) {
		return store.Answer{}, notFound(msgQuestionNotFound)
	}

	answer, err := s.store.CreateAnswer(ctx, store.NewAnswer{
		QuestionID: questionID,
		AnswererID: sess.User.ID,
		Category:   number.Category,
		Year:       s.now().Year(),
		Note:       in.TechnicalAdvisoryNote,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return store.Answer{}, notFound(msgQuestionNotFound)
		case errors.Is(err, store.ErrAlreadyAnswered):
			s.metrics.AnswerConflict()
			return store.Answer{}, domainError(http.StatusConflict, "ALREADY_ANSWERED", msgAlreadyAnswered, nil)
		case errors.Is(err, store.ErrCategoryMismatch):
			return store.Answer{}, validationError("noRegistrasi", msgCategoryMismatch)
		}
		s.logger.ErrorContext(ctx, "answer question failed", "question_id", questionID, "error", err)
		return store.Answer{}, operationFailed(msgAnswerFailed)
	}
	s.metrics.AnswerCreated()
	if answer.NoRegistrasi != in.NoRegistrasi {
		s.logger.InfoContext(ctx, "registration number reassigned",
			"question_id", questionID, "proposed", in.NoRegistrasi, "assigned", answer.NoRegistrasi)
	}
	s.goBackground(ctx, func(ctx context.Context) {
		s.afterAnswer(ctx, questionID, answer)
	})
	return answer, nil
}

// afterAnswer refreshes the search index and notifies the question owner.
// Failures are logged only.
func (s *Service) afterAnswer(ctx context.Context, questionID string, answer store.Answer) {
	question, err := s.store.GetQuestion(ctx, store.ListScope{}, questionID)
	if err != nil {
		s.logger.WarnContext(ctx, "reload answered question failed", "question_id", questionID, "error", err)
		return
	}
	s.search.IndexQuestion(ctx, question)

	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	owner, err := s.store.GetUserByID(ctx, question.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "notification recipient lookup failed", "question_id", questionID, "error", err)
		return
	}
	notice := email.AnswerNotice{
		RecipientName:  owner.Name,
		NamaPemohon:    question.NamaPemohon,
		NoRegistrasi:   answer.NoRegistrasi,
		TanggalJawaban: export.FormatDateID(answer.TanggalJawaban),
	}
	if s.appURL != "" {
		notice.QuestionURL = s.appURL + "/questions/" + questionID
	}
	err = s.mailer.SendAnswerNotification(owner.Email, notice)
	s.metrics.Notification(err)
	if err != nil {
		s.logger.WarnContext(ctx, "answer notification failed", "question_id", questionID, "error", err)
	}
}

func (s *Service) reindex(ctx context.Context, questionID string) {
	s.goBackground(ctx, func(ctx context.Context) {
		question, err := s.store.GetQuestion(ctx, store.ListScope{}, questionID)
		if err != nil {
			s.logger.WarnContext(ctx, "reindex question failed", "question_id", questionID, "error", err)
			return
		}
		s.search.IndexQuestion(ctx, question)
	})
}

// EditAnswerNote is open to any responder.
func (s *Service) EditAnswerNote(ctx context.Context, sess *session.Session, answerID string, in AnswerNoteInput) (store.Answer, error) {
	if err := authorize(sess, rbac.ActionEditAnswer); err != nil {
		return store.Answer{}, err
	}
	in.TechnicalAdvisoryNote = export.SanitizeNote(in.TechnicalAdvisoryNote)
	if export.StripTags(in.TechnicalAdvisoryNote) == "" {
		in.TechnicalAdvisoryNote = ""
	}
	if err := validateInput(in); err != nil {
		return store.Answer{}, err
	}
	if !isID(answerID) {
		return store.Answer{}, notFound(msgAnswerNotFound)
	}
	answer, err := s.store.UpdateAnswerNote(ctx, answerID, sess.User.ID, in.TechnicalAdvisoryNote)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Answer{}, notFound(msgAnswerNotFound)
		}
		s.logger.ErrorContext(ctx, "update answer failed", "answer_id", answerID, "error", err)
		return store.Answer{}, operationFailed(msgUpdateAnswerFailed)
	}
	return answer, nil
}

func (s *Service) AnswerHistory(ctx context.Context, sess *session.Session, answerID string) ([]store.AnswerHistory, error) {
	if err := authorize(sess, rbac.ActionViewHistory); err != nil {
		return nil, err
	}
	if !isID(answerID) {
		return nil, notFound(msgAnswerNotFound)
	}
	answer, err := s.store.GetAnswer(ctx, answerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(msgAnswerNotFound)
		}
		s.logger.ErrorContext(ctx, "get answer failed", "answer_id", answerID, "error", err)
		return nil, operationFailed(msgLoadHistoryFailed)
	}
	if _, err := s.visibleQuestion(ctx, sess, answer.QuestionID); err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) && domainErr.Status == http.StatusNotFound {
			return nil, notFound(msgAnswerNotFound)
		}
		return nil, err
	}
	history, err := s.store.ListAnswerHistory(ctx, answerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "answer history failed", "answer_id", answerID, "error", err)
		return nil, operationFailed(msgLoadHistoryFailed)
	}
	return history, nil
}

// PeekNextRegistrationNumber previews the number the next answer in category
// would get. It reserves nothing and falls back to 001 when the counter
// cannot be read.
func (s *Service) PeekNextRegistrationNumber(ctx context.Context, sess *session.Session, questionID, category string) (string, error) {
	if err := authorize(sess, rbac.ActionPeekRegistration); err != nil {
		return "", err
	}
	category = strings.TrimSpace(category)
	if !advisory.IsCategory(category) {
		return "", validationError("category", msgInvalidCategory)
	}
	if questionID != "" {
		question, err := s.visibleQuestion(ctx, sess, questionID)
		if err != nil {
			return "", err
		}
		if !advisory.ContainsCategory(question.JenisAdvisory, category) {
			return "", validationError("category", msgCategoryMismatch)
		}
	}
	year := s.now().Year()
	number, err := s.store.PeekRegistrationNumber(ctx, category, year)
	if err != nil {
		s.logger.WarnContext(ctx, "peek registration number failed", "category", category, "error", err)
		return advisory.FallbackRegistrationNumber(category, year).String(), nil
	}
	return number.String(), nil
}

// Search and export

// SearchQuestions uses filter.Search, filter.Status and filter.Page; the
// index orders hits itself, so sort and date bounds do not apply.
func (s *Service) SearchQuestions(ctx context.Context, sess *session.Session, filter advisory.Filter) (search.Response, error) {
	if err := authorize(sess, rbac.ActionListQuestions); err != nil {
		return search.Response{}, err
	}
	if err := filter.Validate(); err != nil {
		return search.Response{}, filterError(err)
	}
	resp, err := s.search.Search(ctx, readScope(sess), filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "search failed", "error", err)
		return search.Response{}, operationFailed(msgSearchFailed)
	}
	return resp, nil
}

// ExportCSV renders every question matching filter, ignoring the page.
func (s *Service) ExportCSV(ctx context.Context, sess *session.Session, filter advisory.Filter) (*export.Result, error) {
	if err := authorize(sess, rbac.ActionExport); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, filterError(err)
	}
	questions, err := s.store.ListAllQuestions(ctx, readScope(sess), filter.Normalize())
	if err != nil {
		s.logger.ErrorContext(ctx, "export list failed", "error", err)
		s.metrics.Export(string(export.FormatCSV), err)
		return nil, operationFailed(msgExportFailed)
	}
	var buf bytes.Buffer
	err = export.WriteCSV(&buf, questions)
	s.metrics.Export(string(export.FormatCSV), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "write csv failed", "error", err)
		return nil, operationFailed(msgExportFailed)
	}
	return &export.Result{
		Data:     buf.Bytes(),
		Filename: export.CSVFilename(s.now()),
		MimeType: "text/csv; charset=utf-8",
	}, nil
}

// ArchiveExport stores the CSV export and returns a temporary download link.
func (s *Service) ArchiveExport(ctx context.Context, sess *session.Session, filter advisory.Filter) (storage.Object, error) {
	if err := authorize(sess, rbac.ActionExport); err != nil {
		return storage.Object{}, err
	}
	if s.exports == nil {
		return storage.Object{}, domainError(http.StatusServiceUnavailable, "EXPORT_STORAGE_UNAVAILABLE", msgArchiveUnavailable, nil)
	}
	result, err := s.ExportCSV(ctx, sess, filter)
	if err != nil {
		return storage.Object{}, err
	}
	object, err := s.exports.PutExport(ctx, result.Filename, result.MimeType, result.Data)
	if err != nil {
		s.logger.ErrorContext(ctx, "archive export failed", "filename", result.Filename, "error", err)
		return storage.Object{}, operationFailed(msgExportFailed)
	}
	s.logger.InfoContext(ctx, "export archived", "key", object.Key, "user_id", sess.User.ID)
	return object, nil
}

func (s *Service) RenderQuestion(ctx context.Context, sess *session.Session, questionID, format string) (*export.Result, error) {
	if err := authorize(sess, rbac.ActionExport); err != nil {
		return nil, err
	}
	parsed, ok := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if !ok {
		return nil, validationError("format", msgInvalidExportFormat)
	}
	question, err := s.visibleQuestion(ctx, sess, questionID)
	if err != nil {
		return nil, err
	}
	if s.renderer == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", msgExportUnavailable, nil)
	}
	result, err := s.renderer.RenderQuestion(ctx, question, parsed)
	s.metrics.Export(string(parsed), err)
	if err != nil {
		if errors.Is(err, export.ErrBrowserMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", msgExportUnavailable, nil)
		}
		s.logger.ErrorContext(ctx, "render question failed", "question_id", questionID, "format", parsed, "error", err)
		return nil, operationFailed(msgExportFailed)
	}
	return result, nil
}

func isID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
