package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"advisory/api/internal/advisory"
	"advisory/api/internal/export"
	"advisory/api/internal/logging"
	"advisory/api/internal/metrics"
	"advisory/api/internal/session"
)

type HTTPOptions struct {
	CORSOrigin   string
	CookieName   string
	CookieSecure bool
	// Login and register attempts per client IP.
	LoginRatePerMinute int
	LoginBurst         int
}

type HTTPServer struct {
	service *Service
	opts    HTTPOptions
	metrics *metrics.Metrics
	logger  *slog.Logger
	limiter *ipLimiter
}

func NewHTTPServer(service *Service, opts HTTPOptions, m *metrics.Metrics, logger *slog.Logger) *HTTPServer {
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPServer{
		service: service,
		opts:    opts,
		metrics: m,
		logger:  logger,
		limiter: newIPLimiter(opts.LoginRatePerMinute, opts.LoginBurst),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.routes())
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/register", s.throttled(s.handleRegister)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.throttled(s.handleLogin)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/api/session", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", s.handleUpdateProfile).Methods(http.MethodPut)

	r.HandleFunc("/api/categories", s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc("/api/questions", s.handleListQuestions).Methods(http.MethodGet)
	r.HandleFunc("/api/questions", s.handleCreateQuestion).Methods(http.MethodPost)
	r.HandleFunc("/api/questions/{id}", s.handleGetQuestion).Methods(http.MethodGet)
	r.HandleFunc("/api/questions/{id}", s.handleUpdateQuestion).Methods(http.MethodPut)
	r.HandleFunc("/api/questions/{id}", s.handleDeleteQuestion).Methods(http.MethodDelete)
	r.HandleFunc("/api/questions/{id}/history", s.handleQuestionHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/questions/{id}/answer", s.handleCreateAnswer).Methods(http.MethodPost)
	r.HandleFunc("/api/questions/{id}/registration-number", s.handlePeekRegistration).Methods(http.MethodGet)
	r.HandleFunc("/api/questions/{id}/export", s.handleRenderQuestion).Methods(http.MethodGet)

	r.HandleFunc("/api/answers/{id}", s.handleUpdateAnswer).Methods(http.MethodPut)
	r.HandleFunc("/api/answers/{id}/history", s.handleAnswerHistory).Methods(http.MethodGet)

	r.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/exports/questions.csv", s.handleExportCSV).Methods(http.MethodGet)
	r.HandleFunc("/api/exports/questions", s.handleArchiveExport).Methods(http.MethodPost)
	return r
}

// Health

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// Auth

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body RegisterInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.Register(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusCreated, sessionPayload(sess))
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body LoginInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.Login(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

// handleLogout deletes the session before the cookie is cleared.
func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Logout(r.Context(), s.token(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	if sess == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          sess.User,
		"expiresAt":     sess.ExpiresAt,
	})
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body ProfileInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	user, err := s.service.UpdateProfile(r.Context(), s.session(r), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// Questions

func (s *HTTPServer) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.service.Categories()})
}

func (s *HTTPServer) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	page, err := s.service.ListQuestions(r.Context(), s.session(r), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var body QuestionInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	question, err := s.service.SubmitQuestion(r.Context(), s.session(r), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"question": question})
}

func (s *HTTPServer) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := s.service.GetQuestion(r.Context(), s.session(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"question": question})
}

func (s *HTTPServer) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var body QuestionInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	changes, err := s.service.EditQuestion(r.Context(), s.session(r), mux.Vars(r)["id"], body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	fields := make([]string, 0, len(changes))
	for _, change := range changes {
		fields = append(fields, change.Field)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "changedFields": fields})
}

func (s *HTTPServer) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteQuestion(r.Context(), s.session(r), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleQuestionHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.service.QuestionHistory(r.Context(), s.session(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// Answers

func (s *HTTPServer) handleCreateAnswer(w http.ResponseWriter, r *http.Request) {
	var body AnswerInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	answer, err := s.service.SubmitAnswer(r.Context(), s.session(r), mux.Vars(r)["id"], body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"answer": answer})
}

func (s *HTTPServer) handlePeekRegistration(w http.ResponseWriter, r *http.Request) {
	number, err := s.service.PeekNextRegistrationNumber(r.Context(), s.session(r), mux.Vars(r)["id"], r.URL.Query().Get("category"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"noRegistrasi": number})
}

func (s *HTTPServer) handleUpdateAnswer(w http.ResponseWriter, r *http.Request) {
	var body AnswerNoteInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	answer, err := s.service.EditAnswerNote(r.Context(), s.session(r), mux.Vars(r)["id"], body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answer": answer})
}

func (s *HTTPServer) handleAnswerHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.service.AnswerHistory(r.Context(), s.session(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// Search and export

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	resp, err := s.service.SearchQuestions(r.Context(), s.session(r), advisory.Filter{
		Search: query.Get("q"),
		Status: advisory.StatusFilter(query.Get("status")),
		Page:   page,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.service.ExportCSV(r.Context(), s.session(r), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeFile(w, result)
}

func (s *HTTPServer) handleArchiveExport(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	object, err := s.service.ArchiveExport(r.Context(), s.session(r), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, object)
}

func (s *HTTPServer) handleRenderQuestion(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.RenderQuestion(r.Context(), s.session(r), mux.Vars(r)["id"], r.URL.Query().Get("format"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeFile(w, result)
}

// Sessions and transport helpers

// token reads the session cookie, then the bearer header.
func (s *HTTPServer) token(r *http.Request) string {
	if cookie, err := r.Cookie(s.opts.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r)
}

func (s *HTTPServer) session(r *http.Request) *session.Session {
	return s.service.CurrentSession(r.Context(), s.token(r))
}

func (s *HTTPServer) setSessionCookie(w http.ResponseWriter, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionPayload(sess session.Session) map[string]any {
	return map[string]any{
		"token":     sess.Token,
		"user":      sess.User,
		"role":      sess.User.Role,
		"expiresAt": sess.ExpiresAt,
	}
}

func filterFromQuery(query url.Values) (advisory.Filter, error) {
	from, err := advisory.ParseDate(query.Get("dateFrom"))
	if err != nil {
		return advisory.Filter{}, validationError("dateFrom", "Format tanggal harus YYYY-MM-DD")
	}
	to, err := advisory.ParseDate(query.Get("dateTo"))
	if err != nil {
		return advisory.Filter{}, validationError("dateTo", "Format tanggal harus YYYY-MM-DD")
	}
	page, _ := strconv.Atoi(query.Get("page"))
	return advisory.Filter{
		Status:   advisory.StatusFilter(query.Get("status")),
		SortBy:   advisory.SortOrder(query.Get("sortBy")),
		Search:   query.Get("search"),
		DateFrom: from,
		DateTo:   to,
		Page:     page,
	}, nil
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		var domainErr *DomainError
		if !errors.As(err, &domainErr) {
			s.logger.ErrorContext(r.Context(), "unhandled error", "request_id", RequestID(r.Context()), "error", err)
		}
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.opts.CORSOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.logger.InfoContext(ctx, "http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

// observe records per-route metrics; it runs inside the router so the
// matched path template is known.
func (s *HTTPServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		s.metrics.ObserveRequest(route, r.Method, writer.status, time.Since(started))
	})
}

func (s *HTTPServer) throttled(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", msgTooManyAttempts, nil)
			return
		}
		next(w, r)
	}
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	if corsOrigin != "*" {
		header.Set("Access-Control-Allow-Credentials", "true")
	}
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeFile(w http.ResponseWriter, result *export.Result) {
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// ipLimiter keeps one token bucket per client address.
type ipLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const visitorIdle = 10 * time.Minute

func newIPLimiter(perMinute, burst int) *ipLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{limit: limit, burst: burst, visitors: make(map[string]*visitor)}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	v, ok := l.visitors[ip]
	if !ok {
		if len(l.visitors) > 1024 {
			l.evictIdle(now)
		}
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *ipLimiter) evictIdle(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorIdle {
			delete(l.visitors, ip)
		}
	}
}
