package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"quiz-desk/internal/app"
	"quiz-desk/internal/auth"
	"quiz-desk/internal/domain"
	"quiz-desk/internal/importer"
	"quiz-desk/internal/metrics"
)

const maxImportBytes = 5 << 20

// APIHandler serves the REST side: accounts, question authoring and
// score history.
type APIHandler struct {
	service *app.QuizService
	auth    *auth.Manager
	log     *zap.Logger
}

func NewAPIHandler(service *app.QuizService, authManager *auth.Manager, log *zap.Logger) *APIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIHandler{service: service, auth: authManager, log: log}
}

// Routes mounts every endpoint on mux, each wrapped with request metrics.
func (h *APIHandler) Routes(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"POST /api/register", h.register},
		{"POST /api/login", h.login},
		{"GET /api/questions", h.listQuestions},
		{"POST /api/questions", h.requireLogin(h.addQuestion)},
		{"POST /api/questions/import", h.requireLogin(h.importQuestions)},
		{"GET /api/history/{username}", h.history},
		{"GET /api/rankings", h.rankings},
	}
	for _, route := range routes {
		mux.Handle(route.pattern, metrics.Middleware(route.pattern, route.handler))
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Username string `json:"username"`
}

type historyResponse struct {
	Username   string               `json:"username"`
	Records    []domain.ScoreRecord `json:"records"`
	Percentage float64              `json:"percentage"`
}

type rankingEntry struct {
	Username   string    `json:"username"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	Timestamp  time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.Register(r.Context(), req.Username, req.Password); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{Username: strings.TrimSpace(req.Username)})
}

func (h *APIHandler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.Login(r.Context(), req.Username, req.Password); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Username: strings.TrimSpace(req.Username)})
}

// requireLogin rejects requests without valid basic auth credentials.
func (h *APIHandler) requireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authenticated, err := h.authenticate(r)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if !authenticated {
			w.Header().Set("WWW-Authenticate", authRealm)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}
		next(w, r)
	}
}

const authRealm = `Basic realm="quiz-desk"`

// authenticate reports whether r carries basic auth credentials and checks
// them when it does.
func (h *APIHandler) authenticate(r *http.Request) (bool, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return false, nil
	}
	if err := h.auth.Login(r.Context(), username, password); err != nil {
		return false, err
	}
	return true, nil
}

// listQuestions returns the bank. Answers are only included for
// authenticated callers.
func (h *APIHandler) listQuestions(w http.ResponseWriter, r *http.Request) {
	authenticated, err := h.authenticate(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	questions, err := h.service.ListQuestions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if authenticated {
		writeJSON(w, http.StatusOK, questions)
		return
	}
	views := make([]domain.QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, q.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *APIHandler) addQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if !decodeJSON(w, r, &q) {
		return
	}
	if kind, ok := domain.ParseKind(string(q.Kind)); ok {
		q.Kind = kind
	}
	stored, err := h.service.AddQuestion(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *APIHandler) importQuestions(w http.ResponseWriter, r *http.Request) {
	format, err := importer.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	result, err := h.service.ImportQuestions(r.Context(), body, format)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) history(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	records, err := h.service.History().HistoryFor(r.Context(), username)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Username:   username,
		Records:    records,
		Percentage: domain.AggregatePercentage(records),
	})
}

func (h *APIHandler) rankings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	records, err := h.service.History().Rankings(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	entries := make([]rankingEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rankingEntry{
			Username:   rec.Username,
			Score:      rec.Score,
			Total:      rec.Total,
			Percentage: rec.Percentage(),
			Timestamp:  rec.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeError maps domain errors to status codes. Anything unrecognized is
// logged and reported as a 500 without details.
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrImportFormat):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthFailure):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateUsername),
		errors.Is(err, domain.ErrNoQuestions),
		errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrSessionClosed):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
