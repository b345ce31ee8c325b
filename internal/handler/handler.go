package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/mentor/internal/engine"
	"github.com/pavelanni/mentor/internal/model"
	"github.com/pavelanni/mentor/internal/store"
)

const sessionCookieName = "mentor_session"

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	tutor  *engine.Tutor
	config model.TutorConfig
}

// New creates a new Handler.
func New(s *store.Store, t *engine.Tutor, cfg model.TutorConfig) *Handler {
	return &Handler{store: s, tutor: t, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/register", h.handleRegister)
	r.Post("/api/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/api/logout", h.handleLogout)
		r.Get("/api/modules", h.handleListModules)
		r.Get("/api/progress", h.handleProgress)
		r.Post("/api/lessons", h.handleStartLesson)
		r.Post("/api/sessions/{sessionID}/complete", h.handleCompleteSession)
		r.Post("/api/sessions/{sessionID}/chat", h.handleChat)
		r.Get("/api/sessions/{sessionID}/check", h.handleCheckQuestion)
		r.Post("/api/sessions/{sessionID}/check", h.handleCheckAnswer)
		r.Get("/api/retention/due", h.handleDueTests)
		r.Post("/api/retention/{testID}", h.handleAnswerTest)
		r.Get("/api/retention/stats", h.handleRetentionStats)
		r.Get("/api/insights", h.handleInsights)
		r.Get("/api/concepts", h.handleConcepts)
		r.Post("/api/review", h.handleReview)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps engine sentinel errors to HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrAlreadyCompleted):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInvalidModality), errors.Is(err, engine.ErrInvalidScore):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrGenerationFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// requireAuth resolves the session token (Authorization bearer or cookie)
// into a user and stores it in the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		} else if c, err := r.Cookie(sessionCookieName); err == nil {
			token = c.Value
		}
		if token == "" {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}
		sess, err := h.store.GetAuthSession(token)
		if err != nil {
			respondError(w, err)
			return
		}
		if sess == nil {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired session"})
			return
		}
		user, err := h.store.GetUserByID(sess.UserID)
		if err != nil {
			respondError(w, err)
			return
		}
		if user == nil || !user.Active {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "account disabled"})
			return
		}
		next.ServeHTTP(w, r.WithContext(model.ContextWithUser(r.Context(), user)))
	})
}

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || len(req.Password) < 8 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "username and a password of at least 8 characters are required"})
		return
	}
	existing, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	if existing != nil {
		respondJSON(w, http.StatusConflict, errorResponse{Error: "username already taken"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := h.store.CreateUser(model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         model.UserRoleLearner,
		Active:       true,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "username": req.Username})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	if user == nil || !user.Active ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}
	token, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]any{"token": token, "user_id": user.ID, "display_name": user.DisplayName})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		_ = h.store.DeleteAuthSession(c.Value)
	} else if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		_ = h.store.DeleteAuthSession(strings.TrimPrefix(auth, "Bearer "))
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", MaxAge: -1})
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) handleListModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.store.ListModules()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, modules)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	records, err := h.store.ListModuleProgress(user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

type startLessonRequest struct {
	ModuleID string `json:"module_id"`
	Modality string `json:"modality,omitempty"` // optional override
}

func (h *Handler) handleStartLesson(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req startLessonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ModuleID == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "module_id is required"})
		return
	}
	lesson, err := h.tutor.StartLesson(r.Context(), user.ID, req.ModuleID, req.Modality)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, lesson)
}

// ownedSession loads the session from the URL and verifies it belongs to the
// authenticated user. Writes the error response itself on failure.
func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request) *model.LearningSession {
	user := model.UserFromContext(r.Context())
	sess, err := h.store.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, err)
		return nil
	}
	if sess == nil || sess.UserID != user.ID {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return nil
	}
	return sess
}

type completeSessionRequest struct {
	EngagementScore    float64  `json:"engagement_score"`
	ComprehensionScore float64  `json:"comprehension_score"`
	ConceptsCovered    []string `json:"concepts_covered"`
}

func (h *Handler) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	sess := h.ownedSession(w, r)
	if sess == nil {
		return
	}
	var req completeSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := h.tutor.CompleteSession(r.Context(), sess.ID, req.EngagementScore, req.ComprehensionScore, req.ConceptsCovered)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := h.ownedSession(w, r)
	if sess == nil {
		return
	}
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Message == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}
	reply, err := h.tutor.Chat(r.Context(), sess.ID, req.Message)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (h *Handler) handleCheckQuestion(w http.ResponseWriter, r *http.Request) {
	sess := h.ownedSession(w, r)
	if sess == nil {
		return
	}
	question, err := h.tutor.ComprehensionQuestion(r.Context(), sess.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"question": question})
}

type checkAnswerRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) handleCheckAnswer(w http.ResponseWriter, r *http.Request) {
	sess := h.ownedSession(w, r)
	if sess == nil {
		return
	}
	var req checkAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.tutor.EvaluateComprehension(r.Context(), sess.ID, req.Answer)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDueTests(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	due, err := h.tutor.Repetition().DueTests(r.Context(), user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, due)
}

type answerTestRequest struct {
	Response string `json:"response"`
}

func (h *Handler) handleAnswerTest(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	testID := chi.URLParam(r, "testID")
	test, err := h.store.GetRetentionTest(testID)
	if err != nil {
		respondError(w, err)
		return
	}
	if test == nil || test.UserID != user.ID {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "retention test not found"})
		return
	}
	var req answerTestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Response == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "response is required"})
		return
	}
	result, err := h.tutor.Repetition().Evaluate(r.Context(), testID, req.Response)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRetentionStats(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	stats, err := h.tutor.Repetition().Stats(user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	insights, err := h.tutor.Insights(user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, insights)
}

func (h *Handler) handleConcepts(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	breakdown, err := h.tutor.Concepts(user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	review, err := h.tutor.ReviewSession(r.Context(), user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, review)
}
