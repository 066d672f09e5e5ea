package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/coursetrack/internal/logger"
	"github.com/mind-engage/coursetrack/internal/quiz"
)

type submitRequest struct {
	EnrollmentID   string                 `json:"enrollment_id" validate:"required,notblank"`
	Answers        []quiz.SubmittedAnswer `json:"answers" validate:"dive"`
	TimeSpent      int                    `json:"time_spent" validate:"gte=0"`
	IdempotencyKey string                 `json:"idempotency_key" validate:"omitempty,max=128"`
}

// POST /quizzes/{quizID}/attempts
// The Idempotency-Key header is used when the body carries no key.
func SubmitAttemptHandler(engine *quiz.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			unauthorized(w)
			return
		}
		var req submitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		key := req.IdempotencyKey
		if key == "" {
			key = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		}
		att, err := engine.Submit(r.Context(), actor, quiz.Submission{
			QuizID:         chi.URLParam(r, "quizID"),
			EnrollmentID:   req.EnrollmentID,
			Answers:        req.Answers,
			IdempotencyKey: key,
			TimeSpent:      req.TimeSpent,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, att)
	}
}

// GET /enrollments/{enrollmentID}/attempts?quiz_id=
func ListAttemptsHandler(engine *quiz.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			unauthorized(w)
			return
		}
		atts, err := engine.ListAttempts(r.Context(), actor, chi.URLParam(r, "enrollmentID"),
			strings.TrimSpace(r.URL.Query().Get("quiz_id")))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, atts)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(engine *quiz.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			unauthorized(w)
			return
		}
		att, err := engine.GetAttempt(r.Context(), actor, chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, att)
	}
}
