package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/enrollment"
	"github.com/mind-engage/coursetrack/internal/logger"
)

type enrollRequest struct {
	CourseID  string `json:"course_id" validate:"required,notblank,max=128"`
	LearnerID string `json:"learner_id" validate:"omitempty,max=128"`
}

// POST /enrollments
// A repeat enrollment answers 409 with the existing enrollment in the body.
func EnrollHandler(tracker *enrollment.Tracker, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			unauthorized(w)
			return
		}
		var req enrollRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		e, err := tracker.Enroll(r.Context(), actor, req.LearnerID, req.CourseID)
		if apperr.Is(err, apperr.KindConflict) {
			writeErrorWith(w, r, log, err, map[string]any{"enrollment": e})
			return
		}
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GET /enrollments?learner_id=
func ListEnrollmentsHandler(tracker *enrollment.Tracker, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			unauthorized(w)
			return
		}
		learnerID := strings.TrimSpace(r.URL.Query().Get("learner_id"))
		views, err := tracker.List(r.Context(), actor, learnerID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// GET /enrollments/{enrollmentID}/progress
func ProgressHandler(tracker *enrollment.Tracker, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			unauthorized(w)
			return
		}
		rep, err := tracker.GetProgress(r.Context(), actor, chi.URLParam(r, "enrollmentID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// POST /enrollments/{enrollmentID}/lessons/{lessonID}/visit
func VisitLessonHandler(tracker *enrollment.Tracker, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			unauthorized(w)
			return
		}
		lp, err := tracker.MarkVisited(r.Context(), actor, chi.URLParam(r, "enrollmentID"), chi.URLParam(r, "lessonID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, lp)
	}
}

// POST /enrollments/{enrollmentID}/lessons/{lessonID}/complete
func CompleteLessonHandler(tracker *enrollment.Tracker, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			unauthorized(w)
			return
		}
		lp, rep, err := tracker.MarkCompleted(r.Context(), actor, chi.URLParam(r, "enrollmentID"), chi.URLParam(r, "lessonID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"lesson_progress": lp,
			"progress":        rep.Progress,
			"status":          rep.Status,
		})
	}
}
