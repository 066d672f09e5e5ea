package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/coursetrack/internal/auth/middleware"
	"github.com/mind-engage/coursetrack/internal/course"
	"github.com/mind-engage/coursetrack/internal/enrollment"
	"github.com/mind-engage/coursetrack/internal/eventlog"
	"github.com/mind-engage/coursetrack/internal/logger"
	"github.com/mind-engage/coursetrack/internal/quiz"
	"github.com/mind-engage/coursetrack/internal/rbac"
)

type Services struct {
	DB       *sql.DB
	Loader   *course.Loader
	Catalog  *course.Catalog
	Tracker  *enrollment.Tracker
	Engine   *quiz.Engine
	Events   *eventlog.Repo
	Verifier *authmw.Verifier
	Log      *logger.Logger
}

// Mount registers the API on r. Cross-cutting middleware (request id,
// recovery, CORS) is the caller's.
func Mount(r chi.Router, s Services) {
	log := s.Log
	if log == nil {
		log = logger.Nop()
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", ReadyHandler(s.DB))

	// JWT → actor in context → RBAC
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(s.Verifier))

		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}", GetCourseHandler(s.Loader, log))
		pr.With(rbac.Require("course:import")).
			Put("/courses", ImportCourseHandler(s.Catalog, log))
		pr.With(rbac.Require("course:delete")).
			Delete("/courses/{courseID}", DeleteCourseHandler(s.Catalog, log))

		pr.With(rbac.Require("enrollment:create")).
			Post("/enrollments", EnrollHandler(s.Tracker, log))
		pr.With(rbac.RequireAny("enrollment:view-own", "enrollment:view-all")).
			Get("/enrollments", ListEnrollmentsHandler(s.Tracker, log))
		pr.With(rbac.RequireAny("enrollment:view-own", "enrollment:view-all")).
			Get("/enrollments/{enrollmentID}/progress", ProgressHandler(s.Tracker, log))
		pr.With(rbac.Require("progress:update")).
			Post("/enrollments/{enrollmentID}/lessons/{lessonID}/visit", VisitLessonHandler(s.Tracker, log))
		pr.With(rbac.Require("progress:update")).
			Post("/enrollments/{enrollmentID}/lessons/{lessonID}/complete", CompleteLessonHandler(s.Tracker, log))

		pr.With(rbac.Require("attempt:submit")).
			Post("/quizzes/{quizID}/attempts", SubmitAttemptHandler(s.Engine, log))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/enrollments/{enrollmentID}/attempts", ListAttemptsHandler(s.Engine, log))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", GetAttemptHandler(s.Engine, log))

		pr.With(rbac.Require("events:read")).
			Get("/events", ListEventsHandler(s.Events, log))
	})
}

// ReadyHandler reports 503 until the database answers.
func ReadyHandler(d *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d == nil || d.PingContext(r.Context()) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
