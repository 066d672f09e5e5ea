package http

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/mind-engage/coursetrack/internal/course"
	"github.com/mind-engage/coursetrack/internal/logger"
)

// GET /courses/{courseID}
// The ETag is taken over the tree as this caller sees it, so learner and
// instructor views never share a validator.
func GetCourseHandler(loader *course.Loader, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			unauthorized(w)
			return
		}
		c, err := loader.Load(r.Context(), chi.URLParam(r, "courseID"), actor)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		body, err := json.Marshal(c)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		sum := blake2b.Sum256(body)
		etag := `"` + hex.EncodeToString(sum[:16]) + `"`
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "private, no-cache")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// PUT /courses creates or replaces a whole course tree.
func ImportCourseHandler(catalog *course.Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in course.Course
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, log, err)
			return
		}
		c, err := catalog.Import(r.Context(), in)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// DELETE /courses/{courseID}
func DeleteCourseHandler(catalog *course.Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.Delete(r.Context(), chi.URLParam(r, "courseID")); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
