package http

import (
	"net/http"
	"strconv"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/eventlog"
	"github.com/mind-engage/coursetrack/internal/logger"
)

// GET /events?after=<seq>&limit=<n>
func ListEventsHandler(repo *eventlog.Repo, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var after int64
		if v := q.Get("after"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				writeError(w, r, log, apperr.Invalid("after must be a non-negative integer"))
				return
			}
			after = n
		}
		limit := parseIntDefault(q.Get("limit"), eventlog.DefaultLimit)
		events, err := repo.List(r.Context(), after, limit)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
