package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/auth"
	"github.com/mind-engage/coursetrack/internal/logger"
)

const maxBodyBytes = 4 << 20

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status. Internal causes are logged, never sent.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	writeErrorWith(w, r, log, err, nil)
}

// writeErrorWith adds extra top-level fields next to "error".
func writeErrorWith(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error, extra map[string]any) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	body := map[string]any{"error": errorBody{Kind: kind, Message: apperr.PublicMessage(err)}}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, apperr.HTTPStatus(kind), body)
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("request body is empty")
		}
		return apperr.Invalid("bad json: %v", err)
	}
	return validateStruct(dst)
}

func actorFrom(r *http.Request) (auth.Actor, bool) {
	return auth.ActorFromContext(r.Context())
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error": errorBody{Kind: "unauthorized", Message: "unauthorized"},
	})
}
