package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/p-n-ai/mindshift/internal/ai"
	"github.com/p-n-ai/mindshift/internal/quiz"
	"github.com/p-n-ai/mindshift/internal/roadmap"
	"github.com/p-n-ai/mindshift/internal/scraper"
	"github.com/p-n-ai/mindshift/internal/session"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

// classify maps domain errors to an HTTP status and a stable code.
func classify(err error) (int, string) {
	var (
		fetchErr  *scraper.FetchError
		malformed *quiz.MalformedResponseError
		svcErr    *ai.ServiceError
	)

	switch {
	case errors.Is(err, ai.ErrBudgetExhausted):
		return http.StatusTooManyRequests, "budget_exhausted"
	case errors.Is(err, ai.ErrNoProvider):
		return http.StatusServiceUnavailable, "ai_unavailable"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, session.ErrStageLocked):
		return http.StatusConflict, "stage_locked"
	case errors.Is(err, session.ErrAlreadySubmitted):
		return http.StatusConflict, "already_submitted"
	case errors.Is(err, session.ErrNoQuiz):
		return http.StatusConflict, "no_quiz"
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "fetch_failed"
	case errors.As(err, &malformed):
		return http.StatusBadGateway, "malformed_response"
	case errors.As(err, &svcErr):
		return http.StatusBadGateway, "ai_service_error"
	case errors.Is(err, session.ErrEmptyRoadmap):
		return http.StatusBadGateway, "empty_roadmap"
	case errors.Is(err, scraper.ErrInvalidURL),
		errors.Is(err, session.ErrNoContent),
		errors.Is(err, session.ErrInvalidAnswer),
		errors.Is(err, roadmap.ErrInvalidDuration),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}
