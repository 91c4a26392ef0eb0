package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/mindshift/internal/events"
	"github.com/p-n-ai/mindshift/internal/quiz"
	"github.com/p-n-ai/mindshift/internal/report"
	"github.com/p-n-ai/mindshift/internal/roadmap"
	"github.com/p-n-ai/mindshift/internal/session"
)

type scrapeRequest struct {
	URL string `json:"url"`
}

type quizRequest struct {
	Topics     string `json:"topics"`
	Difficulty string `json:"difficulty"`
}

type quizResponse struct {
	Session   sessionView `json:"session"`
	Generated int         `json:"generated"`
	Rejected  int         `json:"rejected"`
	Warning   string      `json:"warning,omitempty"`
}

type answerRequest struct {
	Answer *quiz.Answer `json:"answer"`
}

type submitResponse struct {
	Session sessionView         `json:"session"`
	Result  session.ScoreResult `json:"result"`
}

type roadmapRequest struct {
	Weeks *int `json:"weeks"`
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Create(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newSessionView(sess))
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (h *handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) scrapeCourse(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	sess, err := h.svc.ScrapeCourse(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.URL))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (h *handler) generateQuiz(w http.ResponseWriter, r *http.Request) {
	phase, err := phaseParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req quizRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	difficulty := quiz.Easy
	if req.Difficulty != "" {
		difficulty, err = quiz.ParseDifficulty(req.Difficulty)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}

	sess, result, err := h.svc.GenerateQuiz(r.Context(), chi.URLParam(r, "id"), phase, req.Topics, difficulty)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := quizResponse{
		Session:   newSessionView(sess),
		Generated: len(result.Questions),
		Rejected:  len(result.Rejected),
	}
	if result.Warning != nil {
		resp.Warning = result.Warning.Error()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) recordAnswer(w http.ResponseWriter, r *http.Request) {
	phase, err := phaseParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: question index must be an integer", errBadRequest))
		return
	}

	var req answerRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Answer == nil {
		h.writeError(w, r, fmt.Errorf("%w: answer is required", errBadRequest))
		return
	}

	sess, err := h.svc.RecordAnswer(r.Context(), chi.URLParam(r, "id"), phase, index, *req.Answer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (h *handler) submitQuiz(w http.ResponseWriter, r *http.Request) {
	phase, err := phaseParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sess, result, err := h.svc.Submit(r.Context(), chi.URLParam(r, "id"), phase)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, submitResponse{Session: newSessionView(sess), Result: result})
}

func (h *handler) generateRoadmap(w http.ResponseWriter, r *http.Request) {
	var req roadmapRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	weeks := roadmap.DefaultWeeks
	if req.Weeks != nil {
		weeks = *req.Weeks
	}

	sess, err := h.svc.GenerateRoadmap(r.Context(), chi.URLParam(r, "id"), weeks)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (h *handler) exportHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteHistory(&buf, sess.History); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="mindshift-history.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to write history export", "session_id", sess.ID, "error", err)
	}
}

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	evts, err := h.events.SessionEvents(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if evts == nil {
		evts = []events.Event{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

func phaseParam(r *http.Request) (quiz.Phase, error) {
	phase, err := quiz.ParsePhase(chi.URLParam(r, "phase"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return phase, nil
}
