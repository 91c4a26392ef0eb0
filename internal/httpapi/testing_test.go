package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/mindshift/internal/ai"
	"github.com/p-n-ai/mindshift/internal/course"
	"github.com/p-n-ai/mindshift/internal/events"
	"github.com/p-n-ai/mindshift/internal/platform/metrics"
	"github.com/p-n-ai/mindshift/internal/prompts"
	"github.com/p-n-ai/mindshift/internal/quiz"
	"github.com/p-n-ai/mindshift/internal/roadmap"
	"github.com/p-n-ai/mindshift/internal/session"
)

const (
	preQuizReply = "```json\n" + `[
	  {"mcq": "What does a graph consist of?", "options": {"a": "Nodes and edges", "b": "Rows and columns"}, "correct": "a"},
	  {"mcq": "Which search uses a queue?", "options": {"a": "Depth-first", "b": "Breadth-first"}, "correct": "b"},
	  {"mcq": "Broken question", "options": {"a": "x"}, "correct": "z"}
	]` + "\n```"
	roadmapReply  = "Week 1: graphs\nWeek 2: search\nWeek 3: review"
	postQuizReply = `[
	  {"type": "true_false", "question": "BFS visits neighbours first", "correct": true},
	  {"type": "mcq", "question": "A tree is a", "options": {"a": "cyclic graph", "b": "acyclic graph"}, "correct": "b"}
	]`
)

type stubScraper struct {
	content course.Content
	err     error
}

func (s *stubScraper) Scrape(context.Context, string) (course.Content, error) {
	return s.content, s.err
}

type fixture struct {
	server  *httptest.Server
	llm     *ai.MockProvider
	scraper *stubScraper
	events  *events.MemoryLogger
	service *session.Service
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()

	loader, err := prompts.NewLoader("")
	require.NoError(t, err)

	f := &fixture{
		llm: ai.NewScriptedProvider(replies...),
		scraper: &stubScraper{content: course.Content{
			Learn:  []string{"understand basics graphs"},
			Skills: []string{"algorithms"},
		}},
		events:  events.NewMemoryLogger(),
		metrics: metrics.New(),
	}
	f.service = session.NewService(
		session.NewMemoryStore(time.Hour),
		f.scraper,
		quiz.NewGenerator(f.llm, loader),
		roadmap.NewGenerator(f.llm, loader, ""),
		session.WithEvents(f.events),
		session.WithMetrics(f.metrics),
	)
	f.server = httptest.NewServer(New(Deps{
		Service: f.service,
		Events:  f.events,
		Metrics: f.metrics,
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var view sessionView
	require.NoError(t, json.Unmarshal(body, &view))
	require.NotEmpty(t, view.ID)
	return view.ID
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
