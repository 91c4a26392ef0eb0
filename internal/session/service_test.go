package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/mindshift/internal/ai"
	"github.com/p-n-ai/mindshift/internal/course"
	"github.com/p-n-ai/mindshift/internal/events"
	"github.com/p-n-ai/mindshift/internal/platform/metrics"
	"github.com/p-n-ai/mindshift/internal/prompts"
	"github.com/p-n-ai/mindshift/internal/quiz"
	"github.com/p-n-ai/mindshift/internal/roadmap"
	"github.com/p-n-ai/mindshift/internal/scraper"
)

type fakeScraper struct {
	content course.Content
	err     error
}

func (f *fakeScraper) Scrape(context.Context, string) (course.Content, error) {
	return f.content, f.err
}

type fakeQuizzes struct {
	mu      sync.Mutex
	results []quiz.Result
	err     error
	reqs    []quiz.Request
}

func (f *fakeQuizzes) Generate(_ context.Context, req quiz.Request) (quiz.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return quiz.Result{}, f.err
	}
	if len(f.results) == 0 {
		return quiz.Result{Warning: quiz.ErrNoValidQuestions}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

type fakeRoadmaps struct {
	text string
	err  error
	reqs []roadmap.Request
}

func (f *fakeRoadmaps) Generate(_ context.Context, req roadmap.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.text, f.err
}

type fixture struct {
	svc      *Service
	scraper  *fakeScraper
	quizzes  *fakeQuizzes
	roadmaps *fakeRoadmaps
	events   *events.MemoryLogger
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		scraper:  &fakeScraper{content: course.Content{Learn: []string{"graph search"}, Skills: []string{"python"}}},
		quizzes:  &fakeQuizzes{},
		roadmaps: &fakeRoadmaps{text: "Week 1: BFS"},
		events:   events.NewMemoryLogger(),
		metrics:  metrics.New(),
	}
	f.svc = NewService(NewMemoryStore(time.Hour), f.scraper, f.quizzes, f.roadmaps,
		WithEvents(f.events),
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return testNow }),
	)
	return f
}

func (f *fixture) create(t *testing.T) string {
	t.Helper()
	sess, err := f.svc.Create(context.Background())
	require.NoError(t, err)
	return sess.ID
}

func TestService_CreateGetDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	budget := ai.NewInMemoryBudget(100)
	f.svc.budget = budget

	id := f.create(t)
	require.NoError(t, budget.Record(id, 40))

	sess, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StageBrowsing, sess.Stage)
	assert.Equal(t, testNow, sess.CreatedAt)

	require.NoError(t, f.svc.Delete(ctx, id))
	_, err = f.svc.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, id), ErrNotFound)

	used, _, _ := budget.Usage(id)
	assert.Zero(t, used, "deleting a session forgets its token usage")
	assert.Equal(t, []string{events.SessionCreated}, f.events.Types())
}

func TestService_UnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ScrapeCourse(context.Background(), "missing", "https://example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ScrapeFailureClearsCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	sess, err := f.svc.ScrapeCourse(ctx, id, "https://example.com/ok")
	require.NoError(t, err)
	assert.Equal(t, []string{"graph search"}, sess.Course.Learn)

	f.scraper.err = &scraper.FetchError{URL: "https://example.com/gone", StatusCode: http.StatusNotFound}
	sess, err = f.svc.ScrapeCourse(ctx, id, "https://example.com/gone")
	var fetchErr *scraper.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.True(t, sess.Course.IsEmpty())

	stored, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Course.IsEmpty(), "the cleared content is saved")

	series, err := testutil.GatherAndCount(f.metrics.Gatherer(), "mindshift_course_scrapes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "one ok and one error outcome")
}

func TestService_GenerateQuiz_NoContent(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	_, _, err := f.svc.GenerateQuiz(context.Background(), id, quiz.PhasePre, "   ", quiz.Easy)
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Empty(t, f.quizzes.reqs)
}

func TestService_GenerateQuiz_TopicsOnly(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	f.quizzes.results = []quiz.Result{{Questions: preQuestions(7)}}

	sess, result, err := f.svc.GenerateQuiz(context.Background(), id, quiz.PhasePre, "dynamic programming", quiz.Medium)
	require.NoError(t, err)
	assert.Len(t, result.Questions, 7)
	assert.Equal(t, StagePreQuiz, sess.Stage)
	assert.Equal(t, quiz.Medium, sess.Pre.Difficulty)

	require.Len(t, f.quizzes.reqs, 1)
	req := f.quizzes.reqs[0]
	assert.Equal(t, "dynamic programming", req.Content)
	assert.Equal(t, id, req.SessionID)
	assert.Equal(t, quiz.PhasePre, req.Phase)
}

func TestService_GenerateQuiz_EmptyResultKeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)
	f.quizzes.results = []quiz.Result{{Questions: preQuestions(3)}}

	_, _, err := f.svc.GenerateQuiz(ctx, id, quiz.PhasePre, "topic", quiz.Easy)
	require.NoError(t, err)

	sess, result, err := f.svc.GenerateQuiz(ctx, id, quiz.PhasePre, "topic", quiz.Hard)
	require.NoError(t, err, "an empty quiz is a warning, not an error")
	assert.ErrorIs(t, result.Warning, quiz.ErrNoValidQuestions)
	assert.Len(t, sess.Pre.Questions, 3)
	assert.Equal(t, quiz.Easy, sess.Pre.Difficulty)
}

func TestService_GenerateQuiz_ServiceErrorIsNonFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)
	f.quizzes.err = &ai.ServiceError{Task: ai.TaskPreQuiz, Err: errors.New("timeout")}

	_, _, err := f.svc.GenerateQuiz(ctx, id, quiz.PhasePre, "topic", quiz.Easy)
	var svcErr *ai.ServiceError
	require.True(t, errors.As(err, &svcErr))

	sess, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StageBrowsing, sess.Stage)
}

func TestService_GenerateQuiz_FailureKeepsTopics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)
	f.quizzes.results = []quiz.Result{{Questions: preQuestions(1)}}

	_, _, err := f.svc.GenerateQuiz(ctx, id, quiz.PhasePre, "topic A", quiz.Easy)
	require.NoError(t, err)
	_, _, err = f.svc.Submit(ctx, id, quiz.PhasePre)
	require.NoError(t, err)

	// Every question rejected.
	_, result, err := f.svc.GenerateQuiz(ctx, id, quiz.PhasePre, "topic B", quiz.Easy)
	require.NoError(t, err)
	require.ErrorIs(t, result.Warning, quiz.ErrNoValidQuestions)

	sess, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "topic A", sess.Topics)

	f.quizzes.err = errors.New("boom")
	_, _, err = f.svc.GenerateQuiz(ctx, id, quiz.PhasePre, "topic C", quiz.Easy)
	require.Error(t, err)

	sess, err = f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "topic A", sess.Topics)
	assert.Equal(t, StageRoadmapEligible, sess.Stage)

	_, err = f.svc.GenerateRoadmap(ctx, id, 4)
	require.NoError(t, err)
	require.Len(t, f.roadmaps.reqs, 1)
	assert.Contains(t, f.roadmaps.reqs[0].Content, "topic A")
	assert.NotContains(t, f.roadmaps.reqs[0].Content, "topic B")
	assert.NotContains(t, f.roadmaps.reqs[0].Content, "topic C")
}

func TestService_PostQuizLockedUntilRoadmap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	_, _, err := f.svc.GenerateQuiz(ctx, id, quiz.PhasePost, "", quiz.Easy)
	assert.ErrorIs(t, err, ErrStageLocked)

	_, err = f.svc.GenerateRoadmap(ctx, id, 4)
	assert.ErrorIs(t, err, ErrStageLocked)
	assert.Empty(t, f.quizzes.reqs)
	assert.Empty(t, f.roadmaps.reqs)
}

func TestService_FullFlowWithFakes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	_, err := f.svc.ScrapeCourse(ctx, id, "https://example.com/course")
	require.NoError(t, err)

	f.quizzes.results = []quiz.Result{
		{Questions: preQuestions(4)},
		{Questions: []quiz.Question{{Kind: quiz.KindTrueFalse, Prompt: "t", CorrectValue: true}}},
	}
	sess, _, err := f.svc.GenerateQuiz(ctx, id, quiz.PhasePre, "extra", quiz.Medium)
	require.NoError(t, err)
	assert.Contains(t, f.quizzes.reqs[0].Content, "graph search")
	assert.Contains(t, f.quizzes.reqs[0].Content, "extra")

	for i := range sess.Pre.Questions {
		answer := quiz.ChoiceAnswer("alpha")
		if i < 2 {
			answer = quiz.ChoiceAnswer("beta")
		}
		_, err := f.svc.RecordAnswer(ctx, id, quiz.PhasePre, i, answer)
		require.NoError(t, err)
	}

	sess, result, err := f.svc.Submit(ctx, id, quiz.PhasePre)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Score)
	assert.Equal(t, roadmap.Beginner, sess.Level)
	assert.Equal(t, StageRoadmapEligible, sess.Stage)

	_, again, err := f.svc.Submit(ctx, id, quiz.PhasePre)
	require.NoError(t, err)
	assert.Equal(t, result, again)

	sess, err = f.svc.GenerateRoadmap(ctx, id, 6)
	require.NoError(t, err)
	assert.Equal(t, StagePostQuiz, sess.Stage)
	assert.Equal(t, "Week 1: BFS", sess.Roadmap)
	require.Len(t, f.roadmaps.reqs, 1)
	assert.Equal(t, roadmap.Beginner, f.roadmaps.reqs[0].Level)
	assert.Equal(t, 6, f.roadmaps.reqs[0].Weeks)
	assert.Contains(t, f.roadmaps.reqs[0].Content, "graph search")

	_, _, err = f.svc.GenerateQuiz(ctx, id, quiz.PhasePost, "", quiz.Hard)
	require.NoError(t, err)
	assert.Equal(t, "Week 1: BFS", f.quizzes.reqs[1].Content)

	_, err = f.svc.RecordAnswer(ctx, id, quiz.PhasePost, 0, quiz.BoolAnswer(true))
	require.NoError(t, err)
	sess, result, err = f.svc.Submit(ctx, id, quiz.PhasePost)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.Len(t, sess.History, 2)

	assert.Equal(t, []string{
		events.SessionCreated,
		events.CourseScraped,
		events.QuizGenerated,
		events.QuizSubmitted,
		events.RoadmapGenerated,
		events.QuizGenerated,
		events.QuizSubmitted,
	}, f.events.Types())
}

func TestService_EmptyRoadmapKeepsPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)
	f.quizzes.results = []quiz.Result{{Questions: preQuestions(1)}}

	_, _, err := f.svc.GenerateQuiz(ctx, id, quiz.PhasePre, "topic", quiz.Easy)
	require.NoError(t, err)
	_, _, err = f.svc.Submit(ctx, id, quiz.PhasePre)
	require.NoError(t, err)
	_, err = f.svc.GenerateRoadmap(ctx, id, 4)
	require.NoError(t, err)

	f.roadmaps.text = "  \n"
	sess, err := f.svc.GenerateRoadmap(ctx, id, 8)
	assert.ErrorIs(t, err, ErrEmptyRoadmap)
	assert.Equal(t, "Week 1: BFS", sess.Roadmap)
	assert.Equal(t, 4, sess.Weeks)
}

func TestService_SubscribeReceivesSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)

	ch, cancel, err := f.svc.Subscribe(ctx, id)
	require.NoError(t, err)
	defer cancel()

	_, err = f.svc.ScrapeCourse(ctx, id, "https://example.com/course")
	require.NoError(t, err)

	select {
	case snap := <-ch:
		assert.Equal(t, []string{"graph search"}, snap.Course.Learn)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}

	require.NoError(t, f.svc.Delete(ctx, id))
	_, open := <-ch
	assert.False(t, open, "deleting a session closes its streams")

	_, _, err = f.svc.Subscribe(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_SubscribeRacingDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 50 {
		id := f.create(t)

		var (
			wg     sync.WaitGroup
			ch     <-chan *Session
			subErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			var cancel func()
			ch, cancel, subErr = f.svc.Subscribe(ctx, id)
			if cancel != nil {
				t.Cleanup(cancel)
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.Delete(ctx, id))
		}()
		wg.Wait()

		if subErr != nil {
			assert.ErrorIs(t, subErr, ErrNotFound)
			continue
		}
		select {
		case _, open := <-ch:
			assert.False(t, open, "a subscription taken before the delete must be closed")
		case <-time.After(time.Second):
			t.Fatal("subscription outlived its session")
		}
		assert.Zero(t, f.svc.Broker().Subscribers(id))
	}
}

func TestService_ConcurrentAnswersAreSerialised(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t)
	f.quizzes.results = []quiz.Result{{Questions: preQuestions(20)}}

	_, _, err := f.svc.GenerateQuiz(ctx, id, quiz.PhasePre, "topic", quiz.Easy)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordAnswer(ctx, id, quiz.PhasePre, i, quiz.ChoiceAnswer("beta"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.Pre.Answers, 20, "no answer may be lost to a racing save")
}

// TestService_EndToEnd drives the real scraper and generators against a
// fake course page and a scripted completion provider.
func TestService_EndToEnd(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
		  <section class="css-1t957yb"><ul>
		    <li>Understand the Basics of Graphs</li>
		    <li>Implement breadth-first search</li>
		    <li>Analyse the running time of algorithms</li>
		  </ul></section>
		  <div class="css-1m3kxpf"><span>Algorithms</span><span>Data Structures</span></div>
		</body></html>`))
	}))
	defer page.Close()

	var b strings.Builder
	b.WriteString("[")
	for i := range 7 {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"mcq": "Question %d", "options": {"a": "w%d", "b": "x%d", "c": "y%d", "d": "z%d"}, "correct": "c"}`, i, i, i, i, i)
	}
	b.WriteString("]")

	provider := ai.NewScriptedProvider(b.String(), "Week 1: graphs\nWeek 2: search")
	router := ai.NewRouter()
	router.Register("scripted", provider)

	loader, err := prompts.NewLoader("")
	require.NoError(t, err)

	svc := NewService(
		NewMemoryStore(time.Hour),
		scraper.New(),
		quiz.NewGenerator(router, loader),
		roadmap.NewGenerator(router, loader, ""),
	)
	ctx := context.Background()

	sess, err := svc.Create(ctx)
	require.NoError(t, err)
	id := sess.ID

	sess, err = svc.ScrapeCourse(ctx, id, page.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"understand basics graphs",
		"implement search",
		"analyse running time algorithms",
	}, sess.Course.Learn)
	assert.Equal(t, []string{"algorithms", "data structures"}, sess.Course.Skills)

	sess, _, err = svc.GenerateQuiz(ctx, id, quiz.PhasePre, "", quiz.Medium)
	require.NoError(t, err)
	require.Len(t, sess.Pre.Questions, 7)
	assert.Contains(t, provider.Requests()[0].Messages[0].Content, "Level: Medium")

	for i, q := range sess.Pre.Questions {
		_, err := svc.RecordAnswer(ctx, id, quiz.PhasePre, i, quiz.ChoiceAnswer(q.Options[q.CorrectKey]))
		require.NoError(t, err)
	}

	sess, result, err := svc.Submit(ctx, id, quiz.PhasePre)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Score)
	assert.Equal(t, 7, result.Total)
	assert.Equal(t, roadmap.Advanced, sess.Level)

	sess, err = svc.GenerateRoadmap(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, "Week 1: graphs\nWeek 2: search", sess.Roadmap)
	assert.Equal(t, StagePostQuiz, sess.Stage)
}
