package quiz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/mindshift/internal/ai"
	"github.com/p-n-ai/mindshift/internal/prompts"
)

const sevenMCQs = `[
  {"mcq": "q1", "options": {"a": "1", "b": "2", "c": "3", "d": "4"}, "correct": "a"},
  {"mcq": "q2", "options": {"a": "1", "b": "2", "c": "3", "d": "4"}, "correct": "b"},
  {"mcq": "q3", "options": {"a": "1", "b": "2", "c": "3", "d": "4"}, "correct": "c"},
  {"mcq": "q4", "options": {"a": "1", "b": "2", "c": "3", "d": "4"}, "correct": "d"},
  {"mcq": "q5", "options": {"a": "1", "b": "2", "c": "3", "d": "4"}, "correct": "a"},
  {"mcq": "q6", "options": {"a": "1", "b": "2", "c": "3", "d": "4"}, "correct": "b"},
  {"mcq": "q7", "options": {"a": "1", "b": "2", "c": "3", "d": "4"}, "correct": "c"}
]`

func newTestGenerator(t *testing.T, llm ai.Completer, opts ...GeneratorOption) *Generator {
	t.Helper()
	loader, err := prompts.NewLoader("")
	require.NoError(t, err)
	return NewGenerator(llm, loader, opts...)
}

func TestGenerator_PreQuiz(t *testing.T) {
	mock := ai.NewMockProvider(sevenMCQs)
	g := newTestGenerator(t, mock, WithModel("gpt-3.5-turbo"))

	result, err := g.Generate(context.Background(), Request{
		Phase:      PhasePre,
		Content:    "What You'll Learn: build models",
		Difficulty: Medium,
		SessionID:  "s1",
	})
	require.NoError(t, err)
	assert.Len(t, result.Questions, 7)
	assert.Empty(t, result.Rejected)
	assert.NoError(t, result.Warning)

	req := mock.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, 0.3, req.Temperature)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.Equal(t, "gpt-3.5-turbo", req.Model)
	assert.Equal(t, ai.TaskPreQuiz, req.Task)
	assert.Equal(t, "s1", req.SessionID)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, ai.RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Generate 7 multiple-choice")
	assert.Contains(t, req.Messages[0].Content, "Level: Medium")
	assert.Contains(t, req.Messages[0].Content, "build models")
}

func TestGenerator_PostQuizUsesPostPrompt(t *testing.T) {
	mock := ai.NewMockProvider(`[{"type": "true_false", "question": "q", "correct": false}]`)
	g := newTestGenerator(t, mock)

	result, err := g.Generate(context.Background(), Request{Phase: PhasePost, Content: "Week 1: basics", Difficulty: Hard})
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, KindTrueFalse, result.Questions[0].Kind)

	req := mock.LastRequest()
	assert.Equal(t, ai.TaskPostQuiz, req.Task)
	assert.True(t, strings.HasPrefix(req.Messages[0].Content, "Based on this roadmap content: Week 1: basics"))
}

func TestGenerator_AllMalformedEntriesWarn(t *testing.T) {
	g := newTestGenerator(t, ai.NewMockProvider(`[{"question": "x"}, {"mcq": "y", "options": {"a": "1"}, "correct": "b"}]`))

	result, err := g.Generate(context.Background(), Request{Phase: PhasePre, Content: "c", Difficulty: Easy})
	require.NoError(t, err, "an all-rejected batch is not fatal")
	assert.Empty(t, result.Questions)
	assert.Len(t, result.Rejected, 2)
	assert.ErrorIs(t, result.Warning, ErrNoValidQuestions)
}

func TestGenerator_FewerThanRequestedAccepted(t *testing.T) {
	g := newTestGenerator(t, ai.NewMockProvider(`[{"mcq": "only", "options": {"a": "1"}, "correct": "a"}]`))

	result, err := g.Generate(context.Background(), Request{Phase: PhasePre, Content: "c", Difficulty: Easy})
	require.NoError(t, err)
	assert.Len(t, result.Questions, 1)
	assert.NoError(t, result.Warning)
}

func TestGenerator_MalformedReply(t *testing.T) {
	g := newTestGenerator(t, ai.NewMockProvider("I cannot help with that."))

	result, err := g.Generate(context.Background(), Request{Phase: PhasePre, Content: "c", Difficulty: Easy})
	assert.True(t, IsMalformed(err), "error = %v", err)
	assert.Empty(t, result.Questions)
}

func TestGenerator_ServiceError(t *testing.T) {
	cause := errors.New("rate limited")
	g := newTestGenerator(t, &ai.MockProvider{Err: cause})

	_, err := g.Generate(context.Background(), Request{Phase: PhasePost, Content: "c", Difficulty: Easy})

	var svcErr *ai.ServiceError
	require.True(t, errors.As(err, &svcErr), "error = %v", err)
	assert.Equal(t, ai.TaskPostQuiz, svcErr.Task)
	assert.ErrorIs(t, err, cause)
}

func TestGenerator_WithCount(t *testing.T) {
	mock := ai.NewMockProvider("[]")
	g := newTestGenerator(t, mock, WithCount(3))

	_, err := g.Generate(context.Background(), Request{Phase: PhasePre, Content: "c", Difficulty: Easy})
	require.NoError(t, err)
	assert.Contains(t, mock.LastRequest().Messages[0].Content, "Generate 3 multiple-choice")
}
