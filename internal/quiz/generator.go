package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/mindshift/internal/ai"
	"github.com/p-n-ai/mindshift/internal/prompts"
)

// Sampling settings for quiz generation.
const (
	Temperature = 0.3
	MaxTokens   = 1000
)

// Request describes one quiz generation.
type Request struct {
	Phase      Phase
	Content    string
	Difficulty Difficulty
	SessionID  string
}

// Result is a generated quiz. Warning is ErrNoValidQuestions when every
// entry was rejected; it is not a failure.
type Result struct {
	Questions []Question
	Rejected  []Entry
	Warning   error
}

// Generator asks the generative-text service for quizzes.
type Generator struct {
	llm     ai.Completer
	prompts *prompts.Loader
	model   string
	count   int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithModel sets the model name sent with each request.
func WithModel(model string) GeneratorOption {
	return func(g *Generator) {
		g.model = model
	}
}

// WithCount changes the number of questions requested.
func WithCount(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.count = n
		}
	}
}

// NewGenerator creates a quiz generator.
func NewGenerator(llm ai.Completer, loader *prompts.Loader, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:     llm,
		prompts: loader,
		count:   DefaultCount,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate performs one blocking round trip and returns the validated quiz.
// Service failures are *ai.ServiceError; an unparsable reply is
// *MalformedResponseError.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	promptID, task := prompts.PreQuiz, ai.TaskPreQuiz
	if req.Phase == PhasePost {
		promptID, task = prompts.PostQuiz, ai.TaskPostQuiz
	}

	instruction, err := g.prompts.Render(promptID, prompts.Data{
		Count:   g.count,
		Level:   string(req.Difficulty),
		Content: req.Content,
	})
	if err != nil {
		return Result{}, fmt.Errorf("building quiz prompt: %w", err)
	}

	resp, err := g.llm.Complete(ctx, ai.CompletionRequest{
		Messages:    []ai.Message{{Role: ai.RoleUser, Content: instruction}},
		Model:       g.model,
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		Task:        task,
		SessionID:   req.SessionID,
	})
	if err != nil {
		return Result{}, &ai.ServiceError{Task: task, Err: err}
	}

	entries, err := ParseEntries(req.Phase, resp.Content)
	if err != nil {
		return Result{}, err
	}

	questions, rejected := Filter(entries)
	for _, r := range rejected {
		slog.Debug("dropped generated question",
			"phase", string(req.Phase),
			"index", r.Index,
			"reason", r.Reason,
		)
	}

	result := Result{Questions: questions, Rejected: rejected}
	if len(questions) == 0 {
		result.Warning = ErrNoValidQuestions
	}
	return result, nil
}

// IsMalformed reports whether err came from an unparsable reply.
func IsMalformed(err error) bool {
	var m *MalformedResponseError
	return errors.As(err, &m)
}
