// Package roadmap derives a learner's performance level and asks the
// generative-text service for a personalised study plan.
package roadmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/p-n-ai/mindshift/internal/ai"
	"github.com/p-n-ai/mindshift/internal/prompts"
)

const (
	MinWeeks     = 1
	MaxWeeks     = 52
	DefaultWeeks = 4
	MaxTokens    = 1000
)

// ErrInvalidDuration is returned for durations outside 1..52 weeks.
var ErrInvalidDuration = errors.New("duration must be between 1 and 52 weeks")

// Level is the coarse skill band derived from a pre-quiz score.
type Level string

const (
	Beginner     Level = "Beginner"
	Intermediate Level = "Intermediate"
	Advanced     Level = "Advanced"
)

// LevelFor maps score out of total to a level. A score of exactly half is
// Beginner and exactly four fifths is Intermediate. Integer arithmetic keeps
// the boundaries exact.
func LevelFor(score, total int) Level {
	switch {
	case 2*score <= total:
		return Beginner
	case 5*score <= 4*total:
		return Intermediate
	default:
		return Advanced
	}
}

// Request describes one roadmap generation.
type Request struct {
	Content   string
	Level     Level
	Weeks     int
	SessionID string
}

// Generator asks the generative-text service for roadmaps.
type Generator struct {
	llm     ai.Completer
	prompts *prompts.Loader
	model   string
}

// NewGenerator creates a roadmap generator. model may be empty to use the
// provider default.
func NewGenerator(llm ai.Completer, loader *prompts.Loader, model string) *Generator {
	return &Generator{llm: llm, prompts: loader, model: model}
}

// Generate returns the roadmap text verbatim. Failures of the service call
// are *ai.ServiceError.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	if req.Weeks < MinWeeks || req.Weeks > MaxWeeks {
		return "", fmt.Errorf("%w: got %d", ErrInvalidDuration, req.Weeks)
	}

	p, ok := g.prompts.Get(prompts.Roadmap)
	if !ok {
		return "", fmt.Errorf("roadmap prompt not loaded")
	}
	instruction, err := p.Render(prompts.Data{
		Content: req.Content,
		Level:   string(req.Level),
		Weeks:   req.Weeks,
	})
	if err != nil {
		return "", fmt.Errorf("building roadmap prompt: %w", err)
	}

	var messages []ai.Message
	if p.System != "" {
		messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: p.System})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: instruction})

	resp, err := g.llm.Complete(ctx, ai.CompletionRequest{
		Messages:  messages,
		Model:     g.model,
		MaxTokens: MaxTokens,
		Task:      ai.TaskRoadmap,
		SessionID: req.SessionID,
	})
	if err != nil {
		return "", &ai.ServiceError{Task: ai.TaskRoadmap, Err: err}
	}
	return resp.Content, nil
}
