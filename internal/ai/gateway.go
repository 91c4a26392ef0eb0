// Package ai provides a provider-agnostic gateway to generative-text services.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// TaskType identifies what a completion is for; it labels logs, metrics and errors.
type TaskType int

const (
	TaskPreQuiz TaskType = iota
	TaskPostQuiz
	TaskRoadmap
)

func (t TaskType) String() string {
	switch t {
	case TaskPreQuiz:
		return "pre_quiz"
	case TaskPostQuiz:
		return "post_quiz"
	case TaskRoadmap:
		return "roadmap"
	default:
		return "unknown"
	}
}

// Role values for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrNoProvider is returned when no provider has been registered.
	ErrNoProvider = errors.New("no AI provider configured")
	// ErrBudgetExhausted is returned when a session has used its token budget.
	ErrBudgetExhausted = errors.New("session token budget exhausted")
)

// ServiceError wraps any failure of the generative-text call: transport,
// rate limiting, authentication or an unusable response envelope.
type ServiceError struct {
	Task TaskType
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Task, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Message represents a role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
	SessionID   string    `json:"-"` // budget key; empty skips budget checks
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}

// Completer is the narrow dependency the generators take; *Router satisfies it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
