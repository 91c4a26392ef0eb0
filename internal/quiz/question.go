// Package quiz generates, validates and scores course quizzes.
package quiz

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultCount is the number of questions requested per quiz.
const DefaultCount = 7

// Phase distinguishes the quiz taken before studying from the one taken after.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// ParsePhase accepts "pre" or "post", case-insensitively.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(strings.ToLower(strings.TrimSpace(s))); p {
	case PhasePre, PhasePost:
		return p, nil
	default:
		return "", fmt.Errorf("unknown quiz phase %q", s)
	}
}

// Difficulty is the requested quiz level.
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// Difficulties lists every level in ascending order.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// ParseDifficulty accepts a level name case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range Difficulties {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q (want Easy, Medium or Hard)", s)
}

// Kind tags the two question shapes.
type Kind string

const (
	KindMCQ       Kind = "mcq"
	KindTrueFalse Kind = "true_false"
)

// Question is either a multiple-choice question (Options and CorrectKey set)
// or a true/false question (CorrectValue set), distinguished by Kind.
type Question struct {
	Kind         Kind              `json:"kind"`
	Prompt       string            `json:"prompt"`
	Options      map[string]string `json:"options,omitempty"`
	CorrectKey   string            `json:"correct_key,omitempty"`
	CorrectValue bool              `json:"correct_value,omitempty"`
}

// OptionKeys returns the option labels in sorted order.
func (q Question) OptionKeys() []string {
	keys := make([]string, 0, len(q.Options))
	for k := range q.Options {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// CorrectAnswer returns the answer that scores this question.
func (q Question) CorrectAnswer() Answer {
	if q.Kind == KindTrueFalse {
		return BoolAnswer(q.CorrectValue)
	}
	return ChoiceAnswer(q.Options[q.CorrectKey])
}

// Clone returns a copy that shares no map with q.
func (q Question) Clone() Question {
	if q.Options != nil {
		opts := make(map[string]string, len(q.Options))
		for k, v := range q.Options {
			opts[k] = v
		}
		q.Options = opts
	}
	return q
}
