package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidAnswer is returned when an answer does not fit its question.
var ErrInvalidAnswer = errors.New("invalid answer")

// Answer is a learner's response: the chosen option text for a multiple-choice
// question or a boolean for a true/false question. In JSON it is the bare
// string or bool.
type Answer struct {
	Choice string
	Value  *bool
}

// ChoiceAnswer answers a multiple-choice question with option text.
func ChoiceAnswer(text string) Answer {
	return Answer{Choice: text}
}

// BoolAnswer answers a true/false question.
func BoolAnswer(v bool) Answer {
	return Answer{Value: &v}
}

// IsBool reports whether the answer is a true/false value.
func (a Answer) IsBool() bool {
	return a.Value != nil
}

func (a Answer) String() string {
	if a.Value != nil {
		if *a.Value {
			return "True"
		}
		return "False"
	}
	return a.Choice
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Value != nil {
		return json.Marshal(*a.Value)
	}
	return json.Marshal(a.Choice)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		v := data[0] == 't'
		*a = Answer{Value: &v}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Answer{Choice: s}
		return nil
	default:
		return fmt.Errorf("%w: want a string or boolean, got %s", ErrInvalidAnswer, data)
	}
}

// Check reports whether a has the right shape for q: a boolean for true/false
// questions, or the text of one of the offered options for multiple choice.
func (a Answer) Check(q Question) error {
	switch q.Kind {
	case KindTrueFalse:
		if a.Value == nil {
			return fmt.Errorf("%w: true/false question needs a boolean", ErrInvalidAnswer)
		}
	default:
		if a.Value != nil {
			return fmt.Errorf("%w: multiple-choice question needs option text", ErrInvalidAnswer)
		}
		if !slices.ContainsFunc(q.OptionKeys(), func(k string) bool { return q.Options[k] == a.Choice }) {
			return fmt.Errorf("%w: %q is not one of the options", ErrInvalidAnswer, a.Choice)
		}
	}
	return nil
}

// Matches reports whether a is the correct answer to q.
func (a Answer) Matches(q Question) bool {
	if q.Kind == KindTrueFalse {
		return a.Value != nil && *a.Value == q.CorrectValue
	}
	correct, ok := q.Options[q.CorrectKey]
	return ok && a.Value == nil && a.Choice == correct
}

// Answers maps a question index to the learner's answer.
type Answers map[int]Answer

// Clone returns an independent copy.
func (as Answers) Clone() Answers {
	out := make(Answers, len(as))
	for i, a := range as {
		if a.Value != nil {
			a = BoolAnswer(*a.Value)
		}
		out[i] = a
	}
	return out
}

// Score counts the questions whose recorded answer matches. Unanswered
// questions score nothing.
func Score(questions []Question, answers Answers) int {
	score := 0
	for i, q := range questions {
		if a, ok := answers[i]; ok && a.Matches(q) {
			score++
		}
	}
	return score
}
