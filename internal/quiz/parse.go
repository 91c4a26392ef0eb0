package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const maxSnippetLen = 200

// ErrNoValidQuestions is the non-fatal warning attached to a generation whose
// every entry was rejected.
var ErrNoValidQuestions = errors.New("no valid questions were generated")

// MalformedResponseError is returned when the generator's reply is not a
// JSON array.
type MalformedResponseError struct {
	Snippet string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed quiz response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Entry is the outcome of validating one element of a generated batch:
// either a usable Question or the reason it was rejected.
type Entry struct {
	Index    int
	Question Question
	Reason   string
}

// Valid reports whether the entry produced a question.
func (e Entry) Valid() bool {
	return e.Reason == ""
}

type preEnvelope struct {
	MCQ     string            `json:"mcq"`
	Options map[string]string `json:"options"`
	Correct json.RawMessage   `json:"correct"`
}

// postEnvelope carries the "type" discriminator.
type postEnvelope struct {
	Type     string            `json:"type"`
	Question string            `json:"question"`
	Options  map[string]string `json:"options"`
	Correct  json.RawMessage   `json:"correct"`
}

// ParseEntries parses a generator reply into one Entry per array element.
// Markdown code fences around the JSON are tolerated.
func ParseEntries(phase Phase, text string) ([]Entry, error) {
	body := stripCodeFence(text)

	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(body), &raws); err != nil {
		return nil, &MalformedResponseError{Snippet: snippet(body), Err: err}
	}

	entries := make([]Entry, len(raws))
	for i, raw := range raws {
		q, reason := parseEntry(phase, raw)
		entries[i] = Entry{Index: i, Question: q, Reason: reason}
	}
	return entries, nil
}

// Filter splits entries into the retained questions, in order, and the rejects.
func Filter(entries []Entry) ([]Question, []Entry) {
	var (
		questions []Question
		rejected  []Entry
	)
	for _, e := range entries {
		if e.Valid() {
			questions = append(questions, e.Question)
			continue
		}
		rejected = append(rejected, e)
	}
	return questions, rejected
}

func parseEntry(phase Phase, raw json.RawMessage) (Question, string) {
	s := schemas()

	if phase == PhasePre {
		if reason := validate(s.preMCQ, raw); reason != "" {
			return Question{}, reason
		}
		var env preEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return Question{}, err.Error()
		}
		return mcqQuestion(env.MCQ, env.Options, env.Correct)
	}

	var probe struct {
		Type any `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Question{}, fmt.Sprintf("entry is not an object: %v", err)
	}
	typ, _ := probe.Type.(string)

	switch Kind(typ) {
	case KindMCQ:
		if reason := validate(s.postMCQ, raw); reason != "" {
			return Question{}, reason
		}
		var env postEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return Question{}, err.Error()
		}
		return mcqQuestion(env.Question, env.Options, env.Correct)
	case KindTrueFalse:
		if reason := validate(s.postTrueFalse, raw); reason != "" {
			return Question{}, reason
		}
		var env postEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return Question{}, err.Error()
		}
		var value bool
		if err := json.Unmarshal(env.Correct, &value); err != nil {
			return Question{}, err.Error()
		}
		return Question{Kind: KindTrueFalse, Prompt: env.Question, CorrectValue: value}, ""
	case "":
		return Question{}, "missing question type"
	default:
		return Question{}, fmt.Sprintf("unknown question type %q", typ)
	}
}

// mcqQuestion applies the key-existence rule: the correct key must be one of
// the offered options.
func mcqQuestion(prompt string, options map[string]string, rawCorrect json.RawMessage) (Question, string) {
	var key string
	if err := json.Unmarshal(rawCorrect, &key); err != nil {
		return Question{}, err.Error()
	}
	if _, ok := options[key]; !ok {
		return Question{}, fmt.Sprintf("correct key %q is not among the options", key)
	}
	return Question{Kind: KindMCQ, Prompt: prompt, Options: options, CorrectKey: key}, ""
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	if len(s) > maxSnippetLen {
		return s[:maxSnippetLen] + "..."
	}
	return s
}
