// Package session holds one learner's progress through the course flow:
// browse a course, take the pre-quiz, get a roadmap, take the post-quiz.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/p-n-ai/mindshift/internal/course"
	"github.com/p-n-ai/mindshift/internal/quiz"
	"github.com/p-n-ai/mindshift/internal/roadmap"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrStageLocked      = errors.New("stage not unlocked yet")
	ErrNoContent        = errors.New("no course content or topics to build a quiz from")
	ErrNoQuiz           = errors.New("no quiz has been generated")
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	ErrEmptyRoadmap     = errors.New("generated roadmap is empty")
	ErrInvalidAnswer    = quiz.ErrInvalidAnswer
)

// Stage is a position in the learning flow. Stages only advance, except that
// a new pre-quiz rewinds to StagePreQuiz.
type Stage string

const (
	StageBrowsing        Stage = "browsing"
	StagePreQuiz         Stage = "pre_quiz"
	StageRoadmapEligible Stage = "roadmap_eligible"
	StagePostQuiz        Stage = "post_quiz"
)

func (s Stage) rank() int {
	switch s {
	case StagePreQuiz:
		return 1
	case StageRoadmapEligible:
		return 2
	case StagePostQuiz:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is o or a later stage.
func (s Stage) AtLeast(o Stage) bool {
	return s.rank() >= o.rank()
}

// QuizState is one generated quiz and the learner's progress through it.
type QuizState struct {
	Questions  []quiz.Question `json:"questions"`
	Difficulty quiz.Difficulty `json:"difficulty,omitempty"`
	Answers    quiz.Answers    `json:"answers"`
	Submitted  bool            `json:"submitted"`
	Score      int             `json:"score"`
}

// Total is the number of questions.
func (q QuizState) Total() int {
	return len(q.Questions)
}

func (q QuizState) clone() QuizState {
	out := q
	out.Questions = make([]quiz.Question, len(q.Questions))
	for i, question := range q.Questions {
		out.Questions[i] = question.Clone()
	}
	out.Answers = q.Answers.Clone()
	return out
}

// ScoreResult is one submitted quiz in the session history.
type ScoreResult struct {
	Phase quiz.Phase `json:"phase"`
	Score int        `json:"score"`
	Total int        `json:"total"`
	Date  time.Time  `json:"date"`
}

// Session is all state for one learner. It is never shared: stores and
// subscribers always receive copies.
type Session struct {
	ID        string         `json:"id"`
	Stage     Stage          `json:"stage"`
	CourseURL string         `json:"course_url,omitempty"`
	Course    course.Content `json:"course"`
	Topics    string         `json:"topics,omitempty"`
	Pre       QuizState      `json:"pre_quiz"`
	Level     roadmap.Level  `json:"level,omitempty"`
	Roadmap   string         `json:"roadmap,omitempty"`
	Weeks     int            `json:"weeks,omitempty"`
	Post      QuizState      `json:"post_quiz"`
	History   []ScoreResult  `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New returns an empty session in StageBrowsing.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Stage:     StageBrowsing,
		Pre:       QuizState{Answers: quiz.Answers{}},
		Post:      QuizState{Answers: quiz.Answers{}},
		History:   []ScoreResult{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	out := *s
	out.Course = s.Course.Clone()
	out.Pre = s.Pre.clone()
	out.Post = s.Post.clone()
	out.History = append([]ScoreResult{}, s.History...)
	return &out
}

// Quiz returns the quiz state for a phase.
func (s *Session) Quiz(phase quiz.Phase) *QuizState {
	if phase == quiz.PhasePost {
		return &s.Post
	}
	return &s.Pre
}

// SetCourse stores freshly scraped content. A failed scrape passes empty
// content so no stale data survives.
func (s *Session) SetCourse(url string, content course.Content) {
	s.CourseURL = url
	s.Course = content.Clone()
}

// PreQuizContent is the text the pre-quiz is generated from: the course
// content followed by any extra topics. It is "" when both are blank.
func (s *Session) PreQuizContent(topics string) string {
	parts := make([]string, 0, 2)
	if c := s.Course.String(); c != "" {
		parts = append(parts, c)
	}
	if t := strings.TrimSpace(topics); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n")
}

// CanGeneratePostQuiz reports whether the post-quiz is unlocked.
func (s *Session) CanGeneratePostQuiz() error {
	if !s.Stage.AtLeast(StageRoadmapEligible) || strings.TrimSpace(s.Roadmap) == "" {
		return fmt.Errorf("%w: generate a roadmap first", ErrStageLocked)
	}
	return nil
}

// CanGenerateRoadmap reports whether the roadmap is unlocked.
func (s *Session) CanGenerateRoadmap() error {
	if !s.Stage.AtLeast(StageRoadmapEligible) {
		return fmt.Errorf("%w: submit the pre-quiz first", ErrStageLocked)
	}
	return nil
}

// ApplyQuiz installs a newly generated quiz. An empty set changes nothing.
// A new pre-quiz drops the roadmap and post-quiz, which were derived from
// the previous level.
func (s *Session) ApplyQuiz(phase quiz.Phase, questions []quiz.Question, difficulty quiz.Difficulty) error {
	if phase == quiz.PhasePost {
		if err := s.CanGeneratePostQuiz(); err != nil {
			return err
		}
	}
	if len(questions) == 0 {
		return nil
	}

	fresh := QuizState{
		Questions:  append([]quiz.Question(nil), questions...),
		Difficulty: difficulty,
		Answers:    quiz.Answers{},
	}

	if phase == quiz.PhasePost {
		s.Post = fresh
		return nil
	}

	s.Pre = fresh
	s.Stage = StagePreQuiz
	s.Level = ""
	s.Roadmap = ""
	s.Weeks = 0
	s.Post = QuizState{Answers: quiz.Answers{}}
	return nil
}

// RecordAnswer stores the answer to question index of a phase.
func (s *Session) RecordAnswer(phase quiz.Phase, index int, answer quiz.Answer) error {
	qs := s.Quiz(phase)
	if qs.Total() == 0 {
		return ErrNoQuiz
	}
	if qs.Submitted {
		return ErrAlreadySubmitted
	}
	if index < 0 || index >= qs.Total() {
		return fmt.Errorf("%w: question %d out of range 0..%d", ErrInvalidAnswer, index, qs.Total()-1)
	}
	if err := answer.Check(qs.Questions[index]); err != nil {
		return err
	}
	if qs.Answers == nil {
		qs.Answers = quiz.Answers{}
	}
	qs.Answers[index] = answer
	return nil
}

// Submit scores a phase. Only the first call scores and records history;
// later calls return the stored result with first == false.
func (s *Session) Submit(phase quiz.Phase, now time.Time) (result ScoreResult, first bool, err error) {
	qs := s.Quiz(phase)
	if qs.Total() == 0 {
		return ScoreResult{}, false, ErrNoQuiz
	}

	if qs.Submitted {
		return ScoreResult{Phase: phase, Score: qs.Score, Total: qs.Total(), Date: s.lastSubmission(phase)}, false, nil
	}

	qs.Score = quiz.Score(qs.Questions, qs.Answers)
	qs.Submitted = true
	result = ScoreResult{Phase: phase, Score: qs.Score, Total: qs.Total(), Date: now}
	s.History = append(s.History, result)

	if phase == quiz.PhasePre {
		s.Level = roadmap.LevelFor(qs.Score, qs.Total())
		if !s.Stage.AtLeast(StageRoadmapEligible) {
			s.Stage = StageRoadmapEligible
		}
	}
	return result, true, nil
}

// SetRoadmap stores a generated roadmap and unlocks the post-quiz. A new
// roadmap discards any post-quiz built from the previous one.
func (s *Session) SetRoadmap(text string, weeks int) error {
	if err := s.CanGenerateRoadmap(); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyRoadmap
	}
	s.Roadmap = text
	s.Weeks = weeks
	s.Post = QuizState{Answers: quiz.Answers{}}
	s.Stage = StagePostQuiz
	return nil
}

func (s *Session) lastSubmission(phase quiz.Phase) time.Time {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Phase == phase {
			return s.History[i].Date
		}
	}
	return time.Time{}
}
