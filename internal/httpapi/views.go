package httpapi

import (
	"time"

	"github.com/p-n-ai/mindshift/internal/course"
	"github.com/p-n-ai/mindshift/internal/quiz"
	"github.com/p-n-ai/mindshift/internal/roadmap"
	"github.com/p-n-ai/mindshift/internal/session"
)

type optionView struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// questionView omits the correct answer until the quiz is submitted.
type questionView struct {
	Index   int          `json:"index"`
	Kind    quiz.Kind    `json:"kind"`
	Prompt  string       `json:"prompt"`
	Options []optionView `json:"options,omitempty"`
	Answer  *quiz.Answer `json:"answer,omitempty"`
	Correct *quiz.Answer `json:"correct,omitempty"`
	IsRight *bool        `json:"is_correct,omitempty"`
}

type quizView struct {
	Difficulty quiz.Difficulty `json:"difficulty,omitempty"`
	Questions  []questionView  `json:"questions"`
	Answered   int             `json:"answered"`
	Total      int             `json:"total"`
	Submitted  bool            `json:"submitted"`
	Score      *int            `json:"score,omitempty"`
}

type unlockedView struct {
	Roadmap  bool `json:"roadmap"`
	PostQuiz bool `json:"post_quiz"`
}

type sessionView struct {
	ID        string                `json:"id"`
	Stage     session.Stage         `json:"stage"`
	Unlocked  unlockedView          `json:"unlocked"`
	CourseURL string                `json:"course_url,omitempty"`
	Course    course.Content        `json:"course"`
	Topics    string                `json:"topics,omitempty"`
	PreQuiz   quizView              `json:"pre_quiz"`
	Level     roadmap.Level         `json:"level,omitempty"`
	Roadmap   string                `json:"roadmap,omitempty"`
	Weeks     int                   `json:"weeks,omitempty"`
	PostQuiz  quizView              `json:"post_quiz"`
	History   []session.ScoreResult `json:"history"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func newSessionView(s *session.Session) sessionView {
	history := s.History
	if history == nil {
		history = []session.ScoreResult{}
	}
	return sessionView{
		ID:    s.ID,
		Stage: s.Stage,
		Unlocked: unlockedView{
			Roadmap:  s.CanGenerateRoadmap() == nil,
			PostQuiz: s.CanGeneratePostQuiz() == nil,
		},
		CourseURL: s.CourseURL,
		Course:    s.Course,
		Topics:    s.Topics,
		PreQuiz:   newQuizView(s.Pre),
		Level:     s.Level,
		Roadmap:   s.Roadmap,
		Weeks:     s.Weeks,
		PostQuiz:  newQuizView(s.Post),
		History:   history,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func newQuizView(qs session.QuizState) quizView {
	v := quizView{
		Difficulty: qs.Difficulty,
		Questions:  make([]questionView, 0, len(qs.Questions)),
		Answered:   len(qs.Answers),
		Total:      qs.Total(),
		Submitted:  qs.Submitted,
	}
	if qs.Submitted {
		score := qs.Score
		v.Score = &score
	}

	for i, q := range qs.Questions {
		qv := questionView{Index: i, Kind: q.Kind, Prompt: q.Prompt}
		for _, k := range q.OptionKeys() {
			qv.Options = append(qv.Options, optionView{Key: k, Text: q.Options[k]})
		}
		if a, ok := qs.Answers[i]; ok {
			qv.Answer = &a
		}
		if qs.Submitted {
			correct := q.CorrectAnswer()
			qv.Correct = &correct
			right := qv.Answer != nil && qv.Answer.Matches(q)
			qv.IsRight = &right
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}
