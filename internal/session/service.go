package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/mindshift/internal/course"
	"github.com/p-n-ai/mindshift/internal/events"
	"github.com/p-n-ai/mindshift/internal/platform/metrics"
	"github.com/p-n-ai/mindshift/internal/quiz"
	"github.com/p-n-ai/mindshift/internal/roadmap"
)

// Scraper fetches course content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (course.Content, error)
}

// QuizGenerator produces validated quizzes.
type QuizGenerator interface {
	Generate(ctx context.Context, req quiz.Request) (quiz.Result, error)
}

// RoadmapGenerator produces study roadmaps.
type RoadmapGenerator interface {
	Generate(ctx context.Context, req roadmap.Request) (string, error)
}

// BudgetResetter forgets per-session accounting when a session is discarded.
type BudgetResetter interface {
	Forget(sessionID string)
}

// Service runs the learner flow. Operations on one session are serialised;
// different sessions proceed independently.
type Service struct {
	store    Store
	scraper  Scraper
	quizzes  QuizGenerator
	roadmaps RoadmapGenerator
	events   events.Logger
	metrics  *metrics.Metrics
	broker   *Broker
	budget   BudgetResetter
	locks    *keyedMutex
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the analytics event logger.
func WithEvents(l events.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.events = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBroker sets the snapshot broker.
func WithBroker(b *Broker) Option {
	return func(s *Service) {
		if b != nil {
			s.broker = b
		}
	}
}

// WithBudget resets token budgets when sessions are deleted.
func WithBudget(b BudgetResetter) Option {
	return func(s *Service) {
		s.budget = b
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService wires the flow's collaborators.
func NewService(store Store, scraper Scraper, quizzes QuizGenerator, roadmaps RoadmapGenerator, opts ...Option) *Service {
	s := &Service{
		store:    store,
		scraper:  scraper,
		quizzes:  quizzes,
		roadmaps: roadmaps,
		events:   events.NopLogger{},
		broker:   NewBroker(),
		locks:    newKeyedMutex(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broker returns the snapshot broker.
func (s *Service) Broker() *Broker {
	return s.broker
}

// Create starts a new session in StageBrowsing.
func (s *Service) Create(ctx context.Context) (*Session, error) {
	sess := New(s.newID(), s.now().UTC())
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.logEvent(ctx, sess.ID, events.SessionCreated, nil)
	return sess, nil
}

// Get returns a copy of a session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// Delete discards a session and closes its subscriptions.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.broker.Close(id)
	if s.budget != nil {
		s.budget.Forget(id)
	}
	return nil
}

// Subscribe streams snapshots of a session after each change.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan *Session, func(), error) {
	// Held so a concurrent Delete closes the subscription.
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.broker.Subscribe(id)
	return ch, cancel, nil
}

// ScrapeCourse fetches a course page into the session. On failure the course
// content is cleared and the error returned.
func (s *Service) ScrapeCourse(ctx context.Context, id, url string) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		content, err := s.scraper.Scrape(ctx, url)
		if err != nil {
			s.metrics.ObserveScrape("error")
			sess.SetCourse(url, course.Content{})
			return err
		}
		s.metrics.ObserveScrape("ok")
		sess.SetCourse(url, content)
		s.logEvent(ctx, id, events.CourseScraped, map[string]any{
			"url":    url,
			"learn":  len(content.Learn),
			"skills": len(content.Skills),
		})
		return nil
	})
}

// GenerateQuiz generates a quiz for a phase. The pre-quiz is built from the
// course content plus topics; the post-quiz from the roadmap. The topics are
// kept only once a quiz is applied. When every generated question is rejected
// the session is unchanged and the result carries quiz.ErrNoValidQuestions as
// its warning.
func (s *Service) GenerateQuiz(ctx context.Context, id string, phase quiz.Phase, topics string, difficulty quiz.Difficulty) (*Session, quiz.Result, error) {
	var result quiz.Result
	sess, err := s.update(ctx, id, func(sess *Session) error {
		var content string
		switch phase {
		case quiz.PhasePre:
			content = sess.PreQuizContent(topics)
			if content == "" {
				return ErrNoContent
			}
		case quiz.PhasePost:
			if err := sess.CanGeneratePostQuiz(); err != nil {
				return err
			}
			content = sess.Roadmap
		default:
			return fmt.Errorf("unknown quiz phase %q", phase)
		}

		var err error
		result, err = s.quizzes.Generate(ctx, quiz.Request{
			Phase:      phase,
			Content:    content,
			Difficulty: difficulty,
			SessionID:  id,
		})
		if err != nil {
			s.metrics.ObserveGeneration(string(phase)+"_quiz", "error")
			return err
		}

		s.metrics.ObserveRejected(string(phase), len(result.Rejected))
		if result.Warning != nil {
			s.metrics.ObserveGeneration(string(phase)+"_quiz", "empty")
			return nil
		}
		s.metrics.ObserveGeneration(string(phase)+"_quiz", "ok")

		if err := sess.ApplyQuiz(phase, result.Questions, difficulty); err != nil {
			return err
		}
		if phase == quiz.PhasePre {
			sess.Topics = topics
		}
		s.logEvent(ctx, id, events.QuizGenerated, map[string]any{
			"phase":      string(phase),
			"difficulty": string(difficulty),
			"questions":  len(result.Questions),
			"rejected":   len(result.Rejected),
		})
		return nil
	})
	return sess, result, err
}

// RecordAnswer stores one answer of a phase.
func (s *Service) RecordAnswer(ctx context.Context, id string, phase quiz.Phase, index int, answer quiz.Answer) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.RecordAnswer(phase, index, answer)
	})
}

// Submit scores a phase. Repeated submissions return the stored score.
func (s *Service) Submit(ctx context.Context, id string, phase quiz.Phase) (*Session, ScoreResult, error) {
	var result ScoreResult
	sess, err := s.update(ctx, id, func(sess *Session) error {
		r, first, err := sess.Submit(phase, s.now().UTC())
		if err != nil {
			return err
		}
		result = r
		if first {
			s.metrics.ObserveScore(string(phase), r.Score, r.Total)
			s.logEvent(ctx, id, events.QuizSubmitted, map[string]any{
				"phase": string(phase),
				"score": r.Score,
				"total": r.Total,
				"level": string(sess.Level),
			})
		}
		return nil
	})
	return sess, result, err
}

// GenerateRoadmap asks for a roadmap at the session's level. A blank reply
// leaves the previous roadmap in place.
func (s *Service) GenerateRoadmap(ctx context.Context, id string, weeks int) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		if err := sess.CanGenerateRoadmap(); err != nil {
			return err
		}

		text, err := s.roadmaps.Generate(ctx, roadmap.Request{
			Content:   sess.PreQuizContent(sess.Topics),
			Level:     sess.Level,
			Weeks:     weeks,
			SessionID: id,
		})
		if err != nil {
			if !errors.Is(err, roadmap.ErrInvalidDuration) {
				s.metrics.ObserveGeneration("roadmap", "error")
			}
			return err
		}

		if err := sess.SetRoadmap(text, weeks); err != nil {
			s.metrics.ObserveGeneration("roadmap", "empty")
			return err
		}
		s.metrics.ObserveGeneration("roadmap", "ok")
		s.logEvent(ctx, id, events.RoadmapGenerated, map[string]any{
			"level": string(sess.Level),
			"weeks": weeks,
		})
		return nil
	})
}

// update runs fn on a private copy of the session under the session lock,
// then saves and publishes the result. The copy is saved even when fn fails
// so partial resets (a failed scrape clearing course content) stick.
func (s *Service) update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fnErr := fn(sess)

	sess.UpdatedAt = s.now().UTC()
	// A client that hung up mid-generation still gets its state saved.
	if err := s.store.Save(context.WithoutCancel(ctx), sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	s.broker.Publish(sess)

	if fnErr != nil {
		return sess, fnErr
	}
	return sess, nil
}

func (s *Service) logEvent(ctx context.Context, id, typ string, data map[string]any) {
	if err := s.events.LogEvent(ctx, events.Event{
		SessionID: id,
		Type:      typ,
		Data:      data,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		slog.Warn("failed to log event", "type", typ, "session_id", id, "error", err)
	}
}
