// Package scraper fetches a course page and extracts its "what you'll learn"
// and "skills" lists.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/p-n-ai/mindshift/internal/course"
	"github.com/p-n-ai/mindshift/internal/platform/config"
	"github.com/p-n-ai/mindshift/internal/textnorm"
)

// Defaults matching the course pages the service targets.
const (
	DefaultUserAgent      = "Mozilla/5.0"
	DefaultLearnSelector  = "section.css-1t957yb li"
	DefaultSkillsSelector = "div.css-1m3kxpf span"

	maxBodyBytes = 10 << 20
)

// ErrInvalidURL is returned for empty or non-http(s) URLs.
var ErrInvalidURL = errors.New("invalid course URL")

// FetchError is a failed page fetch: either a non-2xx status or a transport
// failure (StatusCode 0).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Scraper fetches course pages. It is safe for concurrent use.
type Scraper struct {
	client     *http.Client
	userAgent  string
	limiter    *rate.Limiter
	learn      Selector
	skills     Selector
	normalizer *textnorm.Normalizer
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scraper) {
		s.client = client
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Scraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithRateLimit paces outbound fetches; rps <= 0 disables pacing.
func WithRateLimit(rps float64) Option {
	return func(s *Scraper) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
	}
}

// WithSelectors replaces the region selectors.
func WithSelectors(learn, skills Selector) Option {
	return func(s *Scraper) {
		s.learn = learn
		s.skills = skills
	}
}

// WithNormalizer replaces the default text normalizer.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(s *Scraper) {
		s.normalizer = n
	}
}

// New creates a Scraper with the default selectors and no pacing.
func New(opts ...Option) *Scraper {
	learn, _ := ParseSelector(DefaultLearnSelector)
	skills, _ := ParseSelector(DefaultSkillsSelector)
	s := &Scraper{
		client:     &http.Client{Timeout: 20 * time.Second},
		userAgent:  DefaultUserAgent,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		learn:      learn,
		skills:     skills,
		normalizer: textnorm.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds a Scraper from the scraper settings.
func NewFromConfig(cfg config.ScraperConfig) (*Scraper, error) {
	learn, err := ParseSelector(cfg.LearnSelector)
	if err != nil {
		return nil, fmt.Errorf("learn selector: %w", err)
	}
	skills, err := ParseSelector(cfg.SkillsSelector)
	if err != nil {
		return nil, fmt.Errorf("skills selector: %w", err)
	}
	return New(
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithUserAgent(cfg.UserAgent),
		WithRateLimit(cfg.RequestsPerSecond),
		WithSelectors(learn, skills),
	), nil
}

// Scrape performs one GET of rawURL and returns the normalised course content.
// Missing regions yield empty lists; there is no retry.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (course.Content, error) {
	if err := validateURL(rawURL); err != nil {
		return course.Content{}, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return course.Content{}, &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return course.Content{}, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return course.Content{}, &FetchError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return course.Content{}, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return course.Content{}, &FetchError{URL: rawURL, Err: fmt.Errorf("parse html: %w", err)}
	}

	return s.Extract(doc), nil
}

// Extract pulls both lists out of an already parsed document.
func (s *Scraper) Extract(doc *html.Node) course.Content {
	return course.Content{
		Learn:  s.normalizer.NormalizeAll(s.learn.Extract(doc)),
		Skills: s.normalizer.NormalizeAll(s.skills.Extract(doc)),
	}
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return ErrInvalidURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}
