// Package prompts loads the instruction templates sent to the generative-text
// service. Built-in templates are embedded; a directory of YAML files can
// override any of them by ID.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Template IDs used by the generators.
const (
	PreQuiz  = "pre_quiz"
	PostQuiz = "post_quiz"
	Roadmap  = "roadmap"
)

//go:embed templates/*.yaml
var builtin embed.FS

// Prompt is one instruction template loaded from YAML.
type Prompt struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	System      string `yaml:"system"`
	Template    string `yaml:"template"`

	tmpl *template.Template
}

// Data is the set of values a template may reference.
type Data struct {
	Count   int
	Level   string
	Content string
	Weeks   int
}

// Loader holds parsed prompts keyed by ID.
type Loader struct {
	prompts map[string]*Prompt
	mu      sync.RWMutex
}

// NewLoader loads the built-in prompts, then any *.yaml files under dir.
// An empty dir uses only the built-ins.
func NewLoader(dir string) (*Loader, error) {
	l := &Loader{prompts: make(map[string]*Prompt)}

	if err := l.loadFS(builtin, "templates"); err != nil {
		return nil, fmt.Errorf("loading built-in prompts: %w", err)
	}

	if dir != "" {
		if err := l.loadFS(os.DirFS(dir), "."); err != nil {
			return nil, fmt.Errorf("loading prompts from %s: %w", dir, err)
		}
	}

	for _, id := range []string{PreQuiz, PostQuiz, Roadmap} {
		if _, ok := l.prompts[id]; !ok {
			return nil, fmt.Errorf("prompt %q not defined", id)
		}
	}

	slog.Debug("prompts loaded", "count", len(l.prompts), "override_dir", dir)
	return l, nil
}

// Get returns a prompt by ID.
func (l *Loader) Get(id string) (*Prompt, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.prompts[id]
	return p, ok
}

// Render executes the prompt template with data.
func (l *Loader) Render(id string, data Data) (string, error) {
	p, ok := l.Get(id)
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", id)
	}
	return p.Render(data)
}

// Render executes the template with data.
func (p *Prompt) Render(data Data) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt %q: %w", p.ID, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (l *Loader) loadFS(fsys fs.FS, root string) error {
	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
			return nil
		}
		return l.loadPrompt(fsys, path)
	})
}

func (l *Loader) loadPrompt(fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return err
	}

	var p Prompt
	if err := yaml.Unmarshal(data, &p); err != nil {
		slog.Warn("skipping invalid prompt YAML", "path", path, "error", err)
		return nil
	}

	if p.ID == "" {
		return nil // Not a prompt file
	}

	tmpl, err := template.New(p.ID).Option("missingkey=error").Parse(p.Template)
	if err != nil {
		return fmt.Errorf("parsing template %s: %w", path, err)
	}
	p.tmpl = tmpl

	l.mu.Lock()
	l.prompts[p.ID] = &p
	l.mu.Unlock()

	return nil
}
