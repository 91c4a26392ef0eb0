package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoader_Builtin(t *testing.T) {
	loader, err := NewLoader("")
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	for _, id := range []string{PreQuiz, PostQuiz, Roadmap} {
		if _, ok := loader.Get(id); !ok {
			t.Errorf("Get(%q) not found", id)
		}
	}

	roadmap, _ := loader.Get(Roadmap)
	if roadmap.System != "You are an expert education planner." {
		t.Errorf("roadmap System = %q", roadmap.System)
	}
}

func TestRender_PreQuiz(t *testing.T) {
	loader, err := NewLoader("")
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	got, err := loader.Render(PreQuiz, Data{Count: 7, Level: "Medium", Content: "learn go"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{"Generate 7 multiple-choice", "Level: Medium", "Content: learn go", `"correct": "a"`} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, got)
		}
	}
}

func TestRender_Roadmap(t *testing.T) {
	loader, err := NewLoader("")
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	got, err := loader.Render(Roadmap, Data{Content: "sql", Level: "Beginner", Weeks: 4})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(got, "Skill level: Beginner. Duration: 4 weeks.") {
		t.Errorf("unexpected roadmap prompt:\n%s", got)
	}
}

func TestRender_UnknownPrompt(t *testing.T) {
	loader, err := NewLoader("")
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if _, err := loader.Render("missing", Data{}); err == nil {
		t.Error("Render() should fail for an unknown prompt")
	}
}

func TestNewLoader_Override(t *testing.T) {
	dir := t.TempDir()
	override := "id: roadmap\nsystem: You plan study time.\ntemplate: \"Plan {{.Weeks}} weeks at {{.Level}} level.\"\n"
	if err := os.WriteFile(filepath.Join(dir, "roadmap.yaml"), []byte(override), 0o600); err != nil {
		t.Fatal(err)
	}
	// Non-prompt files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# notes"), 0o600); err != nil {
		t.Fatal(err)
	}

	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	got, err := loader.Render(Roadmap, Data{Weeks: 2, Level: "Advanced"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "Plan 2 weeks at Advanced level." {
		t.Errorf("Render() = %q", got)
	}

	p, _ := loader.Get(Roadmap)
	if p.System != "You plan study time." {
		t.Errorf("System = %q", p.System)
	}
}

func TestNewLoader_BadTemplate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("id: pre_quiz\ntemplate: \"{{.Count\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLoader(dir); err == nil {
		t.Error("NewLoader() should fail on an unparsable template")
	}
}
