// Package course holds the content scraped from an online course page.
package course

import "strings"

// Section headings used when course content is rendered into a prompt.
const (
	LearnHeading  = "What You'll Learn"
	SkillsHeading = "Skills You'll Gain"
)

// Content is the normalised text of a course page. Either list may be empty
// when its region is missing from the page.
type Content struct {
	Learn  []string `json:"learn"`
	Skills []string `json:"skills"`
}

// IsEmpty reports whether neither list holds a non-blank item.
func (c Content) IsEmpty() bool {
	for _, s := range c.Learn {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	for _, s := range c.Skills {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

// String renders the content for a prompt, one labelled line per section.
// Empty content renders as "".
func (c Content) String() string {
	if c.IsEmpty() {
		return ""
	}
	var b strings.Builder
	b.WriteString(LearnHeading)
	b.WriteString(": ")
	b.WriteString(strings.Join(nonBlank(c.Learn), "; "))
	b.WriteString("\n")
	b.WriteString(SkillsHeading)
	b.WriteString(": ")
	b.WriteString(strings.Join(nonBlank(c.Skills), "; "))
	return b.String()
}

// Clone returns a copy that shares no backing arrays with c.
func (c Content) Clone() Content {
	return Content{
		Learn:  append([]string(nil), c.Learn...),
		Skills: append([]string(nil), c.Skills...),
	}
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
