package ticket

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the machine-readable header written ahead of a triaged
// ticket when front matter output is enabled.
type FrontMatter struct {
	TriageID  string    `yaml:"triage_id"`
	Backend   string    `yaml:"backend"`
	Model     string    `yaml:"model,omitempty"`
	Status    string    `yaml:"status"`
	Urgency   string    `yaml:"urgency,omitempty"`
	Category  string    `yaml:"category,omitempty"`
	NewStatus string    `yaml:"new_status,omitempty"`
	TriagedAt time.Time `yaml:"triaged_at"`
}

// WithFrontMatter prefixes body with fm encoded as a YAML front matter block.
func WithFrontMatter(body string, fm FrontMatter) (string, error) {
	out, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}

	var b strings.Builder
	b.Grow(len(out) + len(body) + 8)
	b.WriteString("---\n")
	b.Write(out)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String(), nil
}

// SplitFrontMatter separates a leading front matter block from the body.
// Content without front matter is returned unchanged with a zero FrontMatter.
func SplitFrontMatter(content string) (FrontMatter, string, error) {
	var fm FrontMatter
	if !strings.HasPrefix(content, "---\n") {
		return fm, content, nil
	}
	header, body, ok := strings.Cut(content[len("---\n"):], "\n---\n")
	if !ok {
		return fm, content, nil
	}
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return fm, content, fmt.Errorf("decode front matter: %w", err)
	}
	return fm, strings.TrimPrefix(body, "\n"), nil
}
