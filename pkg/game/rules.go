package game

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
)

//go:embed books/Similo.md books/SimiloRole.md
var embeddedBooks embed.FS

// Rulebook holds the rule corpus the synthesizer grounds replies on.
// It is loaded once at startup.
type Rulebook struct {
	Rules     string
	RoleGuide string
}

// LoadRulebook reads Similo.md and SimiloRole.md from dir, falling back to
// the embedded copies per file. It never fails: a missing or unreadable
// directory just means the embedded corpus is used.
func LoadRulebook(dir string) *Rulebook {
	return &Rulebook{
		Rules:     loadBook(dir, "Similo.md"),
		RoleGuide: loadBook(dir, "SimiloRole.md"),
	}
}

func loadBook(dir, name string) string {
	if dir != "" {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			if text := strings.TrimSpace(string(data)); text != "" {
				return text
			}
		}
	}
	data, err := embeddedBooks.ReadFile("books/" + name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Corpus joins both books into the single prompt section.
func (r *Rulebook) Corpus() string {
	parts := make([]string, 0, 2)
	if r.Rules != "" {
		parts = append(parts, r.Rules)
	}
	if r.RoleGuide != "" {
		parts = append(parts, r.RoleGuide)
	}
	return strings.Join(parts, "\n\n")
}
