package game

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRulebook_EmbeddedFallback(t *testing.T) {
	rb := LoadRulebook("")
	if rb.Rules == "" || rb.RoleGuide == "" {
		t.Fatal("embedded rulebook must not be empty")
	}
	if !strings.Contains(rb.Rules, "Similo") {
		t.Error("rules should mention the game name")
	}
	if !strings.Contains(rb.RoleGuide, "出題者") {
		t.Error("role guide should describe the clue giver")
	}
}

func TestLoadRulebook_DirOverridesPerFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Similo.md"), []byte("local rules"), 0o644); err != nil {
		t.Fatalf("write book: %v", err)
	}

	rb := LoadRulebook(dir)
	if rb.Rules != "local rules" {
		t.Fatalf("Rules = %q, want local file content", rb.Rules)
	}
	// SimiloRole.md is absent on disk, so the embedded copy backs it.
	if !strings.Contains(rb.RoleGuide, "出題者") {
		t.Error("missing role file should fall back to embedded copy")
	}
}

func TestRulebook_Corpus(t *testing.T) {
	rb := &Rulebook{Rules: "a", RoleGuide: "b"}
	if got := rb.Corpus(); got != "a\n\nb" {
		t.Fatalf("Corpus = %q", got)
	}
	empty := &Rulebook{}
	if got := empty.Corpus(); got != "" {
		t.Fatalf("empty corpus = %q", got)
	}
}
