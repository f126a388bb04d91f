package respond

import (
	"regexp"
	"strings"
)

// rewriteRule deterministically replaces one known-wrong rule claim, wrong
// role name, or textbook-tone filler. Rules apply in order, longest match
// first where patterns overlap.
type rewriteRule struct {
	match       string
	replacement string
	reason      string
}

var rewriteRules = []rewriteRule{
	{"有三次猜測的機會", "需要在5回合淘汰中找出秘密角色", "錯誤規則：三次猜測"},
	{"三次猜測", "5回合淘汰", "錯誤規則：三次猜測"},
	{"隱藏者", "出題者", "錯誤術語：隱藏者"},
	{"通常情況下，", "", "說明書語氣"},
	{"通常情況下", "", "說明書語氣"},
	{"通常這意味著", "", "說明書語氣"},
	{"這意味著", "", "說明書語氣"},
}

var (
	codeFenceRegex    = regexp.MustCompile("(?s)```.*?```")
	bulletPrefixRegex = regexp.MustCompile(`(?m)^\s*[-*]\s*`)
	affectiveEmoji    = []string{"😊", "🎭", "🎉", "🎯", "🎮"}
	sentenceSplitter  = regexp.MustCompile(`[。！？.!?]`)
)

// RewriteForbidden applies the fixed substitution table to text and reports
// which corrections fired.
func RewriteForbidden(text string) (string, []string) {
	var corrections []string
	for _, rule := range rewriteRules {
		if !strings.Contains(text, rule.match) {
			continue
		}
		text = strings.ReplaceAll(text, rule.match, rule.replacement)
		corrections = append(corrections, rule.reason)
	}
	return text, corrections
}

// PostProcess normalizes every outgoing reply: forbidden phrases rewritten,
// code fences and bullet prefixes stripped, overlong replies cut to the
// first three sentences, and an affective marker guaranteed.
func PostProcess(text string, maxRunes int) string {
	cleaned, _ := RewriteForbidden(text)
	cleaned = codeFenceRegex.ReplaceAllString(cleaned, "")
	cleaned = bulletPrefixRegex.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if maxRunes > 0 && len([]rune(cleaned)) > maxRunes {
		sentences := sentenceSplitter.Split(cleaned, -1)
		kept := make([]string, 0, 3)
		for _, s := range sentences {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			kept = append(kept, s)
			if len(kept) == 3 {
				break
			}
		}
		cleaned = strings.Join(kept, "。") + "。"
	}

	if !containsAffectiveEmoji(cleaned) {
		if strings.Contains(cleaned, "！") {
			cleaned = strings.Replace(cleaned, "！", "！😊", 1)
		} else {
			cleaned += " 😊"
		}
	}
	return strings.TrimSpace(cleaned)
}

func containsAffectiveEmoji(text string) bool {
	for _, e := range affectiveEmoji {
		if strings.Contains(text, e) {
			return true
		}
	}
	return false
}
