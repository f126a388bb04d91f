package session

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	playerCountRegexps = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*個人`),
		regexp.MustCompile(`(\d+)\s*人`),
		regexp.MustCompile(`我們\s*(\d+)`),
		regexp.MustCompile(`(一|二|兩|三|四|五|六|七|八|九|十)個人`),
		regexp.MustCompile(`(兩|三|四|五|六|七|八|九|十)人`),
	}

	playerCountMentionRegex = regexp.MustCompile(`\d+\s*(個人|人)|我們\s*\d+|(一|二|三|四|五|六|七|八|九|十|兩)(個人|人)`)
	experienceMentionRegex  = regexp.MustCompile(`第一次|沒玩過|新手|玩過|會玩|熟悉|專家|很熟|常玩`)
	materialsMentionRegex   = regexp.MustCompile(`有卡|有牌|準備好|沒有|沒帶|缺少|其他卡|代替|替代`)
)

var chineseNumerals = map[string]int{
	"一": 1, "二": 2, "兩": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
}

// ExtractEnvironment pulls table facts out of a single player utterance.
// Fields it cannot find stay at their zero value.
func ExtractEnvironment(message string) Environment {
	msg := strings.ToLower(strings.TrimSpace(message))
	return Environment{
		PlayerCount: extractPlayerCount(msg),
		Experience:  extractExperience(msg),
		Materials:   extractMaterials(msg),
	}
}

func extractPlayerCount(message string) int {
	for _, re := range playerCountRegexps {
		m := re.FindStringSubmatch(message)
		if len(m) < 2 {
			continue
		}
		if n, ok := chineseNumerals[m[1]]; ok {
			return n
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func extractExperience(message string) Experience {
	switch {
	case containsAny(message, "第一次", "沒玩過", "新手"):
		return ExperienceBeginner
	case containsAny(message, "玩過", "會玩", "熟悉"):
		return ExperienceExperienced
	case containsAny(message, "專家", "很熟", "常玩"):
		return ExperienceExpert
	}
	return ExperienceUnknown
}

func extractMaterials(message string) Materials {
	switch {
	case containsAny(message, "有卡", "有牌", "準備好"):
		return MaterialsAvailable
	case containsAny(message, "沒有", "沒帶", "缺少"):
		return MaterialsMissing
	case containsAny(message, "其他卡", "代替", "替代"):
		return MaterialsSubstitute
	}
	return MaterialsUnknown
}

// MentionsPlayerCount reports whether the message carries a head count,
// so a sensing question for it can be skipped.
func MentionsPlayerCount(message string) bool {
	return playerCountMentionRegex.MatchString(message)
}

func MentionsExperience(message string) bool {
	return experienceMentionRegex.MatchString(message)
}

func MentionsMaterials(message string) bool {
	return materialsMentionRegex.MatchString(message)
}

func containsAny(message string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}
