package game

import "strings"

// Completion vocabulary per phase. A phase advances when the player's
// message contains any of its markers. NOT_STARTED is stricter: only an
// explicit wish to learn or play starts a game.
var completionKeywords = map[Phase][]string{
	PhaseNotStarted:       {"教", "玩", "學習"},
	PhasePlayerCountSetup: {"人", "個", "三", "四", "五"},
	PhaseCardLayoutSetup:  {"排好", "完成", "好了"},
	PhaseSecretSelection:  {"選好", "選了", "完成"},
	PhaseHandCardsSetup:   {"抽好", "準備好", "完成"},
}

var (
	clueKeywords        = []string{"打出", "放了", "線索"}
	eliminationKeywords = []string{"淘汰", "移除", "完成"}
)

// CompletionSignaled reports whether the message marks the current phase as
// done. GAME_END never completes.
func CompletionSignaled(p Phase, message string) bool {
	if p == PhaseGameEnd {
		return false
	}

	keywords, ok := completionKeywords[p]
	if !ok {
		switch {
		case p.IsClue():
			keywords = clueKeywords
		case p.IsElimination():
			keywords = eliminationKeywords
		default:
			return false
		}
	}

	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}
