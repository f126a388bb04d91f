package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotsetgreg/similobot/pkg/analysis"
	"github.com/dotsetgreg/similobot/pkg/game"
	"github.com/dotsetgreg/similobot/pkg/intent"
	"github.com/dotsetgreg/similobot/pkg/logger"
	"github.com/dotsetgreg/similobot/pkg/providers"
	"github.com/dotsetgreg/similobot/pkg/session"
)

// DefaultMaxRunes caps reply length before sentence truncation kicks in.
const DefaultMaxRunes = 500

// promptHistoryTurns bounds how much history goes into the prompt.
const promptHistoryTurns = 10

// Synthesizer builds the final reply for a turn. Generate is the oracle
// path; TemplateReply and Fallback are the oracle-free paths the
// degradation tiers use. Every output passes PostProcess.
type Synthesizer struct {
	provider providers.LLMProvider
	model    string
	options  map[string]interface{}
	rulebook *game.Rulebook
	maxRunes int
}

func NewSynthesizer(provider providers.LLMProvider, model string, options map[string]interface{}, rulebook *game.Rulebook, maxRunes int) *Synthesizer {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	return &Synthesizer{provider: provider, model: model, options: options, rulebook: rulebook, maxRunes: maxRunes}
}

// Generate asks the oracle for a reply. ok is false when the oracle is
// unavailable or failed; callers then fall back to TemplateReply or Fallback.
func (s *Synthesizer) Generate(ctx context.Context, message string, verdict analysis.Analysis, cls intent.Classification, sess *session.Session) (string, bool) {
	if s == nil || s.provider == nil {
		return "", false
	}
	prompt := s.buildGenerationPrompt(message, verdict, cls, sess)
	resp, err := s.provider.Chat(ctx, []providers.Message{{Role: "user", Content: prompt}}, s.model, s.options)
	if err != nil {
		logger.WarnCF("respond", "Oracle generation failed", map[string]any{"error": err.Error()})
		return "", false
	}
	reply := PostProcess(resp.Content, s.maxRunes)
	if reply == "" {
		logger.WarnC("respond", "Oracle produced an empty reply")
		return "", false
	}
	return reply, true
}

// TemplateReply produces a reply without the oracle, driven by the intent
// and the session's phase and environment. ok is false for intents it has
// no template for; callers then drop to Fallback.
func (s *Synthesizer) TemplateReply(cls intent.Classification, sess *session.Session) (string, bool) {
	env := sess.Environment()
	phase := sess.Phase()

	var reply string
	switch cls.Intent {
	case intent.StartGame:
		reply = "太棒了！我來當你們的陪玩員 🎉 " + NextSensingQuestion(env)
	case intent.EnvironmentInfo:
		reply = acknowledgeEnvironment(env, phase)
	case intent.StepCompletion:
		reply = "做得很好！" + game.InfoFor(phase).Instruction
	case intent.RuleQuestion, intent.RuleClarification:
		reply = quickRuleReference()
	case intent.GameStateQuery, intent.ProgressControl:
		reply = "目前的進度：" + sess.GameSummary()
	case intent.DelayedResponse:
		reply = "收到！我記下你的回答了，我們繼續剛剛的流程"
	default:
		return "", false
	}
	return PostProcess(reply, s.maxRunes), true
}

var fallbackReplies = map[intent.Intent]string{
	intent.Chitchat:          "你好！我是 Similo AI 陪玩員 🎭 很高興和你聊天！有什麼可以幫助你的嗎？",
	intent.RuleQuestion:      "這是個好問題！讓我來解釋一下 Similo 的規則：12張卡排成4×3方陣，線索卡直放表示相似、橫放表示不相似，第1回合淘汰1張、第2回合淘汰2張，依此類推。",
	intent.StartGame:         "太棒了！我來當你們的陪玩員 🎉 在開始之前，先跟我說說：現在桌上有幾位玩家呢？",
	intent.GameAction:        "我明白你想進行遊戲動作。讓我們一步步來處理！",
	intent.ProgressControl:   "好的，讓我來幫你回顧一下當前的遊戲狀況！",
	intent.DelayedResponse:   "收到！我記下你的回答了，我們繼續剛剛的流程 😊",
	intent.EnvironmentInfo:   "了解！我記下來了，我們繼續設置遊戲吧 🎯",
	intent.StepCompletion:    "做得很好！繼續加油 😊",
	intent.GameStateQuery:    "讓我看看目前的進度，跟你說明我們走到哪一步了！",
	intent.RuleClarification: "讓我確認一下我的理解是否正確，再跟你說明清楚！",
	intent.ErrorRecovery:     "沒關係，我們把剛剛那一步重新來一次就好 😊",
}

// Fallback returns the canned reply for an intent. It is total: unknown
// intents get the chitchat reply. Never empty.
func (s *Synthesizer) Fallback(in intent.Intent) string {
	reply, ok := fallbackReplies[in]
	if !ok {
		reply = fallbackReplies[intent.Chitchat]
	}
	max := DefaultMaxRunes
	if s != nil && s.maxRunes > 0 {
		max = s.maxRunes
	}
	return PostProcess(reply, max)
}

// NextSensingQuestion picks the question for the first still-unknown
// environment fact, in sensing priority order.
func NextSensingQuestion(env session.Environment) string {
	missing := env.MissingFields()
	if len(missing) == 0 {
		return "環境都確認好了，我們可以開始設置遊戲囉！"
	}
	switch missing[0] {
	case "player_count":
		return "在開始之前，先跟我說說：現在桌上有幾位玩家呢？"
	case "experience_level":
		return "你們之前玩過 Similo 嗎？還是第一次接觸呢？"
	default:
		return "你們手邊有 Similo 的卡牌嗎？"
	}
}

func acknowledgeEnvironment(env session.Environment, phase game.Phase) string {
	if !env.Complete() {
		return "了解！我記下來了。" + NextSensingQuestion(env)
	}
	return "了解！我記下來了。" + game.InfoFor(phase).Instruction
}

func quickRuleReference() string {
	return "Similo 的核心規則：12張卡片排成4×3方陣；出題者選擇秘密角色，猜題者進行淘汰；" +
		"線索卡直放=相似，橫放=不相似；第1回合淘汰1張，第2回合淘汰2張，依此類推；" +
		"5個回合後最後剩下的卡片就是秘密角色則勝利！還想了解哪個部分呢？"
}

func (s *Synthesizer) buildGenerationPrompt(message string, verdict analysis.Analysis, cls intent.Classification, sess *session.Session) string {
	var b strings.Builder
	b.WriteString("你是 Similo AI 陪玩員 🎭，一個友善、專業、有趣的桌遊助手。根據分析結果生成自然的回應。\n\n")
	fmt.Fprintf(&b, "📝 用戶消息：「%s」\n\n", message)

	if s.rulebook != nil {
		b.WriteString("📖 Similo 規則庫（唯一正確的規則來源）：\n")
		b.WriteString(s.rulebook.Corpus())
		b.WriteString("\n\n")
	}

	info := game.InfoFor(sess.Phase())
	fmt.Fprintf(&b, "🎮 當前遊戲階段：%s\n", info.Name)
	fmt.Fprintf(&b, "📋 本階段引導指令：%s\n\n", info.Instruction)

	b.WriteString("🧠 已經知道的資訊（不要重複詢問）：\n")
	b.WriteString(memorySummary(sess))
	b.WriteString("\n\n")

	b.WriteString("📚 最近對話：\n")
	b.WriteString(formatRecentHistory(sess.History()))
	b.WriteString("\n\n")

	b.WriteString("🌉 上下文銜接策略：\n")
	b.WriteString(contextBridge(verdict))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "🎯 意圖：%s（信心 %.2f），回應方式：%s\n\n", cls.Intent, cls.Confidence, cls.Strategy)
	b.WriteString(strategyGuidance(cls))

	b.WriteString("\n🚫 避免事項：\n")
	b.WriteString("- 不要說「我當出題者」或參與遊戲\n")
	b.WriteString("- 不要一次性提供過多信息\n")
	b.WriteString("- 絕對不要提到「三次猜測」這種不存在的規則\n")
	b.WriteString("- 角色名稱用「出題者」和「猜題者」，不要用「隱藏者」\n")
	b.WriteString("- 不要用「通常情況下」「這意味著」這類說明書語氣\n\n")
	b.WriteString("請生成一個自然、友善、有用的回應，體現 Similo AI 陪玩員的專業素養。")
	return b.String()
}

func memorySummary(sess *session.Session) string {
	env := sess.Environment()
	known := env.Summary()
	if known == "" {
		known = "（尚無已知資訊）"
	}
	missing := env.MissingFields()
	if len(missing) == 0 {
		return known
	}
	return known + "\n還需要確認：" + strings.Join(missing, ", ")
}

func formatRecentHistory(history []session.Turn) string {
	if len(history) == 0 {
		return "（無對話歷史）"
	}
	if len(history) > promptHistoryTurns {
		history = history[len(history)-promptHistoryTurns:]
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		role := "用戶"
		if turn.Role == "assistant" {
			role = "陪玩員"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, turn.Content))
	}
	return strings.Join(lines, "\n")
}

func contextBridge(verdict analysis.Analysis) string {
	var parts []string
	if verdict.Continuity.IsContinuous && verdict.Continuity.Type == analysis.ContinuityDelayedResponse {
		parts = append(parts, "✅ 這是延遲回應，要確認理解用戶的回答並繼續之前的流程")
	}
	if verdict.Topic.SwitchDetected {
		parts = append(parts, "🔄 檢測到話題切換，先回答當前問題，然後引導回原話題")
	}
	if verdict.Topic.ReturnToTopic != "" {
		parts = append(parts, fmt.Sprintf("🎯 用戶可能想回到「%s」話題", verdict.Topic.ReturnToTopic))
	}
	if verdict.KeyInfo.PendingQuestion != "" {
		parts = append(parts, fmt.Sprintf("⏳ 之前問過「%s」還沒有得到回答，視情況再次確認", verdict.KeyInfo.PendingQuestion))
	}
	if len(parts) == 0 {
		return "📝 正常對話流程，按意圖回應即可"
	}
	return strings.Join(parts, "\n")
}

func strategyGuidance(cls intent.Classification) string {
	switch cls.Strategy {
	case intent.StrategyEnvironmentSensing:
		return "🎮 引導原則：不要立即解釋所有規則；先進行環境感知（玩家人數、經驗、道具），一次只問一個問題，逐步引導設置。\n"
	case intent.StrategyGuidedAction:
		return "🎯 引導原則：確認用戶的動作，給出本階段的下一步具體指示，一步一步來。\n"
	default:
		return "🎯 回應原則：只回答用戶具體問的問題，保持簡潔明確，可以詢問是否需要了解其他部分。\n"
	}
}
