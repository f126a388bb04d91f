package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotsetgreg/similobot/pkg/analysis"
	"github.com/dotsetgreg/similobot/pkg/game"
	"github.com/dotsetgreg/similobot/pkg/logger"
	"github.com/dotsetgreg/similobot/pkg/providers"
	"github.com/dotsetgreg/similobot/pkg/session"
)

// Intent is the classified purpose of one user utterance. The taxonomy is
// closed: anything the oracle invents outside it is coerced to chitchat.
type Intent string

const (
	Chitchat          Intent = "chitchat"
	RuleQuestion      Intent = "rule_question"
	StartGame         Intent = "start_game"
	GameAction        Intent = "game_action"
	ProgressControl   Intent = "progress_control"
	DelayedResponse   Intent = "delayed_response"
	EnvironmentInfo   Intent = "environment_info"
	StepCompletion    Intent = "step_completion"
	GameStateQuery    Intent = "game_state_query"
	RuleClarification Intent = "rule_clarification"
	ErrorRecovery     Intent = "error_recovery"
)

// Strategy directs how the synthesizer should shape the reply.
type Strategy string

const (
	StrategyDirectAnswer       Strategy = "direct_answer"
	StrategyEnvironmentSensing Strategy = "environment_sensing"
	StrategyGuidedAction       Strategy = "guided_action"
)

var allIntents = []Intent{
	Chitchat, RuleQuestion, StartGame, GameAction, ProgressControl,
	DelayedResponse, EnvironmentInfo, StepCompletion, GameStateQuery,
	RuleClarification, ErrorRecovery,
}

// Valid reports whether in belongs to the closed taxonomy.
func Valid(in Intent) bool {
	for _, known := range allIntents {
		if in == known {
			return true
		}
	}
	return false
}

// StrategyFor maps an intent to its default response strategy. StartGame
// always senses the environment; action-like intents get guided steps.
func StrategyFor(in Intent) Strategy {
	switch in {
	case StartGame:
		return StrategyEnvironmentSensing
	case GameAction, StepCompletion, EnvironmentInfo, ProgressControl:
		return StrategyGuidedAction
	default:
		return StrategyDirectAnswer
	}
}

// Classification is the classifier's verdict for one turn.
type Classification struct {
	Intent      Intent          `json:"intent"`
	Confidence  float64         `json:"confidence"`
	Strategy    Strategy        `json:"strategy"`
	Description string          `json:"description,omitempty"`
	Source      analysis.Source `json:"source"`
}

type patternSet struct {
	keywords []string
	phrases  []string
}

// intentPatterns drives the heuristic fallback. Keyword hits score 1,
// phrase hits score 2, normalized by the number of checks in the set.
var intentPatterns = map[Intent]patternSet{
	StartGame: {
		keywords: []string{"開始", "怎麼玩", "新遊戲", "開局", "設置", "setup", "start", "玩法", "教我", "學習", "可以教"},
		phrases:  []string{"我想開始", "怎麼開始", "如何設置", "開始新遊戲", "教我玩", "可以教我", "怎麼玩", "學習怎麼玩"},
	},
	RuleQuestion: {
		keywords: []string{"規則", "怎麼", "為什麼", "可以", "應該", "淘汰", "線索", "直放", "橫放", "回合"},
		phrases:  []string{"淘汰幾張", "什麼意思", "怎麼淘汰", "線索怎麼", "規則是"},
	},
	ProgressControl: {
		keywords: []string{"等等", "暫停", "回顧", "重複", "上一步", "下一步", "繼續", "狀態", "現在"},
		phrases:  []string{"等一下", "再說一次", "回到上一步", "現在到哪", "目前狀況"},
	},
	GameAction: {
		keywords: []string{"出牌", "選擇", "淘汰", "決定", "我選", "打出", "放置"},
		phrases:  []string{"我要淘汰", "我選擇", "出這張", "放這個位置", "決定是"},
	},
	Chitchat: {
		keywords: []string{"好難", "有趣", "喜歡", "討厭", "無聊", "換遊戲", "其他"},
		phrases:  []string{"這遊戲", "太難了", "很有趣", "不喜歡", "可以換"},
	},
}

// chitchatFloor forces low-scoring utterances to chitchat.
const chitchatFloor = 0.3

// Classifier determines user intent for each turn. Classify never returns
// an error: oracle failures degrade to the pattern-table heuristic.
type Classifier struct {
	provider providers.LLMProvider
	model    string
	options  map[string]interface{}
}

func NewClassifier(provider providers.LLMProvider, model string, options map[string]interface{}) *Classifier {
	return &Classifier{provider: provider, model: model, options: options}
}

// Classify runs the oracle stage when a provider is available, falling back
// to HeuristicClassify. It never fails and never panics.
func (c *Classifier) Classify(ctx context.Context, message string, verdict analysis.Analysis, phase game.Phase) Classification {
	if c != nil && c.provider != nil {
		if result, ok := c.classifyWithOracle(ctx, message, verdict, phase); ok {
			return result
		}
	}
	return HeuristicClassify(message, verdict, phase)
}

type oracleIntentReply struct {
	Intent struct {
		PrimaryIntent string  `json:"primary_intent"`
		Confidence    float64 `json:"confidence"`
		Description   string  `json:"description"`
	} `json:"intent"`
	ResponseStrategy struct {
		Approach string `json:"approach"`
	} `json:"response_strategy"`
}

func (c *Classifier) classifyWithOracle(ctx context.Context, message string, verdict analysis.Analysis, phase game.Phase) (Classification, bool) {
	prompt := buildDetectionPrompt(message, verdict, phase)
	resp, err := c.provider.Chat(ctx, []providers.Message{{Role: "user", Content: prompt}}, c.model, c.options)
	if err != nil {
		logger.WarnCF("intent", "Oracle classification failed", map[string]any{"error": err.Error()})
		return Classification{}, false
	}

	var decoded oracleIntentReply
	if !analysis.DecodeFirstObject(resp.Content, &decoded) {
		logger.WarnC("intent", "Oracle reply carried no decodable JSON object")
		return Classification{}, false
	}

	in := Intent(strings.TrimSpace(strings.ToLower(decoded.Intent.PrimaryIntent)))
	if !Valid(in) {
		logger.WarnCF("intent", "Oracle produced unknown intent, coercing to chitchat", map[string]any{"intent": decoded.Intent.PrimaryIntent})
		in = Chitchat
	}

	confidence := decoded.Intent.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0.5
	}

	strategy := Strategy(strings.TrimSpace(decoded.ResponseStrategy.Approach))
	switch strategy {
	case StrategyDirectAnswer, StrategyEnvironmentSensing, StrategyGuidedAction:
	default:
		strategy = StrategyFor(in)
	}
	// StartGame must always collect the table environment first.
	if in == StartGame {
		strategy = StrategyEnvironmentSensing
	}

	return Classification{
		Intent:      in,
		Confidence:  confidence,
		Strategy:    strategy,
		Description: decoded.Intent.Description,
		Source:      analysis.SourceOracle,
	}, true
}

// HeuristicClassify classifies without the oracle. Structured signals run
// first (delayed responses, environment facts, phase completion keywords),
// then the weighted pattern table decides, with a chitchat floor at 0.3.
func HeuristicClassify(message string, verdict analysis.Analysis, phase game.Phase) Classification {
	if verdict.Continuity.IsContinuous && verdict.Continuity.Type == analysis.ContinuityDelayedResponse {
		return heuristicResult(DelayedResponse, verdict.Continuity.Confidence, "回答了之前的問題")
	}

	env := session.ExtractEnvironment(message)
	if env.PlayerCount > 0 || env.Experience != "" || env.Materials != "" {
		return heuristicResult(EnvironmentInfo, 0.8, "提供了玩家人數、經驗或道具信息")
	}

	if phase != game.PhaseNotStarted && phase != game.PhaseGameEnd && game.CompletionSignaled(phase, message) {
		return heuristicResult(StepCompletion, 0.8, "關鍵詞顯示當前步驟已完成")
	}

	best := Chitchat
	bestScore := 0.0
	for _, in := range allIntents {
		patterns, ok := intentPatterns[in]
		if !ok {
			continue
		}
		if score := patternScore(message, patterns); score > bestScore {
			best, bestScore = in, score
		}
	}
	if bestScore < chitchatFloor {
		return heuristicResult(Chitchat, bestScore, "無明確意圖，視為閒聊")
	}
	return heuristicResult(best, bestScore, "關鍵詞模式匹配")
}

func heuristicResult(in Intent, confidence float64, description string) Classification {
	return Classification{
		Intent:      in,
		Confidence:  confidence,
		Strategy:    StrategyFor(in),
		Description: description,
		Source:      analysis.SourceHeuristic,
	}
}

func patternScore(message string, patterns patternSet) float64 {
	msg := strings.ToLower(message)
	score := 0.0
	checks := 0

	for _, kw := range patterns.keywords {
		checks++
		if strings.Contains(msg, kw) {
			score++
		}
	}
	for _, phrase := range patterns.phrases {
		checks++
		if strings.Contains(msg, phrase) {
			score += 2
		}
	}
	if checks == 0 {
		return 0
	}
	return score / float64(checks)
}

func buildDetectionPrompt(message string, verdict analysis.Analysis, phase game.Phase) string {
	var b strings.Builder
	b.WriteString("你是 Similo 專門 AI 陪玩員的意圖檢測專家，專門分析用戶在 Similo 推理卡牌遊戲情境中的真實意圖。你只處理 Similo 相關內容。\n\n")
	fmt.Fprintf(&b, "📝 用戶消息：「%s」\n\n", message)
	fmt.Fprintf(&b, "🎮 當前遊戲階段：%s\n\n", phase)
	b.WriteString("🧠 上下文分析摘要：\n")
	b.WriteString(summarizeVerdict(verdict))
	b.WriteString("\n\n📋 意圖分類系統（只能從下列類型中選擇）：\n")
	b.WriteString("- chitchat：純聊天、問候、感謝\n")
	b.WriteString("- rule_question：詢問具體規則細節（如「線索卡怎麼放？」「怎麼淘汰？」）\n")
	b.WriteString("- start_game：想要學習並開始遊戲（如「教我玩」「怎麼玩」「可以開始嗎」）\n")
	b.WriteString("- game_action：遊戲中的具體行動\n")
	b.WriteString("- progress_control：流程控制（暫停、重來、繼續）\n")
	b.WriteString("- delayed_response：延遲回應（回答之前的問題）\n")
	b.WriteString("- environment_info：提供環境信息（玩家人數、經驗等）\n")
	b.WriteString("- step_completion：告知當前步驟已完成\n")
	b.WriteString("- game_state_query：詢問目前遊戲進度或狀態\n")
	b.WriteString("- rule_clarification：針對之前說明的規則追問澄清\n")
	b.WriteString("- error_recovery：表示搞錯了、想修正之前的操作\n\n")
	b.WriteString("⚠️ 關鍵判斷：\n")
	b.WriteString("- 想要「學習如何玩」或「開始遊戲」→ start_game\n")
	b.WriteString("- 詢問「具體規則細節」→ rule_question\n")
	b.WriteString("- 「我們有4個人」→ environment_info\n\n")
	b.WriteString(`請返回以下 JSON 格式：

{
  "intent": {
    "primary_intent": "主要意圖類型",
    "confidence": 0.8,
    "description": "具體描述用戶想要什麼"
  },
  "response_strategy": {
    "approach": "direct_answer|environment_sensing|guided_action"
  }
}

只返回 JSON，不要其他文字。`)
	return b.String()
}

func summarizeVerdict(verdict analysis.Analysis) string {
	var b strings.Builder
	yes := "否"
	if verdict.Continuity.IsContinuous {
		yes = "是"
	}
	fmt.Fprintf(&b, "連續性: %s (%s)\n", yes, verdict.Continuity.Type)
	switched := "否"
	if verdict.Topic.SwitchDetected {
		switched = "是"
	}
	fmt.Fprintf(&b, "話題切換: %s", switched)
	return b.String()
}
