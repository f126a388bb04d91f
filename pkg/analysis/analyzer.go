package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dotsetgreg/similobot/pkg/logger"
	"github.com/dotsetgreg/similobot/pkg/providers"
	"github.com/dotsetgreg/similobot/pkg/session"
)

// ContinuityType classifies how the current message relates to the
// conversation so far.
type ContinuityType string

const (
	ContinuityDirectResponse  ContinuityType = "direct_response"
	ContinuityDelayedResponse ContinuityType = "delayed_response"
	ContinuityTopicJump       ContinuityType = "topic_jump"
	ContinuityNewConversation ContinuityType = "new_conversation"
)

// Source records which stage produced the analysis.
type Source string

const (
	SourceOracle    Source = "oracle"
	SourceHeuristic Source = "heuristic"
	SourceDefault   Source = "default"
)

// Continuity is the continuity judgment for one message.
type Continuity struct {
	IsContinuous bool           `json:"is_continuous"`
	Type         ContinuityType `json:"continuity_type"`
	Confidence   float64        `json:"confidence"`
	Reasoning    string         `json:"reasoning,omitempty"`
}

// Topic tracks topic switches across the conversation.
type Topic struct {
	CurrentTopic   string `json:"current_topic,omitempty"`
	PreviousTopic  string `json:"previous_topic,omitempty"`
	SwitchDetected bool   `json:"topic_switch_detected"`
	ReturnToTopic  string `json:"return_to_topic,omitempty"`
}

// Relevance points at the history turns that matter for this message.
type Relevance struct {
	RelevantHistory []int `json:"relevant_history,omitempty"`
}

// KeyInformation carries facts the analyzer pulled out of the exchange,
// notably a question of ours still waiting for an answer.
type KeyInformation struct {
	PendingQuestion string `json:"pending_question,omitempty"`
}

// Analysis is the analyzer's verdict. It always exists: every code path
// returns a usable value.
type Analysis struct {
	Continuity Continuity     `json:"continuity_analysis"`
	Topic      Topic          `json:"topic_analysis"`
	Relevance  Relevance      `json:"context_relevance"`
	KeyInfo    KeyInformation `json:"key_information"`
	Source     Source         `json:"source"`
}

// DefaultAnalysis is the safe verdict used when nothing better is known.
func DefaultAnalysis() Analysis {
	return Analysis{
		Continuity: Continuity{
			IsContinuous: false,
			Type:         ContinuityNewConversation,
			Confidence:   0.5,
			Reasoning:    "分析失敗，使用默認判斷",
		},
		Source: SourceDefault,
	}
}

var (
	digitRegex       = regexp.MustCompile(`\d+`)
	affirmationWords = []string{"好的", "是的", "對", "沒錯", "可以", "行"}
)

// Analyzer judges conversational continuity for each incoming message.
// Analyze never returns an error: oracle failures degrade to a keyword
// heuristic, and the heuristic degrades to the default verdict.
type Analyzer struct {
	provider providers.LLMProvider
	model    string
	options  map[string]interface{}
}

func NewAnalyzer(provider providers.LLMProvider, model string, options map[string]interface{}) *Analyzer {
	return &Analyzer{provider: provider, model: model, options: options}
}

// Analyze runs the oracle stage when a provider is available, then falls
// back to heuristics. It never fails and never panics.
func (a *Analyzer) Analyze(ctx context.Context, message string, history []session.Turn) Analysis {
	if a != nil && a.provider != nil {
		if result, ok := a.analyzeWithOracle(ctx, message, history); ok {
			return result
		}
	}
	return HeuristicAnalysis(message, history)
}

func (a *Analyzer) analyzeWithOracle(ctx context.Context, message string, history []session.Turn) (Analysis, bool) {
	prompt := buildAnalysisPrompt(message, history)
	resp, err := a.provider.Chat(ctx, []providers.Message{{Role: "user", Content: prompt}}, a.model, a.options)
	if err != nil {
		logger.WarnCF("analysis", "Oracle analysis failed", map[string]any{"error": err.Error()})
		return Analysis{}, false
	}

	var decoded Analysis
	if !DecodeFirstObject(resp.Content, &decoded) {
		logger.WarnC("analysis", "Oracle reply carried no decodable JSON object")
		return Analysis{}, false
	}
	if !validContinuityType(decoded.Continuity.Type) {
		decoded.Continuity.Type = ContinuityNewConversation
	}
	if decoded.Continuity.Confidence < 0 || decoded.Continuity.Confidence > 1 {
		decoded.Continuity.Confidence = 0.5
	}
	decoded.Source = SourceOracle
	return decoded, true
}

// HeuristicAnalysis detects simple continuity patterns without the oracle:
// a number answering a 幾/多少 question, an affirmation, or a role claim.
func HeuristicAnalysis(message string, history []session.Turn) Analysis {
	lastAssistant, found := lastAssistantTurn(history)
	if !found {
		return DefaultAnalysis()
	}

	msg := strings.ToLower(strings.TrimSpace(message))
	aiMsg := strings.ToLower(lastAssistant.Content)

	continuous := false
	switch {
	case digitRegex.MatchString(msg) && (strings.Contains(aiMsg, "幾") || strings.Contains(aiMsg, "多少")):
		continuous = true
	case containsAny(msg, affirmationWords...):
		continuous = true
	case strings.Contains(msg, "我當") || strings.Contains(msg, "我來"):
		continuous = true
	}

	if !continuous {
		out := DefaultAnalysis()
		out.Source = SourceHeuristic
		return out
	}
	return Analysis{
		Continuity: Continuity{
			IsContinuous: true,
			Type:         ContinuityDirectResponse,
			Confidence:   0.7,
			Reasoning:    "關鍵詞模式顯示這是對上一個問題的回應",
		},
		Source: SourceHeuristic,
	}
}

func buildAnalysisPrompt(message string, history []session.Turn) string {
	var b strings.Builder
	b.WriteString("你是專業的對話上下文分析師。深度分析用戶對話的連續性、話題切換和上下文相關性。\n\n")
	fmt.Fprintf(&b, "📝 當前用戶消息：「%s」\n\n", message)
	b.WriteString("📚 對話歷史：\n")
	b.WriteString(formatHistory(history))
	b.WriteString("\n\n🔍 特別注意：\n")
	b.WriteString("- 檢測延遲回應（用戶在幾輪對話後回答之前的問題）\n")
	b.WriteString("- 識別話題跳躍（突然問不相關的問題）\n")
	b.WriteString("- 分析數字、確認詞、角色選擇等關鍵回應模式\n\n")
	b.WriteString(`請返回以下 JSON 格式的分析結果：

{
  "continuity_analysis": {
    "is_continuous": false,
    "continuity_type": "direct_response|delayed_response|topic_jump|new_conversation",
    "confidence": 0.8,
    "reasoning": "詳細解釋判斷依據"
  },
  "topic_analysis": {
    "current_topic": "當前話題標識",
    "previous_topic": "上一個話題標識",
    "topic_switch_detected": false,
    "return_to_topic": ""
  },
  "context_relevance": {
    "relevant_history": [0, 2]
  },
  "key_information": {
    "pending_question": "還沒被回答的問題（若無則留空）"
  }
}

只返回 JSON，不要其他文字。`)
	return b.String()
}

func formatHistory(history []session.Turn) string {
	if len(history) == 0 {
		return "（無對話歷史）"
	}
	lines := make([]string, 0, len(history))
	for i, turn := range history {
		role := "用戶"
		if turn.Role == "assistant" {
			role = "AI助手"
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i, role, turn.Content))
	}
	return strings.Join(lines, "\n")
}

func lastAssistantTurn(history []session.Turn) (session.Turn, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" {
			return history[i], true
		}
	}
	return session.Turn{}, false
}

func validContinuityType(t ContinuityType) bool {
	switch t {
	case ContinuityDirectResponse, ContinuityDelayedResponse, ContinuityTopicJump, ContinuityNewConversation:
		return true
	}
	return false
}

func containsAny(message string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}
