package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/dotsetgreg/similobot/pkg/providers"
	"github.com/dotsetgreg/similobot/pkg/session"
)

type scriptedOracle struct {
	reply string
	err   error
}

func (s *scriptedOracle) Chat(ctx context.Context, messages []providers.Message, model string, options map[string]interface{}) (*providers.LLMResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &providers.LLMResponse{Content: s.reply, FinishReason: "stop"}, nil
}

func (s *scriptedOracle) GetDefaultModel() string { return "scripted" }

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"prose around", "分析結果如下：{\"a\": 1} 就這樣", `{"a": 1}`, true},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`, true},
		{"brace in string", `{"a": "left { brace"}`, `{"a": "left { brace"}`, true},
		{"escaped quote", `{"a": "say \"hi\" {"}`, `{"a": "say \"hi\" {"}`, true},
		{"no object", "只有文字", "", false},
		{"unbalanced", `{"a": 1`, "", false},
		{"empty", "", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractJSONObject(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Errorf("%s: ExtractJSONObject(%q) = (%q, %v), want (%q, %v)", tc.name, tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDecodeFirstObject_BadJSON(t *testing.T) {
	var v map[string]int
	if DecodeFirstObject(`{"a": }`, &v) {
		t.Fatal("invalid JSON must not decode")
	}
	if !DecodeFirstObject(`result: {"a": 2}`, &v) || v["a"] != 2 {
		t.Fatalf("decode failed: %v", v)
	}
}

func TestAnalyze_OracleVerdict(t *testing.T) {
	oracle := &scriptedOracle{reply: `這是分析：
{
  "continuity_analysis": {"is_continuous": true, "continuity_type": "delayed_response", "confidence": 0.9, "reasoning": "回答了之前的問題"},
  "topic_analysis": {"current_topic": "setup", "topic_switch_detected": false},
  "context_relevance": {"relevant_history": [0]},
  "key_information": {"pending_question": "你們玩過 Similo 嗎？"}
}`}
	a := NewAnalyzer(oracle, "", nil)
	got := a.Analyze(context.Background(), "3個人", []session.Turn{{Role: "assistant", Content: "幾位玩家？"}})

	if got.Source != SourceOracle {
		t.Fatalf("Source = %s, want oracle", got.Source)
	}
	if !got.Continuity.IsContinuous || got.Continuity.Type != ContinuityDelayedResponse {
		t.Fatalf("continuity = %+v", got.Continuity)
	}
	if len(got.Relevance.RelevantHistory) != 1 || got.Relevance.RelevantHistory[0] != 0 {
		t.Fatalf("relevant history = %v", got.Relevance.RelevantHistory)
	}
	if got.KeyInfo.PendingQuestion != "你們玩過 Similo 嗎？" {
		t.Fatalf("pending question = %q", got.KeyInfo.PendingQuestion)
	}
}

func TestAnalyze_OracleFailureFallsBack(t *testing.T) {
	a := NewAnalyzer(&scriptedOracle{err: errors.New("boom")}, "", nil)
	history := []session.Turn{{Role: "assistant", Content: "現在桌上有幾位玩家呢？"}}

	got := a.Analyze(context.Background(), "3", history)
	if got.Source != SourceHeuristic {
		t.Fatalf("Source = %s, want heuristic", got.Source)
	}
	if !got.Continuity.IsContinuous || got.Continuity.Type != ContinuityDirectResponse {
		t.Fatalf("continuity = %+v", got.Continuity)
	}
}

func TestAnalyze_GarbageOracleReplyFallsBack(t *testing.T) {
	a := NewAnalyzer(&scriptedOracle{reply: "完全不是 JSON"}, "", nil)
	got := a.Analyze(context.Background(), "你好嗎？", nil)
	if got.Source != SourceDefault {
		t.Fatalf("Source = %s, want default", got.Source)
	}
	if got.Continuity.IsContinuous {
		t.Fatal("empty history must not be continuous")
	}
	if got.Continuity.Type != ContinuityNewConversation || got.Continuity.Confidence != 0.5 {
		t.Fatalf("default verdict = %+v", got.Continuity)
	}
}

func TestAnalyze_NilProviderNeverFails(t *testing.T) {
	a := NewAnalyzer(nil, "", nil)
	got := a.Analyze(context.Background(), "", nil)
	if got.Continuity.Type != ContinuityNewConversation {
		t.Fatalf("verdict = %+v", got)
	}
}

func TestHeuristicAnalysis_Patterns(t *testing.T) {
	asked := []session.Turn{{Role: "assistant", Content: "你們有幾個人？"}}

	cases := []struct {
		message    string
		history    []session.Turn
		continuous bool
	}{
		{"3", asked, true},
		{"好的", asked, true},
		{"我當出題者", asked, true},
		{"Similo 怎麼玩", asked, false},
		{"3", nil, false},
	}
	for _, tc := range cases {
		got := HeuristicAnalysis(tc.message, tc.history)
		if got.Continuity.IsContinuous != tc.continuous {
			t.Errorf("HeuristicAnalysis(%q) continuous = %v, want %v", tc.message, got.Continuity.IsContinuous, tc.continuous)
		}
	}
}

func TestAnalyze_CoercesUnknownContinuityType(t *testing.T) {
	oracle := &scriptedOracle{reply: `{"continuity_analysis": {"is_continuous": true, "continuity_type": "telepathy", "confidence": 3.5}}`}
	a := NewAnalyzer(oracle, "", nil)
	got := a.Analyze(context.Background(), "hi", nil)
	if got.Continuity.Type != ContinuityNewConversation {
		t.Fatalf("type = %s, want coerced new_conversation", got.Continuity.Type)
	}
	if got.Continuity.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want clamped 0.5", got.Continuity.Confidence)
	}
}
