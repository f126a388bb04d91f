package respond

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dotsetgreg/similobot/pkg/analysis"
	"github.com/dotsetgreg/similobot/pkg/game"
	"github.com/dotsetgreg/similobot/pkg/intent"
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

func TestRewriteForbidden(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		banned  []string
		keep    []string
		rewrote bool
	}{
		{
			name:    "wrong guess rule",
			in:      "猜題者有三次猜測的機會來找到正確答案。",
			banned:  []string{"三次猜測"},
			keep:    []string{"5回合淘汰"},
			rewrote: true,
		},
		{
			name:    "wrong role name",
			in:      "隱藏者需要給出線索幫助其他玩家。",
			banned:  []string{"隱藏者"},
			keep:    []string{"出題者"},
			rewrote: true,
		},
		{
			name:    "textbook tone removed",
			in:      "通常情況下，這意味著玩家需要仔細思考。",
			banned:  []string{"通常情況下", "這意味著"},
			rewrote: true,
		},
		{
			name:   "correct rules untouched",
			in:     "第1回合淘汰1張卡，第2回合淘汰2張卡，線索卡直放表示相似。",
			banned: nil,
		},
	}
	for _, tc := range cases {
		got, corrections := RewriteForbidden(tc.in)
		for _, banned := range tc.banned {
			if strings.Contains(got, banned) {
				t.Errorf("%s: output %q still contains %q", tc.name, got, banned)
			}
		}
		for _, keep := range tc.keep {
			if !strings.Contains(got, keep) {
				t.Errorf("%s: output %q lacks %q", tc.name, got, keep)
			}
		}
		if tc.rewrote != (len(corrections) > 0) {
			t.Errorf("%s: corrections = %v, rewrote expectation %v", tc.name, corrections, tc.rewrote)
		}
	}
}

func TestPostProcess_MixedErrors(t *testing.T) {
	in := "在 Similo 中，隱藏者有三次猜測的機會。通常這意味著遊戲很容易。"
	got := PostProcess(in, DefaultMaxRunes)
	for _, banned := range []string{"三次猜測", "隱藏者", "通常這意味著"} {
		if strings.Contains(got, banned) {
			t.Errorf("PostProcess output %q still contains %q", got, banned)
		}
	}
	if got == "" {
		t.Fatal("PostProcess returned empty reply")
	}
}

func TestPostProcess_StripsFencesAndBullets(t *testing.T) {
	in := "可以這樣做！\n```js\nconsole.log('hi')\n```\n- 第一步\n- 第二步"
	got := PostProcess(in, DefaultMaxRunes)
	if strings.Contains(got, "```") || strings.Contains(got, "console.log") {
		t.Fatalf("code fence survived: %q", got)
	}
	if strings.Contains(got, "- 第一步") {
		t.Fatalf("bullet prefix survived: %q", got)
	}
}

func TestPostProcess_TruncatesLongReplies(t *testing.T) {
	long := strings.Repeat("這是一個很長的句子！", 60)
	got := PostProcess(long, DefaultMaxRunes)
	if n := len([]rune(got)); n > 100 {
		t.Fatalf("truncated reply still %d runes: %q", n, got)
	}
}

func TestPostProcess_GuaranteesEmoji(t *testing.T) {
	got := PostProcess("好的！我們開始吧。", DefaultMaxRunes)
	if !containsAffectiveEmoji(got) {
		t.Fatalf("no affective emoji in %q", got)
	}
	if !strings.Contains(got, "！😊") {
		t.Fatalf("emoji not placed after exclamation: %q", got)
	}

	plain := PostProcess("好的。", DefaultMaxRunes)
	if !containsAffectiveEmoji(plain) {
		t.Fatalf("no affective emoji in %q", plain)
	}

	already := PostProcess("我們開始吧 🎮", DefaultMaxRunes)
	if strings.Count(already, "😊") != 0 {
		t.Fatalf("extra emoji appended to %q", already)
	}
}

func TestGenerate_PostProcessesOracleReply(t *testing.T) {
	oracle := &scriptedOracle{reply: "隱藏者有三次猜測的機會！"}
	s := NewSynthesizer(oracle, "", nil, game.LoadRulebook(""), DefaultMaxRunes)
	sess := session.New("s1", 0)

	got, ok := s.Generate(context.Background(), "規則是什麼？", analysis.DefaultAnalysis(), intent.Classification{Intent: intent.RuleQuestion}, sess)
	if !ok {
		t.Fatal("Generate reported failure")
	}
	if strings.Contains(got, "三次猜測") || strings.Contains(got, "隱藏者") {
		t.Fatalf("forbidden phrase survived: %q", got)
	}
}

func TestGenerate_FailurePaths(t *testing.T) {
	sess := session.New("s1", 0)
	cls := intent.Classification{Intent: intent.Chitchat}

	if _, ok := NewSynthesizer(nil, "", nil, nil, 0).Generate(context.Background(), "hi", analysis.DefaultAnalysis(), cls, sess); ok {
		t.Fatal("nil provider must not report success")
	}
	s := NewSynthesizer(&scriptedOracle{err: errors.New("boom")}, "", nil, nil, 0)
	if _, ok := s.Generate(context.Background(), "hi", analysis.DefaultAnalysis(), cls, sess); ok {
		t.Fatal("oracle error must not report success")
	}
}

func TestFallback_AlwaysNonEmpty(t *testing.T) {
	s := NewSynthesizer(nil, "", nil, nil, 0)
	intents := []intent.Intent{
		intent.Chitchat, intent.RuleQuestion, intent.StartGame, intent.GameAction,
		intent.ProgressControl, intent.DelayedResponse, intent.EnvironmentInfo,
		intent.StepCompletion, intent.GameStateQuery, intent.RuleClarification,
		intent.ErrorRecovery, intent.Intent("made_up"),
	}
	for _, in := range intents {
		got := s.Fallback(in)
		if strings.TrimSpace(got) == "" {
			t.Errorf("Fallback(%s) is empty", in)
		}
		if !containsAffectiveEmoji(got) {
			t.Errorf("Fallback(%s) = %q lacks affective emoji", in, got)
		}
	}
}

func TestTemplateReply_SensingProgression(t *testing.T) {
	s := NewSynthesizer(nil, "", nil, nil, 0)
	sess := session.New("s1", 0)

	got, ok := s.TemplateReply(intent.Classification{Intent: intent.StartGame}, sess)
	if !ok || !strings.Contains(got, "幾位玩家") {
		t.Fatalf("start_game reply %q ok=%v does not ask for player count", got, ok)
	}

	sess.UpdateEnvironment(session.Environment{PlayerCount: 3})
	got, ok = s.TemplateReply(intent.Classification{Intent: intent.EnvironmentInfo}, sess)
	if !ok || (!strings.Contains(got, "玩過") && !strings.Contains(got, "第一次")) {
		t.Fatalf("environment_info reply %q ok=%v does not ask for experience", got, ok)
	}
}

func TestTemplateReply_UntemplatedIntents(t *testing.T) {
	s := NewSynthesizer(nil, "", nil, nil, 0)
	sess := session.New("s1", 0)

	for _, in := range []intent.Intent{intent.Chitchat, intent.GameAction, intent.ErrorRecovery, intent.Intent("made_up")} {
		if got, ok := s.TemplateReply(intent.Classification{Intent: in}, sess); ok {
			t.Errorf("TemplateReply(%s) = %q, want no template", in, got)
		}
	}
}

func TestContextBridge_PendingQuestion(t *testing.T) {
	verdict := analysis.DefaultAnalysis()
	verdict.KeyInfo.PendingQuestion = "現在桌上有幾位玩家呢？"

	got := contextBridge(verdict)
	if !strings.Contains(got, "現在桌上有幾位玩家呢？") {
		t.Fatalf("bridge %q does not surface the unanswered question", got)
	}

	if got := contextBridge(analysis.DefaultAnalysis()); !strings.Contains(got, "正常對話流程") {
		t.Fatalf("empty verdict bridge = %q", got)
	}
}

func TestNextSensingQuestion_Order(t *testing.T) {
	var env session.Environment
	if got := NextSensingQuestion(env); !strings.Contains(got, "幾位玩家") {
		t.Fatalf("first question %q", got)
	}
	env.PlayerCount = 4
	if got := NextSensingQuestion(env); !strings.Contains(got, "玩過") {
		t.Fatalf("second question %q", got)
	}
	env.Experience = session.ExperienceBeginner
	if got := NextSensingQuestion(env); !strings.Contains(got, "卡牌") {
		t.Fatalf("third question %q", got)
	}
}
