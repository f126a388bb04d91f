package game

import (
	"strings"
	"testing"
)

func TestPhases_LinearOrder(t *testing.T) {
	phases := Phases()
	if len(phases) != 16 {
		t.Fatalf("expected 16 phases, got %d", len(phases))
	}
	if phases[0] != PhaseNotStarted {
		t.Fatalf("first phase = %s, want %s", phases[0], PhaseNotStarted)
	}
	if phases[len(phases)-1] != PhaseGameEnd {
		t.Fatalf("last phase = %s, want %s", phases[len(phases)-1], PhaseGameEnd)
	}

	// Walking Next from the start must visit every phase exactly once.
	seen := map[Phase]bool{PhaseNotStarted: true}
	p := PhaseNotStarted
	for {
		next, ok := p.Next()
		if !ok {
			break
		}
		if seen[next] {
			t.Fatalf("phase %s visited twice", next)
		}
		seen[next] = true
		p = next
	}
	if p != PhaseGameEnd {
		t.Fatalf("walk ended at %s, want %s", p, PhaseGameEnd)
	}
	if len(seen) != 16 {
		t.Fatalf("walk visited %d phases, want 16", len(seen))
	}
}

func TestPhase_NextAtGameEnd(t *testing.T) {
	if _, ok := PhaseGameEnd.Next(); ok {
		t.Fatal("GAME_END must not have a successor")
	}
	if _, ok := Phase("bogus").Next(); ok {
		t.Fatal("unknown phase must not have a successor")
	}
}

func TestPhase_Round(t *testing.T) {
	cases := map[Phase]int{
		PhaseNotStarted:        0,
		PhaseCardLayoutSetup:   0,
		PhaseRound1Clue:        1,
		PhaseRound3Elimination: 3,
		PhaseRound5Clue:        5,
		PhaseGameEnd:           0,
	}
	for p, want := range cases {
		if got := p.Round(); got != want {
			t.Errorf("%s.Round() = %d, want %d", p, got, want)
		}
	}
}

func TestEliminationsForRound(t *testing.T) {
	wants := []int{1, 2, 3, 4, 1}
	total := 0
	for round := 1; round <= 5; round++ {
		got := EliminationsForRound(round)
		if got != wants[round-1] {
			t.Errorf("round %d: eliminations = %d, want %d", round, got, wants[round-1])
		}
		total += got
	}
	// Eleven cards go; the survivor is the secret.
	if total != 11 {
		t.Fatalf("total eliminations = %d, want 11", total)
	}
	if EliminationsForRound(0) != 0 || EliminationsForRound(6) != 0 {
		t.Fatal("out-of-range rounds must eliminate nothing")
	}
}

func TestInfoFor_RoundPhasesGenerated(t *testing.T) {
	for _, p := range Phases() {
		info := InfoFor(p)
		if info.Instruction == "" {
			t.Errorf("%s has empty instruction", p)
		}
		if info.Phase != p {
			t.Errorf("%s info carries phase %s", p, info.Phase)
		}
	}

	clue := InfoFor(PhaseRound2Clue)
	if clue.Role != RoleClueGiver {
		t.Errorf("clue phase role = %q, want clue_giver", clue.Role)
	}
	elim := InfoFor(PhaseRound4Elimination)
	if elim.Role != RoleGuesser {
		t.Errorf("elimination phase role = %q, want guesser", elim.Role)
	}
	if !strings.Contains(InfoFor(PhaseRound5Elimination).Instruction, "最後") {
		t.Error("round 5 elimination should mention the final card")
	}
}

func TestCompletionSignaled(t *testing.T) {
	cases := []struct {
		phase   Phase
		message string
		want    bool
	}{
		{PhaseNotStarted, "教我玩 Similo", true},
		{PhaseNotStarted, "你好嗎？", false},
		{PhasePlayerCountSetup, "我們有三個人", true},
		{PhasePlayerCountSetup, "等一下", false},
		{PhaseCardLayoutSetup, "排好了", true},
		{PhaseSecretSelection, "我選好了", true},
		{PhaseHandCardsSetup, "手牌準備好了", true},
		{PhaseRound1Clue, "我打出直放的線索", true},
		{PhaseRound3Elimination, "我們淘汰了三張", true},
		{PhaseGameEnd, "完成", false},
	}
	for _, tc := range cases {
		if got := CompletionSignaled(tc.phase, tc.message); got != tc.want {
			t.Errorf("CompletionSignaled(%s, %q) = %v, want %v", tc.phase, tc.message, got, tc.want)
		}
	}
}

func TestState_AdvanceWalksToGameEnd(t *testing.T) {
	st := NewState()
	if st.Phase != PhaseNotStarted {
		t.Fatalf("new state phase = %s", st.Phase)
	}
	if st.CardsRemaining != 12 {
		t.Fatalf("new state cards = %d, want 12", st.CardsRemaining)
	}

	steps := 0
	for {
		_, ok := st.Advance(nil)
		if !ok {
			break
		}
		steps++
	}
	if st.Phase != PhaseGameEnd {
		t.Fatalf("final phase = %s, want %s", st.Phase, PhaseGameEnd)
	}
	if steps != 15 {
		t.Fatalf("advanced %d times, want 15", steps)
	}
	if len(st.CompletedSteps) != 15 {
		t.Fatalf("recorded %d completed steps, want 15", len(st.CompletedSteps))
	}
	if st.CardsRemaining != 1 {
		t.Fatalf("cards remaining = %d, want 1", st.CardsRemaining)
	}
	if st.RoundNumber != 5 {
		t.Fatalf("round number = %d, want 5", st.RoundNumber)
	}

	// A fully ended game must refuse further advances.
	if _, ok := st.Advance(nil); ok {
		t.Fatal("advance past GAME_END must fail")
	}
}

func TestState_AdvanceRecordsData(t *testing.T) {
	st := NewState()
	st.Advance(map[string]string{"trigger": "教我玩"})
	if got := st.CompletedSteps[0].Data["trigger"]; got != "教我玩" {
		t.Fatalf("step data = %q", got)
	}
	if st.CompletedSteps[0].Phase != PhaseNotStarted {
		t.Fatalf("step phase = %s", st.CompletedSteps[0].Phase)
	}
	if st.CompletedSteps[0].CompletedAt.IsZero() {
		t.Fatal("step timestamp missing")
	}
}

func TestState_Reset(t *testing.T) {
	st := NewState()
	st.Advance(nil)
	st.Advance(nil)
	st.PlayerCount = 4
	st.Reset()

	if st.Phase != PhaseNotStarted || st.PlayerCount != 0 || len(st.CompletedSteps) != 0 {
		t.Fatalf("reset left state dirty: %+v", st)
	}
	if st.CardsRemaining != 12 {
		t.Fatalf("reset cards = %d, want 12", st.CardsRemaining)
	}
}
