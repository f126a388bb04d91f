package game

import (
	"strings"
)

// Phase identifies one step of a Similo play-through. Phases are strictly
// linear: setup, then five rounds of clue + elimination, then game end.
type Phase string

const (
	PhaseNotStarted        Phase = "not_started"
	PhasePlayerCountSetup  Phase = "player_count_setup"
	PhaseCardLayoutSetup   Phase = "card_layout_setup"
	PhaseSecretSelection   Phase = "secret_selection"
	PhaseHandCardsSetup    Phase = "hand_cards_setup"
	PhaseRound1Clue        Phase = "round_1_clue"
	PhaseRound1Elimination Phase = "round_1_elimination"
	PhaseRound2Clue        Phase = "round_2_clue"
	PhaseRound2Elimination Phase = "round_2_elimination"
	PhaseRound3Clue        Phase = "round_3_clue"
	PhaseRound3Elimination Phase = "round_3_elimination"
	PhaseRound4Clue        Phase = "round_4_clue"
	PhaseRound4Elimination Phase = "round_4_elimination"
	PhaseRound5Clue        Phase = "round_5_clue"
	PhaseRound5Elimination Phase = "round_5_elimination"
	PhaseGameEnd           Phase = "game_end"
)

// Role identifies who acts during a phase.
type Role string

const (
	RoleNone      Role = ""
	RoleClueGiver Role = "clue_giver"
	RoleGuesser   Role = "guesser"
)

var phaseOrder = []Phase{
	PhaseNotStarted,
	PhasePlayerCountSetup,
	PhaseCardLayoutSetup,
	PhaseSecretSelection,
	PhaseHandCardsSetup,
	PhaseRound1Clue,
	PhaseRound1Elimination,
	PhaseRound2Clue,
	PhaseRound2Elimination,
	PhaseRound3Clue,
	PhaseRound3Elimination,
	PhaseRound4Clue,
	PhaseRound4Elimination,
	PhaseRound5Clue,
	PhaseRound5Elimination,
	PhaseGameEnd,
}

var phaseIndex = func() map[Phase]int {
	m := make(map[Phase]int, len(phaseOrder))
	for i, p := range phaseOrder {
		m[p] = i
	}
	return m
}()

// Phases returns the full ordered phase list.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

func (p Phase) Valid() bool {
	_, ok := phaseIndex[p]
	return ok
}

// Next returns the single successor phase. ok is false for PhaseGameEnd
// and for unknown phases.
func (p Phase) Next() (Phase, bool) {
	idx, known := phaseIndex[p]
	if !known || idx == len(phaseOrder)-1 {
		return p, false
	}
	return phaseOrder[idx+1], true
}

// Round reports the round number of a clue/elimination phase, 0 otherwise.
func (p Phase) Round() int {
	s := string(p)
	if !strings.HasPrefix(s, "round_") {
		return 0
	}
	switch s[len("round_")] {
	case '1':
		return 1
	case '2':
		return 2
	case '3':
		return 3
	case '4':
		return 4
	case '5':
		return 5
	}
	return 0
}

func (p Phase) IsClue() bool {
	return strings.HasSuffix(string(p), "_clue")
}

func (p Phase) IsElimination() bool {
	return strings.HasSuffix(string(p), "_elimination")
}

// IsSetup reports whether the phase is part of table setup.
func (p Phase) IsSetup() bool {
	switch p {
	case PhasePlayerCountSetup, PhaseCardLayoutSetup, PhaseSecretSelection, PhaseHandCardsSetup:
		return true
	}
	return false
}

// EliminationsForRound reports how many cards the guessers remove after the
// clue of the given round. Rounds 1-4 remove as many cards as the round
// number; round 5 removes one, leaving a single card standing.
func EliminationsForRound(round int) int {
	switch {
	case round < 1 || round > 5:
		return 0
	case round == 5:
		return 1
	default:
		return round
	}
}

// Info describes a phase for prompting and guidance.
type Info struct {
	Phase       Phase
	Name        string
	Description string
	Instruction string
	Completion  string
	Role        Role
}

var phaseInfos = map[Phase]Info{
	PhaseNotStarted: {
		Name:        "遊戲未開始",
		Description: "等待玩家開始學習遊戲",
		Instruction: "詢問玩家人數",
		Completion:  "確認玩家想要開始遊戲",
		Role:        RoleNone,
	},
	PhasePlayerCountSetup: {
		Name:        "人數確認",
		Description: "確認遊戲人數",
		Instruction: "請告訴我你們有幾個人要一起玩？",
		Completion:  "玩家提供了人數信息",
		Role:        RoleNone,
	},
	PhaseCardLayoutSetup: {
		Name:        "卡牌佈局設置",
		Description: "設置12張卡牌的4×3佈局",
		Instruction: "請洗牌後隨機抽出12張卡，排成4×3的方陣（4欄×3列）",
		Completion:  "確認12張卡已排成4×3方陣",
		Role:        RoleNone,
	},
	PhaseSecretSelection: {
		Name:        "秘密人物選擇",
		Description: "出題者選擇秘密答案",
		Instruction: "出題者請從這12張卡中秘密選擇1張作為答案，不要讓其他人看到",
		Completion:  "出題者確認已選擇秘密人物",
		Role:        RoleClueGiver,
	},
	PhaseHandCardsSetup: {
		Name:        "手牌設置",
		Description: "出題者抽取起始手牌",
		Instruction: "出題者請從剩餘卡牌中抽5張作為手牌",
		Completion:  "出題者確認手牌已準備好",
		Role:        RoleClueGiver,
	},
	PhaseGameEnd: {
		Name:        "遊戲結束",
		Description: "本局已經結束",
		Instruction: "公佈秘密人物並詢問是否再玩一局",
		Completion:  "",
		Role:        RoleNone,
	},
}

// InfoFor returns the phase description table entry. Round phases are
// generated from the round number so all ten share one template.
func InfoFor(p Phase) Info {
	if info, ok := phaseInfos[p]; ok {
		info.Phase = p
		return info
	}

	round := p.Round()
	if round == 0 {
		info := phaseInfos[PhaseNotStarted]
		info.Phase = PhaseNotStarted
		return info
	}

	if p.IsClue() {
		return Info{
			Phase:       p,
			Name:        roundName(round, "出線索"),
			Description: "出題者打出線索卡",
			Instruction: "出題者請從手牌選1張作為線索。直放=相似，橫放=不相似",
			Completion:  "出題者確認已打出線索卡",
			Role:        RoleClueGiver,
		}
	}
	return Info{
		Phase:       p,
		Name:        roundName(round, "淘汰"),
		Description: "猜題者根據線索淘汰卡牌",
		Instruction: eliminationInstruction(round),
		Completion:  "確認已淘汰本回合的卡牌",
		Role:        RoleGuesser,
	}
}

func roundName(round int, action string) string {
	return "第" + string(rune('0'+round)) + "回合：" + action
}

func eliminationInstruction(round int) string {
	n := EliminationsForRound(round)
	if round == 5 {
		return "猜題者請淘汰最後1張卡，留下的那張就是你們的答案"
	}
	return "猜題者請根據線索淘汰" + string(rune('0'+n)) + "張卡"
}
