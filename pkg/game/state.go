package game

import (
	"fmt"
	"time"
)

const initialCardCount = 12

// CompletedStep records one phase boundary crossing.
type CompletedStep struct {
	Phase       Phase             `json:"phase"`
	CompletedAt time.Time         `json:"completed_at"`
	Data        map[string]string `json:"data,omitempty"`
}

// State tracks one table's progress through a Similo game. Each session
// owns its own State; nothing here is shared.
type State struct {
	Phase          Phase           `json:"phase"`
	PlayerCount    int             `json:"player_count"`
	RoundNumber    int             `json:"round_number"`
	CardsRemaining int             `json:"cards_remaining"`
	CompletedSteps []CompletedStep `json:"completed_steps"`
}

func NewState() *State {
	return &State{
		Phase:          PhaseNotStarted,
		CardsRemaining: initialCardCount,
	}
}

// Advance moves to the successor phase unconditionally and records the
// boundary. It reports the new phase and false once the game has ended.
func (s *State) Advance(data map[string]string) (Phase, bool) {
	next, ok := s.Phase.Next()
	if !ok {
		return s.Phase, false
	}

	s.CompletedSteps = append(s.CompletedSteps, CompletedStep{
		Phase:       s.Phase,
		CompletedAt: time.Now().UTC(),
		Data:        data,
	})

	if s.Phase.IsElimination() {
		s.CardsRemaining -= EliminationsForRound(s.Phase.Round())
		if s.CardsRemaining < 1 {
			s.CardsRemaining = 1
		}
	}

	s.Phase = next
	if r := next.Round(); r > 0 {
		s.RoundNumber = r
	}
	return next, true
}

// Reset returns the table to a fresh pre-game state.
func (s *State) Reset() {
	*s = *NewState()
}

// Summary renders a compact state line for prompts and logs.
func (s *State) Summary() string {
	info := InfoFor(s.Phase)
	return fmt.Sprintf("階段=%s(%s) 人數=%d 回合=%d 剩餘卡牌=%d 已完成步驟=%d",
		s.Phase, info.Name, s.PlayerCount, s.RoundNumber, s.CardsRemaining, len(s.CompletedSteps))
}
