package session

import (
	"strings"
	"sync"
	"time"

	"github.com/dotsetgreg/similobot/pkg/game"
)

const DefaultMaxTurns = 40

// maxEnvironmentLog bounds the sensing audit log to the most recent changes.
const maxEnvironmentLog = 20

// Turn is one utterance of the conversation, user or assistant.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session owns everything remembered about one table: bounded chat history,
// sensed environment facts, game progress, and a rolling memory summary.
// Sessions are per-table objects; the manager hands out one per session ID.
type Session struct {
	ID string

	// turnMu serializes whole turns; mu guards the fields below. Two
	// concurrent requests for the same table never interleave mutations.
	turnMu sync.Mutex

	mu        sync.Mutex
	maxTurns  int
	history   []Turn
	env       Environment
	envLog    []EnvironmentUpdate
	gameState *game.State
	summary   string
	createdAt time.Time
	updatedAt time.Time
}

func New(id string, maxTurns int) *Session {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		maxTurns:  maxTurns,
		gameState: game.NewState(),
		createdAt: now,
		updatedAt: now,
	}
}

// AppendTurn records an utterance, evicting the oldest once the bound is hit.
func (s *Session) AppendTurn(role, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{Role: role, Content: content})
	if len(s.history) > s.maxTurns {
		s.history = s.history[len(s.history)-s.maxTurns:]
	}
	s.updatedAt = time.Now().UTC()
}

// ReplaceHistory installs transport-provided history, trimmed to the bound.
func (s *Session) ReplaceHistory(turns []Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.history = append([]Turn(nil), turns...)
	s.updatedAt = time.Now().UTC()
}

// History returns a copy of the bounded history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// LastAssistantTurn returns the most recent assistant utterance, if any.
func (s *Session) LastAssistantTurn() (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Role == "assistant" {
			return s.history[i], true
		}
	}
	return Turn{}, false
}

// Environment returns a copy of the sensed facts.
func (s *Session) Environment() Environment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env
}

// UpdateEnvironment merges sensed facts monotonically, appends each change
// to the bounded audit log, and mirrors the player count into the game
// state.
func (s *Session) UpdateEnvironment(found Environment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	updates := s.env.Apply(found)
	if len(updates) == 0 {
		return false
	}
	s.envLog = append(s.envLog, updates...)
	if len(s.envLog) > maxEnvironmentLog {
		s.envLog = s.envLog[len(s.envLog)-maxEnvironmentLog:]
	}
	if s.env.PlayerCount > 0 {
		s.gameState.PlayerCount = s.env.PlayerCount
	}
	s.updatedAt = time.Now().UTC()
	return true
}

// EnvironmentLog returns a copy of the bounded sensing audit log, oldest
// first.
func (s *Session) EnvironmentLog() []EnvironmentUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EnvironmentUpdate, len(s.envLog))
	copy(out, s.envLog)
	return out
}

// Acquire takes the turn lock and returns its release. The pipeline holds
// it across a whole turn so per-session mutations apply as one atomic step.
func (s *Session) Acquire() func() {
	s.turnMu.Lock()
	return s.turnMu.Unlock
}

// AdvanceGame moves the game to its successor phase under the session lock.
func (s *Session) AdvanceGame(data map[string]string) (game.Phase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.gameState.Advance(data)
	if ok {
		s.updatedAt = time.Now().UTC()
	}
	return next, ok
}

// GameSnapshot returns a deep copy of the game state.
func (s *Session) GameSnapshot() game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := *s.gameState
	snap.CompletedSteps = append([]game.CompletedStep(nil), s.gameState.CompletedSteps...)
	return snap
}

// GameSummary renders the compact state line under the session lock.
func (s *Session) GameSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameState.Summary()
}

func (s *Session) Phase() game.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameState.Phase
}

func (s *Session) SetSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = strings.TrimSpace(summary)
	s.updatedAt = time.Now().UTC()
}

func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Reset wipes game progress and sensed facts but keeps identity and history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameState.Reset()
	s.env = Environment{}
	s.updatedAt = time.Now().UTC()
}

func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
