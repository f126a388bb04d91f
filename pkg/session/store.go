package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dotsetgreg/similobot/pkg/game"
)

// Store persists sessions, their turns, and per-turn outcome records.
type Store struct {
	db *sql.DB
}

// NewStore creates/opens the session database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process store. One shared connection avoids writer lock
	// contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			phase TEXT NOT NULL DEFAULT 'not_started',
			player_count INTEGER NOT NULL DEFAULT 0,
			experience TEXT NOT NULL DEFAULT '',
			materials TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			game_json TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS sessions_updated_idx ON sessions(updated_at_ms);`,
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS turns_session_idx ON turns(session_id, seq);`,
		`CREATE TABLE IF NOT EXISTS turn_records (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			intent TEXT NOT NULL DEFAULT '',
			strategy TEXT NOT NULL DEFAULT '',
			processing_mode TEXT NOT NULL DEFAULT '',
			ai_modules_json TEXT NOT NULL DEFAULT '[]',
			phase_before TEXT NOT NULL DEFAULT '',
			phase_after TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS turn_records_session_idx ON turn_records(session_id, created_at_ms DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init session schema: %w", err)
		}
	}
	return nil
}

// SaveSession upserts the session snapshot.
func (s *Store) SaveSession(sess *Session) error {
	sess.mu.Lock()
	env := sess.env
	summary := sess.summary
	createdAt := sess.createdAt
	updatedAt := sess.updatedAt
	gameJSON, err := json.Marshal(sess.gameState)
	phase := sess.gameState.Phase
	sess.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO sessions
		(id, created_at_ms, updated_at_ms, phase, player_count, experience, materials, summary, game_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at_ms=excluded.updated_at_ms,
			phase=excluded.phase,
			player_count=excluded.player_count,
			experience=excluded.experience,
			materials=excluded.materials,
			summary=excluded.summary,
			game_json=excluded.game_json`,
		sess.ID, createdAt.UnixMilli(), updatedAt.UnixMilli(), string(phase),
		env.PlayerCount, string(env.Experience), string(env.Materials), summary, string(gameJSON))
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// LoadSession reconstructs a session and its bounded history. found is
// false when the ID is unknown.
func (s *Store) LoadSession(id string, maxTurns int) (*Session, bool, error) {
	row := s.db.QueryRow(`SELECT created_at_ms, updated_at_ms, player_count, experience, materials, summary, game_json
		FROM sessions WHERE id = ?`, id)

	var createdMS, updatedMS int64
	var playerCount int
	var experience, materials, summary, gameJSON string
	if err := row.Scan(&createdMS, &updatedMS, &playerCount, &experience, &materials, &summary, &gameJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load session %s: %w", id, err)
	}

	sess := New(id, maxTurns)
	state := game.NewState()
	if err := json.Unmarshal([]byte(gameJSON), state); err != nil {
		return nil, false, fmt.Errorf("decode game state for %s: %w", id, err)
	}
	if !state.Phase.Valid() {
		state.Phase = game.PhaseNotStarted
	}

	turns, err := s.loadTurns(id, maxTurns)
	if err != nil {
		return nil, false, err
	}

	sess.mu.Lock()
	sess.createdAt = time.UnixMilli(createdMS).UTC()
	sess.updatedAt = time.UnixMilli(updatedMS).UTC()
	sess.env = Environment{
		PlayerCount: playerCount,
		Experience:  Experience(experience),
		Materials:   Materials(materials),
	}
	sess.summary = summary
	sess.gameState = state
	sess.history = turns
	sess.mu.Unlock()

	return sess, true, nil
}

// SaveTurn appends one utterance for the session.
func (s *Store) SaveTurn(sessionID, role, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var seq int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`, sessionID).Scan(&seq); err != nil {
		return fmt.Errorf("next turn seq for %s: %w", sessionID, err)
	}

	_, err := s.db.Exec(`INSERT INTO turns (id, session_id, seq, role, content, created_at_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, seq, role, content, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save turn for %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) loadTurns(sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = DefaultMaxTurns
	}
	rows, err := s.db.Query(`SELECT role, content FROM (
			SELECT seq, role, content FROM turns WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load turns for %s: %w", sessionID, err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// TurnRecord is the typed stage-boundary record persisted per processed turn.
type TurnRecord struct {
	ID             string
	SessionID      string
	Intent         string
	Strategy       string
	ProcessingMode string
	AIModules      []string
	PhaseBefore    game.Phase
	PhaseAfter     game.Phase
	CreatedAt      time.Time
}

// RecordTurn stores the outcome of one pipeline run.
func (s *Store) RecordTurn(rec TurnRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	modules, err := json.Marshal(rec.AIModules)
	if err != nil {
		return fmt.Errorf("marshal ai modules: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO turn_records
		(id, session_id, intent, strategy, processing_mode, ai_modules_json, phase_before, phase_after, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Intent, rec.Strategy, rec.ProcessingMode,
		string(modules), string(rec.PhaseBefore), string(rec.PhaseAfter), rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record turn for %s: %w", rec.SessionID, err)
	}
	return nil
}

// RecentRecords returns the newest turn records for a session.
func (s *Store) RecentRecords(sessionID string, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT id, intent, strategy, processing_mode, ai_modules_json, phase_before, phase_after, created_at_ms
		FROM turn_records WHERE session_id = ? ORDER BY created_at_ms DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load turn records for %s: %w", sessionID, err)
	}
	defer rows.Close()

	records := []TurnRecord{}
	for rows.Next() {
		var rec TurnRecord
		var modulesJSON string
		var createdMS int64
		var before, after string
		if err := rows.Scan(&rec.ID, &rec.Intent, &rec.Strategy, &rec.ProcessingMode, &modulesJSON, &before, &after, &createdMS); err != nil {
			return nil, fmt.Errorf("scan turn record: %w", err)
		}
		rec.SessionID = sessionID
		rec.PhaseBefore = game.Phase(before)
		rec.PhaseAfter = game.Phase(after)
		rec.CreatedAt = time.UnixMilli(createdMS).UTC()
		if err := json.Unmarshal([]byte(modulesJSON), &rec.AIModules); err != nil {
			rec.AIModules = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteIdleBefore removes sessions (and their turns) idle since cutoff.
func (s *Store) DeleteIdleBefore(cutoff time.Time) (int, error) {
	cutoffMS := cutoff.UnixMilli()
	if _, err := s.db.Exec(`DELETE FROM turns WHERE session_id IN (SELECT id FROM sessions WHERE updated_at_ms < ?)`, cutoffMS); err != nil {
		return 0, fmt.Errorf("delete idle turns: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM turn_records WHERE session_id IN (SELECT id FROM sessions WHERE updated_at_ms < ?)`, cutoffMS); err != nil {
		return 0, fmt.Errorf("delete idle turn records: %w", err)
	}
	res, err := s.db.Exec(`DELETE FROM sessions WHERE updated_at_ms < ?`, cutoffMS)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SessionIDs lists known sessions, most recently active first.
func (s *Store) SessionIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM sessions ORDER BY updated_at_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
