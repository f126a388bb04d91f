package pipeline

import (
	"context"
	"fmt"

	"github.com/dotsetgreg/similobot/pkg/analysis"
	"github.com/dotsetgreg/similobot/pkg/config"
	"github.com/dotsetgreg/similobot/pkg/game"
	"github.com/dotsetgreg/similobot/pkg/intent"
	"github.com/dotsetgreg/similobot/pkg/logger"
	"github.com/dotsetgreg/similobot/pkg/providers"
	"github.com/dotsetgreg/similobot/pkg/respond"
	"github.com/dotsetgreg/similobot/pkg/session"
)

// ProcessingMode names the degradation tier that produced a reply.
type ProcessingMode string

const (
	ModeMultiAIFull    ProcessingMode = "multi_ai_full"
	ModeReducedContext ProcessingMode = "reduced_context"
	ModeHeuristicOnly  ProcessingMode = "heuristic_only"
)

// Stage labels reported in Result.AIModules for the oracle-backed stages
// that actually ran this turn.
const (
	stageAnalyzer    = "context_analyzer"
	stageClassifier  = "intent_classifier"
	stageSynthesizer = "response_synthesizer"
)

// Request is one user utterance bound for the pipeline. History, when
// supplied by the transport, replaces the session's view of the
// conversation before processing.
type Request struct {
	SessionID string
	Message   string
	History   []session.Turn
}

// Result is the complete outcome of one turn. ProcessTurn always returns
// one; there is no error path visible to callers.
type Result struct {
	SessionID      string            `json:"sessionId"`
	Reply          string            `json:"reply"`
	Intent         intent.Intent     `json:"intent"`
	Strategy       intent.Strategy   `json:"strategy"`
	Confidence     float64           `json:"confidence"`
	ProcessingMode ProcessingMode    `json:"processingMode"`
	ContextUsed    bool              `json:"contextUsed"`
	HistoryLength  int               `json:"historyLength"`
	AIModules      []string          `json:"aiModules"`
	Analysis       analysis.Analysis `json:"contextAnalysis"`
	Phase          game.Phase        `json:"phase"`
}

// Pipeline is the single entry point for turn processing. Each turn runs
// context analysis, intent classification, phase bookkeeping, and response
// synthesis, degrading tier by tier when the oracle misbehaves.
type Pipeline struct {
	analyzer    *analysis.Analyzer
	classifier  *intent.Classifier
	synthesizer *respond.Synthesizer
	sessions    *session.Manager
}

func New(analyzer *analysis.Analyzer, classifier *intent.Classifier, synthesizer *respond.Synthesizer, sessions *session.Manager) *Pipeline {
	return &Pipeline{analyzer: analyzer, classifier: classifier, synthesizer: synthesizer, sessions: sessions}
}

// NewFromConfig wires the standard pipeline: one shared oracle provider for
// all three stages, the embedded-or-on-disk rulebook, and store-backed
// sessions. provider and store may be nil; the pipeline degrades gracefully.
func NewFromConfig(cfg *config.Config, provider providers.LLMProvider, store *session.Store) *Pipeline {
	options := map[string]interface{}{
		"max_tokens":  cfg.Oracle.MaxTokens,
		"temperature": cfg.Oracle.Temperature,
	}
	rulebook := game.LoadRulebook(cfg.BooksPath())
	return New(
		analysis.NewAnalyzer(provider, cfg.Oracle.Model, options),
		intent.NewClassifier(provider, cfg.Oracle.Model, options),
		respond.NewSynthesizer(provider, cfg.Oracle.Model, options, rulebook, cfg.Guide.ReplyMaxRunes),
		session.NewManager(store, cfg.Guide.MaxHistoryTurns),
	)
}

// Sessions exposes the session manager for transports that need session IDs.
func (p *Pipeline) Sessions() *session.Manager {
	return p.sessions
}

// ProcessTurn runs the full degradation ladder for one utterance. It never
// returns an error: the worst case is the canned Tier-3 reply. The session's
// turn lock is held for the whole turn, so concurrent requests for one table
// are processed one at a time, and the session is persisted before returning.
func (p *Pipeline) ProcessTurn(ctx context.Context, req Request) Result {
	sess := p.sessions.Get(req.SessionID)
	release := sess.Acquire()
	defer release()
	if len(req.History) > 0 {
		sess.ReplaceHistory(req.History)
	}
	phaseBefore := sess.Phase()

	result := p.process(ctx, sess, req.Message)
	result.SessionID = sess.ID
	result.Phase = sess.Phase()

	sess.AppendTurn("user", req.Message)
	sess.AppendTurn("assistant", result.Reply)
	p.sessions.Persist(sess)
	p.sessions.RecordTurn(sess, req.Message, result.Reply, session.TurnRecord{
		Intent:         string(result.Intent),
		Strategy:       string(result.Strategy),
		ProcessingMode: string(result.ProcessingMode),
		AIModules:      result.AIModules,
		PhaseBefore:    phaseBefore,
		PhaseAfter:     result.Phase,
	})

	logger.InfoCF("pipeline", "Turn processed", map[string]any{
		"session_id": sess.ID,
		"intent":     string(result.Intent),
		"mode":       string(result.ProcessingMode),
		"phase":      string(result.Phase),
	})
	return result
}

func (p *Pipeline) process(ctx context.Context, sess *session.Session, message string) Result {
	history := sess.History()

	verdict := p.analyzer.Analyze(ctx, message, history)
	cls := p.classifier.Classify(ctx, message, verdict, sess.Phase())

	p.applyGameProgress(sess, message, cls)

	var modules []string
	if verdict.Source == analysis.SourceOracle {
		modules = append(modules, stageAnalyzer)
	}
	if cls.Source == analysis.SourceOracle {
		modules = append(modules, stageClassifier)
	}

	result := Result{
		Intent:        cls.Intent,
		Strategy:      cls.Strategy,
		Confidence:    cls.Confidence,
		ContextUsed:   len(history) > 0,
		HistoryLength: len(history),
		Analysis:      verdict,
	}

	// Tier 1: fully oracle-backed synthesis.
	if reply, ok := p.synthesizer.Generate(ctx, message, verdict, cls, sess); ok {
		result.Reply = reply
		result.AIModules = append(modules, stageSynthesizer)
		if verdict.Source == analysis.SourceOracle && cls.Source == analysis.SourceOracle {
			result.ProcessingMode = ModeMultiAIFull
		} else {
			result.ProcessingMode = ModeReducedContext
		}
		return result
	}

	// Tier 2: oracle-free templated reply over whatever analysis survived.
	logger.WarnCF("pipeline", "Synthesis degraded to templated reply", map[string]any{"session_id": sess.ID})
	if reply, ok := p.synthesizer.TemplateReply(cls, sess); ok {
		result.Reply = reply
		result.AIModules = modules
		if len(modules) > 0 {
			result.ProcessingMode = ModeReducedContext
		} else {
			result.ProcessingMode = ModeHeuristicOnly
		}
		return result
	}

	// Tier 3: canned reply keyed by the heuristic intent guess. Cannot fail.
	logger.WarnCF("pipeline", "Falling back to canned reply", map[string]any{"session_id": sess.ID})
	result.Reply = p.synthesizer.Fallback(cls.Intent)
	result.AIModules = []string{}
	result.ProcessingMode = ModeHeuristicOnly
	return result
}

// applyGameProgress merges sensed environment facts and advances the phase
// machine when the turn signals completion of the current step. Facts merge
// before the advance so the completed-step record carries them.
func (p *Pipeline) applyGameProgress(sess *session.Session, message string, cls intent.Classification) {
	found := session.ExtractEnvironment(message)
	if sess.UpdateEnvironment(found) {
		logger.DebugCF("pipeline", "Environment facts updated", map[string]any{
			"session_id": sess.ID,
			"facts":      sess.Environment().Summary(),
		})
	}

	phase := sess.Phase()
	shouldAdvance := false
	switch {
	case phase == game.PhaseGameEnd:
	case phase == game.PhaseNotStarted:
		shouldAdvance = cls.Intent == intent.StartGame || game.CompletionSignaled(phase, message)
	default:
		shouldAdvance = game.CompletionSignaled(phase, message)
	}
	if !shouldAdvance {
		return
	}

	data := completionData(sess, found)
	if next, ok := sess.AdvanceGame(data); ok {
		logger.InfoCF("pipeline", "Phase advanced", map[string]any{
			"session_id": sess.ID,
			"phase":      string(next),
		})
	}
}

func completionData(sess *session.Session, found session.Environment) map[string]string {
	data := map[string]string{}
	if found.PlayerCount > 0 {
		data["player_count"] = fmt.Sprintf("%d", found.PlayerCount)
	}
	if found.Experience != session.ExperienceUnknown {
		data["experience_level"] = string(found.Experience)
	}
	if found.Materials != session.MaterialsUnknown {
		data["materials"] = string(found.Materials)
	}
	if len(data) == 0 {
		return nil
	}
	return data
}
