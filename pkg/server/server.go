package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dotsetgreg/similobot/pkg/analysis"
	"github.com/dotsetgreg/similobot/pkg/logger"
	"github.com/dotsetgreg/similobot/pkg/pipeline"
	"github.com/dotsetgreg/similobot/pkg/session"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
	maxBodyBytes      = 1 << 20
)

// Server is the HTTP gateway in front of the turn pipeline. The wire
// contract mirrors the browser client: one POST per utterance, with the
// client optionally supplying its own view of the chat history.
type Server struct {
	pipeline *pipeline.Pipeline
	httpSrv  *http.Server
	started  time.Time
}

func New(host string, port int, p *pipeline.Pipeline) *Server {
	s := &Server{pipeline: p, started: time.Now()}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler builds the route table. Exposed so tests can drive it through
// httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// Start blocks until the listener fails or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("server", "HTTP gateway listening", map[string]any{"addr": s.httpSrv.Addr})
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http gateway: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http gateway: %w", err)
	}
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatContext struct {
	ChatHistory []chatTurn `json:"chatHistory"`
	SessionID   string     `json:"sessionId"`
}

type chatRequest struct {
	Message string      `json:"message"`
	Context chatContext `json:"context"`
}

type chatDebug struct {
	Intent          string            `json:"intent"`
	Strategy        string            `json:"strategy"`
	ProcessingMode  string            `json:"processingMode"`
	ContextUsed     bool              `json:"contextUsed"`
	HistoryLength   int               `json:"historyLength"`
	SessionID       string            `json:"sessionId"`
	AIModules       []string          `json:"aiModules"`
	ContextAnalysis analysis.Analysis `json:"contextAnalysis"`
}

type chatResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Error   string     `json:"error,omitempty"`
	Debug   *chatDebug `json:"debug,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		writeJSON(w, http.StatusMethodNotAllowed, chatResponse{Success: false, Error: "method not allowed"})
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Success: false, Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{Success: false, Error: "message is required"})
		return
	}

	history := make([]session.Turn, 0, len(req.Context.ChatHistory))
	for _, turn := range req.Context.ChatHistory {
		history = append(history, session.Turn{Role: turn.Role, Content: turn.Content})
	}

	result := s.pipeline.ProcessTurn(r.Context(), pipeline.Request{
		SessionID: req.Context.SessionID,
		Message:   req.Message,
		History:   history,
	})

	writeJSON(w, http.StatusOK, chatResponse{
		Success: true,
		Message: result.Reply,
		Debug: &chatDebug{
			Intent:          string(result.Intent),
			Strategy:        string(result.Strategy),
			ProcessingMode:  string(result.ProcessingMode),
			ContextUsed:     result.ContextUsed,
			HistoryLength:   result.HistoryLength,
			SessionID:       result.SessionID,
			AIModules:       result.AIModules,
			ContextAnalysis: result.Analysis,
		},
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"live_sessions":  s.pipeline.Sessions().LiveCount(),
	})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WarnCF("server", "Failed to encode response", map[string]any{"error": err.Error()})
	}
}
