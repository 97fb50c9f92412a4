// Package server exposes the turn engine over local HTTP. Each session name
// maps to its own engine; turns for the same session are serialized.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/forgelab/locai/internal/engine"
	"github.com/forgelab/locai/internal/ollama"
	"github.com/forgelab/locai/internal/session"
	"github.com/forgelab/locai/internal/store"
)

// EngineFactory builds a fresh engine for a session. The server restores
// persisted history into it before the first turn.
type EngineFactory func() *engine.Engine

type Handler struct {
	client   *ollama.Client
	db       store.Store
	sessions *session.Manager
	factory  EngineFactory

	mu      sync.Mutex
	engines map[string]*engine.Engine
}

func NewHandler(client *ollama.Client, db store.Store, sessions *session.Manager, factory EngineFactory) *Handler {
	return &Handler{
		client:   client,
		db:       db,
		sessions: sessions,
		factory:  factory,
		engines:  make(map[string]*engine.Engine),
	}
}

// Router wires the HTTP surface.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/api/models", h.handleModels)
	r.Post("/api/turn", h.handleTurn)
	r.Delete("/api/session/{name}", h.handleClearSession)

	return r
}

func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.client.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "listing models: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

type turnRequest struct {
	Session string `json:"session"`
	Prompt  string `json:"prompt"`
}

type turnEvent struct {
	Kind     string `json:"kind"`
	Round    int    `json:"round"`
	Function string `json:"function,omitempty"`
	Result   string `json:"result,omitempty"`
	BadName  string `json:"bad_name,omitempty"`
}

type turnResponse struct {
	Outcome string      `json:"outcome"`
	Text    string      `json:"text,omitempty"`
	Rounds  int         `json:"rounds"`
	Events  []turnEvent `json:"events,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Session == "" {
		req.Session = "default"
	}

	var turn engine.Turn
	err := h.sessions.WithLock(req.Session, func() error {
		eng := h.engineFor(req.Session)
		turn = eng.ProcessTurn(r.Context(), req.Prompt)
		if err := h.db.SaveConversation(req.Session, eng.Conversation().Messages()); err != nil {
			log.Printf("server: persisting session %s: %v", req.Session, err)
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := turnResponse{Rounds: turn.Rounds, Text: turn.Text}
	switch turn.Kind {
	case engine.OutcomeTerminalText:
		resp.Outcome = "text"
	case engine.OutcomeFunctionExecuted:
		resp.Outcome = "function_executed"
	case engine.OutcomeAborted:
		resp.Outcome = "aborted"
		if turn.Err != nil {
			resp.Error = turn.Err.Error()
		}
	}
	for _, ev := range turn.Events {
		resp.Events = append(resp.Events, encodeEvent(ev))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleClearSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.sessions.WithLock(name, func() error {
		h.mu.Lock()
		if eng, ok := h.engines[name]; ok {
			eng.Clear()
		}
		h.mu.Unlock()
		return h.db.ClearConversation(name)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// engineFor returns the session's engine, creating it and restoring persisted
// history on first use. Callers hold the session lock.
func (h *Handler) engineFor(name string) *engine.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()

	if eng, ok := h.engines[name]; ok {
		return eng
	}
	eng := h.factory()
	if history, err := h.db.GetConversation(name); err == nil && len(history) > 0 {
		eng.Restore(history)
	}
	h.engines[name] = eng
	return eng
}

func encodeEvent(ev engine.Event) turnEvent {
	out := turnEvent{Round: ev.Round, Function: string(ev.Function), BadName: ev.BadName}
	switch ev.Kind {
	case engine.EventModelReply:
		out.Kind = "model_reply"
	case engine.EventFunctionCall:
		out.Kind = "function_call"
		out.Result = ev.Result.AIText
	case engine.EventInvalidName:
		out.Kind = "invalid_name"
	case engine.EventEnforcement:
		out.Kind = "enforcement"
	case engine.EventReinforcement:
		out.Kind = "reinforcement"
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
