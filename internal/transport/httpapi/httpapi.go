// Package httpapi is the chi-routed NDJSON HTTP surface over the
// orchestrator core, described in SPEC_FULL.md §6.1. It owns no
// deliberation logic of its own; conversation requests delegate straight to
// an injected *orchestrator.Orchestrator and store.ConversationStore, while
// /api/models and the /api/individual endpoints use the injected catalog
// and model router directly, matching the capability-injection style the
// rest of this module uses.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/councilhq/orchestrator/internal/council"
	"github.com/councilhq/orchestrator/internal/modelclient"
	"github.com/councilhq/orchestrator/internal/modelregistry"
	"github.com/councilhq/orchestrator/internal/orchestrator"
	"github.com/councilhq/orchestrator/internal/store"
)

// Server bundles the collaborators the HTTP surface needs.
type Server struct {
	orch    *orchestrator.Orchestrator
	store   store.ConversationStore
	catalog func() *modelregistry.Catalog // indirected so a hot-reloaded catalog is picked up per request
	router  *modelclient.Router
	logger  *slog.Logger

	// DefaultModels is used as the councilor set whenever a request omits
	// selected_models or supplies an empty list (spec.md §6/P6). It lives
	// here, not in internal/orchestrator, because it is config-layer
	// defaulting applied before a Request is built; internal/orchestrator's
	// own "empty means all" resolution (modelregistry.Catalog.Resolve)
	// stays the pure fallback for callers that bypass this HTTP surface.
	DefaultModels []string

	// Temperature/MaxTokens are used for the /individual endpoints, which
	// call a ModelClient directly instead of going through
	// orchestrator.Config (there is no council turn to carry those settings
	// on for a single-model chat).
	Temperature float64
	MaxTokens   int
}

// New builds a Server. catalog is a func rather than a *Catalog so a
// config.RegistryWatcher's live pointer can be threaded straight through
// without this package importing internal/config.
func New(orch *orchestrator.Orchestrator, st store.ConversationStore, catalog func() *modelregistry.Catalog, router *modelclient.Router, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{orch: orch, store: st, catalog: catalog, router: router, logger: logger}
}

// Router builds the chi.Router mounting every route SPEC_FULL.md §6.1 lists.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/conversations/{id}/messages", s.postMessage)
		r.Get("/conversations", s.listConversations)
		r.Get("/conversations/{id}", s.getConversation)
		r.Delete("/conversations/{id}", s.deleteConversation)
		r.Get("/models", s.listModels)
		r.Post("/individual", s.postIndividual)
		r.Post("/individual/stream", s.postIndividualStream)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}

// messageRequest mirrors spec.md §6's request body shape.
type messageRequest struct {
	Message        string   `json:"message"`
	SelectedModels []string `json:"selected_models"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	conversationID := chi.URLParam(r, "id")
	if conversationID == "new" {
		conversationID = ""
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	selected := body.SelectedModels
	if len(selected) == 0 {
		selected = s.DefaultModels
	}
	req := orchestrator.Request{
		UserMessage:    body.Message,
		ConversationID: conversationID,
		SelectedModels: selected,
	}
	resolvedID, ch := s.orch.Run(r.Context(), req)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Conversation-ID", resolvedID)
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for ev := range ch {
		if err := enc.Encode(ev); err != nil {
			s.logger.Error("httpapi: encoding event", "error", err)
			return
		}
		flusher.Flush()
	}
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := s.store.Load(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog().List())
}

// individualRequest is a single-model chat that bypasses council
// deliberation entirely: one model, one reply, no ConversationStore
// involvement. The caller carries its own history in the request body
// rather than a conversation id, since there is no turn to persist.
type individualRequest struct {
	ModelID             string                `json:"model_id"`
	Message             string                `json:"message"`
	ConversationHistory []council.ChatMessage `json:"conversation_history"`
}

// individualChunk is one line of the /individual/stream NDJSON body.
type individualChunk struct {
	Type    string `json:"type"` // "content", "complete", or "error"
	Content string `json:"content,omitempty"`
}

func (s *Server) resolveIndividual(body individualRequest) (modelclient.Client, []council.ChatMessage, error) {
	d, ok := s.catalog().Get(body.ModelID)
	if !ok {
		return nil, nil, fmt.Errorf("unknown model %q", body.ModelID)
	}
	client, err := s.router.For(d.ProviderTag)
	if err != nil {
		return nil, nil, err
	}
	messages := make([]council.ChatMessage, 0, len(body.ConversationHistory)+1)
	messages = append(messages, body.ConversationHistory...)
	messages = append(messages, council.ChatMessage{
		Role:      council.RoleUser,
		Content:   body.Message,
		Timestamp: time.Now().UnixMilli(),
	})
	return client, messages, nil
}

// postIndividual answers a single model_id/message pair in one response
// (SPEC_FULL.md §9, the non-streaming counterpart to postIndividualStream).
func (s *Server) postIndividual(w http.ResponseWriter, r *http.Request) {
	var body individualRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.ModelID == "" || body.Message == "" {
		http.Error(w, "model_id and message are required", http.StatusBadRequest)
		return
	}

	client, messages, err := s.resolveIndividual(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	text, err := client.Complete(r.Context(), modelclient.Request{
		ModelID: body.ModelID, Messages: messages, Temperature: s.Temperature, MaxTokens: s.MaxTokens,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"model_id": body.ModelID, "response": text})
}

// postIndividualStream streams one model's reply as NDJSON, bypassing
// council deliberation (SPEC_FULL.md §9, grounded on the original
// prototype's `/individual/stream` 1-on-1 endpoint). It shares no code path
// with postMessage: there is no stage, no review, no chairman, just one
// ModelClient.Stream call relayed line by line.
func (s *Server) postIndividualStream(w http.ResponseWriter, r *http.Request) {
	var body individualRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.ModelID == "" || body.Message == "" {
		http.Error(w, "model_id and message are required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	client, messages, err := s.resolveIndividual(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)

	chunks, err := client.Stream(r.Context(), modelclient.Request{
		ModelID: body.ModelID, Messages: messages, Temperature: s.Temperature, MaxTokens: s.MaxTokens,
	})
	if err != nil {
		_ = enc.Encode(individualChunk{Type: "error", Content: err.Error()})
		flusher.Flush()
		return
	}
	for c := range chunks {
		if c.Err != nil {
			_ = enc.Encode(individualChunk{Type: "error", Content: c.Err.Error()})
			flusher.Flush()
			return
		}
		_ = enc.Encode(individualChunk{Type: "content", Content: c.Text})
		flusher.Flush()
	}
	_ = enc.Encode(individualChunk{Type: "complete"})
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
