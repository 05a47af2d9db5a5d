// Package wsapi mirrors internal/transport/httpapi's single streaming
// route over a websocket connection (SPEC_FULL.md §6.2), for callers that
// want a persistent connection instead of one HTTP request per turn.
// Closing the socket from either side is the cancellation trigger spec.md
// §4.6/§8 (P7/S6) describes.
package wsapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/councilhq/orchestrator/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// CheckOrigin left at gorilla's zero-value default (same-origin only);
	// a deployment fronted by its own web UI overrides this via
	// Server.Upgrader after construction.
}

// Server bundles the orchestrator behind a websocket handler.
type Server struct {
	orch     *orchestrator.Orchestrator
	logger   *slog.Logger
	Upgrader websocket.Upgrader

	// DefaultModels mirrors httpapi.Server.DefaultModels; see its doc comment.
	DefaultModels []string
}

// New builds a Server.
func New(orch *orchestrator.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{orch: orch, logger: logger, Upgrader: upgrader}
}

// messageRequest mirrors httpapi's request body, sent as the connection's
// first text frame instead of an HTTP body.
type messageRequest struct {
	Message        string   `json:"message"`
	SelectedModels []string `json:"selected_models"`
}

// Handler upgrades the connection and streams one turn's events as
// individual text frames until the turn reaches DONE/FAILED, or the client
// closes the socket, whichever comes first.
func (s *Server) Handler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if conversationID == "new" {
		conversationID = ""
	}

	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("wsapi: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var body messageRequest
	if err := conn.ReadJSON(&body); err != nil {
		s.logger.Warn("wsapi: reading first frame", "error", err)
		return
	}
	if body.Message == "" {
		_ = conn.WriteJSON(map[string]string{"type": "error", "content": "message is required"})
		return
	}

	// A goroutine watches for the client closing the socket so cancellation
	// severs the turn promptly instead of waiting for the orchestrator to
	// notice on its own next send.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	selected := body.SelectedModels
	if len(selected) == 0 {
		selected = s.DefaultModels
	}
	resolvedID, ch := s.orch.Run(ctx, orchestrator.Request{
		UserMessage:    body.Message,
		ConversationID: conversationID,
		SelectedModels: selected,
	})
	if err := conn.WriteJSON(map[string]string{"type": "conversation_id", "conversation_id": resolvedID}); err != nil {
		return
	}

	for ev := range ch {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("wsapi: marshaling event", "error", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
