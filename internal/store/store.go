// Package store defines the ConversationStore capability (C8 in spec §2):
// an append-only record of conversations keyed by id. The core orchestrator
// depends only on this interface (spec §9, "Global singleton services...
// capabilities injected at construction"); internal/store/memstore and
// internal/store/sqlitestore are the two concrete backends this module
// ships.
package store

import (
	"context"
	"errors"

	"github.com/councilhq/orchestrator/internal/council"
)

// ErrNotFound is returned by Load when the requested conversation id is
// unknown.
var ErrNotFound = errors.New("store: conversation not found")

// ConversationStore is the persistence capability spec §6 describes.
// append_turn is the only mutating call in the critical section spec §5
// requires to be serialized per-conversation; implementations may use a
// per-conversation lock or a single-writer actor.
type ConversationStore interface {
	// Load returns the conversation for id, or ErrNotFound.
	Load(ctx context.Context, id string) (council.Conversation, error)

	// Create mints and persists a brand-new, empty conversation.
	Create(ctx context.Context) (council.Conversation, error)

	// AppendTurn atomically appends userMsg, turn, and assistantMsg to the
	// conversation at id (spec invariant I5: "Conversation persistence
	// happens at turn boundaries only").
	AppendTurn(ctx context.Context, id string, userMsg, assistantMsg council.ChatMessage, turn council.CouncilTurn) error

	// Delete removes a conversation. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error

	// List returns every stored conversation, most recently updated first.
	List(ctx context.Context) ([]council.Conversation, error)
}
