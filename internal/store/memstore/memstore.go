// Package memstore is an in-memory ConversationStore, used by the "ask"
// CLI one-shot mode and by every orchestrator/stagerunner test that needs a
// ConversationStore without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/councilhq/orchestrator/internal/council"
	"github.com/councilhq/orchestrator/internal/councilid"
	"github.com/councilhq/orchestrator/internal/store"
)

// Store is a sync.Mutex-guarded map of conversations. Spec §5 requires only
// that append_turn be serialized per-conversation; a single mutex over the
// whole map is a simpler, sufficient implementation for the in-memory case
// since there is no I/O latency to hide behind finer-grained locking.
type Store struct {
	mu            sync.Mutex
	conversations map[string]council.Conversation
}

// New returns an empty Store.
func New() *Store {
	return &Store{conversations: make(map[string]council.Conversation)}
}

// Load implements store.ConversationStore.
func (s *Store) Load(_ context.Context, id string) (council.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return council.Conversation{}, store.ErrNotFound
	}
	return c, nil
}

// Create implements store.ConversationStore.
func (s *Store) Create(_ context.Context) (council.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c := council.Conversation{ID: councilid.NewConversationID(), CreatedAt: now, UpdatedAt: now}
	s.conversations[c.ID] = c
	return c, nil
}

// AppendTurn implements store.ConversationStore.
func (s *Store) AppendTurn(_ context.Context, id string, userMsg, assistantMsg council.ChatMessage, turn council.CouncilTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Messages = append(c.Messages, userMsg, assistantMsg)
	c.Turns = append(c.Turns, turn)
	c.UpdatedAt = time.Now()
	s.conversations[id] = c
	return nil
}

// Delete implements store.ConversationStore.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	return nil
}

// List implements store.ConversationStore, most recently updated first.
func (s *Store) List(_ context.Context) ([]council.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]council.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
