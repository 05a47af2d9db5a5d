package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/councilhq/orchestrator/internal/council"
	"github.com/councilhq/orchestrator/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "council.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateThenLoadRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != c.ID {
		t.Fatalf("expected id %q, got %q", c.ID, got.ID)
	}
	if len(got.Messages) != 0 || len(got.Turns) != 0 {
		t.Fatalf("expected an empty conversation, got %+v", got)
	}
}

func TestLoadUnknownReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Load(context.Background(), "missing"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendTurnPersistsMessagesAndTurn(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c, err := s.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}

	turn := council.CouncilTurn{
		TurnID:      "t1",
		UserMessage: "What is 2+2?",
		FinalText:   "Four.",
		Opinions:    []council.ModelOpinion{{ModelID: "m1", Text: "4."}},
	}
	userMsg := council.ChatMessage{Role: council.RoleUser, Content: "What is 2+2?", Timestamp: 1}
	assistantMsg := council.ChatMessage{Role: council.RoleAssistant, Content: "Four.", Timestamp: 2}

	if err := s.AppendTurn(ctx, c.ID, userMsg, assistantMsg, turn); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 2 || len(got.Turns) != 1 {
		t.Fatalf("expected 2 messages and 1 turn, got %d messages, %d turns", len(got.Messages), len(got.Turns))
	}
	if got.Turns[0].FinalText != "Four." {
		t.Fatalf("expected final_text round-tripped through JSON, got %+v", got.Turns[0])
	}
	if len(got.Turns[0].Opinions) != 1 || got.Turns[0].Opinions[0].ModelID != "m1" {
		t.Fatalf("expected opinions round-tripped through JSON, got %+v", got.Turns[0].Opinions)
	}
}

func TestAppendTurnOnUnknownConversationReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.AppendTurn(context.Background(), "missing", council.ChatMessage{}, council.ChatMessage{}, council.CouncilTurn{})
	if err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesConversationAndItsData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c, _ := s.Create(ctx)

	if err := s.Delete(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, c.ID); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListReturnsMostRecentlyUpdatedFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, _ := s.Create(ctx)
	_, _ = s.Create(ctx)

	if err := s.AppendTurn(ctx, a.ID, council.ChatMessage{Role: council.RoleUser}, council.ChatMessage{Role: council.RoleAssistant}, council.CouncilTurn{TurnID: "t1"}); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != a.ID {
		t.Fatalf("expected most recently updated conversation first, got %+v", list)
	}
}
