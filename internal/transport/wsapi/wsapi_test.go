package wsapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/councilhq/orchestrator/internal/events"
	"github.com/councilhq/orchestrator/internal/modelclient"
	"github.com/councilhq/orchestrator/internal/modelregistry"
	"github.com/councilhq/orchestrator/internal/orchestrator"
	"github.com/councilhq/orchestrator/internal/stagerunner"
	"github.com/councilhq/orchestrator/internal/store/memstore"
)

func testOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	catalog, err := modelregistry.New([]modelregistry.ModelDescriptor{
		{ID: "m1", DisplayName: "M1", ProviderTag: "fake", IsChairman: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	fc := modelclient.NewFakeClient()
	fc.SetResponse("m1", modelclient.ScriptedResponse{Chunks: []string{"hi"}})
	router := modelclient.NewRouter(map[string]modelclient.Client{"fake": fc})

	return orchestrator.New(catalog, router, memstore.New(), orchestrator.Config{
		Temperature: 0.7, MaxTokens: 100,
		Timeouts:     stagerunner.Timeouts{PerCall: 2 * time.Second, Stage1: 2 * time.Second, Stage2: 2 * time.Second, Stage3: 2 * time.Second},
		TurnDeadline: 5 * time.Second,
		BufferSize:   64,
	}, nil)
}

func TestHandlerStreamsEventsUntilComplete(t *testing.T) {
	s := New(testOrchestrator(t), nil)
	r := chi.NewRouter()
	r.Get("/ws/conversations/{id}/messages", s.Handler)
	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/conversations/new/messages"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"message": "hello"}); err != nil {
		t.Fatal(err)
	}

	var first map[string]string
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first["type"] != "conversation_id" || first["conversation_id"] == "" {
		t.Fatalf("expected a conversation_id frame first, got %+v", first)
	}

	sawComplete := false
	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		if ev.Type == events.TypeComplete {
			sawComplete = true
		}
	}
	if !sawComplete {
		t.Fatal("expected a complete event before the socket closed")
	}
}
