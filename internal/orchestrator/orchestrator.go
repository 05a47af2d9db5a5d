// Package orchestrator implements CouncilOrchestrator (C6 in spec §2): the
// top-level state machine INIT→STAGE1→STAGE2→STAGE3→DONE/FAILED described
// in spec §4.6. It owns no I/O of its own — every collaborator
// (ModelRegistry, ModelClient router, ConversationStore) is injected at
// construction, per DESIGN NOTES §9 ("Global singleton services... enables
// the test scenarios in §8 to run entirely with in-memory fakes").
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/councilhq/orchestrator/internal/council"
	"github.com/councilhq/orchestrator/internal/councilid"
	"github.com/councilhq/orchestrator/internal/events"
	"github.com/councilhq/orchestrator/internal/modelclient"
	"github.com/councilhq/orchestrator/internal/modelregistry"
	"github.com/councilhq/orchestrator/internal/promptbuilder"
	"github.com/councilhq/orchestrator/internal/rank"
	"github.com/councilhq/orchestrator/internal/stagerunner"
	"github.com/councilhq/orchestrator/internal/store"
)

// Request is what spec §4.6's "Entry" describes: `run(request)`.
type Request struct {
	UserMessage    string
	ConversationID string // empty means "create a new conversation"
	SelectedModels []string
}

// Config bundles the tunables spec §5/§6 lists.
type Config struct {
	Temperature  float64
	MaxTokens    int
	Timeouts     stagerunner.Timeouts
	TurnDeadline time.Duration
	BufferSize   int
}

// DefaultConfig matches spec §5/§6's documented defaults.
func DefaultConfig() Config {
	return Config{
		Temperature:  0.7,
		MaxTokens:    4000,
		Timeouts:     stagerunner.DefaultTimeouts(),
		TurnDeadline: 600 * time.Second,
		BufferSize:   events.DefaultBufferSize,
	}
}

// Orchestrator runs one turn at a time per call to Run; a single instance
// is safe to call Run on concurrently for different turns, since all
// per-turn state lives in the goroutine Run spawns.
type Orchestrator struct {
	catalog *modelregistry.Catalog
	router  *modelclient.Router
	store   store.ConversationStore
	cfg     Config
	logger  *slog.Logger
}

// New builds an Orchestrator from its injected capabilities.
func New(catalog *modelregistry.Catalog, router *modelclient.Router, st store.ConversationStore, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{catalog: catalog, router: router, store: st, cfg: cfg, logger: logger}
}

// Run starts one three-stage deliberation and returns the resolved
// conversation id alongside the ordered event stream (spec §4.6), so an
// HTTP/websocket caller can advertise the id (e.g. X-Conversation-ID)
// before the first event is written. The conversation is loaded or
// created synchronously, before Run returns, so the id is known even for
// a brand-new conversation. The stream is closed when the turn reaches
// DONE or FAILED. Cancelling ctx severs the stream without a terminal
// event (spec §5, "CancelledError").
func (o *Orchestrator) Run(ctx context.Context, req Request) (string, <-chan events.Event) {
	mux := events.NewMultiplexer(o.cfg.BufferSize)

	// Per spec §9 Open Questions: "the per-turn Tturn should account for
	// time spent loading history from the store" — the clock starts here,
	// at orchestrator entry, before the store Load below.
	turnCtx, cancel := context.WithTimeout(ctx, o.cfg.TurnDeadline)

	conv, err := o.loadOrCreate(turnCtx, req.ConversationID)
	if err != nil {
		o.logger.Error("orchestrator: loading conversation", "error", err)
		cancel()
		go func() {
			defer mux.Close()
			_ = mux.Send(ctx, events.FatalError("store_error"))
		}()
		return "", mux.Events()
	}

	go o.run(ctx, turnCtx, cancel, req, conv, mux)
	return conv.ID, mux.Events()
}

func (o *Orchestrator) run(ctx, turnCtx context.Context, cancel context.CancelFunc, req Request, conv council.Conversation, mux *events.Multiplexer) {
	defer mux.Close()
	defer cancel()

	councilors, warnings := o.catalog.Resolve(req.SelectedModels)
	for _, w := range warnings {
		_ = mux.Send(turnCtx, events.SoftError("", w))
	}
	if len(councilors) == 0 {
		_ = mux.Send(turnCtx, events.FatalError("no_councilors"))
		return
	}

	turn := council.CouncilTurn{
		TurnID:      councilid.NewTurnID(),
		UserMessage: req.UserMessage,
		StartedAt:   time.Now(),
	}

	if !o.sendStage(turnCtx, mux, events.StageFirstOpinions, "gathering council opinions") {
		o.abort(turnCtx, mux)
		return
	}

	opinions := stagerunner.Stage1(turnCtx, mux, o.router, councilors, conv.Messages, req.UserMessage, o.cfg.Temperature, o.cfg.MaxTokens, o.cfg.Timeouts)
	turn.Opinions = opinions
	if turnCtx.Err() != nil {
		o.abort(turnCtx, mux)
		return
	}
	if allErrored(opinions) {
		_ = mux.Send(turnCtx, events.FatalError("no_opinions"))
		return // spec §8 scenario S3: no turn is persisted when every opinion errored.
	}

	if !o.sendStage(turnCtx, mux, events.StageReview, "peer review") {
		o.abort(turnCtx, mux)
		return
	}

	descriptorByID := make(map[string]modelregistry.ModelDescriptor, len(councilors))
	for _, d := range councilors {
		descriptorByID[d.ID] = d
	}
	reviews := stagerunner.Stage2(turnCtx, mux, o.router, descriptorByID, opinions, req.UserMessage, o.cfg.Temperature, o.cfg.MaxTokens, o.cfg.Timeouts)
	turn.Reviews = reviews
	if turnCtx.Err() != nil {
		o.abort(turnCtx, mux)
		return
	}

	if !o.sendStage(turnCtx, mux, events.StageFinalResponse, "synthesizing final answer") {
		o.abort(turnCtx, mux)
		return
	}

	aggregated := rank.Aggregate(reviews)
	chairman := o.catalog.Chairman() // spec §4.1: the chairman always participates in stage 3, selected_models or not.
	messages := promptbuilder.Stage3Messages(chairman.ID, conv.Messages, req.UserMessage, opinions, aggregated)
	finalText, chairmanErr := stagerunner.Stage3(turnCtx, mux, o.router, chairman, messages, o.cfg.Temperature, o.cfg.MaxTokens, o.cfg.Timeouts)

	turn.FinalText = finalText
	turn.FinishedAt = time.Now()

	if turnCtx.Err() != nil {
		o.abort(turnCtx, mux)
		return
	}

	if chairmanErr != nil {
		_ = mux.Send(turnCtx, events.FatalError("chairman_failure"))
		if hasNonErrorOpinion(opinions) {
			o.persistBestEffort(ctx, conv.ID, req.UserMessage, turn)
		}
		return
	}

	nowMS := time.Now().UnixMilli()
	userMsg := council.ChatMessage{Role: council.RoleUser, Content: req.UserMessage, Timestamp: nowMS}
	assistantMsg := council.ChatMessage{Role: council.RoleAssistant, Content: finalText, Timestamp: nowMS}
	if err := o.store.AppendTurn(ctx, conv.ID, userMsg, assistantMsg, turn); err != nil {
		o.logger.Error("orchestrator: persisting turn", "conversation_id", conv.ID, "error", err)
		_ = mux.Send(turnCtx, events.FatalError("store_error"))
		return
	}

	_ = mux.Send(turnCtx, events.Complete())
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, conversationID string) (council.Conversation, error) {
	if conversationID == "" {
		return o.store.Create(ctx)
	}
	conv, err := o.store.Load(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return o.store.Create(ctx)
	}
	return conv, err
}

// sendStage emits a stage_update event, returning false if ctx ended before
// delivery so the caller can distinguish that from continuing normally.
func (o *Orchestrator) sendStage(ctx context.Context, mux *events.Multiplexer, stage, content string) bool {
	return mux.Send(ctx, events.StageUpdate(stage, content)) == nil
}

// abort handles a turnCtx that ended before the turn finished. A deadline
// (TurnTimeout, spec §7) still gets a terminal error event, delivered on a
// fresh short-lived context since turnCtx itself is already done. A
// cancellation (the caller closing the stream) gets no terminal event at
// all — the stream is simply severed (spec §7, "CancelledError").
func (o *Orchestrator) abort(turnCtx context.Context, mux *events.Multiplexer) {
	if !errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = mux.Send(notifyCtx, events.FatalError("turn_timeout"))
}

// persistBestEffort attempts to save a turn that ended in ChairmanFailure
// after producing at least one stage-1 opinion, per spec property P5. It
// uses ctx (the caller's original context), not turnCtx, since turnCtx may
// already be past its deadline.
func (o *Orchestrator) persistBestEffort(ctx context.Context, conversationID, userMessage string, turn council.CouncilTurn) {
	nowMS := time.Now().UnixMilli()
	userMsg := council.ChatMessage{Role: council.RoleUser, Content: userMessage, Timestamp: nowMS}
	assistantMsg := council.ChatMessage{Role: council.RoleAssistant, Content: turn.FinalText, Timestamp: nowMS}
	if err := o.store.AppendTurn(ctx, conversationID, userMsg, assistantMsg, turn); err != nil {
		o.logger.Error("orchestrator: best-effort persisting failed turn", "conversation_id", conversationID, "error", err)
	}
}

func allErrored(opinions []council.ModelOpinion) bool {
	for _, o := range opinions {
		if !o.IsError() {
			return false
		}
	}
	return len(opinions) > 0
}

func hasNonErrorOpinion(opinions []council.ModelOpinion) bool {
	return len(council.NonErrorOpinions(opinions)) > 0
}
