// Package stagerunner implements C5: the three per-stage executors spec
// §4.5 describes. Stage1 and Stage2 fan work out over goroutines — one per
// model — that funnel exclusively into an events.Multiplexer; Stage3 streams
// the single chairman call onto the same multiplexer (spec §5,
// "Scheduling model": "No shared mutable state between per-model tasks;
// each task writes only its own accumulation buffer and sends completed
// chunks to the multiplexer").
//
// Grounded on the teacher's per-agent goroutine dispatch in
// internal/coordinator/assign.go (one goroutine per assignment, results
// funneled onto a single channel, a WaitGroup marking stage completion),
// generalized from "assign work to tmux panes" to "call an LLM and stream
// its reply".
package stagerunner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/councilhq/orchestrator/internal/council"
	"github.com/councilhq/orchestrator/internal/events"
	"github.com/councilhq/orchestrator/internal/modelclient"
	"github.com/councilhq/orchestrator/internal/modelregistry"
	"github.com/councilhq/orchestrator/internal/promptbuilder"
	"github.com/councilhq/orchestrator/internal/reviewparser"
)

// Timeouts bundles the deadlines spec §5 defines, so callers can pass one
// value instead of four.
type Timeouts struct {
	PerCall time.Duration // T_call
	Stage1  time.Duration // Tstage1
	Stage2  time.Duration // Tstage2
	Stage3  time.Duration // Tstage3
}

// DefaultTimeouts matches the defaults in spec §5.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		PerCall: 120 * time.Second,
		Stage1:  180 * time.Second,
		Stage2:  120 * time.Second,
		Stage3:  180 * time.Second,
	}
}

// nowMillis returns a monotonic-ish wall clock reading in milliseconds, the
// unit ChatMessage.Timestamp and ModelOpinion.FinishedAt use (spec §3).
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Stage1 runs the fan-out opinion round (spec §4.5, "Stage 1"). It streams
// every councilor concurrently, forwarding chunks to mux tagged by model id,
// and returns one ModelOpinion per councilor once every stream has
// terminated or the stage deadline elapses, whichever comes first.
func Stage1(
	ctx context.Context,
	mux *events.Multiplexer,
	router *modelclient.Router,
	councilors []modelregistry.ModelDescriptor,
	history []council.ChatMessage,
	userMessage string,
	temperature float64,
	maxTokens int,
	t Timeouts,
) []council.ModelOpinion {
	stageCtx, cancel := context.WithTimeout(ctx, t.Stage1)
	defer cancel()

	messages := promptbuilder.Stage1Messages(history, userMessage)
	opinions := make([]council.ModelOpinion, len(councilors))

	var wg sync.WaitGroup
	for i, d := range councilors {
		wg.Add(1)
		go func(i int, d modelregistry.ModelDescriptor) {
			defer wg.Done()
			opinions[i] = runOneStream(stageCtx, mux, router, d.ID, d.ProviderTag, messages, temperature, maxTokens, t.PerCall)
		}(i, d)
	}
	wg.Wait()

	return opinions
}

// runOneStream drives a single model's streaming call, forwarding each
// chunk as a model_response event and returning the accumulated
// ModelOpinion. It never returns an error itself: any failure becomes an
// error ModelOpinion plus a soft error event, per spec §4.5's "do NOT abort
// the stage" rule.
func runOneStream(
	ctx context.Context,
	mux *events.Multiplexer,
	router *modelclient.Router,
	modelID, providerTag string,
	messages []council.ChatMessage,
	temperature float64,
	maxTokens int,
	perCall time.Duration,
) council.ModelOpinion {
	callCtx, cancel := modelclient.WithCallTimeout(ctx, perCall)
	defer cancel()

	client, err := router.For(providerTag)
	if err != nil {
		emitSoftError(ctx, mux, modelID, err.Error())
		return council.ModelOpinion{ModelID: modelID, Error: err.Error(), FinishedAt: nowMillis()}
	}

	req := modelclient.Request{ModelID: modelID, Messages: messages, Temperature: temperature, MaxTokens: maxTokens}
	chunks, err := client.Stream(callCtx, req)
	if err != nil {
		reason := classifyErr(callCtx, err)
		emitSoftError(ctx, mux, modelID, reason)
		return council.ModelOpinion{ModelID: modelID, Error: reason, FinishedAt: nowMillis()}
	}

	var text strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			reason := classifyErr(callCtx, chunk.Err)
			emitSoftError(ctx, mux, modelID, reason)
			return council.ModelOpinion{ModelID: modelID, Error: reason, FinishedAt: nowMillis()}
		}
		if chunk.Text == "" {
			continue
		}
		text.WriteString(chunk.Text)
		_ = mux.Send(ctx, events.ModelResponse(modelID, chunk.Text))
	}

	if callCtx.Err() != nil && text.Len() == 0 {
		reason := classifyErr(callCtx, callCtx.Err())
		emitSoftError(ctx, mux, modelID, reason)
		return council.ModelOpinion{ModelID: modelID, Error: reason, FinishedAt: nowMillis()}
	}

	return council.ModelOpinion{ModelID: modelID, Text: text.String(), FinishedAt: nowMillis()}
}

func classifyErr(ctx context.Context, err error) string {
	if ctx.Err() == context.DeadlineExceeded {
		return modelclient.ErrTimeoutText
	}
	if ctx.Err() == context.Canceled {
		return modelclient.ErrCancelledText
	}
	return err.Error()
}

func emitSoftError(ctx context.Context, mux *events.Multiplexer, modelID, reason string) {
	_ = mux.Send(ctx, events.SoftError(modelID, reason))
}

// Stage2 runs the anonymized peer-review round (spec §4.5, "Stage 2").
// Every non-error stage-1 opinion is both reviewed and a reviewer. Review
// events are emitted in reviewer-arrival order (spec §9, Open Questions:
// "The spec permits arrival order"); the returned ReviewResults follow the
// order of the non-error opinions passed in.
func Stage2(
	ctx context.Context,
	mux *events.Multiplexer,
	router *modelclient.Router,
	descriptorByID map[string]modelregistry.ModelDescriptor,
	opinions []council.ModelOpinion,
	userMessage string,
	temperature float64,
	maxTokens int,
	t Timeouts,
) []council.ReviewResult {
	stageCtx, cancel := context.WithTimeout(ctx, t.Stage2)
	defer cancel()

	nonError := council.NonErrorOpinions(opinions)
	if len(nonError) == 0 {
		return nil
	}

	ordered, labelToModel := promptbuilder.AnonymizationMap(nonError)
	messages := promptbuilder.Stage2Messages(userMessage, ordered, labelToModel)

	type indexedResult struct {
		index  int
		result council.ReviewResult
	}
	resultsCh := make(chan indexedResult, len(nonError))

	var wg sync.WaitGroup
	for i, reviewer := range nonError {
		wg.Add(1)
		go func(i int, reviewer council.ModelOpinion) {
			defer wg.Done()
			d := descriptorByID[reviewer.ModelID]
			result := runOneReview(stageCtx, mux, router, d.ProviderTag, reviewer.ModelID, labelToModel, messages, temperature, maxTokens, t.PerCall)
			resultsCh <- indexedResult{index: i, result: result}
		}(i, reviewer)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	byIndex := make([]*council.ReviewResult, len(nonError))
	for ir := range resultsCh {
		r := ir.result
		byIndex[ir.index] = &r
		_ = mux.Send(ctx, reviewEvent(r))
	}

	out := make([]council.ReviewResult, 0, len(nonError))
	for _, r := range byIndex {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func runOneReview(
	ctx context.Context,
	mux *events.Multiplexer,
	router *modelclient.Router,
	providerTag, reviewerID string,
	labelToModel map[string]string,
	messages []council.ChatMessage,
	temperature float64,
	maxTokens int,
	perCall time.Duration,
) council.ReviewResult {
	callCtx, cancel := modelclient.WithCallTimeout(ctx, perCall)
	defer cancel()

	client, err := router.For(providerTag)
	if err != nil {
		return council.ReviewResult{ReviewerModelID: reviewerID, ParseOK: false}
	}

	req := modelclient.Request{ModelID: reviewerID, Messages: messages, Temperature: temperature, MaxTokens: maxTokens}
	raw, err := client.Complete(callCtx, req)
	if err != nil {
		return council.ReviewResult{ReviewerModelID: reviewerID, ParseOK: false}
	}

	return reviewparser.Parse(reviewerID, labelToModel, raw)
}

func reviewEvent(r council.ReviewResult) events.Event {
	payload := make([]events.RankingPayload, 0, len(r.Rankings))
	for _, rk := range r.Rankings {
		payload = append(payload, events.RankingPayload{ModelID: rk.ModelID, Rank: rk.Rank, Reasoning: rk.Reasoning})
	}
	return events.Review(r.ReviewerModelID, payload, r.ParseOK)
}

// Stage3 runs the chairman synthesis round (spec §4.5, "Stage 3"). It
// returns the accumulated final text; a deadline or stream error truncates
// but does not discard whatever text was produced (spec: "A deadline
// truncates the synthesis and still completes the turn").
func Stage3(
	ctx context.Context,
	mux *events.Multiplexer,
	router *modelclient.Router,
	chairman modelregistry.ModelDescriptor,
	messages []council.ChatMessage,
	temperature float64,
	maxTokens int,
	t Timeouts,
) (finalText string, chairmanErr error) {
	stageCtx, cancel := context.WithTimeout(ctx, t.Stage3)
	defer cancel()

	callCtx, callCancel := modelclient.WithCallTimeout(stageCtx, t.PerCall)
	defer callCancel()

	client, err := router.For(chairman.ProviderTag)
	if err != nil {
		return "", err
	}

	req := modelclient.Request{ModelID: chairman.ID, Messages: messages, Temperature: temperature, MaxTokens: maxTokens}
	chunks, err := client.Stream(callCtx, req)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			if text.Len() == 0 {
				return "", chunk.Err
			}
			return text.String(), nil
		}
		if chunk.Text == "" {
			continue
		}
		text.WriteString(chunk.Text)
		_ = mux.Send(ctx, events.FinalResponse(chunk.Text))
	}

	if callCtx.Err() != nil && text.Len() == 0 {
		return "", callCtx.Err()
	}

	return text.String(), nil
}
