package modelclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ScriptedResponse describes how FakeClient should answer for one model id.
type ScriptedResponse struct {
	// Chunks are streamed in order, one Chunk per element, by every call to
	// Stream. Complete joins them with no separator.
	Chunks []string
	// Err, if set, is delivered as the final Chunk (Stream) or returned
	// directly (Complete), after any Chunks have already been sent.
	Err error
	// Delay is applied before each chunk is sent, letting tests observe
	// interleaving and deadline truncation (spec §8, scenario S5).
	Delay time.Duration
	// Stall, if true, causes Stream/Complete to block until ctx is done
	// instead of ever completing, modeling a model that never returns.
	// Complete stalls immediately; Stream sends any scripted Chunks first,
	// then stalls instead of closing — modeling a model that streams a
	// partial answer and then hangs (spec §8 scenario S5, deadline
	// truncation mid-stream).
	Stall bool
}

// FakeClient is a deterministic, scriptable Client used by every
// stagerunner/orchestrator test (DESIGN NOTES §9: "capabilities injected at
// construction... enables the test scenarios in §8 to run entirely with
// in-memory fakes").
type FakeClient struct {
	mu        sync.Mutex
	responses map[string]ScriptedResponse
	calls     []string
}

// NewFakeClient returns an empty FakeClient; use SetResponse to script it.
func NewFakeClient() *FakeClient {
	return &FakeClient{responses: make(map[string]ScriptedResponse)}
}

// SetResponse scripts the response FakeClient gives for modelID.
func (f *FakeClient) SetResponse(modelID string, resp ScriptedResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[modelID] = resp
}

// Calls returns the model ids Complete/Stream were invoked with, in order,
// for tests that assert on fan-out behavior.
func (f *FakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeClient) recordCall(modelID string) ScriptedResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, modelID)
	resp, ok := f.responses[modelID]
	if !ok {
		resp = ScriptedResponse{Err: fmt.Errorf("%w for %q", ErrNoScript, modelID)}
	}
	return resp
}

// Complete implements Client.
func (f *FakeClient) Complete(ctx context.Context, req Request) (string, error) {
	resp := f.recordCall(req.ModelID)

	if resp.Stall {
		<-ctx.Done()
		return "", ctx.Err()
	}

	var sb strings.Builder
	for _, c := range resp.Chunks {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		sb.WriteString(c)
	}
	if resp.Err != nil {
		return sb.String(), resp.Err
	}
	return sb.String(), nil
}

// Stream implements Client.
func (f *FakeClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	resp := f.recordCall(req.ModelID)
	out := make(chan Chunk)

	go func() {
		defer close(out)

		for _, c := range resp.Chunks {
			if resp.Delay > 0 {
				select {
				case <-time.After(resp.Delay):
				case <-ctx.Done():
					out <- Chunk{Err: ctx.Err()}
					return
				}
			}
			select {
			case out <- Chunk{Text: c}:
			case <-ctx.Done():
				out <- Chunk{Err: ctx.Err()}
				return
			}
		}

		if resp.Stall {
			<-ctx.Done()
			select {
			case out <- Chunk{Err: ctx.Err()}:
			case <-ctx.Done():
			}
			return
		}

		if resp.Err != nil {
			out <- Chunk{Err: resp.Err}
		}
	}()

	return out, nil
}

// ErrNoScript is returned by a FakeClient call for a model id that was never
// configured with SetResponse.
var ErrNoScript = errors.New("modelclient: no script configured")
