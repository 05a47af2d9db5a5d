// Package council holds the shared data-model types described in spec §3:
// ChatMessage, ModelOpinion, Ranking, ReviewResult, CouncilTurn, and
// Conversation. These are plain, serializable values with no behavior beyond
// small validation helpers; the packages that work with them (modelclient,
// promptbuilder, reviewparser, stagerunner, orchestrator, store) import this
// one rather than redeclaring the shapes, avoiding the import cycles a
// per-package type would create. internal/events does not import it; its
// RankingPayload mirrors Ranking for the wire.
//
// Grounded on the pack's own prior art for this exact domain
// (other_examples/greenstevester-llm-senate-council-upgrade__models.go:
// Stage1Response/Stage2Ranking/Stage3Response/AggregateRanking), generalized
// into the vocabulary spec.md uses.
package council

import "time"

// Role identifies the speaker of a ChatMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of conversation history. Ordered; persisted.
type ChatMessage struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // monotonic milliseconds, see spec §3
}

// ModelOpinion is one councilor's stage-1 response. Exactly one of Text or
// Error is meaningful (spec invariant I3).
type ModelOpinion struct {
	ModelID    string `json:"model_id"`
	Text       string `json:"text"`
	Error      string `json:"error,omitempty"`
	FinishedAt int64  `json:"finished_at"`
}

// IsError reports whether this opinion recorded a failure instead of text.
func (o ModelOpinion) IsError() bool {
	return o.Error != ""
}

// Ranking is one reviewer's placement of a single opinion within a
// ReviewResult. Rank is 1-based; lower is better.
type Ranking struct {
	ModelID   string `json:"model_id"`
	Rank      int    `json:"rank"`
	Reasoning string `json:"reasoning"`
}

// ReviewResult is one reviewer's full stage-2 output.
type ReviewResult struct {
	ReviewerModelID string    `json:"reviewer_model_id"`
	Rankings        []Ranking `json:"rankings"`
	RawText         string    `json:"raw_text"`
	ParseOK         bool      `json:"parse_ok"`
}

// CouncilTurn is the record of one full three-stage deliberation.
type CouncilTurn struct {
	TurnID      string         `json:"turn_id"`
	UserMessage string         `json:"user_message"`
	Opinions    []ModelOpinion `json:"opinions"`
	Reviews     []ReviewResult `json:"reviews"`
	FinalText   string         `json:"final_text"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// Conversation is the append-only record of one user's council session.
type Conversation struct {
	ID        string        `json:"id"`
	Messages  []ChatMessage `json:"messages"`
	Turns     []CouncilTurn `json:"turns"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NonErrorOpinions returns the opinions in turn that completed without an
// error, preserving order.
func (t CouncilTurn) NonErrorOpinions() []ModelOpinion {
	return NonErrorOpinions(t.Opinions)
}

// NonErrorOpinions filters opinions down to the ones that completed without
// an error, preserving order. Shared by stagerunner (stage-2's reviewer
// pool) and orchestrator (the chairman-failure best-effort persistence
// check), so the "who gets to review/persist" rule lives in one place.
func NonErrorOpinions(opinions []ModelOpinion) []ModelOpinion {
	out := make([]ModelOpinion, 0, len(opinions))
	for _, o := range opinions {
		if !o.IsError() {
			out = append(out, o)
		}
	}
	return out
}
