// Package councilid mints opaque identifiers for conversations and turns.
// The teacher has no id-generation package of its own; this follows the
// pack's own idiom for it (other_examples/RedClaus-cortex uses
// google/uuid for the same purpose) rather than hand-rolling one.
package councilid

import "github.com/google/uuid"

// NewConversationID mints a fresh conversation id.
func NewConversationID() string {
	return "conv_" + uuid.NewString()
}

// NewTurnID mints a fresh turn id.
func NewTurnID() string {
	return "turn_" + uuid.NewString()
}
