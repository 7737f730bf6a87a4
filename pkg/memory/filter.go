package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/probeworks/gauntlet/pkg/prompt"
)

// Filter narrows a piece query. The zero value matches everything; each set
// field must match. Backends translate the filter into their native
// predicates.
type Filter struct {
	// ConversationID matches pieces in one conversation.
	ConversationID string

	// OrchestratorID matches pieces stamped with the orchestrator instance.
	OrchestratorID uuid.UUID

	// Role matches pieces authored by the given role.
	Role prompt.Role

	// DataType matches on the converted value's data type.
	DataType prompt.DataType

	// Labels requires each key to be present with the given value.
	Labels map[string]string

	// PieceIDs restricts to the given piece ids.
	PieceIDs []uuid.UUID

	// SentAfter matches pieces created at or after the given time.
	SentAfter time.Time
}

// QueryOption narrows a QueryPieces call.
type QueryOption func(*Filter)

// WithConversation restricts to one conversation.
func WithConversation(conversationID string) QueryOption {
	return func(f *Filter) { f.ConversationID = conversationID }
}

// WithOrchestrator restricts to pieces owned by an orchestrator instance.
func WithOrchestrator(orchestratorID uuid.UUID) QueryOption {
	return func(f *Filter) { f.OrchestratorID = orchestratorID }
}

// WithRole restricts to pieces authored by the given role.
func WithRole(role prompt.Role) QueryOption {
	return func(f *Filter) { f.Role = role }
}

// WithDataType restricts on the converted value's data type.
func WithDataType(dt prompt.DataType) QueryOption {
	return func(f *Filter) { f.DataType = dt }
}

// WithLabel requires a label key to carry the given value.
func WithLabel(key, value string) QueryOption {
	return func(f *Filter) {
		if f.Labels == nil {
			f.Labels = make(map[string]string)
		}
		f.Labels[key] = value
	}
}

// WithPieceIDs restricts to the given piece ids.
func WithPieceIDs(ids ...uuid.UUID) QueryOption {
	return func(f *Filter) { f.PieceIDs = ids }
}

// WithSentAfter restricts to pieces created at or after t.
func WithSentAfter(t time.Time) QueryOption {
	return func(f *Filter) { f.SentAfter = t }
}

// NewFilter applies the options to an empty filter.
func NewFilter(opts ...QueryOption) Filter {
	var f Filter
	for _, opt := range opts {
		opt(&f)
	}
	return f
}
