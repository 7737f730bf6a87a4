// Package prompt defines the conversation data model shared by targets,
// converters, scorers, and memory: pieces, piece groups, scores, and the
// component identifiers attached to them.
package prompt

import (
	"time"

	"github.com/google/uuid"
)

// Role indicates who authored a piece.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the known conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Piece is one atomic unit of conversation: a single message as it was
// originally authored and as it was actually sent after conversion.
// A piece is immutable once persisted; scores reference it by id.
type Piece struct {
	// ID uniquely identifies the piece.
	ID uuid.UUID `json:"id"`

	// Role is the author of the piece ("system", "user", "assistant").
	Role Role `json:"role"`

	// ConversationID groups pieces into a conversation.
	ConversationID string `json:"conversation_id"`

	// Sequence orders the piece within its conversation.
	Sequence int `json:"sequence"`

	// OriginalValue is the value before any converters ran.
	OriginalValue         string   `json:"original_value"`
	OriginalValueDataType DataType `json:"original_value_data_type"`
	OriginalValueSHA256   string   `json:"original_value_sha256,omitempty"`

	// ConvertedValue is the value actually dispatched to the target.
	// Equals OriginalValue when no converter ran.
	ConvertedValue         string   `json:"converted_value"`
	ConvertedValueDataType DataType `json:"converted_value_data_type"`
	ConvertedValueSHA256   string   `json:"converted_value_sha256,omitempty"`

	// Labels carries free-form key/value tags used for filtering.
	Labels map[string]string `json:"labels,omitempty"`

	// ConverterIdentifiers records the converter chain applied, in order.
	ConverterIdentifiers []Identifier `json:"converter_identifiers,omitempty"`

	// TargetIdentifier records the target that produced or consumed the piece.
	TargetIdentifier Identifier `json:"target_identifier,omitzero"`

	// OrchestratorIdentifier records the orchestrator that owns the piece.
	OrchestratorIdentifier Identifier `json:"orchestrator_identifier,omitzero"`

	// Timestamp is when the piece was created.
	Timestamp time.Time `json:"timestamp"`
}

// PieceOption customizes a piece at construction.
type PieceOption func(*Piece)

// WithConversationID places the piece in an existing conversation.
func WithConversationID(id string) PieceOption {
	return func(p *Piece) { p.ConversationID = id }
}

// WithSequence sets the piece's position within its conversation.
func WithSequence(seq int) PieceOption {
	return func(p *Piece) { p.Sequence = seq }
}

// WithDataType sets both the original and converted data types.
func WithDataType(dt DataType) PieceOption {
	return func(p *Piece) {
		p.OriginalValueDataType = dt
		p.ConvertedValueDataType = dt
	}
}

// WithConvertedValue records the post-conversion value and its type.
func WithConvertedValue(value string, dt DataType) PieceOption {
	return func(p *Piece) {
		p.ConvertedValue = value
		p.ConvertedValueDataType = dt
	}
}

// WithLabels attaches filtering labels to the piece.
func WithLabels(labels map[string]string) PieceOption {
	return func(p *Piece) {
		if len(labels) == 0 {
			return
		}
		p.Labels = make(map[string]string, len(labels))
		for k, v := range labels {
			p.Labels[k] = v
		}
	}
}

// WithConverterIdentifiers records the converter chain applied to the piece.
func WithConverterIdentifiers(ids ...Identifier) PieceOption {
	return func(p *Piece) { p.ConverterIdentifiers = ids }
}

// WithTargetIdentifier records the target the piece was sent to or came from.
func WithTargetIdentifier(id Identifier) PieceOption {
	return func(p *Piece) { p.TargetIdentifier = id }
}

// WithOrchestratorIdentifier records the owning orchestrator.
func WithOrchestratorIdentifier(id Identifier) PieceOption {
	return func(p *Piece) { p.OrchestratorIdentifier = id }
}

// NewPiece creates a piece for the given role and original value.
// Defaults: fresh id, fresh conversation id, sequence 0, text data type,
// converted value equal to the original, UTC creation timestamp.
func NewPiece(role Role, originalValue string, opts ...PieceOption) *Piece {
	p := &Piece{
		ID:                     uuid.New(),
		Role:                   role,
		OriginalValue:          originalValue,
		OriginalValueDataType:  DataTypeText,
		ConvertedValueDataType: DataTypeText,
		Timestamp:              time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.ConversationID == "" {
		p.ConversationID = uuid.NewString()
	}
	if p.ConvertedValue == "" && p.ConvertedValueDataType != DataTypeError {
		p.ConvertedValue = p.OriginalValue
	}

	return p
}

// EnsureHashes computes the content digests for the original and converted
// values if they have not been set. Digests are stable for identical bytes,
// so exact-duplicate content can be detected without reversing the hash.
func (p *Piece) EnsureHashes() {
	if p.OriginalValueSHA256 == "" {
		p.OriginalValueSHA256 = Digest(p.OriginalValue)
	}
	if p.ConvertedValueSHA256 == "" {
		p.ConvertedValueSHA256 = Digest(p.ConvertedValue)
	}
}
