// Package target defines the capability of accepting a prompt request
// group and producing a response group, shared by chat, storage, and
// console targets.
package target

import (
	"context"
	"errors"

	"github.com/probeworks/gauntlet/pkg/llm"
	"github.com/probeworks/gauntlet/pkg/prompt"
)

// Validation errors shared by target implementations.
var (
	// ErrTooManyPieces is returned by single-piece targets handed a
	// multi-piece request group.
	ErrTooManyPieces = errors.New("this target only supports a single prompt request piece")

	// ErrUnsupportedDataType is returned when a request piece carries a
	// data type the target cannot accept.
	ErrUnsupportedDataType = errors.New("unsupported prompt input data type")

	// ErrSingleTurnOnly is returned by single-turn targets when the
	// conversation id already has persisted history.
	ErrSingleTurnOnly = errors.New("this target only supports a single turn conversation")
)

// Target accepts a prompt request group and produces a response group.
// Implementations persist the exchange through their memory driver; a
// nil response group with a nil error means the target produced no
// reply.
type Target interface {
	Send(ctx context.Context, group *prompt.Group) (*prompt.Group, error)
	Identifier() prompt.Identifier
}

// ChatTarget is a Target that holds multi-turn conversation state keyed
// by conversation id and accepts a system prompt for it.
type ChatTarget interface {
	Target
	SetSystemPrompt(ctx context.Context, systemPrompt, conversationID string, labels map[string]string) error
}

// SendText wraps a bare text prompt in a single-piece request group and
// sends it to the target. An empty conversation id starts a fresh
// conversation.
func SendText(ctx context.Context, t Target, text, conversationID string, labels map[string]string) (*prompt.Group, error) {
	piece := prompt.NewPiece(prompt.RoleUser, text,
		prompt.WithConversationID(conversationID),
		prompt.WithLabels(labels),
		prompt.WithTargetIdentifier(t.Identifier()),
	)
	return t.Send(ctx, prompt.NewGroup(piece))
}

// ChatMessages converts persisted conversation pieces into the
// provider-agnostic chat shape. Pieces sharing a sequence and role
// collapse into one multimodal message; converted values are used
// throughout.
func ChatMessages(pieces []*prompt.Piece) []llm.Message {
	var messages []llm.Message
	lastSeq := -1
	for _, p := range pieces {
		block := contentBlock(p)
		if n := len(messages); n > 0 && p.Sequence == lastSeq && string(p.Role) == messages[n-1].Role {
			messages[n-1].Content = append(messages[n-1].Content, block)
			continue
		}
		messages = append(messages, llm.Message{
			Role:    string(p.Role),
			Content: []llm.ContentBlock{block},
		})
		lastSeq = p.Sequence
	}
	return messages
}

func contentBlock(p *prompt.Piece) llm.ContentBlock {
	switch p.ConvertedValueDataType {
	case prompt.DataTypeImagePath:
		return llm.ContentBlock{Type: "image", ImageURL: p.ConvertedValue}
	default:
		return llm.ContentBlock{Type: "text", Text: p.ConvertedValue}
	}
}

// NextSequence returns the sequence number for the next turn appended
// to the given conversation history.
func NextSequence(pieces []*prompt.Piece) int {
	if len(pieces) == 0 {
		return 0
	}
	return pieces[len(pieces)-1].Sequence + 1
}

// ResponsePiece builds the reply piece for a request piece, inheriting
// its conversation, labels, and identifiers.
func ResponsePiece(request *prompt.Piece, value string, dt prompt.DataType, seq int) *prompt.Piece {
	return prompt.NewPiece(prompt.RoleAssistant, value,
		prompt.WithConversationID(request.ConversationID),
		prompt.WithSequence(seq),
		prompt.WithDataType(dt),
		prompt.WithLabels(request.Labels),
		prompt.WithTargetIdentifier(request.TargetIdentifier),
		prompt.WithOrchestratorIdentifier(request.OrchestratorIdentifier),
	)
}
