package prompt

import "errors"

var (
	// ErrEmptyGroup is returned when a group holds no pieces.
	ErrEmptyGroup = errors.New("prompt group has no pieces")

	// ErrMixedConversations is returned when a group spans conversation ids.
	ErrMixedConversations = errors.New("prompt group spans multiple conversations")
)

// Group is an ordered sequence of pieces forming one logical exchange,
// typically a user piece and the assistant piece answering it. Groups are
// transient; persistence happens piece by piece.
type Group struct {
	Pieces []*Piece `json:"pieces"`
}

// NewGroup creates a group from the given pieces.
func NewGroup(pieces ...*Piece) *Group {
	return &Group{Pieces: pieces}
}

// Validate checks that the group is non-empty and all pieces share one
// conversation id.
func (g *Group) Validate() error {
	if g == nil || len(g.Pieces) == 0 {
		return ErrEmptyGroup
	}

	conversationID := g.Pieces[0].ConversationID
	for _, p := range g.Pieces[1:] {
		if p.ConversationID != conversationID {
			return ErrMixedConversations
		}
	}

	return nil
}

// First returns the first piece, or nil for an empty group.
func (g *Group) First() *Piece {
	if g == nil || len(g.Pieces) == 0 {
		return nil
	}
	return g.Pieces[0]
}

// ConversationID returns the conversation id of the first piece.
func (g *Group) ConversationID() string {
	if p := g.First(); p != nil {
		return p.ConversationID
	}
	return ""
}
