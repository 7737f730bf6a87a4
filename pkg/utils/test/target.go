package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/memory/inmemory"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/target"
)

// MockChatTarget is a scripted chat target for tests. It persists
// exchanges through its memory driver the way real chat targets do and
// replies from a configurable script.
type MockChatTarget struct {
	Mem memory.Driver

	// Replies are returned in order; the last one repeats once the
	// script is exhausted. Defaults to a single "ok".
	Replies []string

	// FailOn causes Send to fail for a request whose converted value
	// matches.
	FailOn string

	// FailSend causes every Send to fail.
	FailSend bool

	mu sync.Mutex

	// SentValues accumulates the converted values passed to Send, in
	// arrival order.
	SentValues []string

	// SystemPrompts records system prompts by conversation id.
	SystemPrompts map[string]string

	id    prompt.Identifier
	calls int
}

var _ target.ChatTarget = (*MockChatTarget)(nil)

// NewMockChatTarget creates a mock backed by the given driver; nil gets
// a fresh in-memory driver.
func NewMockChatTarget(mem memory.Driver) *MockChatTarget {
	if mem == nil {
		mem = inmemory.NewDriver()
	}
	return &MockChatTarget{
		Mem:           mem,
		SystemPrompts: make(map[string]string),
		id:            prompt.NewIdentifier(prompt.KindTarget, "mock_chat", "utils/test"),
	}
}

func (m *MockChatTarget) Identifier() prompt.Identifier {
	return m.id
}

func (m *MockChatTarget) SetSystemPrompt(ctx context.Context, systemPrompt, conversationID string, labels map[string]string) error {
	m.mu.Lock()
	m.SystemPrompts[conversationID] = systemPrompt
	m.mu.Unlock()

	piece := prompt.NewPiece(prompt.RoleSystem, systemPrompt,
		prompt.WithConversationID(conversationID),
		prompt.WithLabels(labels),
		prompt.WithTargetIdentifier(m.id),
	)
	return m.Mem.AddPieces(ctx, piece)
}

func (m *MockChatTarget) Send(ctx context.Context, group *prompt.Group) (*prompt.Group, error) {
	if err := group.Validate(); err != nil {
		return nil, err
	}

	first := group.First()
	if m.FailSend || (m.FailOn != "" && first.ConvertedValue == m.FailOn) {
		return nil, fmt.Errorf("mock target failure for: %s", first.ConvertedValue)
	}

	history, err := m.Mem.PiecesByConversation(ctx, group.ConversationID())
	if err != nil {
		return nil, err
	}
	seq := target.NextSequence(history)
	for _, piece := range group.Pieces {
		piece.Sequence = seq
		piece.TargetIdentifier = m.id
	}
	if err := m.Mem.AddPieces(ctx, group.Pieces...); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.SentValues = append(m.SentValues, first.ConvertedValue)
	reply := "ok"
	if len(m.Replies) > 0 {
		idx := min(m.calls, len(m.Replies)-1)
		reply = m.Replies[idx]
	}
	m.calls++
	m.mu.Unlock()

	replyPiece := target.ResponsePiece(first, reply, prompt.DataTypeText, seq+1)
	if err := m.Mem.AddPieces(ctx, replyPiece); err != nil {
		return nil, err
	}
	return prompt.NewGroup(replyPiece), nil
}
