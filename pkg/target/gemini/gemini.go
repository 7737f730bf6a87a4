// Package gemini implements a chat target backed by the Gemini API via
// the official genai client.
package gemini

import (
	"context"
	"fmt"
	"os"

	genai "google.golang.org/genai"

	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/target"
)

// EnvAPIKey is consulted when Config.APIKey is empty.
const EnvAPIKey = "GEMINI_API_KEY"

const defaultModel = "gemini-2.5-flash"

// Config holds connection and generation settings for the target.
type Config struct {
	APIKey string
	Model  string

	// MaxTokens caps the completion length when > 0.
	MaxTokens int32

	// Temperature is applied when non-nil; the provider default is used
	// otherwise.
	Temperature *float32
}

// Target sends prompt request groups to the Gemini API, rebuilding
// conversation history from memory on every call and persisting both
// sides of the exchange.
type Target struct {
	cli *genai.Client
	cfg Config
	mem memory.Driver
	id  prompt.Identifier
}

var _ target.ChatTarget = (*Target)(nil)

// New creates the target. The memory driver is required.
func New(ctx context.Context, cfg Config, mem memory.Driver) (*Target, error) {
	if mem == nil {
		return nil, fmt.Errorf("gemini: %w", memory.ErrNotConfigured)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key required: set Config.APIKey or %s", EnvAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}

	return &Target{
		cli: cli,
		cfg: cfg,
		mem: mem,
		id:  prompt.NewIdentifier(prompt.KindTarget, "gemini_chat", "target/gemini"),
	}, nil
}

func (t *Target) Identifier() prompt.Identifier {
	return t.id
}

// SetSystemPrompt persists a system piece for the conversation. The
// most recent system piece becomes the system instruction on later
// sends.
func (t *Target) SetSystemPrompt(ctx context.Context, systemPrompt, conversationID string, labels map[string]string) error {
	piece := prompt.NewPiece(prompt.RoleSystem, systemPrompt,
		prompt.WithConversationID(conversationID),
		prompt.WithLabels(labels),
		prompt.WithTargetIdentifier(t.id),
	)
	if err := t.mem.AddPieces(ctx, piece); err != nil {
		return fmt.Errorf("persist system prompt: %w", err)
	}
	return nil
}

// Send validates the group, persists it, dispatches the conversation to
// the Gemini API, and persists the model reply before returning it.
func (t *Target) Send(ctx context.Context, group *prompt.Group) (*prompt.Group, error) {
	if err := t.validate(group); err != nil {
		return nil, err
	}

	conversationID := group.ConversationID()
	history, err := t.mem.PiecesByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	seq := target.NextSequence(history)
	for _, piece := range group.Pieces {
		piece.Sequence = seq
		piece.TargetIdentifier = t.id
	}
	if err := t.mem.AddPieces(ctx, group.Pieces...); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}

	contents, system := chatContents(append(history, group.Pieces...))
	text, err := t.complete(ctx, contents, system)
	if err != nil {
		return nil, err
	}

	reply := target.ResponsePiece(group.First(), text, prompt.DataTypeText, seq+1)
	if err := t.mem.AddPieces(ctx, reply); err != nil {
		return nil, fmt.Errorf("persist response: %w", err)
	}

	return prompt.NewGroup(reply), nil
}

func (t *Target) validate(group *prompt.Group) error {
	if err := group.Validate(); err != nil {
		return err
	}
	for _, piece := range group.Pieces {
		if piece.ConvertedValueDataType != prompt.DataTypeText {
			return fmt.Errorf("%w: %s", target.ErrUnsupportedDataType, piece.ConvertedValueDataType)
		}
	}
	return nil
}

func (t *Target) complete(ctx context.Context, contents []*genai.Content, system string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if t.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = t.cfg.MaxTokens
	}
	if t.cfg.Temperature != nil {
		config.Temperature = t.cfg.Temperature
	}

	resp, err := t.cli.Models.GenerateContent(ctx, t.cfg.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate content: empty completion")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// chatContents maps conversation pieces to the genai wire shape. System
// pieces are pulled out into the system instruction (latest wins);
// assistant pieces take the provider's "model" role.
func chatContents(pieces []*prompt.Piece) ([]*genai.Content, string) {
	var system string
	contents := make([]*genai.Content, 0, len(pieces))
	for _, p := range pieces {
		if p.Role == prompt.RoleSystem {
			system = p.ConvertedValue
			continue
		}
		role := "user"
		if p.Role == prompt.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: p.ConvertedValue}},
		})
	}
	return contents, system
}
