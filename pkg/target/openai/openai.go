// Package openai implements a chat target for OpenAI-compatible chat
// completion APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/probeworks/gauntlet/pkg/llm"
	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/target"
)

// Environment variables consulted when the corresponding Config fields
// are empty.
const (
	EnvAPIKey   = "OPENAI_API_KEY"
	EnvEndpoint = "OPENAI_ENDPOINT"
	EnvModel    = "OPENAI_MODEL"
)

const defaultEndpoint = "https://api.openai.com/v1"

// Generation defaults applied when the Config leaves them zero.
const (
	defaultMaxTokens        = 1024
	defaultTemperature      = 1.0
	defaultTopP             = 1.0
	defaultFrequencyPenalty = 0.5
	defaultPresencePenalty  = 0.5
)

// Completions time out at the HTTP client, not per call site.
const requestTimeout = 5 * time.Minute

// Config holds connection and generation settings. Endpoint, APIKey,
// and Model fall back to their environment variables when empty;
// generation parameters fall back to the package defaults when zero.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string

	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Target sends prompt request groups to a chat completions endpoint,
// rebuilding conversation history from memory on every call and
// persisting both sides of the exchange.
type Target struct {
	cfg    Config
	mem    memory.Driver
	client *http.Client
	id     prompt.Identifier
}

var _ target.ChatTarget = (*Target)(nil)

// New creates the target. The memory driver is required.
func New(cfg Config, mem memory.Driver) (*Target, error) {
	if mem == nil {
		return nil, fmt.Errorf("openai: %w", memory.ErrNotConfigured)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key required: set Config.APIKey or %s", EnvAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv(EnvModel)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model required: set Config.Model or %s", EnvModel)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv(EnvEndpoint)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.TopP == 0 {
		cfg.TopP = defaultTopP
	}
	if cfg.FrequencyPenalty == 0 {
		cfg.FrequencyPenalty = defaultFrequencyPenalty
	}
	if cfg.PresencePenalty == 0 {
		cfg.PresencePenalty = defaultPresencePenalty
	}

	return &Target{
		cfg:    cfg,
		mem:    mem,
		client: &http.Client{Timeout: requestTimeout},
		id:     prompt.NewIdentifier(prompt.KindTarget, "openai_chat", "target/openai"),
	}, nil
}

func (t *Target) Identifier() prompt.Identifier {
	return t.id
}

// SetSystemPrompt persists a system piece for the conversation so later
// sends include it in the rebuilt history.
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

// Send validates the group, persists it, dispatches the full
// conversation to the completions endpoint, and persists the assistant
// reply before returning it.
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

	resp, err := t.complete(ctx, target.ChatMessages(append(history, group.Pieces...)))
	if err != nil {
		return nil, err
	}

	reply := target.ResponsePiece(group.First(), resp.Message.GetText(), prompt.DataTypeText, seq+1)
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
		switch piece.ConvertedValueDataType {
		case prompt.DataTypeText, prompt.DataTypeImagePath:
		default:
			return fmt.Errorf("%w: %s", target.ErrUnsupportedDataType, piece.ConvertedValueDataType)
		}
	}
	return nil
}

func (t *Target) complete(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model:            t.cfg.Model,
		Messages:         wireMessages(messages),
		MaxTokens:        t.cfg.MaxTokens,
		Temperature:      t.cfg.Temperature,
		TopP:             t.cfg.TopP,
		FrequencyPenalty: t.cfg.FrequencyPenalty,
		PresencePenalty:  t.cfg.PresencePenalty,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat completion: %w", err)
	}

	url := strings.TrimSuffix(t.cfg.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)

	httpResp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat completion: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		var wireErr apiError
		if json.Unmarshal(payload, &wireErr) == nil && wireErr.Error.Message != "" {
			return nil, fmt.Errorf("chat completion: %s (status %d)", wireErr.Error.Message, httpResp.StatusCode)
		}
		return nil, fmt.Errorf("chat completion: status %d", httpResp.StatusCode)
	}

	var resp chatResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices returned")
	}

	choice := resp.Choices[0]
	var tokens *llm.Usage
	if resp.Usage != nil {
		tokens = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return &llm.ChatResponse{
		Model:      resp.Model,
		CreatedAt:  time.Unix(resp.Created, 0),
		Message:    llm.NewTextMessage(choice.Message.Role, choice.Message.Content),
		StopReason: choice.FinishReason,
		Usage:      tokens,
	}, nil
}

// wireMessages flattens provider-agnostic messages into the completions
// wire shape, keeping plain string content for text-only messages.
func wireMessages(messages []llm.Message) []chatMessage {
	wire := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Content) == 1 && msg.Content[0].Type == "text" {
			wire = append(wire, chatMessage{Role: msg.Role, Content: msg.Content[0].Text})
			continue
		}

		parts := make([]contentPart, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case "image":
				parts = append(parts, contentPart{
					Type:     "image_url",
					ImageURL: &imageURL{URL: block.ImageURL},
				})
			default:
				parts = append(parts, contentPart{Type: "text", Text: block.Text})
			}
		}
		wire = append(wire, chatMessage{Role: msg.Role, Content: parts})
	}
	return wire
}
