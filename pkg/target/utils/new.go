// Package targetutils constructs chat targets from provider names.
package targetutils

import (
	"context"
	"fmt"

	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/target"
	"github.com/probeworks/gauntlet/pkg/target/gemini"
	"github.com/probeworks/gauntlet/pkg/target/openai"
)

type NewChatTargetOpts struct {
	ProviderType string

	// Endpoint, APIKey, and Model fall back to the provider's
	// environment variables when empty.
	Endpoint string
	APIKey   string
	Model    string

	// Memory is required by every provider.
	Memory memory.Driver
}

func NewChatTarget(ctx context.Context, o *NewChatTargetOpts) (target.ChatTarget, error) {
	switch o.ProviderType {
	case "openai":
		return openai.New(openai.Config{
			Endpoint: o.Endpoint,
			APIKey:   o.APIKey,
			Model:    o.Model,
		}, o.Memory)
	case "gemini":
		return gemini.New(ctx, gemini.Config{
			APIKey: o.APIKey,
			Model:  o.Model,
		}, o.Memory)
	default:
		return nil, fmt.Errorf("unsupported target provider: %s", o.ProviderType)
	}
}
