// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"github.com/probeworks/gauntlet/pkg/embeddings"
	"github.com/probeworks/gauntlet/pkg/embeddings/ollama"
	"github.com/probeworks/gauntlet/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	Endpoint     string
	APIKey       string
	Model        string
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewEmbedder(ollama.Config{
			Endpoint: o.Endpoint,
			Model:    o.Model,
		})
	case "openai":
		return openai.NewEmbedder(openai.Config{
			Endpoint: o.Endpoint,
			APIKey:   o.APIKey,
			Model:    o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
