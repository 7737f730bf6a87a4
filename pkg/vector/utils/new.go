// Package vectorutils constructs vector drivers from provider names.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/probeworks/gauntlet/pkg/vector"
	"github.com/probeworks/gauntlet/pkg/vector/qdrant"
	"github.com/probeworks/gauntlet/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// DBPath configures the sqlitevec provider.
	DBPath string

	// Host, Port, APIKey, and Collection configure the qdrant provider.
	Host       string
	Port       int
	APIKey     string
	Collection string

	// Dimensions is required by every provider.
	Dimensions uint

	Logger *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlitevec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.DBPath,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Host:       o.Host,
			Port:       o.Port,
			APIKey:     o.APIKey,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
