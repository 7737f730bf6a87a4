// Package memoryutils constructs memory drivers from provider names.
package memoryutils

import (
	"context"
	"fmt"

	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/memory/inmemory"
	"github.com/probeworks/gauntlet/pkg/memory/postgres"
	"github.com/probeworks/gauntlet/pkg/memory/sqlite"
)

type NewDriverOpts struct {
	ProviderType string

	// SQLitePath configures the sqlite provider.
	SQLitePath string

	// PostgresURL configures the postgres provider.
	PostgresURL string
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (memory.Driver, error) {
	switch o.ProviderType {
	case "sqlite":
		return sqlite.NewDriver(o.SQLitePath)
	case "postgres":
		return postgres.NewDriver(ctx, o.PostgresURL)
	case "inmemory":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported memory provider: %s", o.ProviderType)
	}
}
