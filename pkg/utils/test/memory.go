package testutils

import (
	"context"
	"fmt"

	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/memory/inmemory"
	"github.com/probeworks/gauntlet/pkg/prompt"
)

// MockMemoryDriver wraps the in-memory driver with failure injection
// for exercising persistence error paths.
type MockMemoryDriver struct {
	*inmemory.Driver

	// FailAddPieces causes AddPieces to return an error.
	FailAddPieces bool

	// FailAddScores causes AddScores to return an error.
	FailAddScores bool
}

var _ memory.Driver = (*MockMemoryDriver)(nil)

// NewMockMemoryDriver creates a new mock memory driver.
func NewMockMemoryDriver() *MockMemoryDriver {
	return &MockMemoryDriver{Driver: inmemory.NewDriver()}
}

func (m *MockMemoryDriver) AddPieces(ctx context.Context, pieces ...*prompt.Piece) error {
	if m.FailAddPieces {
		return fmt.Errorf("mock piece persistence failure")
	}
	return m.Driver.AddPieces(ctx, pieces...)
}

func (m *MockMemoryDriver) AddScores(ctx context.Context, scores ...*prompt.Score) error {
	if m.FailAddScores {
		return fmt.Errorf("mock score persistence failure")
	}
	return m.Driver.AddScores(ctx, scores...)
}
