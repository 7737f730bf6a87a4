package testutils

import (
	"context"
	"fmt"

	"github.com/probeworks/gauntlet/pkg/vector"
)

// MockVectorDriver is a scripted vector driver for tests.
type MockVectorDriver struct {
	// Results are returned from Query, truncated to topK.
	Results []vector.QueryResult

	// FailQuery causes Query to return an error.
	FailQuery bool

	// FailAdd causes Add to return an error.
	FailAdd bool

	// Documents accumulates everything passed to Add.
	Documents []vector.Document

	// Deleted accumulates ids passed to Delete.
	Deleted []string
}

var _ vector.Driver = (*MockVectorDriver)(nil)

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	if m.FailAdd {
		return fmt.Errorf("mock vector add failure")
	}
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	if m.FailQuery {
		return nil, fmt.Errorf("mock vector query failure")
	}
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	var docs []vector.Document
	for _, doc := range m.Documents {
		for _, id := range ids {
			if doc.ID == id {
				docs = append(docs, doc)
				break
			}
		}
	}
	return docs, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.Deleted = append(m.Deleted, ids...)
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
