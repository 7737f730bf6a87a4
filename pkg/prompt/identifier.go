package prompt

import "github.com/google/uuid"

// Kind is the closed set of component kinds that stamp identifiers onto
// pieces and scores. Identifiers exist for filtering and grouping in
// memory queries, not for dispatch.
type Kind string

const (
	KindOrchestrator Kind = "orchestrator"
	KindTarget       Kind = "target"
	KindConverter    Kind = "converter"
	KindScorer       Kind = "scorer"
)

// Identifier tags a piece or score with the component that produced it.
type Identifier struct {
	// Kind is the component kind.
	Kind Kind `json:"kind"`

	// Name is the concrete component name (e.g. "openai_chat_target").
	Name string `json:"name"`

	// Module is the package the component lives in.
	Module string `json:"module,omitempty"`

	// ID distinguishes instances of the same component.
	ID uuid.UUID `json:"id"`
}

// NewIdentifier creates an identifier for a component instance.
func NewIdentifier(kind Kind, name, module string) Identifier {
	return Identifier{
		Kind:   kind,
		Name:   name,
		Module: module,
		ID:     uuid.New(),
	}
}

// IsZero reports whether the identifier is unset.
func (i Identifier) IsZero() bool {
	return i.Kind == "" && i.Name == "" && i.Module == "" && i.ID == uuid.Nil
}
