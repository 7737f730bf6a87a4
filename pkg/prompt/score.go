package prompt

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ScoreType is the closed set of score value encodings.
type ScoreType string

const (
	// ScoreTypeTrueFalse holds a boolean literal in Value.
	ScoreTypeTrueFalse ScoreType = "true_false"

	// ScoreTypeFloatScale holds a normalized float in [0,1] in Value.
	ScoreTypeFloatScale ScoreType = "float_scale"
)

// Score is a judgment over a single piece, produced by a scorer after a
// judge round trip. Immutable once persisted.
type Score struct {
	// ID uniquely identifies the score.
	ID uuid.UUID `json:"id"`

	// PieceID references the scored piece.
	PieceID uuid.UUID `json:"piece_id"`

	// Value is the judgment encoded per Type.
	Value string `json:"value"`

	// ValueDescription is a human-readable gloss of the value.
	ValueDescription string `json:"value_description,omitempty"`

	// Type declares how Value is encoded.
	Type ScoreType `json:"type"`

	// Category is the rubric category the judgment falls under.
	Category string `json:"category,omitempty"`

	// Rationale is the judge's explanation.
	Rationale string `json:"rationale,omitempty"`

	// Metadata carries free-form scorer data.
	Metadata string `json:"metadata,omitempty"`

	// ScorerIdentifier records the scorer that produced the score.
	ScorerIdentifier Identifier `json:"scorer_identifier,omitzero"`

	// Timestamp is when the score was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewScore creates a score for the given piece and validates the value
// against the score type.
func NewScore(pieceID uuid.UUID, scoreType ScoreType, value string) (*Score, error) {
	s := &Score{
		ID:        uuid.New(),
		PieceID:   pieceID,
		Value:     value,
		Type:      scoreType,
		Timestamp: time.Now().UTC(),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks that Value parses according to Type. Float scores must
// fall in [0,1] after normalization.
func (s *Score) Validate() error {
	switch s.Type {
	case ScoreTypeTrueFalse:
		if _, err := strconv.ParseBool(s.Value); err != nil {
			return fmt.Errorf("true_false score value %q is not a boolean: %w", s.Value, err)
		}
	case ScoreTypeFloatScale:
		f, err := strconv.ParseFloat(s.Value, 64)
		if err != nil {
			return fmt.Errorf("float_scale score value %q is not a float: %w", s.Value, err)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("float_scale score value %v outside [0,1]", f)
		}
	default:
		return fmt.Errorf("unknown score type %q", s.Type)
	}

	return nil
}

// Bool returns the parsed boolean value of a true_false score.
func (s *Score) Bool() (bool, error) {
	if s.Type != ScoreTypeTrueFalse {
		return false, fmt.Errorf("score type is %q, not %q", s.Type, ScoreTypeTrueFalse)
	}
	return strconv.ParseBool(s.Value)
}

// Float returns the parsed float value of a float_scale score.
func (s *Score) Float() (float64, error) {
	if s.Type != ScoreTypeFloatScale {
		return 0, fmt.Errorf("score type is %q, not %q", s.Type, ScoreTypeFloatScale)
	}
	return strconv.ParseFloat(s.Value, 64)
}
