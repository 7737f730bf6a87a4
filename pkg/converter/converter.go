// Package converter transforms prompt values before they reach a
// target: encoding tricks, LLM-assisted translation and paraphrasing,
// and text-to-image rendering. Converters compose into chains applied
// left to right by the normalizer.
package converter

import (
	"context"
	"errors"

	"github.com/probeworks/gauntlet/pkg/prompt"
)

// ErrUnsupportedInput is returned when a converter is handed a data
// type it cannot transform.
var ErrUnsupportedInput = errors.New("converter input type not supported")

// Result is the outcome of one conversion. One-to-one converters
// produce exactly one value; one-to-many converters produce one value
// per configured output.
type Result struct {
	Values   []string
	DataType prompt.DataType
}

// Value returns the primary converted value.
func (r Result) Value() string {
	if len(r.Values) == 0 {
		return ""
	}
	return r.Values[0]
}

// Converter transforms a prompt value into one or more new values.
type Converter interface {
	// Convert transforms value. The data type describes the input;
	// the result carries the output type.
	Convert(ctx context.Context, value string, dataType prompt.DataType) (Result, error)

	// InputSupported reports whether the converter accepts the data type.
	InputSupported(dataType prompt.DataType) bool

	// Identifier tags pieces with the converter that produced them.
	Identifier() prompt.Identifier

	// OneToOne reports whether the converter yields exactly one value
	// per input.
	OneToOne() bool
}
