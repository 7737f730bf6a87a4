package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/probeworks/gauntlet/pkg/converter"
	"github.com/probeworks/gauntlet/pkg/prompt"
)

// Validation errors for pending requests.
var (
	// ErrEmptyRequestValue is returned when a request has no prompt value.
	ErrEmptyRequestValue = errors.New("request value required")

	// ErrNilConverter is returned when a converter chain contains a nil entry.
	ErrNilConverter = errors.New("nil converter in chain")
)

// Request is a pending unit of work: one prompt value, its data type,
// and the ordered converter chain to apply before dispatch. Requests
// are discarded once the corresponding response group is returned.
type Request struct {
	// Value is the original prompt value.
	Value string

	// DataType is how Value should be interpreted. Empty means text.
	DataType prompt.DataType

	// Converters apply left-to-right; converter i's output feeds i+1.
	Converters []converter.Converter

	// ConversationID continues an existing conversation when set.
	// Empty starts a fresh one.
	ConversationID string
}

// Validate checks required fields and that the chain's first converter
// accepts the request's data type. Converters validate their own input
// when applied, so mid-chain incompatibility surfaces at dispatch.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Value) == "" {
		return ErrEmptyRequestValue
	}

	dt := r.dataType()
	if !dt.Valid() {
		return fmt.Errorf("unknown data type %q", dt)
	}

	for _, c := range r.Converters {
		if c == nil {
			return ErrNilConverter
		}
	}

	if len(r.Converters) > 0 && !r.Converters[0].InputSupported(dt) {
		return fmt.Errorf("converter %s does not accept %s input", r.Converters[0].Identifier().Name, dt)
	}

	return nil
}

func (r Request) dataType() prompt.DataType {
	if r.DataType == "" {
		return prompt.DataTypeText
	}
	return r.DataType
}
