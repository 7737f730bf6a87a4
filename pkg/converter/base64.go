package converter

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/probeworks/gauntlet/pkg/prompt"
)

// Base64 encodes text prompts as standard base64, a cheap way to probe
// whether a target decodes obfuscated instructions.
type Base64 struct {
	id prompt.Identifier
}

var _ Converter = (*Base64)(nil)

// NewBase64 creates the converter.
func NewBase64() *Base64 {
	return &Base64{id: prompt.NewIdentifier(prompt.KindConverter, "base64", "converter")}
}

func (c *Base64) Convert(_ context.Context, value string, dataType prompt.DataType) (Result, error) {
	if !c.InputSupported(dataType) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedInput, dataType)
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(value))
	return Result{Values: []string{encoded}, DataType: prompt.DataTypeText}, nil
}

func (c *Base64) InputSupported(dataType prompt.DataType) bool {
	return dataType == prompt.DataTypeText
}

func (c *Base64) Identifier() prompt.Identifier {
	return c.id
}

func (c *Base64) OneToOne() bool {
	return true
}
