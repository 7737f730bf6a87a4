package converter_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/converter"
	"github.com/probeworks/gauntlet/pkg/prompt"
)

var _ = Describe("Base64", func() {
	var c *converter.Base64

	BeforeEach(func() {
		c = converter.NewBase64()
	})

	It("encodes text", func() {
		result, err := c.Convert(context.Background(), "Hello", prompt.DataTypeText)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Value()).To(Equal("SGVsbG8="))
		Expect(result.DataType).To(Equal(prompt.DataTypeText))
	})

	It("rejects non-text input", func() {
		_, err := c.Convert(context.Background(), "/tmp/a.png", prompt.DataTypeImagePath)
		Expect(err).To(MatchError(converter.ErrUnsupportedInput))
	})

	It("is one to one", func() {
		Expect(c.OneToOne()).To(BeTrue())
		Expect(c.InputSupported(prompt.DataTypeText)).To(BeTrue())
		Expect(c.InputSupported(prompt.DataTypeURL)).To(BeFalse())
		Expect(c.Identifier().Name).To(Equal("base64"))
	})
})
