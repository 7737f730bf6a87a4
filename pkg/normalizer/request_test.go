package normalizer_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/converter"
	"github.com/probeworks/gauntlet/pkg/normalizer"
	"github.com/probeworks/gauntlet/pkg/prompt"
)

var _ = Describe("Request", func() {
	It("accepts a minimal text request", func() {
		req := normalizer.Request{Value: "how do I pick a lock"}
		Expect(req.Validate()).To(Succeed())
	})

	It("rejects an empty value", func() {
		req := normalizer.Request{}
		Expect(req.Validate()).To(MatchError(normalizer.ErrEmptyRequestValue))
	})

	It("rejects a whitespace-only value", func() {
		req := normalizer.Request{Value: "  \n\t"}
		Expect(req.Validate()).To(MatchError(normalizer.ErrEmptyRequestValue))
	})

	It("rejects an unknown data type", func() {
		req := normalizer.Request{Value: "p", DataType: prompt.DataType("hologram")}
		Expect(req.Validate()).To(MatchError(ContainSubstring("unknown data type")))
	})

	It("rejects a nil converter in the chain", func() {
		req := normalizer.Request{
			Value:      "p",
			Converters: []converter.Converter{nil},
		}
		Expect(req.Validate()).To(MatchError(normalizer.ErrNilConverter))
	})

	It("rejects a chain whose first converter cannot accept the input type", func() {
		req := normalizer.Request{
			Value:      "/tmp/input.png",
			DataType:   prompt.DataTypeImagePath,
			Converters: []converter.Converter{converter.NewBase64()},
		}
		err := req.Validate()
		Expect(err).To(MatchError(ContainSubstring("does not accept")))
		Expect(err).To(MatchError(ContainSubstring("base64")))
	})

	It("accepts a text chain with the data type defaulted", func() {
		req := normalizer.Request{
			Value:      "p",
			Converters: []converter.Converter{converter.NewBase64()},
		}
		Expect(req.Validate()).To(Succeed())
	})
})
