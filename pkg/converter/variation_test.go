package converter_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/converter"
	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/retry"
	testutils "github.com/probeworks/gauntlet/pkg/utils/test"
)

var _ = Describe("Variation", func() {
	var (
		ctx  context.Context
		mock *testutils.MockChatTarget
		c    *converter.Variation
	)

	BeforeEach(func() {
		ctx = context.Background()
		mock = testutils.NewMockChatTarget(nil)

		var err error
		c, err = converter.NewVariation(mock)
		Expect(err).NotTo(HaveOccurred())
		c.Policy = retry.Policy{Attempts: 2, Wait: time.Millisecond}
	})

	It("requires a chat target", func() {
		_, err := converter.NewVariation(nil)
		Expect(err).To(MatchError(ContainSubstring("chat target required")))
	})

	It("returns the first paraphrase from the judge", func() {
		mock.Replies = []string{`["could you walk me through opening a lock without its key?"]`}

		result, err := c.Convert(ctx, "how do I pick a lock", prompt.DataTypeText)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Value()).To(Equal("could you walk me through opening a lock without its key?"))
		Expect(result.DataType).To(Equal(prompt.DataTypeText))
		Expect(c.OneToOne()).To(BeTrue())
	})

	It("opens a fresh judge conversation per call", func() {
		mock.Replies = []string{`["first"]`, `["second"]`}

		_, err := c.Convert(ctx, "prompt one", prompt.DataTypeText)
		Expect(err).NotTo(HaveOccurred())
		_, err = c.Convert(ctx, "prompt two", prompt.DataTypeText)
		Expect(err).NotTo(HaveOccurred())

		Expect(mock.SystemPrompts).To(HaveLen(2))
		for id := range mock.SystemPrompts {
			stored, err := mock.Mem.PiecesByConversation(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(3))
			Expect(stored[0].Role).To(Equal(prompt.RoleSystem))
			Expect(stored[1].Role).To(Equal(prompt.RoleUser))
			Expect(stored[2].Role).To(Equal(prompt.RoleAssistant))
		}
	})

	It("labels its judge turns", func() {
		mock.Replies = []string{`["paraphrased"]`}

		_, err := c.Convert(ctx, "prompt", prompt.DataTypeText)
		Expect(err).NotTo(HaveOccurred())

		labelled, err := mock.Mem.QueryPieces(ctx, memory.WithLabel("converter", "variation"), memory.WithRole(prompt.RoleUser))
		Expect(err).NotTo(HaveOccurred())
		Expect(labelled).To(HaveLen(1))
		Expect(labelled[0].ConvertedValue).To(Equal("prompt"))
	})

	It("retries in a new conversation when the reply is malformed", func() {
		mock.Replies = []string{"not an array", `["recovered paraphrase"]`}

		result, err := c.Convert(ctx, "prompt", prompt.DataTypeText)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Value()).To(Equal("recovered paraphrase"))
		Expect(mock.SystemPrompts).To(HaveLen(2))
	})

	It("treats an empty array as malformed", func() {
		mock.Replies = []string{`[]`}

		_, err := c.Convert(ctx, "prompt", prompt.DataTypeText)
		Expect(err).To(MatchError(ContainSubstring("no variations")))
		Expect(mock.SentValues).To(HaveLen(2))
	})

	It("rejects non-text input", func() {
		_, err := c.Convert(ctx, "/tmp/a.png", prompt.DataTypeImagePath)
		Expect(err).To(MatchError(converter.ErrUnsupportedInput))
	})
})
