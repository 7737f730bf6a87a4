package converter_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/converter"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/retry"
	testutils "github.com/probeworks/gauntlet/pkg/utils/test"
)

var _ = Describe("Translation", func() {
	var (
		ctx  context.Context
		mock *testutils.MockChatTarget
	)

	BeforeEach(func() {
		ctx = context.Background()
		mock = testutils.NewMockChatTarget(nil)
	})

	judgeConversation := func() string {
		for id := range mock.SystemPrompts {
			return id
		}
		return ""
	}

	newTranslation := func(languages ...string) *converter.Translation {
		c, err := converter.NewTranslation(ctx, mock, languages)
		Expect(err).NotTo(HaveOccurred())
		c.Policy = retry.Policy{Attempts: 2, Wait: time.Millisecond}
		return c
	}

	Describe("NewTranslation", func() {
		It("requires a chat target", func() {
			_, err := converter.NewTranslation(ctx, nil, []string{"French"})
			Expect(err).To(MatchError(ContainSubstring("chat target required")))
		})

		It("requires at least one language", func() {
			_, err := converter.NewTranslation(ctx, mock, nil)
			Expect(err).To(MatchError(ContainSubstring("at least one language")))
		})

		It("rejects languages containing commas", func() {
			_, err := converter.NewTranslation(ctx, mock, []string{"French, German"})
			Expect(err).To(MatchError(ContainSubstring("comma-free")))
		})

		It("rejects empty languages", func() {
			_, err := converter.NewTranslation(ctx, mock, []string{"French", ""})
			Expect(err).To(MatchError(ContainSubstring("invalid language")))
		})

		It("installs the rubric on a single judge conversation", func() {
			newTranslation("French", "German")

			Expect(mock.SystemPrompts).To(HaveLen(1))
			Expect(mock.SystemPrompts[judgeConversation()]).To(ContainSubstring("French, German"))

			stored, err := mock.Mem.PiecesByConversation(ctx, judgeConversation())
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(1))
			Expect(stored[0].Role).To(Equal(prompt.RoleSystem))
		})
	})

	Describe("Convert", func() {
		It("returns translations in configured language order", func() {
			c := newTranslation("French", "German")
			mock.Replies = []string{`{"output": {"German": "hallo welt", "French": "bonjour le monde"}}`}

			result, err := c.Convert(ctx, "hello world", prompt.DataTypeText)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Values).To(Equal([]string{"bonjour le monde", "hallo welt"}))
			Expect(result.DataType).To(Equal(prompt.DataTypeText))
		})

		It("matches language keys case-insensitively", func() {
			c := newTranslation("French")
			mock.Replies = []string{`{"output": {"french": "bonjour"}}`}

			result, err := c.Convert(ctx, "hello", prompt.DataTypeText)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Value()).To(Equal("bonjour"))
		})

		It("grows one judge conversation across calls", func() {
			c := newTranslation("French")
			mock.Replies = []string{`{"output": {"French": "bonjour"}}`}

			_, err := c.Convert(ctx, "hello", prompt.DataTypeText)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Convert(ctx, "goodbye", prompt.DataTypeText)
			Expect(err).NotTo(HaveOccurred())

			stored, err := mock.Mem.PiecesByConversation(ctx, judgeConversation())
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(5))
			Expect(mock.SystemPrompts).To(HaveLen(1))
		})

		It("retries once when the reply is not JSON", func() {
			c := newTranslation("French")
			mock.Replies = []string{"je ne parle pas JSON", `{"output": {"French": "bonjour"}}`}

			result, err := c.Convert(ctx, "hello", prompt.DataTypeText)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Value()).To(Equal("bonjour"))
			Expect(mock.SentValues).To(HaveLen(2))
		})

		It("gives up after the retry budget", func() {
			c := newTranslation("French")
			mock.Replies = []string{"still not JSON"}

			_, err := c.Convert(ctx, "hello", prompt.DataTypeText)
			Expect(err).To(MatchError(ContainSubstring("parse judge reply")))
			Expect(mock.SentValues).To(HaveLen(2))
		})

		It("treats a missing language as a malformed reply", func() {
			c := newTranslation("French", "German")
			mock.Replies = []string{`{"output": {"French": "bonjour"}}`}

			_, err := c.Convert(ctx, "hello", prompt.DataTypeText)
			Expect(err).To(MatchError(ContainSubstring(`missing translation for "German"`)))
		})

		It("surfaces judge send failures", func() {
			c := newTranslation("French")
			mock.FailSend = true

			_, err := c.Convert(ctx, "hello", prompt.DataTypeText)
			Expect(err).To(MatchError(ContainSubstring("send to judge")))
		})

		It("rejects non-text input", func() {
			c := newTranslation("French")

			_, err := c.Convert(ctx, "/tmp/a.png", prompt.DataTypeImagePath)
			Expect(err).To(MatchError(converter.ErrUnsupportedInput))
		})
	})

	Describe("OneToOne", func() {
		It("is true only for a single language", func() {
			Expect(newTranslation("French").OneToOne()).To(BeTrue())

			mock = testutils.NewMockChatTarget(nil)
			Expect(newTranslation("French", "German").OneToOne()).To(BeFalse())
		})
	})
})
