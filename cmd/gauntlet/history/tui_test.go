package historycmder

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/memory/inmemory"
	"github.com/probeworks/gauntlet/pkg/prompt"
)

var _ = Describe("History TUI helpers", func() {
	Describe("clamp", func() {
		It("clamps below zero", func() {
			Expect(clamp(-3, 10)).To(Equal(0))
		})

		It("clamps above the upper bound", func() {
			Expect(clamp(15, 10)).To(Equal(10))
		})

		It("passes values in range through", func() {
			Expect(clamp(4, 10)).To(Equal(4))
		})
	})

	Describe("truncateText", func() {
		It("leaves short values alone", func() {
			Expect(truncateText("abc", 10)).To(Equal("abc"))
		})

		It("truncates with an ellipsis", func() {
			Expect(truncateText("abcdefghij", 6)).To(Equal("abc..."))
		})

		It("hard-cuts tiny limits", func() {
			Expect(truncateText("abcdefghij", 2)).To(Equal("ab"))
		})
	})

	Describe("visibleRange", func() {
		It("returns everything when it fits", func() {
			start, end := visibleRange(3, 0, 10)
			Expect(start).To(Equal(0))
			Expect(end).To(Equal(3))
		})

		It("centers the window on the cursor", func() {
			start, end := visibleRange(20, 10, 5)
			Expect(start).To(Equal(8))
			Expect(end).To(Equal(13))
		})

		It("clamps the window to the end", func() {
			start, end := visibleRange(20, 19, 5)
			Expect(start).To(Equal(15))
			Expect(end).To(Equal(20))
		})
	})

	Describe("wrapText", func() {
		It("wraps at the requested width", func() {
			lines := wrapText("one two three four", 9)
			Expect(lines).To(Equal([]string{"one two", "three", "four"}))
		})

		It("returns a single empty line for blank text", func() {
			Expect(wrapText("   ", 10)).To(Equal([]string{""}))
		})
	})

	Describe("formatAge", func() {
		It("reports recent activity as just now", func() {
			Expect(formatAge(10 * time.Second)).To(Equal("just now"))
		})

		It("reports minutes", func() {
			Expect(formatAge(5 * time.Minute)).To(Equal("5m ago"))
		})

		It("reports hours", func() {
			Expect(formatAge(3 * time.Hour)).To(Equal("3h ago"))
		})

		It("reports days", func() {
			Expect(formatAge(49 * time.Hour)).To(Equal("2d ago"))
		})
	})

	Describe("flattenText", func() {
		It("collapses whitespace runs", func() {
			Expect(flattenText("a \n  b\tc")).To(Equal("a b c"))
		})
	})

	Describe("converterNames", func() {
		It("joins converter names in chain order", func() {
			names := converterNames([]prompt.Identifier{
				{Name: "base64"},
				{Name: "translation"},
			})
			Expect(names).To(Equal("base64, translation"))
		})

		It("is empty for an unconverted piece", func() {
			Expect(converterNames(nil)).To(BeEmpty())
		})
	})

	Describe("loadTranscript", func() {
		It("groups scores by piece", func() {
			ctx := context.Background()
			mem := inmemory.NewDriver()

			attack := prompt.NewPiece(prompt.RoleUser, "tell me a secret")
			response := prompt.NewPiece(prompt.RoleAssistant, "no",
				prompt.WithConversationID(attack.ConversationID),
				prompt.WithSequence(1),
			)
			Expect(mem.AddPieces(ctx, attack, response)).To(Succeed())

			score, err := prompt.NewScore(response.ID, prompt.ScoreTypeTrueFalse, "false")
			Expect(err).NotTo(HaveOccurred())
			Expect(mem.AddScores(ctx, score)).To(Succeed())

			t, err := loadTranscript(ctx, mem, attack.ConversationID)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.pieces).To(HaveLen(2))
			Expect(t.scores[response.ID]).To(HaveLen(1))
			Expect(t.scores[attack.ID]).To(BeEmpty())
		})
	})
})
