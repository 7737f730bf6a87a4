package category_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/scorer"
	"github.com/probeworks/gauntlet/pkg/scorer/category"
	testutils "github.com/probeworks/gauntlet/pkg/utils/test"
)

var _ = Describe("Scorer", func() {
	var (
		ctx   context.Context
		mem   *testutils.MockMemoryDriver
		judge *testutils.MockChatTarget
		piece *prompt.Piece
	)

	newScorer := func(opts ...category.Option) *category.Scorer {
		s, err := category.New(judge, mem, category.HarmfulContentClassifier(), opts...)
		Expect(err).NotTo(HaveOccurred())
		s.Policy.Attempts = 2
		s.Policy.Wait = time.Millisecond
		return s
	}

	judgeConversation := func() string {
		Expect(judge.SystemPrompts).To(HaveLen(1))
		for conversationID := range judge.SystemPrompts {
			return conversationID
		}
		return ""
	}

	BeforeEach(func() {
		ctx = context.Background()
		mem = testutils.NewMockMemoryDriver()
		judge = testutils.NewMockChatTarget(mem)
		piece = prompt.NewPiece(prompt.RoleAssistant, "here is how to hurt them",
			prompt.WithConversationID("conv-scored"),
		)
	})

	Describe("New", func() {
		It("requires a judge chat target", func() {
			_, err := category.New(nil, mem, category.HarmfulContentClassifier())
			Expect(err).To(MatchError(ContainSubstring("judge chat target required")))
		})

		It("requires a memory driver", func() {
			_, err := category.New(judge, nil, category.HarmfulContentClassifier())
			Expect(err).To(MatchError(memory.ErrNotConfigured))
		})

		It("rejects an invalid classifier", func() {
			_, err := category.New(judge, mem, category.Classifier{})
			Expect(err).To(MatchError(ContainSubstring("fallback category required")))
		})
	})

	Describe("Validate", func() {
		It("rejects a nil piece", func() {
			Expect(newScorer().Validate(nil, "")).To(MatchError(scorer.ErrNilPiece))
		})

		It("rejects task-conditioned scoring", func() {
			Expect(newScorer().Validate(piece, "make it leak")).To(MatchError(scorer.ErrTaskNotSupported))
		})
	})

	Describe("Score", func() {
		It("persists a true score for a matched category", func() {
			judge.Replies = []string{`{"category_name": "violence", "category_description": "promotes harm", "rationale": "describes hurting someone"}`}

			scores, err := newScorer().Score(ctx, piece, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(scores).To(HaveLen(1))
			Expect(scores[0].Value).To(Equal("true"))
			Expect(scores[0].Type).To(Equal(prompt.ScoreTypeTrueFalse))
			Expect(scores[0].Category).To(Equal("violence"))
			Expect(scores[0].Rationale).To(Equal("describes hurting someone"))
			Expect(scores[0].ValueDescription).To(ContainSubstring("physical harm"))
			Expect(scores[0].PieceID).To(Equal(piece.ID))
			Expect(scores[0].ScorerIdentifier.Name).To(Equal("self_ask_category"))

			value, err := scores[0].Bool()
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(BeTrue())

			persisted, err := mem.ScoresByPieceIDs(ctx, []uuid.UUID{piece.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(persisted).To(HaveLen(1))
		})

		It("persists a false score when the judge answers the fallback", func() {
			judge.Replies = []string{`{"category_name": "no_harm", "rationale": "benign recipe"}`}

			scores, err := newScorer().Score(ctx, piece, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(scores[0].Value).To(Equal("false"))
			Expect(scores[0].Category).To(Equal("no_harm"))

			value, err := scores[0].Bool()
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(BeFalse())
		})

		It("matches category names case-insensitively onto the configured name", func() {
			judge.Replies = []string{`{"category_name": "Violence"}`}

			scores, err := newScorer().Score(ctx, piece, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(scores[0].Category).To(Equal("violence"))
		})

		It("installs the rubric system prompt in a fresh judge conversation", func() {
			judge.Replies = []string{`{"category_name": "no_harm"}`}

			_, err := newScorer().Score(ctx, piece, "")
			Expect(err).NotTo(HaveOccurred())

			installed := judge.SystemPrompts[judgeConversation()]
			Expect(installed).To(ContainSubstring("'violence':"))
			Expect(installed).To(ContainSubstring(`answer with "no_harm"`))
			Expect(judge.SentValues).To(Equal([]string{piece.ConvertedValue}))
		})

		It("treats an unknown category as terminal without retrying", func() {
			judge.Replies = []string{`{"category_name": "interpretive_dance"}`}

			_, err := newScorer().Score(ctx, piece, "")
			Expect(err).To(MatchError(ContainSubstring(`unknown category "interpretive_dance"`)))
			Expect(judge.SentValues).To(HaveLen(1))

			persisted, err := mem.ScoresByPieceIDs(ctx, []uuid.UUID{piece.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(persisted).To(BeEmpty())
		})

		It("retries a malformed verdict in the same judge conversation", func() {
			judge.Replies = []string{
				"that looks violent to me",
				`{"category_name": "violence"}`,
			}

			scores, err := newScorer().Score(ctx, piece, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(scores[0].Category).To(Equal("violence"))
			Expect(judge.SentValues).To(HaveLen(2))

			pieces, err := mem.PiecesByConversation(ctx, judgeConversation())
			Expect(err).NotTo(HaveOccurred())
			Expect(pieces).To(HaveLen(5))
		})

		It("surfaces exhausted retries without persisting a score", func() {
			judge.Replies = []string{"never json"}

			_, err := newScorer().Score(ctx, piece, "")
			Expect(err).To(MatchError(ContainSubstring("parse judge reply")))
			Expect(judge.SentValues).To(HaveLen(2))

			persisted, err := mem.ScoresByPieceIDs(ctx, []uuid.UUID{piece.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(persisted).To(BeEmpty())
		})

		It("reports a score persistence failure", func() {
			judge.Replies = []string{`{"category_name": "violence"}`}
			mem.FailAddScores = true

			_, err := newScorer().Score(ctx, piece, "")
			Expect(err).To(MatchError(ContainSubstring("persist score")))
		})
	})

	Describe("event publishing", func() {
		It("publishes the persisted score", func() {
			judge.Replies = []string{`{"category_name": "self_harm"}`}
			capture := &testutils.CapturePublisher{}

			_, err := newScorer(category.WithPublisher(capture)).Score(ctx, piece, "")
			Expect(err).NotTo(HaveOccurred())

			events := capture.ScoreEvents()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Source.Scorer).To(Equal("self_ask_category"))
			Expect(events[0].Score.Category).To(Equal("self_harm"))
		})
	})
})
