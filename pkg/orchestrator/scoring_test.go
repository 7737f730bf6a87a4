package orchestrator_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/memory/inmemory"
	"github.com/probeworks/gauntlet/pkg/orchestrator"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/scorer/likert"
	testutils "github.com/probeworks/gauntlet/pkg/utils/test"
)

var _ = Describe("Scoring", func() {
	var (
		ctx   context.Context
		mem   *inmemory.Driver
		judge *testutils.MockChatTarget
		sc    *likert.Scorer
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = inmemory.NewDriver()
		judge = testutils.NewMockChatTarget(inmemory.NewDriver())
		judge.Replies = []string{`{"score_value": "2", "description": "low", "rationale": "mild"}`}

		var err error
		sc, err = likert.New(judge, mem, likert.HarmScale())
		Expect(err).NotTo(HaveOccurred())
		sc.Policy.Attempts = 2
		sc.Policy.Wait = time.Millisecond
	})

	newScoring := func(responsesOnly bool) *orchestrator.Scoring {
		GinkgoHelper()
		orch, err := orchestrator.NewScoring(orchestrator.ScoringConfig{
			Memory:        mem,
			Scorer:        sc,
			ResponsesOnly: responsesOnly,
		})
		Expect(err).NotTo(HaveOccurred())
		return orch
	}

	seedExchange := func(request, response string) (*prompt.Piece, *prompt.Piece) {
		GinkgoHelper()
		conversationID := uuid.NewString()
		requestPiece := prompt.NewPiece(prompt.RoleUser, request,
			prompt.WithConversationID(conversationID),
		)
		responsePiece := prompt.NewPiece(prompt.RoleAssistant, response,
			prompt.WithConversationID(conversationID),
			prompt.WithSequence(1),
		)
		Expect(mem.AddPieces(ctx, requestPiece, responsePiece)).To(Succeed())
		return requestPiece, responsePiece
	}

	Describe("configuration", func() {
		It("requires a scorer", func() {
			_, err := orchestrator.NewScoring(orchestrator.ScoringConfig{Memory: mem})
			Expect(err).To(MatchError(ContainSubstring("scorer required")))
		})

		It("requires a memory driver", func() {
			_, err := orchestrator.NewScoring(orchestrator.ScoringConfig{Scorer: sc})
			Expect(err).To(MatchError(memory.ErrNotConfigured))
		})

		It("rejects a negative batch size", func() {
			_, err := orchestrator.NewScoring(orchestrator.ScoringConfig{
				Memory:    mem,
				Scorer:    sc,
				BatchSize: -1,
			})
			Expect(err).To(MatchError(ContainSubstring("batch size must be at least 1, got -1")))
		})

		It("identifies itself as a scoring orchestrator", func() {
			orch := newScoring(false)
			id := orch.Identifier()
			Expect(id.Kind).To(Equal(prompt.KindOrchestrator))
			Expect(id.Name).To(Equal("scoring"))
		})
	})

	Describe("scoring pieces by id", func() {
		It("scores only assistant pieces when restricted to responses", func() {
			request, response := seedExchange("how sturdy is this railing", "it holds a lot")

			orch := newScoring(true)
			scores, err := orch.ScorePiecesByID(ctx, []uuid.UUID{request.ID, response.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(scores).To(HaveLen(1))
			Expect(scores[0].PieceID).To(Equal(response.ID))
			Expect(scores[0].Value).To(Equal("0.25"))
			Expect(judge.SentValues).To(ConsistOf("it holds a lot"))
		})

		It("scores every piece when not restricted", func() {
			request, response := seedExchange("first text", "second text")

			orch := newScoring(false)
			scores, err := orch.ScorePiecesByID(ctx, []uuid.UUID{request.ID, response.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(scores).To(HaveLen(2))

			var pieceIDs []uuid.UUID
			for _, s := range scores {
				pieceIDs = append(pieceIDs, s.PieceID)
			}
			Expect(pieceIDs).To(ConsistOf(request.ID, response.ID))
		})

		It("persists every score it produces", func() {
			_, response := seedExchange("the question", "the answer")

			orch := newScoring(true)
			_, err := orch.ScorePiecesByID(ctx, []uuid.UUID{response.ID})
			Expect(err).NotTo(HaveOccurred())

			persisted, err := mem.ScoresByPieceIDs(ctx, []uuid.UUID{response.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(persisted).To(HaveLen(1))
		})

		It("skips ids the memory driver does not know", func() {
			orch := newScoring(false)
			scores, err := orch.ScorePiecesByID(ctx, []uuid.UUID{uuid.New()})
			Expect(err).NotTo(HaveOccurred())
			Expect(scores).To(BeEmpty())
			Expect(judge.SentValues).To(BeEmpty())
		})

		It("returns nothing for an empty id list", func() {
			orch := newScoring(false)
			scores, err := orch.ScorePiecesByID(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(scores).To(BeEmpty())
		})

		It("keeps scoring siblings when one piece fails", func() {
			_, healthy := seedExchange("first exchange", "scores fine")
			_, broken := seedExchange("second exchange", "breaks the judge")
			judge.FailOn = "breaks the judge"

			orch := newScoring(true)
			scores, err := orch.ScorePiecesByID(ctx, []uuid.UUID{healthy.ID, broken.ID})
			Expect(err).To(MatchError(ContainSubstring("score piece " + broken.ID.String())))
			Expect(err).To(MatchError(ContainSubstring("send to judge")))
			Expect(scores).To(HaveLen(1))
			Expect(scores[0].PieceID).To(Equal(healthy.ID))
		})
	})

	Describe("scoring conversations", func() {
		It("scores the responses of every named conversation", func() {
			_, first := seedExchange("opening question", "opening answer")
			_, second := seedExchange("closing question", "closing answer")

			orch := newScoring(true)
			scores, err := orch.ScoreConversations(ctx, []string{
				first.ConversationID,
				second.ConversationID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(scores).To(HaveLen(2))

			var pieceIDs []uuid.UUID
			for _, s := range scores {
				pieceIDs = append(pieceIDs, s.PieceID)
			}
			Expect(pieceIDs).To(ConsistOf(first.ID, second.ID))
		})

		It("returns nothing for an unknown conversation", func() {
			orch := newScoring(true)
			scores, err := orch.ScoreConversations(ctx, []string{uuid.NewString()})
			Expect(err).NotTo(HaveOccurred())
			Expect(scores).To(BeEmpty())
		})
	})
})
