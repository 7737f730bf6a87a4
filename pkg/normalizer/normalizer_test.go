package normalizer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/converter"
	"github.com/probeworks/gauntlet/pkg/eventstream"
	"github.com/probeworks/gauntlet/pkg/memory/inmemory"
	"github.com/probeworks/gauntlet/pkg/normalizer"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/target/console"
	testutils "github.com/probeworks/gauntlet/pkg/utils/test"
)

var _ = Describe("Normalizer", func() {
	var (
		ctx            context.Context
		mem            *inmemory.Driver
		tgt            *testutils.MockChatTarget
		norm           *normalizer.Normalizer
		orchestratorID prompt.Identifier
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = inmemory.NewDriver()
		tgt = testutils.NewMockChatTarget(mem)
		norm = normalizer.New()
		orchestratorID = prompt.NewIdentifier(prompt.KindOrchestrator, "prompt_sending", "orchestrator")
	})

	Describe("configuration", func() {
		It("requires a target", func() {
			_, err := norm.Send(ctx, []normalizer.Request{{Value: "p"}}, nil, nil, orchestratorID, 1)
			Expect(err).To(MatchError(ContainSubstring("target required")))
		})

		It("requires a batch size of at least one", func() {
			_, err := norm.Send(ctx, []normalizer.Request{{Value: "p"}}, tgt, nil, orchestratorID, 0)
			Expect(err).To(MatchError(ContainSubstring("batch size must be at least 1")))
		})

		It("returns no results for an empty request set", func() {
			results, err := norm.Send(ctx, nil, tgt, nil, orchestratorID, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("dispatching", func() {
		It("sends a request and collects the response group", func() {
			tgt.Replies = []string{"scripted reply"}
			labels := map[string]string{"operation": "op-1"}

			results, err := norm.Send(ctx, []normalizer.Request{{Value: "probe one"}}, tgt, labels, orchestratorID, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Err).NotTo(HaveOccurred())
			Expect(results[0].Group).NotTo(BeNil())
			Expect(results[0].Group.First().Role).To(Equal(prompt.RoleAssistant))
			Expect(results[0].Group.First().ConvertedValue).To(Equal("scripted reply"))

			Expect(tgt.SentValues).To(Equal([]string{"probe one"}))

			pieces, err := mem.PiecesByConversation(ctx, results[0].Group.ConversationID())
			Expect(err).NotTo(HaveOccurred())
			Expect(pieces).To(HaveLen(2))
			Expect(pieces[0].Role).To(Equal(prompt.RoleUser))
			Expect(pieces[0].Sequence).To(Equal(0))
			Expect(pieces[0].Labels).To(Equal(labels))
			Expect(pieces[0].OrchestratorIdentifier.Name).To(Equal("prompt_sending"))
			Expect(pieces[1].Role).To(Equal(prompt.RoleAssistant))
			Expect(pieces[1].Sequence).To(Equal(1))
		})

		It("keeps results in request order", func() {
			tgt.Replies = []string{"r0", "r1", "r2"}
			requests := []normalizer.Request{
				{Value: "p0"}, {Value: "p1"}, {Value: "p2"},
			}

			results, err := norm.Send(ctx, requests, tgt, nil, orchestratorID, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(tgt.SentValues).To(Equal([]string{"p0", "p1", "p2"}))
			for i, result := range results {
				Expect(result.Err).NotTo(HaveOccurred())
				Expect(result.Group.First().ConvertedValue).To(Equal(fmt.Sprintf("r%d", i)))
			}
		})

		It("records one fresh conversation per request", func() {
			requests := []normalizer.Request{
				{Value: "p0"}, {Value: "p1"}, {Value: "p2"},
			}

			results, err := norm.Send(ctx, requests, tgt, nil, orchestratorID, 10)
			Expect(err).NotTo(HaveOccurred())

			seen := map[string]bool{}
			for _, result := range results {
				Expect(result.Err).NotTo(HaveOccurred())
				conversationID := result.Group.ConversationID()
				Expect(seen[conversationID]).To(BeFalse())
				seen[conversationID] = true

				pieces, err := mem.PiecesByConversation(ctx, conversationID)
				Expect(err).NotTo(HaveOccurred())
				Expect(pieces).To(HaveLen(2))
				Expect(pieces[0].Sequence).To(Equal(0))
				Expect(pieces[1].Sequence).To(Equal(1))
			}

			stats, err := mem.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Pieces).To(Equal(6))
			Expect(stats.Conversations).To(Equal(3))
			Expect(stats.Scores).To(Equal(0))
		})
	})

	Describe("converter chains", func() {
		It("applies the chain left-to-right before dispatch", func() {
			req := normalizer.Request{
				Value:      "hi",
				Converters: []converter.Converter{converter.NewBase64(), converter.NewBase64()},
			}

			results, err := norm.Send(ctx, []normalizer.Request{req}, tgt, nil, orchestratorID, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).NotTo(HaveOccurred())
			Expect(tgt.SentValues).To(Equal([]string{"YUdrPQ=="}))

			pieces, err := mem.PiecesByConversation(ctx, results[0].Group.ConversationID())
			Expect(err).NotTo(HaveOccurred())
			Expect(pieces[0].OriginalValue).To(Equal("hi"))
			Expect(pieces[0].ConvertedValue).To(Equal("YUdrPQ=="))
			Expect(pieces[0].ConverterIdentifiers).To(HaveLen(2))
			Expect(pieces[0].ConverterIdentifiers[0].Name).To(Equal("base64"))
		})

		It("aborts only the request whose converter fails", func() {
			requests := []normalizer.Request{
				{Value: "doomed", Converters: []converter.Converter{stubConverter{err: errors.New("boom")}}},
				{Value: "fine"},
			}

			results, err := norm.Send(ctx, requests, tgt, nil, orchestratorID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).To(MatchError(ContainSubstring("convert with stub")))
			Expect(results[0].Err).To(MatchError(ContainSubstring("boom")))
			Expect(results[0].Group).To(BeNil())
			Expect(results[1].Err).NotTo(HaveOccurred())

			stats, err := mem.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Pieces).To(Equal(2))
		})

		It("reports invalid requests without touching their siblings", func() {
			requests := []normalizer.Request{
				{Value: "   "},
				{Value: "fine"},
			}

			results, err := norm.Send(ctx, requests, tgt, nil, orchestratorID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).To(MatchError(normalizer.ErrEmptyRequestValue))
			Expect(results[1].Err).NotTo(HaveOccurred())
		})
	})

	Describe("target failures", func() {
		It("captures a failed send as that request's error", func() {
			tgt.FailOn = "bad prompt"
			requests := []normalizer.Request{
				{Value: "bad prompt"},
				{Value: "good prompt"},
			}

			results, err := norm.Send(ctx, requests, tgt, nil, orchestratorID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).To(MatchError(ContainSubstring("send to target")))
			Expect(results[1].Err).NotTo(HaveOccurred())

			stats, err := mem.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Pieces).To(Equal(2))
		})
	})

	Describe("targets that produce no reply", func() {
		It("treats a nil response group as success", func() {
			var buf bytes.Buffer
			sink, err := console.New(&buf, mem)
			Expect(err).NotTo(HaveOccurred())

			results, err := norm.Send(ctx, []normalizer.Request{{Value: "silent probe"}}, sink, nil, orchestratorID, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).NotTo(HaveOccurred())
			Expect(results[0].Group).To(BeNil())
			Expect(buf.String()).To(ContainSubstring("silent probe"))

			stats, err := mem.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Pieces).To(Equal(1))
		})
	})

	Describe("event publishing", func() {
		var capture *testutils.CapturePublisher

		BeforeEach(func() {
			capture = &testutils.CapturePublisher{}
			norm = normalizer.New(normalizer.WithPublisher(capture))
		})

		It("publishes request and response pieces after the round trip", func() {
			results, err := norm.Send(ctx, []normalizer.Request{{Value: "probe"}}, tgt, nil, orchestratorID, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).NotTo(HaveOccurred())

			events := capture.PieceEvents()
			Expect(events).To(HaveLen(2))
			Expect(events[0].EventType).To(Equal(eventstream.EventTypePiecePersisted))
			Expect(events[0].Piece.Role).To(Equal(prompt.RoleUser))
			Expect(events[0].Source.Target).To(Equal("mock_chat"))
			Expect(events[1].Piece.Role).To(Equal(prompt.RoleAssistant))
		})

		It("publishes nothing for a failed send", func() {
			tgt.FailSend = true

			results, err := norm.Send(ctx, []normalizer.Request{{Value: "probe"}}, tgt, nil, orchestratorID, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).To(HaveOccurred())
			Expect(capture.PieceEvents()).To(BeEmpty())
		})

		It("publishes only the request piece when the target has no reply", func() {
			var buf bytes.Buffer
			sink, err := console.New(&buf, mem)
			Expect(err).NotTo(HaveOccurred())

			results, err := norm.Send(ctx, []normalizer.Request{{Value: "probe"}}, sink, nil, orchestratorID, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).NotTo(HaveOccurred())

			events := capture.PieceEvents()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Piece.Role).To(Equal(prompt.RoleUser))
		})

		It("does not fail a request when event delivery fails", func() {
			capture.Fail = true

			results, err := norm.Send(ctx, []normalizer.Request{{Value: "probe"}}, tgt, nil, orchestratorID, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).NotTo(HaveOccurred())

			stats, err := mem.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Pieces).To(Equal(2))
		})
	})
})

// stubConverter is a chain entry with a scripted outcome.
type stubConverter struct {
	err error
	out converter.Result
}

var _ converter.Converter = stubConverter{}

func (s stubConverter) Convert(context.Context, string, prompt.DataType) (converter.Result, error) {
	if s.err != nil {
		return converter.Result{}, s.err
	}
	return s.out, nil
}

func (s stubConverter) InputSupported(dt prompt.DataType) bool {
	return dt == prompt.DataTypeText
}

func (s stubConverter) Identifier() prompt.Identifier {
	return prompt.NewIdentifier(prompt.KindConverter, "stub", "normalizer_test")
}

func (s stubConverter) OneToOne() bool { return true }
