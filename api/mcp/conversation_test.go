package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory/inmemory"
	"github.com/probeworks/gauntlet/pkg/prompt"
)

var _ = Describe("Conversation tool", func() {
	var (
		server *Server
		mem    *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		mem = inmemory.NewDriver()
		ctx = context.Background()

		var err error
		server, err = NewServer(Config{
			Memory: mem,
			Logger: logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("handleConversation", func() {
		It("returns the conversation's pieces and scores", func() {
			request := prompt.NewPiece(prompt.RoleUser, "Hello")
			response := prompt.NewPiece(prompt.RoleAssistant, "Hi there",
				prompt.WithConversationID(request.ConversationID),
				prompt.WithSequence(1),
			)
			Expect(mem.AddPieces(ctx, request, response)).To(Succeed())

			score, err := prompt.NewScore(response.ID, prompt.ScoreTypeFloatScale, "0.75")
			Expect(err).NotTo(HaveOccurred())
			Expect(mem.AddScores(ctx, score)).To(Succeed())

			result, output, err := server.handleConversation(ctx, nil, ConversationInput{
				ConversationID: request.ConversationID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			Expect(output.ConversationID).To(Equal(request.ConversationID))
			Expect(output.Pieces).To(HaveLen(2))
			Expect(output.Pieces[0].ConvertedValue).To(Equal("Hello"))
			Expect(output.Pieces[1].ConvertedValue).To(Equal("Hi there"))
			Expect(output.Scores).To(HaveLen(1))
			Expect(output.Scores[0].Value).To(Equal("0.75"))
		})

		It("serializes the output into the text content block", func() {
			request := prompt.NewPiece(prompt.RoleUser, "Hello")
			Expect(mem.AddPieces(ctx, request)).To(Succeed())

			result, _, err := server.handleConversation(ctx, nil, ConversationInput{
				ConversationID: request.ConversationID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Content).To(HaveLen(1))

			text, ok := result.Content[0].(*mcp.TextContent)
			Expect(ok).To(BeTrue())
			Expect(text.Text).To(ContainSubstring(request.ConversationID))
		})

		It("rejects an empty conversation id", func() {
			result, _, err := server.handleConversation(ctx, nil, ConversationInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())

			text, ok := result.Content[0].(*mcp.TextContent)
			Expect(ok).To(BeTrue())
			Expect(text.Text).To(ContainSubstring("conversation_id is required"))
		})

		It("returns empty pieces for an unknown conversation", func() {
			result, output, err := server.handleConversation(ctx, nil, ConversationInput{
				ConversationID: "unknown",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Pieces).To(BeEmpty())
			Expect(output.Scores).To(BeEmpty())
		})
	})
})
