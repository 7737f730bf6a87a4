package cliui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/probeworks/gauntlet/pkg/prompt"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	systemStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	scoreMarkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// RoleStyle returns the lipgloss style used for a chat role label.
func RoleStyle(role prompt.Role) lipgloss.Style {
	switch role {
	case prompt.RoleUser:
		return userStyle
	case prompt.RoleAssistant:
		return assistantStyle
	default:
		return systemStyle
	}
}

type renderConfig struct {
	markdown bool
}

// RenderOption adjusts transcript rendering.
type RenderOption func(*renderConfig)

// WithMarkdown renders assistant piece text through glamour instead of
// printing it raw.
func WithMarkdown() RenderOption {
	return func(c *renderConfig) { c.markdown = true }
}

// RenderConversation writes a transcript of a conversation: one block per
// piece in stored order, showing the value that was actually sent or
// received, the original value when a converter changed it, and any scores
// attached to the piece.
func RenderConversation(w io.Writer, conversationID string, pieces []*prompt.Piece, scores []*prompt.Score, opts ...RenderOption) {
	cfg := renderConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	fmt.Fprintf(w, "%s\n", HeaderStyle.Render("Conversation "+conversationID))

	byPiece := make(map[uuid.UUID][]*prompt.Score, len(scores))
	for _, s := range scores {
		byPiece[s.PieceID] = append(byPiece[s.PieceID], s)
	}

	for _, p := range pieces {
		label := RoleStyle(p.Role).Render("[" + string(p.Role) + "]")
		text := p.ConvertedValue
		if cfg.markdown && p.Role == prompt.RoleAssistant {
			if rendered, err := RenderMarkdown(text); err == nil {
				text = rendered
			}
		}
		fmt.Fprintf(w, "\n%s %s\n", label, text)

		if p.ConvertedValue != p.OriginalValue {
			fmt.Fprintf(w, "  %s\n", DimStyle.Render("original: "+p.OriginalValue))
		}

		for _, s := range byPiece[p.ID] {
			fmt.Fprintf(w, "  %s %s\n", scoreMarkStyle.Render("score:"), FormatScore(s))
		}
	}
}

// FormatScore renders a score on one line: scorer name, type, value, and
// the category and rationale when present.
func FormatScore(s *prompt.Score) string {
	var b strings.Builder

	if s.ScorerIdentifier.Name != "" {
		b.WriteString(s.ScorerIdentifier.Name)
		b.WriteString(": ")
	}

	fmt.Fprintf(&b, "%s=%s", s.Type, s.Value)

	if s.Category != "" {
		fmt.Fprintf(&b, " [%s]", s.Category)
	}

	if s.Rationale != "" {
		b.WriteString(": ")
		b.WriteString(s.Rationale)
	}

	return b.String()
}
