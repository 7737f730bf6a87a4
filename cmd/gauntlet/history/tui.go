package historycmder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
	"github.com/muesli/termenv"

	"github.com/probeworks/gauntlet/pkg/cliui"
	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

type historyView int

const (
	viewConversations historyView = iota
	viewTranscript
)

type transcript struct {
	conversationID string
	pieces         []*prompt.Piece
	scores         map[uuid.UUID][]*prompt.Score
}

type historyModel struct {
	mem           memory.Driver
	conversations []memory.ConversationSummary
	transcript    *transcript
	view          historyView
	cursor        int
	pieceCursor   int
	width         int
	height        int
	keys          historyKeyMap
	help          help.Model
}

var (
	historyTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	historyMutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	historySectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	historyDividerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	historyHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("214")).Bold(true)
	historyUserStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	historyAsstStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	historyScoreStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	historyConvertedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("140"))
)

type historyKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k historyKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Enter, k.Back, k.Refresh, k.Quit}
}

func (k historyKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Down, k.Up, k.Enter, k.Back}, {k.Refresh, k.Quit}}
}

func defaultKeyMap() historyKeyMap {
	return historyKeyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Enter:   key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "open")),
		Back:    key.NewBinding(key.WithKeys("h", "esc"), key.WithHelp("h", "back")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type conversationsLoadedMsg struct {
	conversations []memory.ConversationSummary
	err           error
}

type transcriptLoadedMsg struct {
	transcript *transcript
	err        error
}

func runHistoryTUI(ctx context.Context, mem memory.Driver, conversationID string) error {
	conversations, err := mem.Conversations(ctx)
	if err != nil {
		return err
	}

	model := newHistoryModel(mem, conversations)

	if conversationID != "" {
		t, err := loadTranscript(ctx, mem, conversationID)
		if err != nil {
			return err
		}
		model.view = viewTranscript
		model.transcript = t
	}

	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	_, err = program.Run()
	return err
}

func newHistoryModel(mem memory.Driver, conversations []memory.ConversationSummary) historyModel {
	return historyModel{
		mem:           mem,
		conversations: conversations,
		view:          viewConversations,
		keys:          defaultKeyMap(),
		help:          help.New(),
	}
}

func (m historyModel) Init() bubbletea.Cmd {
	return nil
}

func (m historyModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case conversationsLoadedMsg:
		if msg.err != nil {
			return m, nil
		}
		m.conversations = msg.conversations
		if m.cursor >= len(m.conversations) {
			m.cursor = clamp(m.cursor, len(m.conversations)-1)
		}
		return m, nil
	case transcriptLoadedMsg:
		if msg.err != nil {
			return m, nil
		}
		m.transcript = msg.transcript
		m.pieceCursor = clamp(m.pieceCursor, len(msg.transcript.pieces)-1)
		m.view = viewTranscript
		return m, nil
	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m historyModel) View() string {
	switch m.view {
	case viewConversations:
		return m.viewConversations()
	case viewTranscript:
		return m.viewTranscript()
	}
	return m.viewConversations()
}

func (m historyModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, bubbletea.Quit
	case "j", "down":
		return m.moveCursor(1)
	case "k", "up":
		return m.moveCursor(-1)
	case "l", "enter":
		if m.view == viewConversations {
			return m.openSelected()
		}
	case "h", "esc":
		if m.view == viewTranscript {
			m.view = viewConversations
			m.pieceCursor = 0
			return m, loadConversationsCmd(m.mem)
		}
	case "r":
		if m.view == viewTranscript && m.transcript != nil {
			return m, loadTranscriptCmd(m.mem, m.transcript.conversationID)
		}
		return m, loadConversationsCmd(m.mem)
	}

	return m, nil
}

func (m historyModel) moveCursor(delta int) (bubbletea.Model, bubbletea.Cmd) {
	if m.view == viewConversations {
		if len(m.conversations) == 0 {
			return m, nil
		}
		m.cursor = clamp(m.cursor+delta, len(m.conversations)-1)
		return m, nil
	}

	if m.transcript == nil || len(m.transcript.pieces) == 0 {
		return m, nil
	}
	m.pieceCursor = clamp(m.pieceCursor+delta, len(m.transcript.pieces)-1)
	return m, nil
}

func (m historyModel) openSelected() (bubbletea.Model, bubbletea.Cmd) {
	if len(m.conversations) == 0 {
		return m, nil
	}

	summary := m.conversations[m.cursor]
	return m, loadTranscriptCmd(m.mem, summary.ConversationID)
}

func (m historyModel) viewConversations() string {
	headerLeft := historyTitleStyle.Render("gauntlet history")
	headerRight := historyMutedStyle.Render(fmt.Sprintf("%d conversations", len(m.conversations)))
	header := renderHeaderLine(m.width, headerLeft, headerRight)

	lines := make([]string, 0, len(m.conversations)+6)
	lines = append(lines, header, renderRule(m.width), "")

	if len(m.conversations) == 0 {
		lines = append(lines, historyMutedStyle.Render("no conversations recorded"), "", m.viewFooter())
		return strings.Join(lines, "\n")
	}

	lines = append(lines, historyMutedStyle.Render("  conversation                          pieces  started           last activity"))

	maxVisible := listRows(m.height, 6)
	start, end := visibleRange(len(m.conversations), m.cursor, maxVisible)
	for i := start; i < end; i++ {
		summary := m.conversations[i]
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}

		line := fmt.Sprintf("%s %-36s  %6d  %-16s  %s",
			cursor,
			truncateText(summary.ConversationID, 36),
			summary.Pieces,
			summary.StartedAt.Local().Format("2006-01-02 15:04"),
			formatAge(time.Since(summary.LastActivityAt)),
		)
		if i == m.cursor {
			line = historyHighlightStyle.Render(line)
		}

		lines = append(lines, line)
	}

	lines = append(lines, "", m.viewFooter())

	return strings.Join(lines, "\n")
}

func (m historyModel) viewTranscript() string {
	if m.transcript == nil {
		return historyMutedStyle.Render("no conversation selected")
	}

	headerLeft := historyTitleStyle.Render("gauntlet history › " + truncateText(m.transcript.conversationID, 16))
	headerRight := historyMutedStyle.Render(fmt.Sprintf("%d pieces", len(m.transcript.pieces)))
	header := renderHeaderLine(m.width, headerLeft, headerRight)

	lines := make([]string, 0, 24)
	lines = append(lines, header, renderRule(m.width), "")

	screenHeight := m.height
	if screenHeight <= 0 {
		screenHeight = 40
	}
	remaining := max(screenHeight-8, 8)
	pieceRows := max(remaining/2, 4)

	lines = append(lines, m.renderPieceList(pieceRows)...)
	lines = append(lines, "")
	lines = append(lines, m.renderPieceDetail(max(remaining-pieceRows, 4))...)
	lines = append(lines, "", m.viewFooter())

	return strings.Join(lines, "\n")
}

func (m historyModel) renderPieceList(rows int) []string {
	lines := []string{historySectionStyle.Render("pieces"), renderRule(m.width)}
	pieces := m.transcript.pieces
	if len(pieces) == 0 {
		return append(lines, historyMutedStyle.Render("no pieces"))
	}

	previewWidth := max(m.width-38, 16)
	start, end := visibleRange(len(pieces), m.pieceCursor, rows)
	for i := start; i < end; i++ {
		p := pieces[i]
		cursor := " "
		if i == m.pieceCursor {
			cursor = ">"
		}

		marker := " "
		if p.ConvertedValue != p.OriginalValue {
			marker = historyConvertedStyle.Render("∆")
		}
		scoreMark := " "
		if len(m.transcript.scores[p.ID]) > 0 {
			scoreMark = historyScoreStyle.Render("●")
		}

		line := fmt.Sprintf("%s %2d  %s  %s %s %s %s",
			cursor,
			p.Sequence,
			p.Timestamp.Local().Format("15:04:05"),
			fitCell(roleLabel(p.Role), 12),
			marker,
			scoreMark,
			ansi.Truncate(flattenText(p.ConvertedValue), previewWidth, "…"),
		)
		if i == m.pieceCursor {
			line = historyHighlightStyle.Render(line)
		}

		lines = append(lines, line)
	}

	return lines
}

func (m historyModel) renderPieceDetail(rows int) []string {
	lines := []string{historySectionStyle.Render("piece"), renderRule(m.width)}
	pieces := m.transcript.pieces
	if len(pieces) == 0 {
		return append(lines, historyMutedStyle.Render("no piece"))
	}

	p := pieces[clamp(m.pieceCursor, len(pieces)-1)]
	wrapWidth := max(m.width-2, 20)

	lines = append(lines,
		"role: "+roleLabel(p.Role),
		fmt.Sprintf("time: %s  type: %s", p.Timestamp.Local().Format("15:04:05"), p.ConvertedValueDataType),
	)

	if names := converterNames(p.ConverterIdentifiers); names != "" {
		lines = append(lines, "converters: "+names)
	}

	for _, s := range m.transcript.scores[p.ID] {
		lines = append(lines, historyScoreStyle.Render("score: ")+cliui.FormatScore(s))
	}

	text := strings.TrimSpace(p.ConvertedValue)
	if text != "" {
		lines = append(lines, "message:")
		lines = append(lines, wrapText(text, wrapWidth)...)
	}

	if p.ConvertedValue != p.OriginalValue {
		lines = append(lines, historyMutedStyle.Render("original:"))
		for _, line := range wrapText(strings.TrimSpace(p.OriginalValue), wrapWidth) {
			lines = append(lines, historyMutedStyle.Render(line))
		}
	}

	if len(lines) > rows+2 {
		lines = lines[:rows+2]
	}

	return lines
}

func (m historyModel) viewFooter() string {
	return historyMutedStyle.Render(m.help.View(m.keys))
}

func loadConversationsCmd(mem memory.Driver) bubbletea.Cmd {
	return func() bubbletea.Msg {
		conversations, err := mem.Conversations(context.Background())
		return conversationsLoadedMsg{conversations: conversations, err: err}
	}
}

func loadTranscriptCmd(mem memory.Driver, conversationID string) bubbletea.Cmd {
	return func() bubbletea.Msg {
		t, err := loadTranscript(context.Background(), mem, conversationID)
		return transcriptLoadedMsg{transcript: t, err: err}
	}
}

func loadTranscript(ctx context.Context, mem memory.Driver, conversationID string) (*transcript, error) {
	pieces, err := mem.PiecesByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(pieces))
	for _, p := range pieces {
		ids = append(ids, p.ID)
	}
	scores, err := mem.ScoresByPieceIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byPiece := make(map[uuid.UUID][]*prompt.Score, len(scores))
	for _, s := range scores {
		byPiece[s.PieceID] = append(byPiece[s.PieceID], s)
	}

	return &transcript{
		conversationID: conversationID,
		pieces:         pieces,
		scores:         byPiece,
	}, nil
}

func roleLabel(role prompt.Role) string {
	switch role {
	case prompt.RoleAssistant:
		return historyAsstStyle.Render("● assistant")
	case prompt.RoleUser:
		return historyUserStyle.Render("○ user")
	default:
		return string(role)
	}
}

func converterNames(ids []prompt.Identifier) string {
	if len(ids) == 0 {
		return ""
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, id.Name)
	}
	return strings.Join(names, ", ")
}

func flattenText(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func clamp(value, upper int) int {
	if value < 0 {
		return 0
	}
	if value > upper {
		return upper
	}
	return value
}

func truncateText(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func fitCell(value string, width int) string {
	if width <= 0 {
		return value
	}
	if lipgloss.Width(value) > width {
		return ansi.Truncate(value, width, "…")
	}
	return value + strings.Repeat(" ", width-lipgloss.Width(value))
}

func renderHeaderLine(width int, left, right string) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	if leftWidth+rightWidth+1 >= lineWidth {
		return strings.TrimSpace(left + " " + right)
	}
	spacing := lineWidth - leftWidth - rightWidth
	return left + strings.Repeat(" ", spacing) + right
}

func renderRule(width int) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	return historyDividerStyle.Render(strings.Repeat("─", lineWidth))
}

func listRows(height, reserved int) int {
	if height <= 0 {
		return 20
	}
	return max(height-reserved, 4)
}

func visibleRange(total, cursor, size int) (int, int) {
	if total <= 0 || size <= 0 {
		return 0, 0
	}
	if total <= size {
		return 0, total
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= total {
		cursor = total - 1
	}
	start := max(cursor-(size/2), 0)
	end := start + size
	if end > total {
		end = total
		start = max(end-size, 0)
	}
	return start, end
}

func formatAge(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	lines := []string{}
	current := ""
	for _, word := range words {
		if current == "" {
			current = word
			continue
		}
		if lipgloss.Width(current)+1+lipgloss.Width(word) <= width {
			current = current + " " + word
			continue
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
