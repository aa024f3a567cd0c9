package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/kiddybot/internal/model/chat"
)

const clearScreen = "\033[H\033[2J"

// Terminal draws the transcript as styled bubbles for a console.
type Terminal struct {
	welcome string
	botName string
	width   int
	clear   bool

	botStyle   lipgloss.Style
	userStyle  lipgloss.Style
	labelStyle lipgloss.Style
}

// NewTerminal creates a terminal renderer. width <= 0 disables wrapping.
// When clear is set every render starts from a blank screen.
func NewTerminal(botName, welcome string, width int, clear bool) *Terminal {
	bubble := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)
	if width > 0 {
		bubble = bubble.Width(width)
	}

	return &Terminal{
		welcome:    welcome,
		botName:    botName,
		width:      width,
		clear:      clear,
		botStyle:   bubble.BorderForeground(lipgloss.Color("42")),
		userStyle:  bubble.BorderForeground(lipgloss.Color("63")),
		labelStyle: lipgloss.NewStyle().Bold(true).Faint(true),
	}
}

// Render writes every turn of history to w.
func (t *Terminal) Render(w io.Writer, history []chat.Turn) error {
	var b strings.Builder
	if t.clear {
		b.WriteString(clearScreen)
	}

	for _, turn := range history {
		switch turn.Role {
		case chat.RoleAssistant:
			t.writeBubble(&b, t.botName, t.botStyle, strings.TrimSpace(turn.Content), lipgloss.Left)
		case chat.RoleSystem:
			t.writeBubble(&b, t.botName, t.botStyle, t.welcome, lipgloss.Left)
		case chat.RoleUser:
			t.writeBubble(&b, "you", t.userStyle, strings.TrimSpace(turn.Content), lipgloss.Right)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Terminal) writeBubble(b *strings.Builder, label string, style lipgloss.Style, content string, pos lipgloss.Position) {
	block := lipgloss.JoinVertical(pos, t.labelStyle.Render(label), style.Render(content))
	fmt.Fprintln(b, block)
}
