package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/akande-ai/akande/pkg/assistant"
)

var (
	colorAccent = lipgloss.Color("#8B5CF6")
	colorMuted  = lipgloss.Color("#6B7280")
	colorHit    = lipgloss.Color("#10B981")
	colorError  = lipgloss.Color("#EF4444")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	hitStyle   = lipgloss.NewStyle().Foreground(colorHit)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	labelStyle = lipgloss.NewStyle().Width(11).Foreground(colorMuted)
)

const maxWrapWidth = 100

// answerRenderer formats answers as markdown on a terminal and as plain text
// otherwise.
func answerRenderer(plain bool) func(assistant.Answer) string {
	var md *glamour.TermRenderer
	fd := int(os.Stdout.Fd())
	if !plain && term.IsTerminal(fd) {
		width := maxWrapWidth
		if w, _, err := term.GetSize(fd); err == nil && w > 0 && w < width {
			width = w
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithColorProfile(lipgloss.ColorProfile()),
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
			glamour.WithPreservedNewLines(),
		)
		if err == nil {
			md = r
		}
	}

	return func(a assistant.Answer) string {
		body := a.Text
		if md != nil {
			if out, err := md.Render(a.Text); err == nil {
				body = strings.TrimRight(out, "\n")
			}
		}
		return body + "\n" + answerFooter(a)
	}
}

func answerFooter(a assistant.Answer) string {
	if a.Cached() {
		return hitStyle.Render("● from cache") + mutedStyle.Render(fmt.Sprintf(" in %s", a.Latency.Round(time.Microsecond)))
	}
	provider := a.Provider
	if a.Model != "" {
		provider += "/" + a.Model
	}
	return mutedStyle.Render(fmt.Sprintf("○ %s in %s", provider, a.Latency.Round(time.Millisecond)))
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}
