package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// palette holds the output styles. Colours are only applied on terminals.
type palette struct {
	color   bool
	title   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newPalette(w io.Writer) palette {
	return palette{
		color:   isTerminal(w),
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		failure: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F38BA8")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p palette) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p palette) status(s domain.Status) string {
	switch s {
	case domain.StatusOK:
		return p.render(p.success, string(s))
	case domain.StatusPartial:
		return p.render(p.warning, string(s))
	case domain.StatusFailed, domain.StatusAborted:
		return p.render(p.failure, string(s))
	default:
		return p.render(p.muted, string(s))
	}
}

func (p palette) state(s domain.RunState) string {
	switch s {
	case domain.StateCompleted:
		return p.render(p.success, string(s))
	case domain.StateAborted:
		return p.render(p.failure, string(s))
	default:
		return string(s)
	}
}

// padRight pads to width visible cells, ignoring colour sequences.
func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + spaces(width-n)
	}
	return s
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
