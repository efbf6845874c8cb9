package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type outputStyles struct {
	title lipgloss.Style
	good  lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
}

// newOutputStyles renders plain text unless writer is a color terminal.
func newOutputStyles(writer io.Writer) outputStyles {
	renderer := lipgloss.NewRenderer(writer)
	if termenv.EnvNoColor() {
		renderer.SetColorProfile(termenv.Ascii)
	}

	return outputStyles{
		title: renderer.NewStyle().Bold(true),
		good:  renderer.NewStyle().Foreground(lipgloss.Color("42")),
		warn:  renderer.NewStyle().Foreground(lipgloss.Color("220")),
		bad:   renderer.NewStyle().Foreground(lipgloss.Color("196")),
	}
}
