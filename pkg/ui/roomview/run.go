// Package roomview draws the dollhouse in the terminal.
package roomview

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Run shows the room until the viewer quits or ctx ends.
func Run(ctx context.Context, source FrameSource, opts Options) error {
	program := tea.NewProgram(newModel(ctx, source, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if err != nil && ctx.Err() == nil {
		return err
	}

	fmt.Println(renderGoodbyeBanner())
	return nil
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("96")).
		Padding(1, 2)

	return style.Render("Thanks for visiting the dollhouse")
}
