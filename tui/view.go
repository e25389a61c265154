package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4"))

	canvasStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#FF6B6B")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func (p *Page) View() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder

	if p.canvasHidden {
		b.WriteString(errorTitleStyle.Render(p.title))
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(p.errorText))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("ctrl+c quit"))
		return b.String()
	}

	b.WriteString(titleStyle.Render(p.cfg.Title))
	b.WriteString(" ")
	if p.ready {
		b.WriteString(statusStyle.Render("ready"))
	} else {
		b.WriteString(p.spinner.View())
		b.WriteString(" loading compute module")
	}
	b.WriteString("\n\n")

	cols, rows := p.canvasCells()
	body := fmt.Sprintf("%.0fx%.0f px", p.presentation.Width, p.presentation.Height)
	if p.lastEvent != "" {
		body += "\n" + p.lastEvent
	}
	b.WriteString(canvasStyle.Width(cols).Height(rows).Render(body))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("type to send keys • drag to touch • ctrl+c quit"))
	return b.String()
}

// canvasCells converts the presentation size to the box's inner cell size.
func (p *Page) canvasCells() (int, int) {
	cols := int(math.Floor(p.presentation.Width/p.cfg.Cell.Width)) - 2*canvasBorder
	rows := int(math.Floor(p.presentation.Height/p.cfg.Cell.Height)) - 2*canvasBorder
	return max(cols, 1), max(rows, 1)
}
