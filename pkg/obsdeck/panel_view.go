package obsdeck

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/thoas/go-funk"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/bridge"
)

const (
	stripWidth = 32
	barWidth   = 20
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	liveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	stripStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(stripWidth)
	focusedStripStyle = stripStyle.BorderForeground(lipgloss.Color("212"))

	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212")).
			Padding(1, 2)

	statusColors = map[bridge.Status]lipgloss.Color{
		bridge.StatusDisconnected: lipgloss.Color("241"),
		bridge.StatusConnecting:   lipgloss.Color("214"),
		bridge.StatusConnected:    lipgloss.Color("42"),
		bridge.StatusFailed:       lipgloss.Color("196"),
	}
)

func (p *panel) View() string {
	var b strings.Builder

	b.WriteString(p.headerView())
	b.WriteString("\n\n")

	if p.form.visible {
		b.WriteString(p.formView())
		b.WriteString("\n\n")
		b.WriteString(p.help.View(p.formKeys))
		return b.String()
	}

	strips := make([]string, 0, len(bridge.Controls))
	for _, id := range bridge.Controls {
		strips = append(strips, p.stripView(id))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, strips...))
	b.WriteString("\n")

	b.WriteString(p.inventoryView())
	b.WriteString("\n")

	if p.warning != "" {
		b.WriteString(warnStyle.Render("! " + p.warning))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(p.help.View(p.keys))

	return b.String()
}

func (p *panel) headerView() string {
	status := lipgloss.NewStyle().Foreground(statusColors[p.status]).Render("● " + p.status.String())

	header := titleStyle.Render("obsdeck") + "  " + status
	if p.lastLogIn != nil {
		header += dimStyle.Render(fmt.Sprintf("  %s:%d", p.lastLogIn.Address, p.lastLogIn.Port))
	}

	return header
}

func (p *panel) stripView(id bridge.ControlID) string {
	control := p.cache.Control(id)

	title := "Mic"
	if id == bridge.ControlDesktop {
		title = "Desktop"
	}

	source, ok := p.cache.Selected(id)
	if !ok {
		source = dimStyle.Render("none")
	}

	candidates := len(p.cache.Candidates(id))

	state := liveStyle.Render("live")
	if control.Muted {
		state = mutedStyle.Render("MUTED")
	}

	lines := []string{
		titleStyle.Render(title),
		fmt.Sprintf("‹ %s ›", source),
		dimStyle.Render(fmt.Sprintf("%d available", candidates)),
		"",
		fmt.Sprintf("%s %3.0f%%", levelBar(control.Level, barWidth), control.Level),
		state,
	}

	style := stripStyle
	if id == p.focus {
		style = focusedStripStyle
	}

	return style.Render(strings.Join(lines, "\n"))
}

func (p *panel) inventoryView() string {
	if !p.cache.Has(bridge.KindScenes) && !p.cache.Has(bridge.KindSceneCollections) && !p.cache.Has(bridge.KindOutputs) {
		return dimStyle.Render("no inventory yet")
	}

	var parts []string

	if p.cache.Has(bridge.KindScenes) {
		scene := p.cache.Scenes.CurrentProgram
		if preview := p.cache.Scenes.CurrentPreview; preview != "" {
			scene += " (preview " + preview + ")"
		}
		parts = append(parts, fmt.Sprintf("scene: %s of %d", scene, len(p.cache.Scenes.Scenes)))
	}

	if p.cache.Has(bridge.KindSceneCollections) {
		parts = append(parts, fmt.Sprintf("collection: %s", p.cache.Collections.Current))
	}

	if p.cache.Has(bridge.KindOutputs) {
		active := funk.Filter(p.cache.Outputs, func(o bridge.Output) bool { return o.Active }).([]bridge.Output)
		parts = append(parts, fmt.Sprintf("outputs: %d/%d active", len(active), len(p.cache.Outputs)))
	}

	return dimStyle.Render(strings.Join(parts, "  ·  "))
}

func (p *panel) formView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Connect to OBS"))
	b.WriteString("\n\n")

	for i, input := range p.form.inputs {
		b.WriteString(fmt.Sprintf("%-9s %s\n", formLabels[i], input.View()))
	}

	if p.form.err != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(p.form.err))
	}

	return formStyle.Render(b.String())
}

// levelBar renders level (0-100) as a bar of width cells
func levelBar(level float64, width int) string {
	filled := int(math.Round(level / 100 * float64(width)))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return liveStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}
