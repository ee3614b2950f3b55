// internal/tui/view.go
package tui

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/AlverezYari/passcam/internal/display"
)

// Style definitions
var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	successStatusStyle = statusBarStyle.
				Background(lipgloss.Color("22")).
				Foreground(lipgloss.Color("255"))

	errorStatusStyle = statusBarStyle.
				Background(lipgloss.Color("52")).
				Foreground(lipgloss.Color("255"))

	mainContentStyle = lipgloss.NewStyle().
				Padding(1, 0)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1)

	activeTabStyle = tabStyle.
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	labelStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Strikethrough(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	sectionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true).MarginTop(1)
	mrzStyle      = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)

	checkStyles = map[string]lipgloss.Style{
		"check-ok":      lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		"check-warning": lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		"check-fail":    lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
		"check-error":   lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
	}
)

// View renders the UI
func (m Model) View() string {
	timeStr := m.currentTime.Format("Mon Jan 2 15:04:05 2006")

	headerContent := lipgloss.JoinHorizontal(
		lipgloss.Center,
		"passcam",
		lipgloss.NewStyle().
			Width(max(m.width-12, 0)).
			Align(lipgloss.Right).
			Render(timeStr),
	)
	header := headerStyle.Width(m.width).Render(headerContent)

	tabs := m.renderTabs()
	mainContent := mainContentStyle.Render(m.renderActiveTabContent())

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, tabs, mainContent, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	style := statusBarStyle
	switch m.status.Class {
	case display.ClassSuccess:
		style = successStatusStyle
	case display.ClassError:
		style = errorStatusStyle
	}
	message := m.status.Message
	if message == "" {
		message = "Camera off"
	}
	return style.Width(m.width).Render(
		fmt.Sprintf("Status: %s | t: camera  w: switch  space: snapshot | Tab or 1-3: views | q: quit", message),
	)
}

// Helper function to render tabs
func (m Model) renderTabs() string {
	var renderedTabs []string
	for _, t := range m.tabs {
		style := tabStyle
		if t.id == m.activeTab {
			style = activeTabStyle
		}
		renderedTabs = append(renderedTabs, style.Render(t.title))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

// Helper function to render active tab content
func (m Model) renderActiveTabContent() string {
	switch m.activeTab {
	case cameraTab:
		return m.renderCameraTab()
	case resultTab:
		if m.result == nil {
			return dimStyle.Render("No result yet. Press space to take a snapshot.")
		}
		return m.resultViewport.View()
	case logsTab:
		return fmt.Sprintf("Verbosity: %s (v to change)\n%s", m.verbosity, m.logViewport.View())
	}
	return ""
}

func (m Model) renderCameraTab() string {
	var b strings.Builder
	s := m.snapshot

	b.WriteString(labelStyle.Render("Camera") + "\n")
	fmt.Fprintf(&b, "• State: %s\n", s.State)
	fmt.Fprintf(&b, "• Facing: %s\n", s.Facing.Label())
	if s.Width > 0 && s.Height > 0 {
		fmt.Fprintf(&b, "• Resolution: %d×%d\n", s.Width, s.Height)
	}
	if s.MultipleDevices {
		b.WriteString("• Multiple cameras available\n")
	}
	if m.pending != "" {
		b.WriteString(dimStyle.Render("• Running: "+m.pending) + "\n")
	}

	b.WriteString("\n" + labelStyle.Render("Controls") + "\n")
	b.WriteString("[t] " + m.controls.ToggleLabel + "\n")
	b.WriteString(control("[w] Switch camera", m.controls.SwitchEnabled) + "\n")
	b.WriteString(control("[space] "+m.controls.SnapshotLabel, m.controls.SnapshotEnabled) + "\n")

	if !m.lastSubmit.IsZero() {
		fmt.Fprintf(&b, "\nLast recognition: %s (took %s)\n",
			humanize.RelTime(m.lastSubmit, m.currentTime, "ago", "from now"),
			m.lastSubmitTook.Round(time.Millisecond))
	}

	if m.config != nil {
		b.WriteString("\n" + dimStyle.Render("Recognition service: "+m.config.Recognition.BaseURL+m.config.Recognition.Endpoint) + "\n")
	}
	if m.serverAddr != "" {
		b.WriteString(dimStyle.Render("Web console: http://"+m.serverAddr) + "\n")
	}
	return b.String()
}

func control(label string, enabled bool) string {
	if enabled {
		return label
	}
	return disabledStyle.Render(label)
}

// renderModel renders a result for the terminal. Model text is stored
// HTML-escaped, so it is unescaped for display here.
func renderModel(m *display.Model) string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	if m.Error != nil {
		b.WriteString(errorStyle.Render(html.UnescapeString(m.Error.Title)) + "\n")
		for _, msg := range m.Error.Messages {
			b.WriteString("• " + html.UnescapeString(msg) + "\n")
		}
		return b.String()
	}
	if m.Success == nil {
		return ""
	}

	s := m.Success
	if s.ModelConfidence != "" {
		b.WriteString(sectionStyle.Render(display.SectionConfidence) + "\n")
		fmt.Fprintf(&b, "%s: %s\n", display.LabelModelConfidence, s.ModelConfidence)
	}

	b.WriteString(sectionStyle.Render(display.SectionFields) + "\n")
	writeRows(&b, s.Fields)

	if s.MRZ != nil {
		b.WriteString(sectionStyle.Render(display.SectionMRZ) + "\n")
		if len(s.MRZ.Lines) > 0 {
			lines := make([]string, len(s.MRZ.Lines))
			for i, l := range s.MRZ.Lines {
				lines[i] = html.UnescapeString(l)
			}
			b.WriteString(mrzStyle.Render(strings.Join(lines, "\n")) + "\n")
		}
		writeRows(&b, s.MRZ.Rows)
	}

	if len(s.Checks) > 0 {
		b.WriteString(sectionStyle.Render(display.SectionChecks) + "\n")
		for _, c := range s.Checks {
			line := "• " + html.UnescapeString(c.Message)
			if style, ok := checkStyles[c.Class]; ok {
				line = style.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func writeRows(b *strings.Builder, rows []display.Row) {
	for _, r := range rows {
		line := labelStyle.Render(html.UnescapeString(r.Label)+":") + " " + html.UnescapeString(r.Value)
		if r.Confidence != "" {
			line += " " + dimStyle.Render("("+r.Confidence+")")
		}
		if meta := r.Meta(); meta != "" {
			line += " " + dimStyle.Render(html.UnescapeString(meta))
		}
		b.WriteString(line + "\n")
	}
}
