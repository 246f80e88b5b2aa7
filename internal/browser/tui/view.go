package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/chris/hbrowse/pkg/models"
)

// Styles
var (
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	focusDotStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	blurDotStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	groupStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	normalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	countStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("✓")
	failedMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("✗")
	unknownMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("·")
)

const marginX = 2

func (m *Model) renderView() string {
	var b strings.Builder

	width := m.width
	if width == 0 {
		width = 80
	}

	// Content width excludes left and right margins
	contentWidth := width - 2*marginX
	if contentWidth < 20 {
		contentWidth = 20
	}
	margin := strings.Repeat(" ", marginX)

	b.WriteString(margin + m.renderHeader())
	b.WriteString("\n")
	b.WriteString(margin + separatorStyle.Render(strings.Repeat("=", contentWidth)))
	b.WriteString("\n")

	if m.searching || m.search.Value() != "" {
		b.WriteString(margin + m.search.View())
		b.WriteString("\n")
	}

	if len(m.rows) == 0 {
		if m.search.Value() != "" {
			b.WriteString(margin + "No matching commands\n")
		} else {
			b.WriteString(margin + "No commands found\n")
		}
	} else {
		end := len(m.rows)
		if avail := m.bodyHeight(); avail > 0 && m.offset+avail < end {
			end = m.offset + avail
		}
		for i := m.offset; i < end; i++ {
			b.WriteString(margin + m.renderRow(m.rows[i], i == m.cursor, contentWidth))
			b.WriteString("\n")
		}
	}

	b.WriteString(margin + separatorStyle.Render(strings.Repeat("─", contentWidth)))
	b.WriteString("\n")
	b.WriteString(margin + m.renderStatusBar(contentWidth))
	b.WriteString("\n")
	b.WriteString(margin + m.help.View(keys))

	return b.String()
}

func (m *Model) renderHeader() string {
	dot := focusDotStyle.Render("●")
	if !m.focused {
		dot = blurDotStyle.Render("○")
	}

	title := headerStyle.Render("History") + " " + dot + " " + headerStyle.Render(m.env.CurrentMapset())
	if m.tree != nil {
		n := m.tree.Len()
		noun := "commands"
		if n == 1 {
			noun = "command"
		}
		title += " " + countStyle.Render(fmt.Sprintf("(%s %s)", humanize.Comma(int64(n)), noun))
	}
	return title
}

func (m *Model) renderRow(r row, selected bool, width int) string {
	if r.entry == nil {
		return m.renderGroupHeader(r.group, width)
	}

	prefix := "  "
	if selected {
		prefix = "▶ "
	}

	clock := r.entry.Time().Format("15:04")
	text := truncateWithEllipsis(r.entry.Command, width-ansi.StringWidth(prefix)-len(clock)-4)
	line := prefix + statusMark(r.entry.Status) + " " + clock + "  " + text

	if selected {
		return selectedStyle.Render(line)
	}
	return normalStyle.Render(line)
}

func (m *Model) renderGroupHeader(g *models.Group, width int) string {
	label := g.Key
	if rel := m.relativeDay(g.Key); rel != "" {
		label = fmt.Sprintf("%s (%s)", g.Key, rel)
	}

	countText := fmt.Sprintf("%d commands", len(g.Entries))
	if len(g.Entries) == 1 {
		countText = "1 command "
	}

	label = truncateWithEllipsis(label, width-len(countText)-2)
	padding := width - ansi.StringWidth(label) - len(countText)
	if padding < 1 {
		padding = 1
	}
	return groupStyle.Render(label) + strings.Repeat(" ", padding) + countStyle.Render(countText)
}

// relativeDay describes a day group key relative to now, or "" for other keys
func (m *Model) relativeDay(groupKey string) string {
	day, err := time.ParseInLocation(time.DateOnly, groupKey, time.Local)
	if err != nil {
		return ""
	}

	now := m.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	days := int(today.Sub(day).Hours() / 24)

	switch days {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	}
	return humanize.RelTime(day, today, "ago", "from now")
}

func statusMark(s models.Status) string {
	switch s {
	case models.StatusSuccess:
		return successMark
	case models.StatusFailed:
		return failedMark
	}
	return unknownMark
}

// truncateWithEllipsis truncates a string to maxWidth, adding … if truncated
func truncateWithEllipsis(s string, maxWidth int) string {
	if maxWidth < 2 {
		maxWidth = 2
	}
	if ansi.StringWidth(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth-1, "") + "…"
}

func (m *Model) renderStatusBar(width int) string {
	if m.status == "" {
		return ""
	}
	text := truncateWithEllipsis(m.status, width)
	if m.statusErr {
		return errorStyle.Render(text)
	}
	return statusBarStyle.Render(text)
}
