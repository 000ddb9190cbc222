// Package ui renders CLI output: coloured messages, status badges and tables.
package ui

import (
	"fmt"

	"driftwatch/pkg/sdk/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorAccent = lipgloss.Color("99")
	colorOK     = lipgloss.Color("76")
	colorBad    = lipgloss.Color("204")
	colorDrift  = lipgloss.Color("214")
	colorUp     = lipgloss.Color("75")
	colorMuted  = lipgloss.Color("243")
	colorBorder = lipgloss.Color("238")
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(colorAccent)
	okStyle     = lipgloss.NewStyle().Foreground(colorOK)
	badStyle    = lipgloss.NewStyle().Foreground(colorBad)
	driftStyle  = lipgloss.NewStyle().Foreground(colorDrift)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// statusStyles colours each status: green settled, blue running without a
// healthcheck, amber drifted, red broken.
var statusStyles = map[types.Status]lipgloss.Style{
	types.StatusHealthy:   okStyle,
	types.StatusCompleted: okStyle,
	types.StatusUp:        lipgloss.NewStyle().Foreground(colorUp),
	types.StatusOutdated:  driftStyle.Bold(true),
	types.StatusUnhealthy: badStyle,
	types.StatusDown:      badStyle,
}

func Accent(s string) string  { return accentStyle.Render(s) }
func Bold(s string) string    { return boldStyle.Render(s) }
func Muted(s string) string   { return mutedStyle.Render(s) }
func Success(s string) string { return okStyle.Render(s) }
func Warn(s string) string    { return driftStyle.Render(s) }
func Failure(s string) string { return badStyle.Render(s) }

// Status renders s in its status colour.
func Status(s types.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

func SuccessMsg(format string, a ...any) string { return line(okStyle, "✓", format, a) }
func WarnMsg(format string, a ...any) string    { return line(driftStyle, "!", format, a) }
func ErrorMsg(format string, a ...any) string   { return line(badStyle, "✗", format, a) }
func InfoMsg(format string, a ...any) string    { return line(accentStyle, "●", format, a) }

// line prefixes a formatted message with a coloured glyph. No trailing newline.
func line(style lipgloss.Style, glyph, format string, a []any) string {
	return style.Render(glyph) + " " + fmt.Sprintf(format, a...)
}

// Table renders rows under headers with rounded borders. When groupCol is
// non-negative, that column is drawn bold so grouped rows read as blocks.
func Table(headers []string, rows [][]string, groupCol ...int) string {
	group := -1
	if len(groupCol) > 0 {
		group = groupCol[0]
	}
	header := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	grouped := cell.Bold(true)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == group:
				return grouped
			default:
				return cell
			}
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}
