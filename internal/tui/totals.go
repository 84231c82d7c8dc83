// Package tui renders invoice summaries for the terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"invoicer/internal/core"
	"invoicer/internal/pdf"
)

var (
	accent = lipgloss.Color("#1F3A5F") // navy, same as the document header
	dim    = lipgloss.Color("#6B7280")
	danger = lipgloss.Color("#E74C3C")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle   = lipgloss.NewStyle().Foreground(dim)
	labelStyle = lipgloss.NewStyle().Width(26)
	valueStyle = lipgloss.NewStyle().Width(20).Align(lipgloss.Right)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

// Totals styles the calculations box the same way the PDF lays it out.
type Totals struct {
	Currency core.CurrencyFormat
	Words    core.WordsFormat
}

// DefaultTotals uses the Taka formats.
var DefaultTotals = Totals{Currency: core.DefaultCurrencyFormat, Words: core.DefaultWordsFormat}

// Render prints the header, one line per calculation row and the amount in words.
func (t Totals) Render(rec core.InvoiceRecord, totals core.TotalsResult) string {
	var b strings.Builder

	header := titleStyle.Render(orDash(rec.Number))
	if rec.CustomerName != "" {
		header += dimStyle.Render("  " + rec.CustomerName)
	}
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d item(s)", len(rec.Items))))
	b.WriteString("\n\n")

	for _, row := range pdf.SummaryRows(rec, totals) {
		value := row.Value
		if row.Negative {
			value = core.NewAmount(value.Neg())
		}
		label := labelStyle
		val := valueStyle
		if row.Bold {
			label = label.Bold(true)
			val = val.Bold(true)
		}
		if row.Negative {
			val = val.Foreground(danger)
		}
		if row.Bold {
			b.WriteString(dimStyle.Render(strings.Repeat("─", 46)))
			b.WriteString("\n")
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			label.Render(row.Label),
			val.Render(t.Currency.Format(value))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("In words: "))
	b.WriteString(t.Words.Spell(totals.NetTotal))

	return boxStyle.Render(b.String()) + "\n"
}

// RenderStatus prints the display status of an invoice as a colored badge.
func RenderStatus(number string, display core.DisplayStatus, daysUntilDue *int) string {
	badge := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color(core.StatusColor(display))).
		Render(strings.ToUpper(core.StatusLabel(display)))

	line := titleStyle.Render(orDash(number)) + "  " + badge
	if daysUntilDue != nil {
		line += "  " + dimStyle.Render(dueText(*daysUntilDue))
	}
	return line + "\n"
}

func dueText(days int) string {
	switch {
	case days < -1:
		return fmt.Sprintf("%d days overdue", -days)
	case days == -1:
		return "1 day overdue"
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	default:
		return fmt.Sprintf("due in %d days", days)
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
