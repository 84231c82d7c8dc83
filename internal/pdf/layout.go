package pdf

import (
	"fmt"
	"strings"
	"time"

	"invoicer/internal/core"
)

// Page geometry, in millimetres on A4 portrait.
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	margin       = 15.0
	contentWidth = pageWidth - 2*margin
	bottomLimit  = pageHeight - margin

	headerHeight = 35.0

	panelY      = 40.0
	panelGap    = 10.0
	panelWidth  = (contentWidth - panelGap) / 2
	panelHeight = 45.0
	panelRadius = 3.0

	// text inside a panel starts 10mm in and keeps 5mm clear of the right edge
	panelTextWidth = panelWidth - 15

	addressLineHeight = 3.8

	tableY         = 86.0
	tableHeaderH   = 8.0
	tableLineH     = 5.0
	tableMinRowH   = 7.0
	calcBoxWidth   = 80.0
	calcRowHeight  = 6.0
	calcBoxPadding = 10.0

	badgeWidth  = 30.0
	badgeHeight = 8.0

	wordsIndent  = 30.0
	wordsLineH   = 5.0
	signatureGap = 30.0
)

type rgb struct{ r, g, b int }

var (
	colorBrand      = rgb{25, 55, 90}
	colorAccent     = rgb{41, 128, 185}
	colorTagline    = rgb{200, 220, 255}
	colorPanelFill  = rgb{248, 250, 252}
	colorBorder     = rgb{220, 220, 220}
	colorHeading    = rgb{44, 62, 80}
	colorBody       = rgb{60, 60, 60}
	colorStripe     = rgb{250, 252, 255}
	colorDiscount   = rgb{200, 50, 50}
	colorMuted      = rgb{80, 80, 80}
	colorCaption    = rgb{120, 120, 120}
	colorSignLine   = rgb{150, 150, 150}
	colorWatermark  = rgb{230, 150, 100}
	colorWhite      = rgb{255, 255, 255}
	watermarkAlpha  = 0.1
	watermarkSize   = 60.0
	watermarkDegree = 45.0
)

// column is one line-item table column.
type column struct {
	title string
	width float64
	align string
}

var columns = []column{
	{"#", 10, "C"},
	{"PRODUCT", 55, "L"},
	{"UNIT", 20, "C"},
	{"QUANTITY", 25, "R"},
	{"PRICE", 35, "R"},
	{"AMOUNT", 35, "R"},
}

// SummaryRow is one line of the calculations box.
type SummaryRow struct {
	Label    string
	Value    core.Amount
	Negative bool
	Bold     bool
	Total    bool
}

// SummaryRows lists the rows of the calculations box. Subtotal, Grand Total and
// NET TOTAL are unconditional; charges and the discount appear only when positive.
func SummaryRows(rec core.InvoiceRecord, totals core.TotalsResult) []SummaryRow {
	rows := []SummaryRow{{Label: "Subtotal", Value: totals.Subtotal}}
	if totals.ServiceChargeAmount.IsPositive() {
		rows = append(rows, SummaryRow{Label: chargeLabel("Service Charge", rec.ServiceCharge), Value: totals.ServiceChargeAmount})
	}
	if totals.VATAmount.IsPositive() {
		rows = append(rows, SummaryRow{Label: chargeLabel("VAT", rec.VAT), Value: totals.VATAmount})
	}
	rows = append(rows, SummaryRow{Label: "Grand Total", Value: totals.GrandTotal, Bold: true})
	if totals.SpecialDiscount.IsPositive() {
		rows = append(rows, SummaryRow{Label: "Special Discount", Value: totals.SpecialDiscount, Negative: true})
	}
	return append(rows, SummaryRow{Label: "NET TOTAL", Value: totals.NetTotal, Bold: true, Total: true})
}

func chargeLabel(name string, spec core.ChargeSpec) string {
	if spec.Kind == core.ChargePercentage {
		return fmt.Sprintf("%s (%s%%)", name, spec.Value.String())
	}
	return name
}

// boxHeight is the calculations box height for n rows.
func boxHeight(n int) float64 {
	return float64(n)*calcRowHeight + calcBoxPadding
}

// addressBudget is how many address lines fit in the bill-to panel once
// the name and the optional phone and email lines are placed.
func addressBudget(hasPhone, hasEmail bool) int {
	n := 7
	if hasPhone {
		n--
	}
	if hasEmail {
		n--
	}
	return n
}

// measurer is the part of gofpdf used to wrap text.
type measurer interface {
	SetFontSize(size float64)
	SplitLines(txt []byte, w float64) [][]byte
}

var addressSizes = []float64{9, 8, 7}

// fitAddress wraps text to width, shrinking the font until it fits in maxLines.
// At the smallest size the overflow is cut and the last line ends with "...".
func fitAddress(m measurer, text string, width float64, maxLines int) ([]string, float64) {
	text = strings.TrimSpace(text)
	if text == "" || maxLines <= 0 {
		return nil, addressSizes[0]
	}
	var lines []string
	var size float64
	for _, size = range addressSizes {
		m.SetFontSize(size)
		lines = splitText(m, text, width)
		if len(lines) <= maxLines {
			return lines, size
		}
	}
	lines = lines[:maxLines]
	lines[maxLines-1] = ellipsize(m, lines[maxLines-1], width)
	return lines, size
}

// fitLine keeps text on one line of width at the current font size, cutting
// it with "..." when it is longer.
func fitLine(m measurer, text string, width float64) string {
	text = strings.TrimSpace(text)
	lines := splitText(m, text, width)
	if len(lines) <= 1 {
		return text
	}
	return ellipsize(m, lines[0], width)
}

func ellipsize(m measurer, line string, width float64) string {
	last := strings.TrimRight(line, " ,")
	for len(last) > 0 && len(splitText(m, last+"...", width)) > 1 {
		last = last[:len(last)-1]
	}
	return last + "..."
}

func splitText(m measurer, text string, width float64) []string {
	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		for _, l := range m.SplitLines([]byte(paragraph), width) {
			out = append(out, strings.TrimSpace(string(l)))
		}
	}
	return out
}

// FileName is the download name of a rendered invoice.
func FileName(invoiceNumber string, generated time.Time) string {
	number := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(invoiceNumber))
	return fmt.Sprintf("Invoice_%s_%s.pdf", number, generated.Format("2006-01-02"))
}

// badgeColor is the pill color of a display status.
func badgeColor(s core.DisplayStatus) rgb {
	switch s {
	case core.DisplayPaid:
		return rgb{46, 204, 113}
	case core.DisplayOverdue:
		return rgb{230, 126, 34}
	case core.DisplayDueSoon:
		return rgb{243, 156, 18}
	default:
		return rgb{231, 76, 60}
	}
}
