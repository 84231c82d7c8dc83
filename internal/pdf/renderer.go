// Package pdf lays out invoices as A4 PDF documents.
//
// Rendering runs in fixed stages that advance a vertical cursor: header band,
// bill-from and bill-to panels, the line-item table, the calculations box with
// the due date and status badge beside it, the amount in words, the signature
// blocks and the footer. A watermark is drawn over every finished page.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/draw"

	"invoicer/internal/core"
	"invoicer/internal/profile"
)

// LogoResolver supplies the header logo. A nil result selects the text badge.
type LogoResolver interface {
	Resolve(ctx context.Context) []byte
}

// Document is a rendered invoice.
type Document struct {
	FileName string
	Data     []byte
	Pages    int
	// LogoImage is false when the text badge was drawn instead of an image.
	LogoImage bool
}

type Renderer struct {
	profile  profile.Profile
	rule     core.StatusRule
	calc     core.Calculator
	logo     LogoResolver
	now      func() time.Time
	currency core.CurrencyFormat
	words    core.WordsFormat
}

type Option func(*Renderer)

func WithStatusRule(rule core.StatusRule) Option {
	return func(r *Renderer) { r.rule = rule }
}

func WithCalculator(calc core.Calculator) Option {
	return func(r *Renderer) { r.calc = calc }
}

func WithLogo(logo LogoResolver) Option {
	return func(r *Renderer) { r.logo = logo }
}

// WithClock sets the time used for the status badge, the file name and the
// document creation date.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// NewRenderer creates a renderer for the given company profile.
func NewRenderer(p profile.Profile, opts ...Option) *Renderer {
	r := &Renderer{
		profile:  p,
		rule:     core.DefaultStatusRule,
		now:      time.Now,
		currency: p.CurrencyFormat(),
		words:    p.WordsFormat(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderRecord computes the totals of rec and renders it.
func (r *Renderer) RenderRecord(ctx context.Context, rec core.InvoiceRecord) (*Document, error) {
	applied, totals := r.calc.Apply(rec)
	return r.Render(ctx, applied, totals)
}

// Render lays out rec with the given totals. The record is not modified.
// Logo failures fall back to the text badge; only gofpdf errors are returned.
func (r *Renderer) Render(ctx context.Context, rec core.InvoiceRecord, totals core.TotalsResult) (*Document, error) {
	now := r.now()

	var logo []byte
	if r.logo != nil {
		logo = r.logo.Resolve(ctx)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetCreationDate(now)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Invoice "+rec.Number, false)
	pdf.SetAuthor(r.profile.Name, false)

	l := &layout{
		r:      r,
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		rec:    rec,
		totals: totals,
		now:    now,
	}
	pdf.SetFooterFunc(l.watermark)
	pdf.AddPage()

	l.header(logo)
	l.panels()
	tableEnd := l.table()
	boxY, boxBottom := l.calculations(tableEnd)
	l.dueAndBadge(boxY)
	y := l.amountInWords(boxBottom)
	sigY := l.signatures(y, boxBottom)
	l.footer(sigY)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering invoice %s: %w", rec.Number, err)
	}
	return &Document{
		FileName:  FileName(rec.Number, now),
		Data:      buf.Bytes(),
		Pages:     pdf.PageNo(),
		LogoImage: l.logoImage,
	}, nil
}

// layout carries the state of one rendering.
type layout struct {
	r         *Renderer
	pdf       *gofpdf.Fpdf
	tr        func(string) string
	rec       core.InvoiceRecord
	totals    core.TotalsResult
	now       time.Time
	logoImage bool
}

func (l *layout) textColor(c rgb) { l.pdf.SetTextColor(c.r, c.g, c.b) }
func (l *layout) fillColor(c rgb) { l.pdf.SetFillColor(c.r, c.g, c.b) }
func (l *layout) drawColor(c rgb) { l.pdf.SetDrawColor(c.r, c.g, c.b) }

func (l *layout) text(x, y float64, s string) {
	l.pdf.Text(x, y, l.tr(s))
}

func (l *layout) centerText(cx, y float64, s string) {
	s = l.tr(s)
	l.pdf.Text(cx-l.pdf.GetStringWidth(s)/2, y, s)
}

func (l *layout) rightText(right, y float64, s string) {
	s = l.tr(s)
	l.pdf.Text(right-l.pdf.GetStringWidth(s), y, s)
}

func (l *layout) newPage() {
	l.pdf.AddPage()
}

func (l *layout) header(logo []byte) {
	pdf := l.pdf
	p := l.r.profile

	l.fillColor(colorBrand)
	pdf.Rect(0, 0, pageWidth, headerHeight, "F")

	l.logoImage = l.placeLogo(logo)
	if !l.logoImage {
		l.textBadge()
	}

	pdf.SetFont("Helvetica", "B", 16)
	l.textColor(colorWhite)
	l.centerText(pageWidth/2, 18, p.Name)
	if p.Tagline != "" {
		pdf.SetFont("Helvetica", "", 10)
		l.textColor(colorTagline)
		l.centerText(pageWidth/2, 26, p.Tagline)
	}

	issued := l.rec.IssueDate
	if issued.IsZero() {
		issued = core.DateOf(l.now)
	}
	right := pageWidth - margin - 10
	pdf.SetFont("Helvetica", "B", 12)
	l.textColor(colorWhite)
	l.rightText(right, 10, "INVOICE")
	pdf.SetFont("Helvetica", "", 9)
	l.rightText(right, 18, "Invoice No: "+l.rec.Number)
	l.rightText(right, 23, "Date: "+core.FormatDisplayDate(issued))
}

// placeLogo draws the image logo and reports whether it could be used.
// gofpdf errors are sticky, so the image is normalized to an 8-bit PNG and
// registered on a scratch document before it touches the invoice.
func (l *layout) placeLogo(logo []byte) bool {
	data, err := normalizeLogo(logo)
	if err != nil {
		return false
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	scratch := gofpdf.New("P", "mm", "A4", "")
	scratch.RegisterImageOptionsReader("logo", opts, bytes.NewReader(data))
	if !scratch.Ok() {
		return false
	}

	l.pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(data))
	if !l.pdf.Ok() {
		return false
	}
	l.fillColor(colorWhite)
	l.pdf.Circle(30, 18, 12, "F")
	l.pdf.ImageOptions("logo", 18, 6, 24, 24, false, opts, 0, "")
	return true
}

const maxLogoPixels = 4096 * 4096

var errUnusableLogo = errors.New("unusable logo image")

// normalizeLogo re-encodes any decodable image as a non-interlaced 8-bit
// NRGBA PNG.
func normalizeLogo(logo []byte) ([]byte, error) {
	if len(logo) == 0 {
		return nil, errUnusableLogo
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(logo))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxLogoPixels {
		return nil, errUnusableLogo
	}
	src, _, err := image.Decode(bytes.NewReader(logo))
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *layout) textBadge() {
	pdf := l.pdf
	l.fillColor(colorWhite)
	l.drawColor(colorAccent)
	pdf.SetLineWidth(0.8)
	pdf.Circle(30, 18, 12, "FD")
	pdf.SetFont("Helvetica", "B", 16)
	l.textColor(colorBrand)
	l.centerText(30, 21, l.r.profile.Mark())
}

func (l *layout) panel(x float64, title string) {
	l.fillColor(colorPanelFill)
	l.drawColor(colorBorder)
	l.pdf.SetLineWidth(0.2)
	l.pdf.RoundedRect(x, panelY, panelWidth, panelHeight, panelRadius, "1234", "FD")
	l.pdf.SetFont("Helvetica", "B", 10)
	l.textColor(colorHeading)
	l.text(x+10, panelY+8, title)
}

func (l *layout) panels() {
	pdf := l.pdf
	left := margin
	right := margin + panelWidth + panelGap

	l.panel(left, "BILL FROM")
	pdf.SetFont("Helvetica", "", 9)
	l.textColor(colorBody)
	for i, line := range l.r.profile.BillFrom() {
		if i >= 7 {
			break
		}
		pdf.Text(left+10, panelY+13+float64(i)*4, fitLine(pdf, l.tr(line), panelTextWidth))
	}

	l.panel(right, "BILL TO")
	rec := l.rec
	pdf.SetFont("Helvetica", "B", 9)
	l.textColor(colorBody)
	pdf.Text(right+10, panelY+13, fitLine(pdf, l.tr(rec.CustomerName), panelTextWidth))

	pdf.SetFont("Helvetica", "", 9)
	budget := addressBudget(rec.CustomerPhone != "", rec.CustomerEmail != "")
	lines, _ := fitAddress(pdf, l.tr(rec.CustomerAddress), panelTextWidth, budget)
	for i, line := range lines {
		pdf.Text(right+10, panelY+20+float64(i)*addressLineHeight, line)
	}

	pdf.SetFont("Helvetica", "", 9)
	y := panelY + 18 + float64(len(lines))*addressLineHeight + 2
	if rec.CustomerPhone != "" {
		pdf.Text(right+10, y, fitLine(pdf, l.tr("Phone: "+rec.CustomerPhone), panelTextWidth))
		y += 4
	}
	if rec.CustomerEmail != "" {
		pdf.Text(right+10, y, fitLine(pdf, l.tr("Email: "+rec.CustomerEmail), panelTextWidth))
	}
}

func (l *layout) tableHeader(y float64) float64 {
	pdf := l.pdf
	l.fillColor(colorAccent)
	l.drawColor(colorBorder)
	pdf.SetLineWidth(0.1)
	pdf.SetFont("Helvetica", "B", 9)
	l.textColor(colorWhite)
	x := margin
	for _, c := range columns {
		pdf.SetXY(x, y)
		pdf.CellFormat(c.width, tableHeaderH, c.title, "1", 0, "C", true, 0, "")
		x += c.width
	}
	return y + tableHeaderH
}

// table draws the header and one row per item, starting a new page (with the
// header repeated) when a row would cross the bottom margin. It returns the y
// just below the last row.
func (l *layout) table() float64 {
	pdf := l.pdf
	y := l.tableHeader(tableY)
	grouping := l.r.currency.Grouping
	productWidth := columns[1].width - 2

	for i, it := range l.rec.Items {
		pdf.SetFont("Helvetica", "", 9)
		product := splitText(pdf, l.tr(it.Description), productWidth)
		if len(product) == 0 {
			product = []string{""}
		}
		rowH := float64(len(product))*tableLineH + 2
		if rowH < tableMinRowH {
			rowH = tableMinRowH
		}
		if y+rowH > bottomLimit {
			l.newPage()
			y = l.tableHeader(margin)
			pdf.SetFont("Helvetica", "", 9)
		}

		fill := i%2 == 1
		if fill {
			l.fillColor(colorStripe)
		}
		l.drawColor(colorBorder)
		pdf.SetLineWidth(0.1)
		l.textColor(colorBody)

		cells := []string{
			fmt.Sprintf("%d", i+1),
			"",
			string(it.Unit),
			core.FormatQuantity(it.Quantity, grouping),
			l.r.currency.Format(it.UnitPrice),
			l.r.currency.Format(core.LineTotal(it.Quantity, it.UnitPrice)),
		}
		x := margin
		for ci, c := range columns {
			pdf.SetXY(x, y)
			pdf.CellFormat(c.width, rowH, l.tr(cells[ci]), "1", 0, c.align, fill, 0, "")
			x += c.width
		}
		textTop := y + (rowH-float64(len(product))*tableLineH)/2
		for li, line := range product {
			pdf.Text(margin+columns[0].width+1, textTop+float64(li)*tableLineH+3.5, line)
		}
		y += rowH
	}
	return y
}

// calculations draws the totals box right-aligned under the table and returns
// its top and bottom edges.
func (l *layout) calculations(tableEnd float64) (float64, float64) {
	pdf := l.pdf
	rows := SummaryRows(l.rec, l.totals)
	h := boxHeight(len(rows))

	boxY := tableEnd + 1
	if boxY+h+wordsLineH*3 > bottomLimit {
		l.newPage()
		boxY = margin
	}
	x := pageWidth - margin - calcBoxWidth

	l.fillColor(colorPanelFill)
	l.drawColor(colorBorder)
	pdf.SetLineWidth(0.2)
	pdf.RoundedRect(x, boxY, calcBoxWidth, h, panelRadius, "1234", "FD")

	y := boxY + 7
	for _, row := range rows {
		size, style, color := 9.0, "", colorBody
		if row.Bold {
			style = "B"
		}
		if row.Total {
			size, color = 11, colorBrand
		}
		if row.Negative {
			color = colorDiscount
		}
		if row.Bold {
			l.drawColor(colorBorder)
			if row.Total {
				l.drawColor(colorBrand)
				pdf.SetLineWidth(0.4)
			}
			pdf.Line(x+4, y-4.5, x+calcBoxWidth-4, y-4.5)
			pdf.SetLineWidth(0.2)
		}

		value := row.Value
		if row.Negative {
			value = core.NewAmount(value.Neg())
		}
		pdf.SetFont("Helvetica", style, size)
		l.textColor(color)
		l.text(x+6, y, row.Label)
		l.rightText(x+calcBoxWidth-6, y, l.r.currency.Format(value))
		y += calcRowHeight
	}
	return boxY, boxY + h
}

func (l *layout) dueAndBadge(boxY float64) {
	pdf := l.pdf
	pdf.SetFont("Helvetica", "B", 9)
	l.textColor(colorMuted)
	due := "Upon Receipt"
	if !l.rec.DueDate.IsZero() {
		due = core.FormatDisplayDate(l.rec.DueDate)
	}
	l.text(margin, boxY+5, "Due Date: "+due)

	status := l.r.rule.Derive(l.rec.PaymentStatus, l.rec.DueDate, l.now)
	l.fillColor(badgeColor(status))
	pdf.RoundedRect(margin, boxY+11, badgeWidth, badgeHeight, badgeHeight/2, "1234", "F")
	pdf.SetFont("Helvetica", "B", 8.5)
	l.textColor(colorWhite)
	l.centerText(margin+badgeWidth/2, boxY+11+badgeHeight/2+1.5, strings.ToUpper(core.StatusLabel(status)))
}

// amountInWords writes the net total in words under the box and returns the
// cursor below the last line.
func (l *layout) amountInWords(boxBottom float64) float64 {
	pdf := l.pdf
	y := boxBottom + 8
	pdf.SetFont("Helvetica", "B", 10)
	l.textColor(colorHeading)
	l.text(margin, y, "Amount in Words:")

	pdf.SetFont("Helvetica", "I", 9)
	l.textColor(colorBody)
	lines := splitText(pdf, l.tr(l.r.words.Spell(l.totals.NetTotal)), contentWidth-wordsIndent)
	for i, line := range lines {
		pdf.Text(margin+wordsIndent, y+float64(i)*wordsLineH, line)
	}
	return y + float64(len(lines))*wordsLineH
}

// signatures places the two signature blocks no higher than signatureGap
// below the calculations box and returns their baseline.
func (l *layout) signatures(y, boxBottom float64) float64 {
	pdf := l.pdf
	sigY := y + signatureGap
	if floor := boxBottom + signatureGap; sigY < floor {
		sigY = floor
	}
	if sigY+30 > bottomLimit {
		l.newPage()
		sigY = margin + signatureGap
	}
	doc := l.r.profile.Document

	pdf.SetFont("Helvetica", "I", 8)
	l.textColor(colorCaption)
	l.centerText(70, sigY-15, doc.SupplierCaption)
	l.centerText(155, sigY-15, doc.CustomerCaption)

	l.drawColor(colorSignLine)
	pdf.SetLineWidth(0.3)
	pdf.Line(40, sigY, 100, sigY)
	pdf.Line(125, sigY, 185, sigY)

	pdf.SetFont("Helvetica", "B", 10)
	l.textColor(colorHeading)
	l.centerText(70, sigY+8, doc.SupplierLabel)
	l.centerText(155, sigY+8, doc.CustomerLabel)
	return sigY
}

func (l *layout) footer(sigY float64) {
	pdf := l.pdf
	y := sigY + 25
	pdf.SetFont("Helvetica", "I", 11)
	l.textColor(colorAccent)
	l.centerText(pageWidth/2, y, l.r.profile.Document.ThankYou)
	l.drawColor(colorAccent)
	pdf.SetLineWidth(0.3)
	pdf.Line(margin, y+3, pageWidth-margin, y+3)
}

// watermark runs as the page footer, so it lands on every page once the
// page content is complete.
func (l *layout) watermark() {
	pdf := l.pdf
	mark := l.tr(l.r.profile.Mark())
	if mark == "" {
		return
	}
	cx, cy := pageWidth/2, pageHeight/2
	pdf.SetFont("Helvetica", "B", watermarkSize)
	l.textColor(colorWatermark)
	pdf.SetAlpha(watermarkAlpha, "Normal")
	pdf.TransformBegin()
	pdf.TransformRotate(watermarkDegree, cx, cy)
	pdf.Text(cx-pdf.GetStringWidth(mark)/2, cy+watermarkSize*0.35/2, mark)
	pdf.TransformEnd()
	pdf.SetAlpha(1, "Normal")
}
