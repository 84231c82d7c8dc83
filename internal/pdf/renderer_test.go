package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/core"
	"invoicer/internal/profile"
)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type staticLogo []byte

func (s staticLogo) Resolve(context.Context) []byte { return s }

func sampleRecord(items int) core.InvoiceRecord {
	rec := core.InvoiceRecord{
		Number:          "INV-2025-0001",
		IssueDate:       core.NewDate(2025, 5, 30),
		DueDate:         core.NewDate(2025, 6, 14),
		CustomerName:    "Rahim Traders",
		CustomerEmail:   "rahim@example.com",
		CustomerPhone:   "01700000000",
		CustomerAddress: "House 12, Road 5, Dhanmondi, Dhaka 1205, Bangladesh",
		PaymentStatus:   core.StatusPending,
		ServiceCharge:   core.ChargeSpec{Kind: core.ChargePercentage, Value: amt("10")},
		VAT:             core.ChargeSpec{Kind: core.ChargeFixed, Value: amt("50")},
		SpecialDiscount: amt("25"),
	}
	for i := 0; i < items; i++ {
		rec.Items = append(rec.Items, core.LineItem{
			Seq:         i + 1,
			Description: fmt.Sprintf("Teak wood plank grade A, batch %d", i+1),
			Unit:        core.UnitCFT,
			Quantity:    amt("2.5"),
			UnitPrice:   amt("1250"),
		})
	}
	return rec
}

func pngLogo(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 90, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRender_SinglePage(t *testing.T) {
	r := NewRenderer(profile.Default(), WithClock(clock))
	doc, err := r.RenderRecord(context.Background(), sampleRecord(3))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
	assert.Equal(t, 1, doc.Pages)
	assert.False(t, doc.LogoImage)
	assert.Equal(t, "Invoice_INV-2025-0001_2025-06-01.pdf", doc.FileName)
}

func TestRender_Deterministic(t *testing.T) {
	r := NewRenderer(profile.Default(), WithClock(clock), WithLogo(staticLogo(pngLogo(t))))
	rec := sampleRecord(4)

	a, err := r.RenderRecord(context.Background(), rec)
	require.NoError(t, err)
	b, err := r.RenderRecord(context.Background(), rec)
	require.NoError(t, err)

	assert.True(t, a.LogoImage)
	assert.Equal(t, a.Data, b.Data)
}

func TestRender_InvalidLogoFallsBack(t *testing.T) {
	r := NewRenderer(profile.Default(), WithClock(clock), WithLogo(staticLogo("not an image")))
	doc, err := r.RenderRecord(context.Background(), sampleRecord(1))
	require.NoError(t, err)
	assert.False(t, doc.LogoImage)
	assert.NotEmpty(t, doc.Data)
}

func TestRender_NilLogoResolverResult(t *testing.T) {
	r := NewRenderer(profile.Default(), WithClock(clock), WithLogo(staticLogo(nil)))
	doc, err := r.RenderRecord(context.Background(), sampleRecord(1))
	require.NoError(t, err)
	assert.False(t, doc.LogoImage)
}

func TestRender_PaginatesLongTables(t *testing.T) {
	r := NewRenderer(profile.Default(), WithClock(clock))
	doc, err := r.RenderRecord(context.Background(), sampleRecord(60))
	require.NoError(t, err)
	assert.Greater(t, doc.Pages, 1)
}

func TestRender_DoesNotMutateRecord(t *testing.T) {
	rec := sampleRecord(2)
	before := rec.Clone()

	r := NewRenderer(profile.Default(), WithClock(clock))
	_, err := r.RenderRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, before, rec)
}

func TestRender_SparseRecord(t *testing.T) {
	// no dates, no contact details, zero amounts
	rec := core.InvoiceRecord{
		Number:       "INV-2025-TEMP",
		CustomerName: "Walk-in",
		Items:        []core.LineItem{core.NewLineItem(1)},
	}
	r := NewRenderer(profile.Default(), WithClock(clock))
	doc, err := r.Render(context.Background(), rec, core.ComputeTotals(rec.Items, rec.ServiceCharge, rec.VAT, rec.SpecialDiscount))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages)
}

func TestRender_LongAddressAndNegativeNet(t *testing.T) {
	rec := sampleRecord(1)
	for i := 0; i < 6; i++ {
		rec.CustomerAddress += " Very long address segment that keeps on going and going."
	}
	rec.SpecialDiscount = amt("100000")

	r := NewRenderer(profile.Default(), WithClock(clock), WithCalculator(core.NewCalculator(core.TotalsPolicy{})))
	doc, err := r.RenderRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages)
}

func sixteenBitLogo(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA64(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA64{R: 0x1111, G: 0x8888, B: 0xcccc, A: 0xffff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRender_SixteenBitLogoIsNormalized(t *testing.T) {
	r := NewRenderer(profile.Default(), WithClock(clock), WithLogo(staticLogo(sixteenBitLogo(t))))

	var doc *Document
	var err error
	require.NotPanics(t, func() {
		doc, err = r.RenderRecord(context.Background(), sampleRecord(2))
	})
	require.NoError(t, err)
	assert.True(t, doc.LogoImage)
	assert.Equal(t, 1, doc.Pages)
}

func TestNormalizeLogo(t *testing.T) {
	out, err := normalizeLogo(sixteenBitLogo(t))
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	// 8-bit truecolor; opaque images are written without the alpha channel
	assert.True(t, cfg.ColorModel == color.RGBAModel || cfg.ColorModel == color.NRGBAModel)
	assert.Equal(t, 16, cfg.Width)

	_, err = normalizeLogo(nil)
	assert.ErrorIs(t, err, errUnusableLogo)
	_, err = normalizeLogo([]byte("not an image"))
	assert.Error(t, err)
}

func TestRender_LongContactDetails(t *testing.T) {
	rec := sampleRecord(1)
	rec.CustomerName = strings.Repeat("Rahim Traders and Sons ", 8)
	rec.CustomerEmail = strings.Repeat("accounts", 12) + "@example.com"
	rec.CustomerPhone = strings.Repeat("0170000000 ", 10)

	r := NewRenderer(profile.Default(), WithClock(clock))
	doc, err := r.RenderRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages)
}

func newTestLayout(t *testing.T) *layout {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	l := &layout{
		r:   NewRenderer(profile.Default(), WithClock(clock)),
		pdf: pdf,
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
		rec: sampleRecord(1),
		now: fixedNow,
	}
	pdf.SetFooterFunc(l.watermark)
	pdf.AddPage()
	return l
}

func TestSignatures_StayBelowCalculationsBox(t *testing.T) {
	tests := []struct {
		name      string
		y         float64
		boxBottom float64
		want      float64
	}{
		{name: "words end above box floor", y: 120, boxBottom: 150, want: 180},
		{name: "words end below box floor", y: 170, boxBottom: 150, want: 200},
		{name: "words end exactly at box bottom", y: 150, boxBottom: 150, want: 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLayout(t)
			sigY := l.signatures(tt.y, tt.boxBottom)
			assert.Equal(t, tt.want, sigY)
			assert.GreaterOrEqual(t, sigY, tt.boxBottom+signatureGap)
			assert.Equal(t, 1, l.pdf.PageNo())
		})
	}
}

func TestSignatures_MoveToNextPage(t *testing.T) {
	l := newTestLayout(t)
	sigY := l.signatures(250, 240)
	assert.Equal(t, 2, l.pdf.PageNo())
	assert.Equal(t, margin+signatureGap, sigY)
	require.NoError(t, l.pdf.Error())
}

func TestWatermark_RestoresAlpha(t *testing.T) {
	l := newTestLayout(t)
	l.watermark()
	alpha, mode := l.pdf.GetAlpha()
	assert.Equal(t, 1.0, alpha)
	assert.Equal(t, "Normal", mode)

	// the footer of page 1 runs inside AddPage, before page 2 is drawn
	l.newPage()
	alpha, _ = l.pdf.GetAlpha()
	assert.Equal(t, 1.0, alpha)
	assert.Equal(t, 2, l.pdf.PageNo())
	require.NoError(t, l.pdf.Error())
}
