package logo

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// DefaultDiameter is the pixel size of the masked logo. The header draws it
// at 24mm, so this is roughly 250 dpi.
const DefaultDiameter = 240

// circle is an alpha mask that is opaque inside a centered disc.
type circle struct {
	size int
}

func (c circle) ColorModel() color.Model { return color.AlphaModel }

func (c circle) Bounds() image.Rectangle { return image.Rect(0, 0, c.size, c.size) }

func (c circle) At(x, y int) color.Color {
	r := float64(c.size) / 2
	dx := float64(x) + 0.5 - r
	dy := float64(y) + 0.5 - r
	if dx*dx+dy*dy <= r*r {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}

// CircularPNG decodes data, crops the largest centered square, scales it to
// diameter pixels and clears everything outside the inscribed circle.
func CircularPNG(data []byte, diameter int) ([]byte, error) {
	if diameter <= 0 {
		diameter = DefaultDiameter
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding logo: %w", err)
	}

	square := centerSquare(src.Bounds())
	if square.Empty() {
		return nil, fmt.Errorf("decoding logo: %w", ErrEmptyImage)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, diameter, diameter))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, square, draw.Src, nil)

	out := image.NewRGBA(scaled.Bounds())
	draw.DrawMask(out, out.Bounds(), scaled, image.Point{}, circle{size: diameter}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encoding logo: %w", err)
	}
	return buf.Bytes(), nil
}

func centerSquare(b image.Rectangle) image.Rectangle {
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x, y, x+side, y+side)
}
