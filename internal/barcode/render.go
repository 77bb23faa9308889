package barcode

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/stocktrace/stocktrace-backend/pkg/config"
	apperrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
)

const (
	// topMargin is blank space above the bars; the label occupies the
	// matching region below them, so the image is bar height + 20px tall.
	topMargin    = 10
	bottomMargin = 10
)

// Renderer rasterizes encoded symbol sequences into labelled PNG images.
// Rendering is pure: the same text and scale always produce byte-identical
// output.
type Renderer struct {
	barHeight int
	maxScale  int
}

// NewRenderer builds a renderer from the barcode configuration.
func NewRenderer(cfg config.BarcodeConfig) *Renderer {
	return &Renderer{barHeight: cfg.BarHeight, maxScale: cfg.MaxScale}
}

// Width returns the total pixel width of text at the given scale without
// rendering it.
func Width(elements []Element, scale int) int {
	total := 0
	for _, el := range elements {
		total += el.Width * scale
	}
	return total
}

// Render draws the bars and the centered human-readable label.
func (r *Renderer) Render(text string, scale int) (image.Image, error) {
	return r.RenderWithLabel(text, strings.ToUpper(text), scale)
}

// RenderWithLabel draws the bars for payload with an explicit label string
// beneath them. Callers use this when the stored identifier contains a
// character outside the symbology alphabet and the bars carry a substituted
// payload instead.
func (r *Renderer) RenderWithLabel(payload, label string, scale int) (image.Image, error) {
	if scale < 1 {
		return nil, apperrors.New(apperrors.CodeValidation, "scale must be at least 1")
	}
	if r.maxScale > 0 && scale > r.maxScale {
		return nil, apperrors.New(apperrors.CodeValidation, "scale exceeds the configured maximum").
			WithDetails(map[string]any{"max_scale": r.maxScale})
	}

	elements, err := Encode(payload)
	if err != nil {
		return nil, err
	}

	width := Width(elements, scale)
	height := r.barHeight + topMargin + bottomMargin
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	x := 0
	for _, el := range elements {
		w := el.Width * scale
		if el.Bar {
			rect := image.Rect(x, topMargin, x+w, topMargin+r.barHeight)
			draw.Draw(img, rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
		}
		x += w
	}

	drawLabel(img, label, width, topMargin+r.barHeight)
	return img, nil
}

// RenderPNG renders text and encodes the result as PNG bytes.
func (r *Renderer) RenderPNG(text string, scale int) ([]byte, error) {
	return r.RenderPNGWithLabel(text, strings.ToUpper(text), scale)
}

// RenderPNGWithLabel is RenderWithLabel encoded as PNG bytes.
func (r *Renderer) RenderPNGWithLabel(payload, label string, scale int) ([]byte, error) {
	img, err := r.RenderWithLabel(payload, label, scale)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "encoding barcode image")
	}
	return buf.Bytes(), nil
}

// RenderBase64 renders text as a PNG and returns it base64-encoded for
// embedding in documents.
func (r *Renderer) RenderBase64(text string, scale int) (string, error) {
	raw, err := r.RenderPNG(text, scale)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// RenderBase64WithLabel is RenderWithLabel base64-encoded for embedding.
func (r *Renderer) RenderBase64WithLabel(payload, label string, scale int) (string, error) {
	raw, err := r.RenderPNGWithLabel(payload, label, scale)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func drawLabel(img *image.RGBA, label string, width, barBottom int) {
	face := basicfont.Face7x13
	textWidth := len(label) * face.Advance
	x := (width - textWidth) / 2
	if x < 0 {
		x = 0
	}
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(x),
			Y: fixed.I(barBottom + face.Ascent - 2),
		},
	}
	drawer.DrawString(label)
}
