package barcode

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stocktrace/stocktrace-backend/pkg/config"
	apperrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
)

func testRenderer() *Renderer {
	return NewRenderer(config.BarcodeConfig{BarHeight: 60, Scale: 2, MaxScale: 10})
}

func TestPatternTableShape(t *testing.T) {
	for char, pattern := range patterns {
		if len(pattern) != 9 {
			t.Errorf("pattern for %q has %d elements, want 9", char, len(pattern))
		}
		wide := strings.Count(pattern, "w")
		if wide != 3 {
			t.Errorf("pattern for %q has %d wide elements, want 3", char, wide)
		}
		if strings.Count(pattern, "n")+wide != 9 {
			t.Errorf("pattern for %q contains characters other than n/w", char)
		}
	}
}

func TestEncode_WrapsWithSentinelAndGaps(t *testing.T) {
	elements, err := Encode("A")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	// *A* is three symbols of nine elements plus a narrow gap each
	if len(elements) != 30 {
		t.Fatalf("expected 30 elements, got %d", len(elements))
	}
	for i, el := range elements {
		pos := i % 10
		if pos == 9 {
			if el.Bar || el.Width != 1 {
				t.Fatalf("element %d should be a narrow gap space", i)
			}
			continue
		}
		if el.Bar != (pos%2 == 0) {
			t.Fatalf("element %d has wrong bar/space alternation", i)
		}
	}
}

func TestEncode_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"sentinel", "AB*12"},
		{"unsupported rune", "AB_12"},
		{"unicode", "ÅB"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(tc.text)
			if err == nil {
				t.Fatal("expected validation error")
			}
			appErr := apperrors.As(err)
			if appErr == nil || appErr.Code() != apperrors.CodeValidation {
				t.Fatalf("expected %s, got %v", apperrors.CodeValidation, err)
			}
		})
	}
}

func TestEncode_LowercaseIsUppercased(t *testing.T) {
	lower, err := Encode("prod-1")
	if err != nil {
		t.Fatalf("encode lower failed: %v", err)
	}
	upper, err := Encode("PROD-1")
	if err != nil {
		t.Fatalf("encode upper failed: %v", err)
	}
	if len(lower) != len(upper) {
		t.Fatalf("case should not change encoding length")
	}
	for i := range lower {
		if lower[i] != upper[i] {
			t.Fatalf("element %d differs between cases", i)
		}
	}
}

// decodeElements reverses an encoding back to its symbol string. It is a
// test-only reference decoder: group ten elements per symbol, rebuild the
// narrow/wide string and look it up in the inverted table.
func decodeElements(t *testing.T, elements []Element) string {
	t.Helper()
	inverse := make(map[string]rune, len(patterns))
	for char, pattern := range patterns {
		inverse[pattern] = char
	}
	if len(elements)%10 != 0 {
		t.Fatalf("element count %d is not a whole number of symbols", len(elements))
	}
	var out strings.Builder
	for i := 0; i < len(elements); i += 10 {
		var pattern strings.Builder
		for j := 0; j < 9; j++ {
			el := elements[i+j]
			if el.Bar != (j%2 == 0) {
				t.Fatalf("symbol at %d breaks bar/space alternation", i)
			}
			switch el.Width {
			case 1:
				pattern.WriteByte('n')
			case 3:
				pattern.WriteByte('w')
			default:
				t.Fatalf("unexpected element width %d", el.Width)
			}
		}
		char, ok := inverse[pattern.String()]
		if !ok {
			t.Fatalf("no symbol matches pattern %s", pattern.String())
		}
		out.WriteRune(char)
	}
	return out.String()
}

func TestEncode_RoundTripsThroughReferenceDecoder(t *testing.T) {
	payloads := []string{
		"PROD-000042",
		"0123456789",
		"ABCDEFGHIJKLM",
		"NOPQRSTUVWXYZ",
		"-. $/+%",
	}
	for _, payload := range payloads {
		elements, err := Encode(payload)
		if err != nil {
			t.Fatalf("encode %q failed: %v", payload, err)
		}
		decoded := decodeElements(t, elements)
		want := "*" + payload + "*"
		if decoded != want {
			t.Fatalf("decoded %q, want %q", decoded, want)
		}
	}
}

func TestWidth_MatchesElementSum(t *testing.T) {
	elements, err := Encode("AB-12")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	// seven symbols of six narrow and three wide elements plus a narrow
	// gap each: 7 * (6*2 + 3*6 + 2) = 224 at scale 2
	if got := Width(elements, 2); got != 224 {
		t.Fatalf("expected width 224, got %d", got)
	}
}

func TestRender_ImageDimensions(t *testing.T) {
	img, err := testRenderer().Render("AB-12", 2)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 224 {
		t.Fatalf("expected image width 224, got %d", bounds.Dx())
	}
	if bounds.Dy() != 80 {
		t.Fatalf("expected image height 80, got %d", bounds.Dy())
	}
}

func TestRender_ScaleBounds(t *testing.T) {
	r := testRenderer()
	if _, err := r.Render("AB", 0); err == nil {
		t.Fatal("expected error for zero scale")
	}
	if _, err := r.Render("AB", 11); err == nil {
		t.Fatal("expected error above max scale")
	}
	if _, err := r.Render("AB", 10); err != nil {
		t.Fatalf("max scale should render: %v", err)
	}
}

func TestRenderPNG_Deterministic(t *testing.T) {
	r := testRenderer()
	first, err := r.RenderPNG("PROD-000007", 2)
	if err != nil {
		t.Fatalf("first render failed: %v", err)
	}
	second, err := r.RenderPNG("PROD-000007", 2)
	if err != nil {
		t.Fatalf("second render failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("identical input should produce byte-identical images")
	}
}

func TestRenderWithLabel_AllowsLabelOutsideAlphabet(t *testing.T) {
	r := testRenderer()
	img, err := r.RenderWithLabel("PROD-000042", "PROD_000042", 2)
	if err != nil {
		t.Fatalf("render with label failed: %v", err)
	}
	if img.Bounds().Dx() == 0 {
		t.Fatal("expected a non-empty image")
	}
	if _, err := r.Render("PROD_000042", 2); err == nil {
		t.Fatal("underscore should not be encodable as bars")
	}
}

func TestRenderBase64_DecodesToPNG(t *testing.T) {
	encoded, err := testRenderer().RenderBase64("PROD-000007", 2)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("output is not valid base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	if img.Bounds().Dy() != 80 {
		t.Fatalf("decoded PNG has height %d, want 80", img.Bounds().Dy())
	}
}
