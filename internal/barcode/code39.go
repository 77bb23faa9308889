package barcode

import (
	"strings"

	apperrors "github.com/stocktrace/stocktrace-backend/pkg/errors"
)

// Sentinel delimits every encoded symbol sequence. It is part of the
// alphabet but is rejected inside user payloads.
const Sentinel = '*'

// patterns maps each supported character to its nine narrow/wide elements,
// five bars interleaved with four spaces. Every pattern carries exactly
// three wide elements; the table is a fixed constant of the symbology and
// is never derived at runtime.
var patterns = map[rune]string{
	'0': "nnnwwnwnn", '1': "wnnwnnnnw", '2': "nnwwnnnnw", '3': "wnwwnnnnn",
	'4': "nnnwwnnnw", '5': "wnnwwnnnn", '6': "nnwwwnnnn", '7': "nnnwnnwnw",
	'8': "wnnwnnwnn", '9': "nnwwnnwnn", 'A': "wnnnnwnnw", 'B': "nnwnnwnnw",
	'C': "wnwnnwnnn", 'D': "nnnnwwnnw", 'E': "wnnnwwnnn", 'F': "nnwnwwnnn",
	'G': "nnnnnwwnw", 'H': "wnnnnwwnn", 'I': "nnwnnwwnn", 'J': "nnnnwwwnn",
	'K': "wnnnnnnww", 'L': "nnwnnnnww", 'M': "wnwnnnnwn", 'N': "nnnnwnnww",
	'O': "wnnnwnnwn", 'P': "nnwnwnnwn", 'Q': "nnnnnnwww", 'R': "wnnnnnwwn",
	'S': "nnwnnnwwn", 'T': "nnnnwnwwn", 'U': "wwnnnnnnw", 'V': "nwwnnnnnw",
	'W': "wwwnnnnnn", 'X': "nwnnwnnnw", 'Y': "wwnnwnnnn", 'Z': "nwwnwnnnn",
	'-': "nwnnnnwnw", '.': "wwnnnnwnn", ' ': "nwwnnnwnn", '$': "nwnwnwnnn",
	'/': "nwnwnnnwn", '+': "nwnnnwnwn", '%': "nnnwnwnwn", '*': "nwnnwnwnn",
}

// Element is one bar or space of a rendered symbol sequence. Width is in
// narrow units: 1 for narrow, 3 for wide.
type Element struct {
	Width int
	Bar   bool
}

const (
	narrowUnits = 1
	wideUnits   = 3
)

// Valid reports whether text can be encoded as a payload. The sentinel
// is not a valid payload character.
func Valid(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range strings.ToUpper(text) {
		if r == Sentinel {
			return false
		}
		if _, ok := patterns[r]; !ok {
			return false
		}
	}
	return true
}

// Encode expands text into its bar/space element sequence. The payload is
// wrapped in sentinels and every symbol, the trailing sentinel included, is
// followed by one narrow inter-character gap.
func Encode(text string) ([]Element, error) {
	if text == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "barcode text is required")
	}
	upper := strings.ToUpper(text)
	for i, r := range upper {
		if r == Sentinel {
			return nil, apperrors.New(apperrors.CodeValidation, "barcode text may not contain the sentinel character").
				WithDetails(map[string]any{"position": i})
		}
		if _, ok := patterns[r]; !ok {
			return nil, apperrors.New(apperrors.CodeValidation, "barcode text contains an unsupported character").
				WithDetails(map[string]any{"character": string(r), "position": i})
		}
	}

	wrapped := string(Sentinel) + upper + string(Sentinel)
	elements := make([]Element, 0, len(wrapped)*10)
	for _, r := range wrapped {
		pattern := patterns[r]
		for i, w := range pattern {
			width := narrowUnits
			if w == 'w' {
				width = wideUnits
			}
			// bars and spaces alternate, starting with a bar
			elements = append(elements, Element{Width: width, Bar: i%2 == 0})
		}
		elements = append(elements, Element{Width: narrowUnits, Bar: false})
	}
	return elements, nil
}
