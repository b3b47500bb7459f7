package overlay

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/mcp-pdf-overlay/internal/fieldmap"
)

const (
	// DefaultTextFontSize applies to text, date, number and signature fields
	DefaultTextFontSize = 10.0

	// DefaultCheckboxFontSize applies to checkbox marks
	DefaultCheckboxFontSize = 12.0

	// glyphWidthFactor estimates the average glyph width as a fraction of the font size
	glyphWidthFactor = 0.5

	// lineHeightFactor is the baseline-to-baseline distance as a multiple of the font size
	lineHeightFactor = 1.2
)

// Font selects one of the standard fonts the overlay draws with
type Font int

const (
	FontRegular Font = iota
	FontBold
	FontDingbats
)

// BaseFont returns the PDF standard 14 font name
func (f Font) BaseFont() string {
	switch f {
	case FontBold:
		return "Helvetica-Bold"
	case FontDingbats:
		return "ZapfDingbats"
	default:
		return "Helvetica"
	}
}

// checkMark picks the font and text for a checkbox mark. A single character
// from the Unicode Dingbats block is drawn with ZapfDingbats, whose built-in
// encoding that block was derived from; anything else uses Helvetica-Bold.
func checkMark(mark string) (Font, string) {
	r, size := utf8.DecodeRuneInString(mark)
	if size == len(mark) && r >= 0x2701 && r <= 0x275E {
		return FontDingbats, string(rune(r - 0x2700 + 0x20))
	}
	return FontBold, mark
}

// Color is an RGB fill color with components in [0, 1]
type Color struct {
	R, G, B float64
}

var (
	// Black is used for text and checkbox marks
	Black = Color{}

	// SignatureBlue tells a signature apart from typed answers
	SignatureBlue = Color{R: 0, G: 0, B: 0.5}
)

// TextRun is one line of text to draw at an absolute baseline position
type TextRun struct {
	FieldID string
	Page    int
	X       float64
	Y       float64
	Size    float64
	Font    Font
	Color   Color
	Text    string
}

// MaxChars estimates how many characters fit in width at fontSize
func MaxChars(width, fontSize float64) int {
	return int(math.Floor(width / (fontSize * glyphWidthFactor)))
}

// WrapText splits s into lines of at most maxChars characters when s is
// longer than maxChars. Words are packed greedily; a word longer than
// maxChars sits alone on its line and overflows.
func WrapText(s string, maxChars int) []string {
	if utf8.RuneCountInString(s) <= maxChars {
		return []string{s}
	}

	var lines []string
	var line string
	lineLen := 0
	for _, word := range strings.Fields(s) {
		wordLen := utf8.RuneCountInString(word)
		switch {
		case lineLen == 0:
			line, lineLen = word, wordLen
		case lineLen+1+wordLen <= maxChars:
			line += " " + word
			lineLen += 1 + wordLen
		default:
			lines = append(lines, line)
			line, lineLen = word, wordLen
		}
	}
	if lineLen > 0 {
		lines = append(lines, line)
	}
	return lines
}

// LayoutField computes the runs one field draws for a value. It returns nil
// when nothing is drawn: a blank value or an unchecked checkbox. Page bounds
// are not checked here.
func LayoutField(f fieldmap.FieldDefinition, v fieldmap.Value) []TextRun {
	if v.IsBlank() {
		return nil
	}

	switch f.Type {
	case fieldmap.FieldTypeCheckbox:
		if !v.Checked() {
			return nil
		}
		font, mark := checkMark(f.Mark())
		return []TextRun{{
			FieldID: f.ID,
			Page:    f.Page,
			X:       f.X,
			Y:       f.Y,
			Size:    sizeOr(f.FontSize, DefaultCheckboxFontSize),
			Font:    font,
			Color:   Black,
			Text:    mark,
		}}

	case fieldmap.FieldTypeSignature:
		return []TextRun{{
			FieldID: f.ID,
			Page:    f.Page,
			X:       f.X,
			Y:       f.Y,
			Size:    sizeOr(f.FontSize, DefaultTextFontSize),
			Font:    FontRegular,
			Color:   SignatureBlue,
			Text:    v.String(),
		}}

	default:
		size := sizeOr(f.FontSize, DefaultTextFontSize)
		lines := WrapText(v.String(), MaxChars(f.Width, size))
		runs := make([]TextRun, 0, len(lines))
		for n, line := range lines {
			runs = append(runs, TextRun{
				FieldID: f.ID,
				Page:    f.Page,
				X:       f.X,
				Y:       f.Y - float64(n)*size*lineHeightFactor,
				Size:    size,
				Font:    FontRegular,
				Color:   Black,
				Text:    line,
			})
		}
		return runs
	}
}

func sizeOr(size, fallback float64) float64 {
	if size <= 0 {
		return fallback
	}
	return size
}
