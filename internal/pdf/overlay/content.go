package overlay

import (
	"bytes"
	"strconv"

	"golang.org/x/text/encoding/charmap"
)

// fontResources maps the fonts used on a page to their resource names
type fontResources map[Font]string

// encodeRuns writes the content stream operators that draw runs
func encodeRuns(runs []TextRun, fonts fontResources) []byte {
	var buf bytes.Buffer
	for _, r := range runs {
		buf.WriteString("BT\n")
		buf.WriteString("/" + fonts[r.Font] + " " + formatNumber(r.Size) + " Tf\n")
		buf.WriteString(formatNumber(r.Color.R) + " " + formatNumber(r.Color.G) + " " + formatNumber(r.Color.B) + " rg\n")
		buf.WriteString("1 0 0 1 " + formatNumber(r.X) + " " + formatNumber(r.Y) + " Tm\n")
		buf.WriteString("(")
		buf.Write(encodeText(r.Text))
		buf.WriteString(") Tj\nET\n")
	}
	return buf.Bytes()
}

// formatNumber renders a real number without exponent notation, which PDF
// content streams do not allow
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// encodeText converts s to WinAnsiEncoding bytes for a literal string.
// Characters outside the encoding are drawn as '?'.
func encodeText(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		switch b {
		case '(', ')', '\\':
			out = append(out, '\\', b)
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		default:
			out = append(out, b)
		}
	}
	return out
}
