package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"plain ascii", "Dana Smith", []byte("Dana Smith")},
		{"parentheses and backslash", `a(b)c\d`, []byte(`a\(b\)c\\d`)},
		{"latin-1 accent", "José", []byte{'J', 'o', 's', 0xE9}},
		{"windows-1252 euro", "€5", []byte{0x80, '5'}},
		{"outside the encoding", "名前", []byte("??")},
		{"line breaks", "a\nb\rc", []byte(`a\nb\rc`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeText(tt.in))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "72", formatNumber(72))
	assert.Equal(t, "488.5", formatNumber(488.5))
	assert.Equal(t, "0.5", formatNumber(0.5))
	assert.Equal(t, "-3", formatNumber(-3))
	assert.Equal(t, "0.0000001", formatNumber(1e-7))
}

func TestEncodeRuns(t *testing.T) {
	runs := []TextRun{
		{Page: 1, X: 72, Y: 700, Size: 10, Font: FontRegular, Color: Black, Text: "Dana"},
		{Page: 1, X: 300, Y: 650.5, Size: 12, Font: FontBold, Color: Black, Text: "X"},
		{Page: 1, X: 72, Y: 120, Size: 10, Font: FontRegular, Color: SignatureBlue, Text: "D. Smith"},
	}
	fonts := fontResources{FontRegular: "OvlF1", FontBold: "OvlF2"}

	want := "BT\n/OvlF1 10 Tf\n0 0 0 rg\n1 0 0 1 72 700 Tm\n(Dana) Tj\nET\n" +
		"BT\n/OvlF2 12 Tf\n0 0 0 rg\n1 0 0 1 300 650.5 Tm\n(X) Tj\nET\n" +
		"BT\n/OvlF1 10 Tf\n0 0 0.5 rg\n1 0 0 1 72 120 Tm\n(D. Smith) Tj\nET\n"

	assert.Equal(t, want, string(encodeRuns(runs, fonts)))
}

func TestFontBaseFont(t *testing.T) {
	assert.Equal(t, "Helvetica", FontRegular.BaseFont())
	assert.Equal(t, "Helvetica-Bold", FontBold.BaseFont())
	assert.Equal(t, "ZapfDingbats", FontDingbats.BaseFont())
}
