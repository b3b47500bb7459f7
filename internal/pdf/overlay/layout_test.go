package overlay

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-overlay/internal/fieldmap"
)

func TestMaxChars(t *testing.T) {
	tests := []struct {
		width, fontSize float64
		want            int
	}{
		{200, 10, 40},
		{100, 12, 16},
		{99, 10, 19},
		{0, 10, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxChars(tt.width, tt.fontSize), "width=%v fontSize=%v", tt.width, tt.fontSize)
	}
}

func TestWrapText(t *testing.T) {
	word20 := strings.Repeat("a", 20)
	other20 := strings.Repeat("b", 20)

	tests := []struct {
		name     string
		text     string
		maxChars int
		want     []string
	}{
		{
			name:     "exactly max chars is one line",
			text:     strings.Repeat("x", 40),
			maxChars: 40,
			want:     []string{strings.Repeat("x", 40)},
		},
		{
			name:     "two twenty char words overflow by the joining space",
			text:     word20 + " " + other20,
			maxChars: 40,
			want:     []string{word20, other20},
		},
		{
			name:     "greedy packing",
			text:     "1200 Freight Way Suite 4 Reno Nevada",
			maxChars: 16,
			want:     []string{"1200 Freight Way", "Suite 4 Reno", "Nevada"},
		},
		{
			name:     "word longer than the line stands alone",
			text:     "see supercalifragilistic now",
			maxChars: 10,
			want:     []string{"see", "supercalifragilistic", "now"},
		},
		{
			name:     "runs of whitespace collapse when wrapping",
			text:     "alpha   beta\tgamma",
			maxChars: 11,
			want:     []string{"alpha beta", "gamma"},
		},
		{
			name:     "short text keeps its spacing",
			text:     "a  b",
			maxChars: 10,
			want:     []string{"a  b"},
		},
		{
			name:     "multibyte characters count once",
			text:     "ééééé",
			maxChars: 5,
			want:     []string{"ééééé"},
		},
		{
			name:     "only whitespace past the limit draws nothing",
			text:     "      ",
			maxChars: 2,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapText(tt.text, tt.maxChars)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("WrapText mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLayoutField_CheckboxTruthySet(t *testing.T) {
	field := fieldmap.FieldDefinition{ID: "cdlClassA", Type: fieldmap.FieldTypeCheckbox, Page: 1, X: 300, Y: 650}

	tests := []struct {
		name  string
		value fieldmap.Value
		drawn bool
	}{
		{"boolean true", fieldmap.Flag(true), true},
		{"string true", fieldmap.Text("true"), true},
		{"string Yes", fieldmap.Text("Yes"), true},
		{"string yes", fieldmap.Text("yes"), true},
		{"boolean false", fieldmap.Flag(false), false},
		{"string false", fieldmap.Text("false"), false},
		{"string No", fieldmap.Text("No"), false},
		{"number zero", fieldmap.Num(0), false},
		{"empty string", fieldmap.Text(""), false},
		{"undefined", fieldmap.FormData{}.Get(field.ID), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := LayoutField(field, tt.value)
			if tt.drawn {
				require.Len(t, runs, 1)
				assert.Equal(t, "X", runs[0].Text)
			} else {
				assert.Empty(t, runs)
			}
		})
	}
}

func TestLayoutField_CheckboxStyle(t *testing.T) {
	field := fieldmap.FieldDefinition{ID: "hazmat", Type: fieldmap.FieldTypeCheckbox, Page: 2, X: 410.5, Y: 300}

	runs := LayoutField(field, fieldmap.Flag(true))
	require.Len(t, runs, 1)
	assert.Equal(t, TextRun{
		FieldID: "hazmat", Page: 2, X: 410.5, Y: 300,
		Size: DefaultCheckboxFontSize, Font: FontBold, Color: Black, Text: "X",
	}, runs[0])

	field.CheckChar = "•"
	field.FontSize = 9
	runs = LayoutField(field, fieldmap.Text("YES"))
	require.Len(t, runs, 1)
	assert.Equal(t, "•", runs[0].Text)
	assert.Equal(t, FontBold, runs[0].Font)
	assert.Equal(t, 9.0, runs[0].Size)

	field.CheckChar = "✓"
	runs = LayoutField(field, fieldmap.Flag(true))
	require.Len(t, runs, 1)
	assert.Equal(t, FontDingbats, runs[0].Font)
	assert.Equal(t, "3", runs[0].Text)
}

func TestLayoutField_Signature(t *testing.T) {
	field := fieldmap.FieldDefinition{ID: "signature", Type: fieldmap.FieldTypeSignature, Page: 2, X: 72, Y: 120, Width: 20}
	long := "Dana Q. Applicant-Longname The Third Of Her Name"

	runs := LayoutField(field, fieldmap.Text(long))
	require.Len(t, runs, 1, "signatures are never wrapped")
	assert.Equal(t, long, runs[0].Text)
	assert.Equal(t, SignatureBlue, runs[0].Color)
	assert.Equal(t, FontRegular, runs[0].Font)
	assert.Equal(t, DefaultTextFontSize, runs[0].Size)
}

func TestLayoutField_TextWraps(t *testing.T) {
	field := fieldmap.FieldDefinition{ID: "address", Type: fieldmap.FieldTypeText, Page: 1, X: 72, Y: 500, Width: 80, FontSize: 10}

	runs := LayoutField(field, fieldmap.Text("1200 Freight Way Suite 4 Reno"))
	require.Len(t, runs, 2)

	assert.Equal(t, "1200 Freight Way", runs[0].Text)
	assert.Equal(t, 500.0, runs[0].Y)
	assert.Equal(t, "Suite 4 Reno", runs[1].Text)
	assert.InDelta(t, 488.0, runs[1].Y, 1e-9)
	for _, r := range runs {
		assert.Equal(t, 72.0, r.X)
		assert.Equal(t, Black, r.Color)
	}
}

func TestLayoutField_NumberAndDate(t *testing.T) {
	number := fieldmap.FieldDefinition{ID: "years", Type: fieldmap.FieldTypeNumber, Page: 1, X: 10, Y: 10, Width: 100}
	runs := LayoutField(number, fieldmap.Num(12))
	require.Len(t, runs, 1)
	assert.Equal(t, "12", runs[0].Text)

	date := fieldmap.FieldDefinition{ID: "dob", Type: fieldmap.FieldTypeDate, Page: 1, X: 10, Y: 10, Width: 100, FontSize: 8}
	runs = LayoutField(date, fieldmap.Text("1988-04-12"))
	require.Len(t, runs, 1)
	assert.Equal(t, 8.0, runs[0].Size)

	assert.Nil(t, LayoutField(date, fieldmap.Null()))
}
