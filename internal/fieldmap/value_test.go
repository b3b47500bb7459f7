package fieldmap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Checked(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  bool
	}{
		{"flag true", Flag(true), true},
		{"string true", Text("true"), true},
		{"string Yes", Text("Yes"), true},
		{"string yes", Text("yes"), true},
		{"string TRUE", Text("TRUE"), true},
		{"flag false", Flag(false), false},
		{"string false", Text("false"), false},
		{"string No", Text("No"), false},
		{"number zero", Num(0), false},
		{"number one", Num(1), false},
		{"empty string", Text(""), false},
		{"null", Null(), false},
		{"string on", Text("on"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Checked())
		})
	}
}

func TestValue_BlankAndMissing(t *testing.T) {
	assert.True(t, Null().IsBlank())
	assert.True(t, Text("").IsBlank())
	assert.False(t, Text(" ").IsBlank())
	assert.False(t, Flag(false).IsBlank())
	assert.False(t, Num(0).IsBlank())

	assert.True(t, Flag(false).IsMissing())
	assert.True(t, Null().IsMissing())
	assert.False(t, Flag(true).IsMissing())
	assert.False(t, Num(0).IsMissing())

	var zero Value
	assert.Equal(t, KindNull, zero.Kind())
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "Dana", Text("Dana").String())
	assert.Equal(t, "true", Flag(true).String())
	assert.Equal(t, "false", Flag(false).String())
	assert.Equal(t, "12", Num(12).String())
	assert.Equal(t, "3.5", Num(3.5).String())
	assert.Equal(t, "", Null().String())
}

func TestParseFormData_JSON(t *testing.T) {
	data, err := ParseFormData([]byte(`{
		"firstName": "Dana",
		"cdlClassA": true,
		"yearsExperience": 7,
		"middleName": null,
		"unmapped": "ignored by the engine"
	}`), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, Text("Dana"), data["firstName"])
	assert.Equal(t, Flag(true), data["cdlClassA"])
	assert.Equal(t, Num(7), data["yearsExperience"])
	assert.Equal(t, Null(), data["middleName"])
	assert.Equal(t, Null(), data.Get("absent"))
}

func TestParseFormData_RejectsNested(t *testing.T) {
	_, err := ParseFormData([]byte(`{"address": {"city": "Reno"}}`), FormatJSON)
	require.Error(t, err)

	_, err = ParseFormData([]byte(`{"tags": ["a", "b"]}`), FormatJSON)
	require.Error(t, err)
}

func TestParseFormData_YAML(t *testing.T) {
	data, err := ParseFormData([]byte(`
firstName: Dana
cdlClassA: true
hazmat: yes
quoted: "true"
yearsExperience: 7
rate: 0.55
middleName:
`), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, Text("Dana"), data["firstName"])
	assert.Equal(t, Flag(true), data["cdlClassA"])
	assert.Equal(t, Text("yes"), data["hazmat"])
	assert.Equal(t, Text("true"), data["quoted"])
	assert.Equal(t, Num(7), data["yearsExperience"])
	assert.Equal(t, Num(0.55), data["rate"])
	assert.True(t, data["middleName"].IsBlank())
}

func TestValue_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(FormData{
		"a": Text("x"),
		"b": Flag(false),
		"c": Num(2.5),
		"d": Null(),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":false,"c":2.5,"d":null}`, string(out))
}

func TestFromAny(t *testing.T) {
	data, err := FromAny(map[string]any{
		"s": "text",
		"b": true,
		"f": 1.5,
		"i": 3,
		"n": nil,
		"j": json.Number("42"),
	})
	require.NoError(t, err)
	assert.Equal(t, Text("text"), data["s"])
	assert.Equal(t, Flag(true), data["b"])
	assert.Equal(t, Num(1.5), data["f"])
	assert.Equal(t, Num(3), data["i"])
	assert.Equal(t, Null(), data["n"])
	assert.Equal(t, Num(42), data["j"])

	_, err = FromAny(map[string]any{"nested": map[string]any{}})
	assert.Error(t, err)
}
