// Package fieldmap describes where answers go on a PDF template and which of
// them a submission must provide.
//
// A FieldMap is produced by an external mapping tool and loaded fresh for
// every fill. Coordinates are PDF points with the origin at the bottom-left
// corner of the page; Y grows upward and anchors the text baseline.
package fieldmap

const (
	// DefaultSection is the group name for fields without a section
	DefaultSection = "Other"

	// DefaultCheckChar is drawn for checked checkboxes that do not set checkChar
	DefaultCheckChar = "X"
)

// FieldType governs how a value is rendered, not how it is stored
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeDate      FieldType = "date"
	FieldTypeSignature FieldType = "signature"
	FieldTypeNumber    FieldType = "number"
)

// IsValid reports whether t is one of the known field types
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeText, FieldTypeCheckbox, FieldTypeDate, FieldTypeSignature, FieldTypeNumber:
		return true
	default:
		return false
	}
}

// Wraps reports whether values of this type are word-wrapped to the field width
func (t FieldType) Wraps() bool {
	return t == FieldTypeText || t == FieldTypeDate || t == FieldTypeNumber
}

// FieldDefinition describes one placeable field on the template
type FieldDefinition struct {
	ID        string    `json:"id" yaml:"id"`
	Label     string    `json:"label" yaml:"label"`
	Type      FieldType `json:"type" yaml:"type"`
	Page      int       `json:"page" yaml:"page"`
	X         float64   `json:"x" yaml:"x"`
	Y         float64   `json:"y" yaml:"y"`
	Width     float64   `json:"width" yaml:"width"`
	Height    float64   `json:"height" yaml:"height"`
	FontSize  float64   `json:"fontSize" yaml:"fontSize"`
	Required  bool      `json:"required" yaml:"required"`
	Section   string    `json:"section,omitempty" yaml:"section,omitempty"`
	CheckChar string    `json:"checkChar,omitempty" yaml:"checkChar,omitempty"`
}

// SectionName returns the field's section, or DefaultSection when unset
func (f FieldDefinition) SectionName() string {
	if f.Section == "" {
		return DefaultSection
	}
	return f.Section
}

// Mark returns the glyph drawn for a checked checkbox
func (f FieldDefinition) Mark() string {
	if f.CheckChar == "" {
		return DefaultCheckChar
	}
	return f.CheckChar
}

// FieldMap is a versioned, ordered collection of field definitions for one template
type FieldMap struct {
	Version     float64           `json:"version" yaml:"version"`
	ExportedAt  *string           `json:"exportedAt" yaml:"exportedAt"`
	PDFTemplate string            `json:"pdfTemplate" yaml:"pdfTemplate"`
	Fields      []FieldDefinition `json:"fields" yaml:"fields"`
}

// Field returns the first definition with the given id
func (m *FieldMap) Field(id string) (FieldDefinition, bool) {
	for _, f := range m.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// CountByType tallies the fields of each type, for summaries
func (m *FieldMap) CountByType() map[FieldType]int {
	counts := make(map[FieldType]int)
	for _, f := range m.Fields {
		counts[f.Type]++
	}
	return counts
}
