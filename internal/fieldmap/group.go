package fieldmap

// GroupFieldsBySection groups fields by section, keeping their relative order.
// Fields without a section land in DefaultSection.
func GroupFieldsBySection(fields []FieldDefinition) map[string][]FieldDefinition {
	groups := make(map[string][]FieldDefinition)
	for _, f := range fields {
		name := f.SectionName()
		groups[name] = append(groups[name], f)
	}
	return groups
}

// SectionOrder returns section names in order of first appearance
func SectionOrder(fields []FieldDefinition) []string {
	seen := make(map[string]bool)
	order := make([]string, 0)
	for _, f := range fields {
		name := f.SectionName()
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	return order
}
