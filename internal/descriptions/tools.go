package descriptions

import "sort"

// Tool names exposed over MCP
const (
	ToolFillTemplate     = "pdf_fill_template"
	ToolValidateFormData = "pdf_validate_form_data"
	ToolGroupFields      = "pdf_group_fields"
	ToolInspectFieldMap  = "pdf_inspect_fieldmap"
	ToolServerInfo       = "pdf_server_info"
)

// Comprehensive tool descriptions with practical examples and use cases

const (
	PDFFillTemplateDescription = `Fill a flat PDF template by drawing answers at the coordinates listed in a field map.

**When to use:** You have a PDF form without interactive fields (a scanned or printed form) plus a field map describing where each answer goes, and you need a completed copy.

**Why it's useful:** Produces a filled document without modifying the template. Text wraps to the field width, checkboxes draw a mark, signatures are drawn in dark blue.

**Examples:**
• Driver application: "Fill driver-application.pdf using driver-application.fieldmap.json with the applicant's answers"
• Inline map: "Fill w9.pdf with this field map and these values, require every mandatory answer"

**Common workflows:**
1. Intake: pdf_validate_form_data → fix missing answers → pdf_fill_template
2. Authoring: pdf_inspect_fieldmap → correct coordinates → pdf_fill_template to preview

**Best practices:** Validate first when answers come from a person. Fields on pages the template does not have and blank answers are skipped silently; the response lists them under "skipped".`

	PDFValidateFormDataDescription = `Check that every required field in a field map has an answer.

**When to use:** Before filling, or while collecting answers, to tell the user what is still missing.

**Why it's useful:** Returns one message per missing field ("<label> is required"). An empty string, a missing key, null and false all count as missing.

**Examples:**
• "Which required fields are still empty in this driver application?"
• "Validate these answers against employment-history.fieldmap.yaml"

**Common workflows:**
1. Guided intake: Group fields → ask section by section → validate → fill

**Best practices:** The check is repeatable and has no side effects; run it as often as needed.`

	PDFGroupFieldsDescription = `Group a field map's fields by section, in the order sections first appear.

**When to use:** Building a questionnaire or wizard that walks through a form one section at a time.

**Why it's useful:** Keeps the field map's order inside every section. Fields with no section are grouped under "Other".

**Examples:**
• "List the sections of the driver application and the questions in each"

**Best practices:** Combine with pdf_validate_form_data to report missing answers per section.`

	PDFInspectFieldMapDescription = `Summarize a field map and report authoring problems.

**When to use:** After exporting a field map from a mapping tool, or when a filled PDF is missing answers you expected to see.

**Why it's useful:** Counts fields by type and lists sections. Flags duplicate ids, unknown types, zero widths and pages the template does not have, which are exactly the mistakes a fill skips without complaint.

**Examples:**
• "Check driver-application.fieldmap.json against its template"

**Best practices:** Set check_template to compare page numbers with the template's real page count.`

	PDFServerInfoDescription = `Get server configuration, available templates and field maps, and usage guidance.

**When to use:** At the start of a session, to discover which templates and field maps can be filled.

**Why it's useful:** Lists the template directory contents and the limits the server enforces.

**Examples:**
• "What forms can you fill?"

**Best practices:** Call this first, then use the listed field map paths with the other tools.`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	ToolFillTemplate:     PDFFillTemplateDescription,
	ToolValidateFormData: PDFValidateFormDataDescription,
	ToolGroupFields:      PDFGroupFieldsDescription,
	ToolInspectFieldMap:  PDFInspectFieldMapDescription,
	ToolServerInfo:       PDFServerInfoDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a sorted list of all available tool names
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
