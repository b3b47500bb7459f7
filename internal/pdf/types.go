package pdf

import (
	"github.com/a3tai/mcp-pdf-overlay/internal/fieldmap"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/overlay"
)

// FileInfo represents information about a template or field map file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// FieldMapInput names a field map either by path or inline. An inline map
// wins when both are set.
type FieldMapInput struct {
	Path     string             `json:"fieldmap_path,omitempty"`
	FieldMap *fieldmap.FieldMap `json:"fieldmap,omitempty"`
}

// Request Types

// PDFFillTemplateRequest represents a request to overlay answers onto a template
type PDFFillTemplateRequest struct {
	FieldMapInput

	// Template overrides the field map's pdfTemplate reference
	Template string `json:"template,omitempty"`

	// TemplateData is an uploaded template; it takes precedence over any reference
	TemplateData []byte `json:"-"`

	FormData fieldmap.FormData `json:"form_data"`

	// RequireValid rejects the fill when a required field is missing
	RequireValid bool `json:"require_valid,omitempty"`
}

// PDFValidateFormDataRequest represents a request to check required answers
type PDFValidateFormDataRequest struct {
	FieldMapInput
	FormData fieldmap.FormData `json:"form_data"`
}

// PDFGroupFieldsRequest represents a request to group fields by section
type PDFGroupFieldsRequest struct {
	FieldMapInput
}

// PDFInspectFieldMapRequest represents a request to summarize and lint a field map
type PDFInspectFieldMapRequest struct {
	FieldMapInput

	// CheckTemplate loads the template so fields can be checked against its page count
	CheckTemplate bool `json:"check_template,omitempty"`
}

// PDFServerInfoRequest represents a request to get server information and capabilities
type PDFServerInfoRequest struct {
	// No parameters needed for server info
}

// Response Types

// PDFFillTemplateResult represents the result of a fill. PDF is not
// serialized; transports decide how to deliver it.
type PDFFillTemplateResult struct {
	Template   string                     `json:"template"`
	PDF        []byte                     `json:"-"`
	Size       int64                      `json:"size"`
	OutputPath string                     `json:"output_path,omitempty"`
	Report     overlay.Report             `json:"report"`
	Validation *fieldmap.ValidationResult `json:"validation"`
	DurationMs int64                      `json:"duration_ms"`
}

// PDFValidateFormDataResult represents the outcome of required-field validation
type PDFValidateFormDataResult struct {
	fieldmap.ValidationResult
	RequiredCount int `json:"required_count"`
}

// SectionGroup is one section and its fields in field map order
type SectionGroup struct {
	Name   string                     `json:"name"`
	Fields []fieldmap.FieldDefinition `json:"fields"`
}

// PDFGroupFieldsResult represents fields grouped by section, in order of
// first appearance
type PDFGroupFieldsResult struct {
	Sections   []SectionGroup `json:"sections"`
	FieldCount int            `json:"field_count"`
}

// PDFInspectFieldMapResult summarizes a field map and any problems found in it
type PDFInspectFieldMapResult struct {
	Template      string                     `json:"template"`
	Version       float64                    `json:"version"`
	ExportedAt    *string                    `json:"exported_at"`
	FieldCount    int                        `json:"field_count"`
	RequiredCount int                        `json:"required_count"`
	CountByType   map[fieldmap.FieldType]int `json:"count_by_type"`
	Sections      []string                   `json:"sections"`
	TemplatePages int                        `json:"template_pages,omitempty"`
	Issues        []fieldmap.Issue           `json:"issues"`
}

// PDFServerInfoResult represents server information and usage guidance
type PDFServerInfoResult struct {
	ServerName        string     `json:"server_name"`
	Version           string     `json:"version"`
	TemplateDirectory string     `json:"template_directory"`
	OutputDirectory   string     `json:"output_directory"`
	MaxFileSize       int64      `json:"max_file_size"`
	AllowRemote       bool       `json:"allow_remote"`
	AvailableTools    []ToolInfo `json:"available_tools"`
	Templates         []FileInfo `json:"templates"`
	FieldMaps         []FileInfo `json:"field_maps"`
	UsageGuidance     string     `json:"usage_guidance"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}

// Batch Types

// BatchJob is one submission in a batch fill
type BatchJob struct {
	ID      string                 `json:"id"`
	Request PDFFillTemplateRequest `json:"request"`
}

// BatchResult pairs a job with its outcome. Exactly one of Result and Err is set.
type BatchResult struct {
	ID     string                 `json:"id"`
	Result *PDFFillTemplateResult `json:"result,omitempty"`
	Err    error                  `json:"-"`
	Error  string                 `json:"error,omitempty"`
}
