package fieldmap

import "fmt"

// ValidationResult lists every required field a submission left unanswered
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Errors  map[string]string `json:"errors"`
}

// ValidateFormData checks required fields against the answers. It never
// fails; the caller decides whether an invalid result blocks submission.
func ValidateFormData(fields []FieldDefinition, data FormData) ValidationResult {
	errs := make(map[string]string)
	for _, f := range fields {
		if !f.Required {
			continue
		}
		if data.Get(f.ID).IsMissing() {
			errs[f.ID] = fmt.Sprintf("%s is required", f.Label)
		}
	}
	return ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}
