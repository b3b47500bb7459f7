package fieldmap

import (
	"fmt"

	"go.uber.org/multierr"
)

// Issue is an authoring problem in a field map. Issues never stop a fill;
// they exist so mistakes the engine silently skips can be surfaced.
type Issue struct {
	Index   int    `json:"index"`
	FieldID string `json:"field_id"`
	Message string `json:"message"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("field %d (%s): %s", i.Index, i.FieldID, i.Message)
}

// Lint checks a field map for duplicate ids, unknown types, bad pages and
// geometry that defeats wrapping. pageCount bounds page numbers when positive.
// The returned error combines every Issue; use multierr.Errors to list them.
func Lint(fm *FieldMap, pageCount int) error {
	var err error
	seen := make(map[string]int)

	for i, f := range fm.Fields {
		report := func(format string, args ...any) {
			err = multierr.Append(err, Issue{Index: i, FieldID: f.ID, Message: fmt.Sprintf(format, args...)})
		}

		if f.ID == "" {
			report("missing id")
		} else if first, dup := seen[f.ID]; dup {
			report("duplicate id, first defined at field %d", first)
		} else {
			seen[f.ID] = i
		}

		if !f.Type.IsValid() {
			report("unknown type %q", f.Type)
		}
		if f.Page < 1 {
			report("page %d is not a valid 1-based page number", f.Page)
		} else if pageCount > 0 && f.Page > pageCount {
			report("page %d is beyond the template's %d page(s) and will never be drawn", f.Page, pageCount)
		}
		if f.Type.Wraps() && f.Width <= 0 {
			report("width %.2f leaves no room for text; every word will wrap onto its own line", f.Width)
		}
		if f.FontSize < 0 {
			report("negative font size %.2f", f.FontSize)
		}
		if f.Required && f.Label == "" {
			report("required field has no label for its validation message")
		}
	}

	return err
}

// Issues flattens the error returned by Lint
func Issues(err error) []Issue {
	var issues []Issue
	for _, e := range multierr.Errors(err) {
		if issue, ok := e.(Issue); ok {
			issues = append(issues, issue)
		}
	}
	return issues
}
