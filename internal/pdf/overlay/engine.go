// Package overlay fills PDF templates by drawing answers at absolute page
// coordinates. Templates are treated as fixed canvases: interactive form
// fields, if any, are ignored and left untouched.
package overlay

import (
	"context"
	"log/slog"
	"sort"

	"github.com/a3tai/mcp-pdf-overlay/internal/fieldmap"
	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

// Source returns the raw bytes of a template reference
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// SkipReason explains why a field produced no marks
type SkipReason string

const (
	SkipNoValue        SkipReason = "no_value"
	SkipUnchecked      SkipReason = "unchecked"
	SkipPageOutOfRange SkipReason = "page_out_of_range"
	SkipNothingToDraw  SkipReason = "nothing_to_draw"
)

// SkippedField records a field that was passed over without error
type SkippedField struct {
	FieldID string     `json:"field_id"`
	Page    int        `json:"page"`
	Reason  SkipReason `json:"reason"`
}

// Report summarizes what a fill drew. Skips are not errors; the report lets
// callers audit them without changing the output.
type Report struct {
	Pages   int            `json:"pages"`
	Placed  []string       `json:"placed"`
	Skipped []SkippedField `json:"skipped"`
	Lines   int            `json:"lines"`
}

// Result is a filled document and its report. The caller owns PDF.
type Result struct {
	PDF    []byte
	Report Report
}

// Engine renders field maps onto templates. It holds no per-call state and
// is safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an engine that logs skipped fields at debug level
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Plan lays out every field against a document of pageCount pages, in field
// map order. Each field is handled independently: a skip never affects the
// fields after it.
func Plan(fields []fieldmap.FieldDefinition, data fieldmap.FormData, pageCount int) ([]TextRun, Report) {
	report := Report{
		Pages:   pageCount,
		Placed:  []string{},
		Skipped: []SkippedField{},
	}
	var runs []TextRun

	for _, f := range fields {
		value := data.Get(f.ID)
		if value.IsBlank() {
			report.Skipped = append(report.Skipped, SkippedField{FieldID: f.ID, Page: f.Page, Reason: SkipNoValue})
			continue
		}
		if f.Page < 1 || f.Page > pageCount {
			report.Skipped = append(report.Skipped, SkippedField{FieldID: f.ID, Page: f.Page, Reason: SkipPageOutOfRange})
			continue
		}

		fieldRuns := LayoutField(f, value)
		if len(fieldRuns) == 0 {
			reason := SkipNothingToDraw
			if f.Type == fieldmap.FieldTypeCheckbox {
				reason = SkipUnchecked
			}
			report.Skipped = append(report.Skipped, SkippedField{FieldID: f.ID, Page: f.Page, Reason: reason})
			continue
		}

		runs = append(runs, fieldRuns...)
		report.Placed = append(report.Placed, f.ID)
		report.Lines += len(fieldRuns)
	}

	return runs, report
}

// Render overlays data onto a copy of template. Only unreadable templates
// and a done ctx fail; every field-level problem is a skip recorded in the
// report. ctx is checked before each page is drawn and before serializing.
func (e *Engine) Render(ctx context.Context, template []byte, fm *fieldmap.FieldMap, data fieldmap.FormData) (*Result, error) {
	doc, err := openDocument(template)
	if err != nil {
		return nil, err
	}

	runs, report := Plan(fm.Fields, data, doc.pageCount())

	byPage := make(map[int][]TextRun)
	for _, r := range runs {
		byPage[r.Page] = append(byPage[r.Page], r)
	}
	pages := make([]int, 0, len(byPage))
	for page := range byPage {
		pages = append(pages, page)
	}
	sort.Ints(pages)

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := doc.overlayPage(page, byPage[page]); err != nil {
			return nil, pdferrors.WrapError(pdferrors.ErrorTypeRender, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := doc.bytes()
	if err != nil {
		return nil, err
	}

	for _, s := range report.Skipped {
		e.logger.Debug("field skipped", "field", s.FieldID, "page", s.Page, "reason", s.Reason)
	}
	e.logger.Debug("overlay rendered",
		"pages", report.Pages, "placed", len(report.Placed), "skipped", len(report.Skipped), "bytes", len(out))

	return &Result{PDF: out, Report: report}, nil
}

// Fill fetches the template from src and renders onto it. Fetch errors are
// returned as the source reported them.
func (e *Engine) Fill(ctx context.Context, src Source, ref string, fm *fieldmap.FieldMap, data fieldmap.FormData) (*Result, error) {
	template, err := src.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return e.Render(ctx, template, fm, data)
}

// GenerateFilledPDF fills the template named by the field map and returns
// only the document bytes
func GenerateFilledPDF(ctx context.Context, src Source, fm *fieldmap.FieldMap, data fieldmap.FormData) ([]byte, error) {
	result, err := NewEngine(nil).Fill(ctx, src, fm.PDFTemplate, fm, data)
	if err != nil {
		return nil, err
	}
	return result.PDF, nil
}
