package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/a3tai/mcp-pdf-overlay/internal/fieldmap"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf"
)

// Response headers describing a fill
const (
	HeaderTemplate = "X-Overlay-Template"
	HeaderPages    = "X-Overlay-Pages"
	HeaderPlaced   = "X-Overlay-Placed"
	HeaderSkipped  = "X-Overlay-Skipped"
	HeaderMissing  = "X-Overlay-Missing"
)

const multipartMemory = 32 << 20

// FormService is the part of pdf.Service the HTTP API exposes
type FormService interface {
	FillTemplate(ctx context.Context, req pdf.PDFFillTemplateRequest) (*pdf.PDFFillTemplateResult, error)
	ValidateFormData(req pdf.PDFValidateFormDataRequest) (*pdf.PDFValidateFormDataResult, error)
	GroupFields(req pdf.PDFGroupFieldsRequest) (*pdf.PDFGroupFieldsResult, error)
	InspectFieldMap(ctx context.Context, req pdf.PDFInspectFieldMapRequest) (*pdf.PDFInspectFieldMapResult, error)
	GetMaxFileSize() int64
}

var _ Controller = &FormController{}

// FormController serves the fill, validate, sections and inspect endpoints
type FormController struct {
	service FormService
}

func NewFormController(service FormService) *FormController {
	return &FormController{service: service}
}

func (c *FormController) AddRoutes(router *http.ServeMux) {
	router.Handle("POST /api/v1/fill", c.fill())
	router.Handle("POST /api/v1/validate", c.validate())
	router.Handle("POST /api/v1/sections", c.sections())
	router.Handle("POST /api/v1/inspect", c.inspect())
}

// formRequest is the body shared by all form endpoints. The field map is
// kept raw so that inline maps go through the same schema check as files.
type formRequest struct {
	FieldMapPath  string            `json:"fieldmap_path"`
	FieldMap      json.RawMessage   `json:"fieldmap"`
	Template      string            `json:"template"`
	FormData      fieldmap.FormData `json:"form_data"`
	RequireValid  bool              `json:"require_valid"`
	CheckTemplate bool              `json:"check_template"`
}

func (r formRequest) fieldMapInput() (pdf.FieldMapInput, error) {
	in := pdf.FieldMapInput{Path: r.FieldMapPath}
	raw := bytes.TrimSpace(r.FieldMap)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return in, nil
	}
	fm, err := fieldmap.Parse(raw, fieldmap.FormatJSON)
	if err != nil {
		return in, err
	}
	in.FieldMap = fm
	return in, nil
}

func (c *FormController) fill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		span := GetSpanFromContext(r)
		span.SetAttributes(attribute.String("endpoint", "fill"))

		r.Body = http.MaxBytesReader(w, r.Body, c.bodyLimit())

		var (
			body     formRequest
			template []byte
			err      error
		)
		if isMultipart(r) {
			body, template, err = decodeMultipartFill(r)
		} else {
			err = DecodeJSONBody(r, &body)
		}
		if err != nil {
			replyDecodeError(w, err)
			return
		}

		in, err := body.fieldMapInput()
		if err != nil {
			ReplyWithPDFError(w, err)
			return
		}

		result, err := c.service.FillTemplate(r.Context(), pdf.PDFFillTemplateRequest{
			FieldMapInput: in,
			Template:      body.Template,
			TemplateData:  template,
			FormData:      body.FormData,
			RequireValid:  body.RequireValid,
		})
		if err != nil {
			ReplyWithPDFError(w, err)
			return
		}

		h := w.Header()
		h.Set("Content-Type", "application/pdf")
		h.Set("Content-Length", strconv.Itoa(len(result.PDF)))
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filledName(result.Template)))
		h.Set(HeaderTemplate, result.Template)
		h.Set(HeaderPages, strconv.Itoa(result.Report.Pages))
		h.Set(HeaderPlaced, strconv.Itoa(len(result.Report.Placed)))
		h.Set(HeaderSkipped, strconv.Itoa(len(result.Report.Skipped)))
		if result.Validation != nil {
			h.Set(HeaderMissing, strconv.Itoa(len(result.Validation.Errors)))
		}
		w.WriteHeader(http.StatusOK)
		w.Write(result.PDF)
	}
}

func (c *FormController) validate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, body, ok := c.decode(w, r, "validate")
		if !ok {
			return
		}

		result, err := c.service.ValidateFormData(pdf.PDFValidateFormDataRequest{
			FieldMapInput: in,
			FormData:      body.FormData,
		})
		if err != nil {
			ReplyWithPDFError(w, err)
			return
		}
		ReplyJSONResponse(w, http.StatusOK, result)
	}
}

func (c *FormController) sections() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, _, ok := c.decode(w, r, "sections")
		if !ok {
			return
		}

		result, err := c.service.GroupFields(pdf.PDFGroupFieldsRequest{FieldMapInput: in})
		if err != nil {
			ReplyWithPDFError(w, err)
			return
		}
		ReplyJSONResponse(w, http.StatusOK, result)
	}
}

func (c *FormController) inspect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, body, ok := c.decode(w, r, "inspect")
		if !ok {
			return
		}

		result, err := c.service.InspectFieldMap(r.Context(), pdf.PDFInspectFieldMapRequest{
			FieldMapInput: in,
			CheckTemplate: body.CheckTemplate,
		})
		if err != nil {
			ReplyWithPDFError(w, err)
			return
		}
		ReplyJSONResponse(w, http.StatusOK, result)
	}
}

// decode reads a JSON formRequest and resolves its field map input. It
// writes the error reply itself and returns false on failure.
func (c *FormController) decode(w http.ResponseWriter, r *http.Request, endpoint string) (pdf.FieldMapInput, formRequest, bool) {
	span := GetSpanFromContext(r)
	span.SetAttributes(attribute.String("endpoint", endpoint))

	r.Body = http.MaxBytesReader(w, r.Body, c.bodyLimit())

	var body formRequest
	if err := DecodeJSONBody(r, &body); err != nil {
		replyDecodeError(w, err)
		return pdf.FieldMapInput{}, body, false
	}
	in, err := body.fieldMapInput()
	if err != nil {
		ReplyWithPDFError(w, err)
		return pdf.FieldMapInput{}, body, false
	}
	return in, body, true
}

// bodyLimit leaves headroom over the template limit for the JSON parts
func (c *FormController) bodyLimit() int64 {
	return c.service.GetMaxFileSize() + 1<<20
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// decodeMultipartFill reads a "request" JSON part and an optional
// "template" file part
func decodeMultipartFill(r *http.Request) (formRequest, []byte, error) {
	var body formRequest
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return body, nil, fmt.Errorf("parsing multipart form: %w", err)
	}

	if raw := r.FormValue("request"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return body, nil, fmt.Errorf("unmarshaling request part: %w", err)
		}
	}

	file, _, err := r.FormFile("template")
	if err == http.ErrMissingFile {
		return body, nil, nil
	}
	if err != nil {
		return body, nil, fmt.Errorf("reading template part: %w", err)
	}
	defer file.Close()

	template, err := io.ReadAll(file)
	if err != nil {
		return body, nil, fmt.Errorf("reading template part: %w", err)
	}
	return body, template, nil
}

func replyDecodeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		status = http.StatusBadRequest
	}
	ReplyWithError(w, status, err.Error())
}

func filledName(ref string) string {
	return pdf.OutputStem(ref) + "-filled.pdf"
}
