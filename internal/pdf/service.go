package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/a3tai/mcp-pdf-overlay/internal/fieldmap"
	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/overlay"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/template"
)

const (
	defaultMaxFileSize = 100 * 1024 * 1024
	defaultWorkers     = 4
	templateCacheTTL   = 5 * time.Minute
)

// Options configures a Service
type Options struct {
	TemplateDirectory string
	OutputDirectory   string
	DefaultFieldMap   string // used when a request names no field map
	MaxFileSize       int64
	FetchTimeout      time.Duration
	AllowRemote       bool
	TemplateCache     int
	Workers           int

	Fs         afero.Fs
	HTTPClient *http.Client
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Service fills PDF templates by orchestrating field maps, template sources
// and the overlay engine
type Service struct {
	opts          Options
	fs            afero.Fs
	pathValidator *security.PathValidator
	templates     template.Source
	cache         *template.CachingSource
	engine        *overlay.Engine
	metrics       *Metrics
	dirCache      *DirectoryCache
	scanner       *LazyDirectoryScanner
	logger        *slog.Logger
	tracer        trace.Tracer
}

// NewService creates a new PDF overlay service with all components
func NewService(opts Options) (*Service, error) {
	if opts.TemplateDirectory == "" {
		return nil, fmt.Errorf("template directory cannot be empty")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	pathValidator, err := security.NewPathValidator(opts.Fs, opts.TemplateDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	opts.TemplateDirectory = pathValidator.GetConfiguredDirectory()
	if opts.OutputDirectory == "" {
		opts.OutputDirectory = filepath.Join(opts.TemplateDirectory, "filled")
	}

	local, err := template.NewFileSource(opts.Fs, opts.TemplateDirectory, opts.MaxFileSize)
	if err != nil {
		return nil, err
	}
	var remote template.Source
	if opts.AllowRemote {
		remote = template.NewHTTPSource(opts.HTTPClient, opts.FetchTimeout, opts.MaxFileSize)
	}

	s := &Service{
		opts:          opts,
		fs:            opts.Fs,
		pathValidator: pathValidator,
		templates:     template.NewResolver(local, remote),
		engine:        overlay.NewEngine(opts.Logger),
		metrics:       NewMetrics(opts.Registerer),
		dirCache:      NewDirectoryCache(time.Minute),
		scanner:       NewLazyDirectoryScanner(opts.Fs, 5, 200, 3*time.Second),
		logger:        opts.Logger,
		tracer:        otel.Tracer("mcp-pdf-overlay"),
	}
	if opts.TemplateCache > 0 {
		s.cache = template.NewCachingSource(s.templates, opts.TemplateCache, templateCacheTTL)
		s.templates = s.cache
	}

	return s, nil
}

// TemplateDirectory returns the directory templates and field maps are read from
func (s *Service) TemplateDirectory() string {
	return s.opts.TemplateDirectory
}

// OutputDirectory returns the directory filled documents are written to
func (s *Service) OutputDirectory() string {
	return s.opts.OutputDirectory
}

// GetMaxFileSize returns the maximum template size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// CacheStats reports template cache statistics, or nil when caching is off
func (s *Service) CacheStats() *template.CacheStats {
	if s.cache == nil {
		return nil
	}
	stats := s.cache.Stats()
	return &stats
}

// LoadFieldMap returns the inline field map, or reads it from the template
// directory, falling back to the configured default path. Field maps are
// loaded fresh on every call.
func (s *Service) LoadFieldMap(in FieldMapInput) (*fieldmap.FieldMap, error) {
	if in.FieldMap != nil {
		return in.FieldMap, nil
	}
	if strings.TrimSpace(in.Path) == "" {
		in.Path = s.opts.DefaultFieldMap
	}
	if strings.TrimSpace(in.Path) == "" {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidFieldMap, "a field map or field map path is required")
	}

	path, err := s.pathValidator.SanitizePath(in.Path)
	if err != nil {
		return nil, err
	}
	return fieldmap.LoadFile(s.fs, path)
}

// FillTemplate overlays the request's answers onto its template
func (s *Service) FillTemplate(ctx context.Context, req PDFFillTemplateRequest) (*PDFFillTemplateResult, error) {
	ctx, span := s.tracer.Start(ctx, "pdf.fill_template")
	defer span.End()

	result, err := s.fill(ctx, req)
	if err != nil {
		s.metrics.observeError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("fill failed", "error", err, "type", pdferrors.TypeOf(err).String())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("pdf.template", result.Template),
		attribute.Int("pdf.fields_placed", len(result.Report.Placed)),
		attribute.Int("pdf.fields_skipped", len(result.Report.Skipped)),
	)
	s.metrics.observeFill(result.Report, float64(result.DurationMs)/1000)
	s.logger.Info("template filled",
		"template", result.Template,
		"pages", result.Report.Pages,
		"placed", len(result.Report.Placed),
		"skipped", len(result.Report.Skipped),
		"bytes", result.Size,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

func (s *Service) fill(ctx context.Context, req PDFFillTemplateRequest) (*PDFFillTemplateResult, error) {
	start := time.Now()

	fm, err := s.LoadFieldMap(req.FieldMapInput)
	if err != nil {
		return nil, err
	}

	validation := fieldmap.ValidateFormData(fm.Fields, req.FormData)
	if req.RequireValid && !validation.IsValid {
		return nil, pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeInvalidFormData,
			fmt.Sprintf("%d required field(s) missing", len(validation.Errors)),
			strings.Join(sortedKeys(validation.Errors), ", "))
	}

	ref := req.Template
	if ref == "" {
		ref = fm.PDFTemplate
	}

	src := s.templates
	if len(req.TemplateData) > 0 {
		src = template.Static(req.TemplateData)
		if ref == "" {
			ref = "upload.pdf"
		}
	}

	rendered, err := s.engine.Fill(ctx, src, ref, fm, req.FormData)
	if err != nil {
		return nil, err
	}

	return &PDFFillTemplateResult{
		Template:   ref,
		PDF:        rendered.PDF,
		Size:       int64(len(rendered.PDF)),
		Report:     rendered.Report,
		Validation: &validation,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// FillTemplateToFile fills the template and writes the document into the
// output directory under a unique name
func (s *Service) FillTemplateToFile(ctx context.Context, req PDFFillTemplateRequest) (*PDFFillTemplateResult, error) {
	result, err := s.FillTemplate(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.fs.MkdirAll(s.opts.OutputDirectory, 0o755); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeRender, err).
			WithContext("failed to create output directory").WithSource(s.opts.OutputDirectory)
	}

	name := fmt.Sprintf("%s-%s.pdf", OutputStem(result.Template), uuid.NewString())
	path := filepath.Join(s.opts.OutputDirectory, name)
	if err := afero.WriteFile(s.fs, path, result.PDF, 0o644); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeRender, err).
			WithContext("failed to write filled document").WithSource(path)
	}

	result.OutputPath = path
	return result, nil
}

// ValidateFormData reports required fields without an answer
func (s *Service) ValidateFormData(req PDFValidateFormDataRequest) (*PDFValidateFormDataResult, error) {
	fm, err := s.LoadFieldMap(req.FieldMapInput)
	if err != nil {
		return nil, err
	}

	required := 0
	for _, f := range fm.Fields {
		if f.Required {
			required++
		}
	}

	return &PDFValidateFormDataResult{
		ValidationResult: fieldmap.ValidateFormData(fm.Fields, req.FormData),
		RequiredCount:    required,
	}, nil
}

// GroupFields groups the field map's fields by section
func (s *Service) GroupFields(req PDFGroupFieldsRequest) (*PDFGroupFieldsResult, error) {
	fm, err := s.LoadFieldMap(req.FieldMapInput)
	if err != nil {
		return nil, err
	}

	groups := fieldmap.GroupFieldsBySection(fm.Fields)
	order := fieldmap.SectionOrder(fm.Fields)

	sections := make([]SectionGroup, 0, len(order))
	for _, name := range order {
		sections = append(sections, SectionGroup{Name: name, Fields: groups[name]})
	}

	return &PDFGroupFieldsResult{
		Sections:   sections,
		FieldCount: len(fm.Fields),
	}, nil
}

// InspectFieldMap summarizes a field map and lints it, optionally against
// its template's page count
func (s *Service) InspectFieldMap(ctx context.Context, req PDFInspectFieldMapRequest) (*PDFInspectFieldMapResult, error) {
	fm, err := s.LoadFieldMap(req.FieldMapInput)
	if err != nil {
		return nil, err
	}

	result := &PDFInspectFieldMapResult{
		Template:    fm.PDFTemplate,
		Version:     fm.Version,
		ExportedAt:  fm.ExportedAt,
		FieldCount:  len(fm.Fields),
		CountByType: fm.CountByType(),
		Sections:    fieldmap.SectionOrder(fm.Fields),
		Issues:      []fieldmap.Issue{},
	}
	for _, f := range fm.Fields {
		if f.Required {
			result.RequiredCount++
		}
	}

	if req.CheckTemplate {
		data, err := s.templates.Fetch(ctx, fm.PDFTemplate)
		if err != nil {
			return nil, err
		}
		pages, err := overlay.PageCount(data)
		if err != nil {
			return nil, err
		}
		result.TemplatePages = pages
	}

	if issues := fieldmap.Issues(fieldmap.Lint(fm, result.TemplatePages)); issues != nil {
		result.Issues = issues
	}
	return result, nil
}

// FillBatch fills every job concurrently, bounded by the configured worker
// count. Results keep the order of jobs. The returned error combines every
// failed job and is nil when all succeeded.
func (s *Service) FillBatch(ctx context.Context, jobs []BatchJob) ([]BatchResult, error) {
	results := make([]BatchResult, len(jobs))

	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.opts.Workers)
	for i, job := range jobs {
		p.Go(func(ctx context.Context) error {
			res, err := s.FillTemplate(ctx, job.Request)
			results[i] = BatchResult{ID: job.ID, Result: res, Err: err}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = p.Wait()

	var errs error
	for _, r := range results {
		if r.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("job %s: %w", r.ID, r.Err))
		}
	}

	s.logger.Info("batch filled", "jobs", len(jobs), "failed", len(multierr.Errors(errs)))
	return results, errs
}

// OutputStem derives a file name stem from a template reference
func OutputStem(ref string) string {
	base := filepath.Base(ref)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "filled"
	}
	return stem
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
