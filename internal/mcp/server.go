package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/a3tai/mcp-pdf-overlay/internal/config"
	"github.com/a3tai/mcp-pdf-overlay/internal/descriptions"
	"github.com/a3tai/mcp-pdf-overlay/internal/fieldmap"
	"github.com/a3tai/mcp-pdf-overlay/internal/httpapi"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf"
)

// ssePrefix is where MCP over SSE is mounted in server mode
const ssePrefix = "/mcp"

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	logger     *slog.Logger
	gatherer   prometheus.Gatherer
	stdin      io.Reader
	stdout     io.Writer
}

// Option customizes a Server
type Option func(*Server)

// WithLogger sets the logger used for transport diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer sets the registry exposed on /metrics in server mode
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithStdio replaces the process stdin and stdout used in stdio mode
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.stdin = in
		s.stdout = out
	}
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool set is fixed at startup
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		logger:     slog.Default(),
		gatherer:   prometheus.DefaultGatherer,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	fieldMapPath := mcp.WithString("fieldmap_path",
		mcp.Description("Field map file (.json, .yaml or .yml) relative to the template directory"),
	)
	inlineFieldMap := mcp.WithObject("fieldmap",
		mcp.Description("Inline field map document; takes precedence over fieldmap_path"),
	)

	fillTool := mcp.NewTool(
		descriptions.ToolFillTemplate,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolFillTemplate)),
		fieldMapPath,
		inlineFieldMap,
		mcp.WithObject("form_data",
			mcp.Required(),
			mcp.Description("Answers keyed by field id: strings, booleans or numbers"),
		),
		mcp.WithString("template",
			mcp.Description("Template path or URL; overrides the field map's pdfTemplate"),
		),
		mcp.WithBoolean("require_valid",
			mcp.Description("Refuse to fill when a required field has no answer"),
		),
	)
	s.mcpServer.AddTool(fillTool, s.handleFillTemplate)

	validateTool := mcp.NewTool(
		descriptions.ToolValidateFormData,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolValidateFormData)),
		fieldMapPath,
		inlineFieldMap,
		mcp.WithObject("form_data",
			mcp.Required(),
			mcp.Description("Answers keyed by field id"),
		),
	)
	s.mcpServer.AddTool(validateTool, s.handleValidateFormData)

	groupTool := mcp.NewTool(
		descriptions.ToolGroupFields,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolGroupFields)),
		fieldMapPath,
		inlineFieldMap,
	)
	s.mcpServer.AddTool(groupTool, s.handleGroupFields)

	inspectTool := mcp.NewTool(
		descriptions.ToolInspectFieldMap,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolInspectFieldMap)),
		fieldMapPath,
		inlineFieldMap,
		mcp.WithBoolean("check_template",
			mcp.Description("Load the template and check field pages against its page count"),
		),
	)
	s.mcpServer.AddTool(inspectTool, s.handleInspectFieldMap)

	serverInfoTool := mcp.NewTool(
		descriptions.ToolServerInfo,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolServerInfo)),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleFillTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := fieldMapInput(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := formData(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.FillTemplateToFile(ctx, pdf.PDFFillTemplateRequest{
		FieldMapInput: in,
		Template:      request.GetString("template", ""),
		FormData:      data,
		RequireValid:  request.GetBool("require_valid", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatFillResult(result)), nil
}

func (s *Server) handleValidateFormData(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := fieldMapInput(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := formData(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.ValidateFormData(pdf.PDFValidateFormDataRequest{
		FieldMapInput: in,
		FormData:      data,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatValidateResult(result)), nil
}

func (s *Server) handleGroupFields(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := fieldMapInput(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.GroupFields(pdf.PDFGroupFieldsRequest{FieldMapInput: in})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatGroupResult(result)), nil
}

func (s *Server) handleInspectFieldMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := fieldMapInput(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.InspectFieldMap(ctx, pdf.PDFInspectFieldMapRequest{
		FieldMapInput: in,
		CheckTemplate: request.GetBool("check_template", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatInspectResult(result)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.ServerInfo(ctx, s.config.ServerName, s.config.Version)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatServerInfoResult(result)), nil
}

// Argument decoding

// fieldMapInput reads fieldmap_path and fieldmap. An inline map may arrive
// as an object or as JSON/YAML text; either way it is schema-checked.
func fieldMapInput(request mcp.CallToolRequest) (pdf.FieldMapInput, error) {
	in := pdf.FieldMapInput{Path: request.GetString("fieldmap_path", "")}

	raw, ok := request.GetArguments()["fieldmap"]
	if !ok || raw == nil {
		return in, nil
	}

	var (
		fm  *fieldmap.FieldMap
		err error
	)
	switch v := raw.(type) {
	case string:
		format := fieldmap.FormatYAML
		if strings.HasPrefix(strings.TrimSpace(v), "{") {
			format = fieldmap.FormatJSON
		}
		fm, err = fieldmap.Parse([]byte(v), format)
	default:
		data, merr := json.Marshal(v)
		if merr != nil {
			return in, fmt.Errorf("fieldmap: %w", merr)
		}
		fm, err = fieldmap.Parse(data, fieldmap.FormatJSON)
	}
	if err != nil {
		return in, err
	}
	in.FieldMap = fm
	return in, nil
}

// formData reads form_data, accepting an object or a JSON string
func formData(request mcp.CallToolRequest) (fieldmap.FormData, error) {
	switch v := request.GetArguments()["form_data"].(type) {
	case nil:
		return fieldmap.FormData{}, nil
	case map[string]any:
		return fieldmap.FromAny(v)
	case string:
		return fieldmap.ParseFormData([]byte(v), fieldmap.FormatJSON)
	default:
		return nil, fmt.Errorf("form_data must be an object, got %T", v)
	}
}

// Formatting methods
func (s *Server) formatFillResult(result *pdf.PDFFillTemplateResult) string {
	text := fmt.Sprintf("✅ Filled template: %s\n", result.Template)
	if result.OutputPath != "" {
		text += fmt.Sprintf("📄 Output: %s\n", result.OutputPath)
	}
	text += fmt.Sprintf("📏 Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("📑 Pages: %d\n", result.Report.Pages)
	text += fmt.Sprintf("⏱️  Duration: %d ms\n", result.DurationMs)

	text += fmt.Sprintf("\nPlaced fields (%d):", len(result.Report.Placed))
	if len(result.Report.Placed) > 0 {
		text += " " + strings.Join(result.Report.Placed, ", ")
	}
	text += "\n"

	if len(result.Report.Skipped) > 0 {
		text += fmt.Sprintf("\nSkipped fields (%d):\n", len(result.Report.Skipped))
		for _, skip := range result.Report.Skipped {
			text += fmt.Sprintf("  • %s (page %d): %s\n", skip.FieldID, skip.Page, skip.Reason)
		}
	}

	if result.Validation != nil && !result.Validation.IsValid {
		text += "\n⚠️  WARNING: required fields are missing; the document was filled anyway:\n"
		text += formatErrors(result.Validation.Errors)
	}

	return text
}

func (s *Server) formatValidateResult(result *pdf.PDFValidateFormDataResult) string {
	if result.IsValid {
		return fmt.Sprintf("✅ All %d required field(s) have answers\n", result.RequiredCount)
	}

	text := fmt.Sprintf("❌ %d of %d required field(s) are missing:\n", len(result.Errors), result.RequiredCount)
	text += formatErrors(result.Errors)
	return text
}

func (s *Server) formatGroupResult(result *pdf.PDFGroupFieldsResult) string {
	text := fmt.Sprintf("%d field(s) in %d section(s)\n", result.FieldCount, len(result.Sections))

	for _, section := range result.Sections {
		text += fmt.Sprintf("\n📂 %s (%d)\n", section.Name, len(section.Fields))
		for _, f := range section.Fields {
			label := f.Label
			if label == "" {
				label = f.ID
			}
			text += fmt.Sprintf("  • %s [%s] %s, page %d", f.ID, f.Type, label, f.Page)
			if f.Required {
				text += " (required)"
			}
			text += "\n"
		}
	}

	return text
}

func (s *Server) formatInspectResult(result *pdf.PDFInspectFieldMapResult) string {
	text := "Field Map Summary\n"
	text += fmt.Sprintf("Template: %s\n", result.Template)
	text += fmt.Sprintf("Version: %g\n", result.Version)
	if result.ExportedAt != nil {
		text += fmt.Sprintf("Exported: %s\n", *result.ExportedAt)
	}
	text += fmt.Sprintf("Fields: %d (%d required)\n", result.FieldCount, result.RequiredCount)
	if result.TemplatePages > 0 {
		text += fmt.Sprintf("Template pages: %d\n", result.TemplatePages)
	}

	types := make([]string, 0, len(result.CountByType))
	for t, n := range result.CountByType {
		types = append(types, fmt.Sprintf("%s=%d", t, n))
	}
	sort.Strings(types)
	text += fmt.Sprintf("Types: %s\n", strings.Join(types, ", "))
	text += fmt.Sprintf("Sections: %s\n", strings.Join(result.Sections, ", "))

	if len(result.Issues) == 0 {
		text += "\n✅ No problems found\n"
		return text
	}

	text += fmt.Sprintf("\n⚠️  %d problem(s):\n", len(result.Issues))
	for _, issue := range result.Issues {
		text += fmt.Sprintf("  • %s\n", issue.Error())
	}
	return text
}

func (s *Server) formatServerInfoResult(result *pdf.PDFServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Template Directory: %s\n", result.TemplateDirectory)
	text += fmt.Sprintf("📤 Output Directory: %s\n", result.OutputDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("🌐 Remote Templates: %t\n\n", result.AllowRemote)

	text += formatFileList("📂 Templates", result.Templates)
	text += formatFileList("🗺️  Field Maps", result.FieldMaps)

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\n" + result.UsageGuidance

	return text
}

func formatFileList(title string, files []pdf.FileInfo) string {
	if len(files) == 0 {
		return title + ": none found\n\n"
	}

	text := fmt.Sprintf("%s (%d found):\n", title, len(files))
	for i, file := range files {
		if i >= 10 { // keep the listing readable
			text += fmt.Sprintf("   ... and %d more files\n", len(files)-10)
			break
		}
		text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Path, file.Size)
	}
	return text + "\n"
}

func formatErrors(errs map[string]string) string {
	ids := make([]string, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var text string
	for _, id := range ids {
		text += fmt.Sprintf("  • %s: %s\n", id, errs[id])
	}
	return text
}

// AddRoutes mounts MCP over SSE under /mcp/ so the HTTP API and MCP share
// one listener in server mode
func (s *Server) AddRoutes(router *http.ServeMux) {
	sse := server.NewSSEServer(s.mcpServer, server.WithStaticBasePath(ssePrefix))
	router.Handle(ssePrefix+"/", sse)
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP on stdin/stdout until ctx ends or input closes.
// Nothing else may write to stdout in this mode.
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Debug("starting MCP server in stdio mode", "template_dir", s.config.TemplateDirectory)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves the HTTP API and MCP over SSE on one address
func (s *Server) runServerMode(ctx context.Context) error {
	s.logger.Info("starting MCP server in server mode",
		"addr", s.config.Address(),
		"sse", ssePrefix+"/sse",
		"template_dir", s.config.TemplateDirectory,
	)

	httpServer := s.httpServer()
	if err := httpServer.Run(ctx); err != nil {
		return fmt.Errorf("failed to serve http: %w", err)
	}
	return nil
}

func (s *Server) httpServer() *httpapi.StandardServer {
	return httpapi.NewServer(httpapi.Options{
		Addr:        s.config.Address(),
		CORSOrigins: s.config.CORSOrigins,
		Gatherer:    s.gatherer,
		Logger:      s.logger,
	}, httpapi.NewFormController(s.pdfService), s)
}
