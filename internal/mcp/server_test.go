package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-overlay/internal/config"
	"github.com/a3tai/mcp-pdf-overlay/internal/descriptions"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/overlay"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/pdftest"
)

const leaseFieldMap = `{
  "version": 2,
  "exportedAt": "2026-08-01T09:00:00.000Z",
  "pdfTemplate": "lease.pdf",
  "fields": [
    {"id": "tenant", "label": "Tenant Name", "type": "text", "page": 1, "x": 72, "y": 700, "width": 250, "height": 14, "fontSize": 10, "required": true, "section": "Parties"},
    {"id": "landlord", "label": "Landlord Name", "type": "text", "page": 1, "x": 72, "y": 660, "width": 250, "height": 14, "fontSize": 10, "required": true, "section": "Parties"},
    {"id": "pets", "label": "Pets Allowed", "type": "checkbox", "page": 1, "x": 72, "y": 600, "width": 10, "height": 10, "fontSize": 12, "required": false, "section": "Terms"},
    {"id": "tenantSignature", "label": "Tenant Signature", "type": "signature", "page": 2, "x": 72, "y": 100, "width": 200, "height": 20, "fontSize": 12, "required": true}
  ]
}`

type fixture struct {
	server *Server
	fs     afero.Fs
}

func newFixture(t *testing.T, mutate func(*config.Config)) fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/leases", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/leases/lease.pdf", pdftest.MinimalPDF(2), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/leases/lease.fieldmap.json", []byte(leaseFieldMap), 0o644))

	cfg := config.DefaultConfig()
	cfg.TemplateDirectory = "/leases"
	cfg.OutputDirectory = "/leases/filled"
	cfg.ServerName = "test-overlay"
	cfg.Version = "9.9.9"
	cfg.MaxFileSize = 1024 * 1024
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := pdf.NewService(pdf.Options{
		TemplateDirectory: cfg.TemplateDirectory,
		OutputDirectory:   cfg.OutputDirectory,
		DefaultFieldMap:   cfg.DefaultFieldMap,
		MaxFileSize:       cfg.MaxFileSize,
		Fs:                fs,
		Logger:            logger,
		Registerer:        prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	srv, err := NewServer(cfg, svc, WithLogger(logger))
	require.NoError(t, err)
	return fixture{server: srv, fs: fs}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	var parts []string
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func TestNewServer(t *testing.T) {
	f := newFixture(t, nil)
	assert.NotNil(t, f.server.mcpServer)

	_, err := NewServer(nil, f.server.pdfService)
	assert.Error(t, err)

	_, err = NewServer(config.DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestServer_ToolsRegistered(t *testing.T) {
	f := newFixture(t, nil)

	response := f.server.mcpServer.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(response)
	require.NoError(t, err)

	for _, name := range descriptions.GetAllToolNames() {
		assert.Contains(t, string(data), `"name":"`+name+`"`)
	}
	assert.Contains(t, string(data), `"form_data"`)
}

func TestServer_HandleFillTemplate(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.server.handleFillTemplate(context.Background(), callRequest(map[string]any{
		"fieldmap_path": "lease.fieldmap.json",
		"form_data": map[string]any{
			"tenant":          "Ada Lovelace",
			"pets":            true,
			"tenantSignature": "Ada Lovelace",
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	text := resultText(t, result)
	assert.Contains(t, text, "Filled template: lease.pdf")
	assert.Contains(t, text, "Placed fields (3): tenant, pets, tenantSignature")
	assert.Contains(t, text, "landlord (page 1): no_value")
	assert.Contains(t, text, "landlord: Landlord Name is required")

	files, err := afero.ReadDir(f.fs, "/leases/filled")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "lease-"))
	assert.Contains(t, text, "/leases/filled/"+files[0].Name())

	out, err := afero.ReadFile(f.fs, "/leases/filled/"+files[0].Name())
	require.NoError(t, err)
	pages, err := overlay.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
}

func TestServer_HandleFillTemplate_InlineFieldMap(t *testing.T) {
	f := newFixture(t, nil)

	var inline map[string]any
	require.NoError(t, json.Unmarshal([]byte(leaseFieldMap), &inline))

	result, err := f.server.handleFillTemplate(context.Background(), callRequest(map[string]any{
		"fieldmap":  inline,
		"form_data": `{"tenant": "Ada", "landlord": "Charles", "tenantSignature": "Ada"}`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.NotContains(t, resultText(t, result), "WARNING")
}

func TestServer_HandleFillTemplate_Errors(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"no field map", map[string]any{"form_data": map[string]any{}}, "INVALID_FIELD_MAP"},
		{"escape", map[string]any{"fieldmap_path": "../x.json", "form_data": map[string]any{}}, "SECURITY_RESTRICTION"},
		{"bad answers", map[string]any{"fieldmap_path": "lease.fieldmap.json", "form_data": map[string]any{"tenant": []any{"a"}}}, "unsupported answer type"},
		{"form data type", map[string]any{"fieldmap_path": "lease.fieldmap.json", "form_data": 7}, "form_data must be an object"},
		{"require valid", map[string]any{"fieldmap_path": "lease.fieldmap.json", "form_data": map[string]any{}, "require_valid": true}, "INVALID_FORM_DATA"},
		{"missing template", map[string]any{"fieldmap_path": "lease.fieldmap.json", "form_data": map[string]any{}, "template": "nope.pdf"}, "SOURCE_UNAVAILABLE"},
		{"inline map fails schema", map[string]any{"fieldmap": map[string]any{"fields": "none"}, "form_data": map[string]any{}}, "INVALID_FIELD_MAP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.server.handleFillTemplate(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestServer_HandleValidateFormData(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.server.handleValidateFormData(context.Background(), callRequest(map[string]any{
		"fieldmap_path": "lease.fieldmap.json",
		"form_data":     map[string]any{"tenant": "Ada", "landlord": ""},
	}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "2 of 3 required field(s) are missing")
	assert.Contains(t, text, "landlord: Landlord Name is required")
	assert.Contains(t, text, "tenantSignature: Tenant Signature is required")

	result, err = f.server.handleValidateFormData(context.Background(), callRequest(map[string]any{
		"fieldmap_path": "lease.fieldmap.json",
		"form_data":     map[string]any{"tenant": "Ada", "landlord": "Charles", "tenantSignature": "Ada"},
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "All 3 required field(s) have answers")
}

func TestServer_HandleGroupFields(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.server.handleGroupFields(context.Background(), callRequest(map[string]any{
		"fieldmap_path": "lease.fieldmap.json",
	}))
	require.NoError(t, err)
	text := resultText(t, result)

	assert.Contains(t, text, "4 field(s) in 3 section(s)")
	parties := strings.Index(text, "Parties (2)")
	terms := strings.Index(text, "Terms (1)")
	other := strings.Index(text, "Other (1)")
	require.True(t, parties >= 0 && terms >= 0 && other >= 0, text)
	assert.Less(t, parties, terms)
	assert.Less(t, terms, other)
	assert.Contains(t, text, "tenant [text] Tenant Name, page 1 (required)")
}

func TestServer_HandleInspectFieldMap(t *testing.T) {
	f := newFixture(t, nil)

	yamlMap := `
pdfTemplate: lease.pdf
fields:
  - {id: a, label: A, type: text, page: 1, x: 1, y: 1, width: 50}
  - {id: a, label: A again, type: text, page: 5, x: 1, y: 1, width: 50}
`
	result, err := f.server.handleInspectFieldMap(context.Background(), callRequest(map[string]any{
		"fieldmap":       yamlMap,
		"check_template": true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	text := resultText(t, result)
	assert.Contains(t, text, "Template pages: 2")
	assert.Contains(t, text, "2 problem(s)")
	assert.Contains(t, text, "duplicate id")
	assert.Contains(t, text, "beyond the template's 2 page(s)")
}

func TestServer_HandleServerInfo(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.server.handleServerInfo(context.Background(), callRequest(nil))
	require.NoError(t, err)
	text := resultText(t, result)

	assert.Contains(t, text, "test-overlay v9.9.9 - Server Information")
	assert.Contains(t, text, "/leases/lease.pdf")
	assert.Contains(t, text, "/leases/lease.fieldmap.json")
	for _, name := range descriptions.GetAllToolNames() {
		assert.Contains(t, text, name)
	}
}

func TestServer_DefaultFieldMap(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.DefaultFieldMap = "lease.fieldmap.json" })

	result, err := f.server.handleGroupFields(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.False(t, result.IsError, resultText(t, result))
}
