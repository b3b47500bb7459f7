package pdf

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-overlay/internal/descriptions"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/pdftest"
)

func TestServerInfo(t *testing.T) {
	svc, fs := newTestService(t, nil)
	require.NoError(t, fs.MkdirAll("/forms/state/.archive", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/forms/state/nv.pdf", pdftest.MinimalPDF(1), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/forms/state/nv.fieldmap.yaml", []byte("fields: []\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/forms/state/.archive/old.pdf", pdftest.MinimalPDF(1), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/forms/readme.txt", []byte("hi"), 0o644))

	result, err := svc.ServerInfo(context.Background(), "test-overlay-server", "1.0.0-test")
	require.NoError(t, err)

	assert.Equal(t, "test-overlay-server", result.ServerName)
	assert.Equal(t, "1.0.0-test", result.Version)
	assert.Equal(t, "/forms", result.TemplateDirectory)
	assert.Equal(t, "/out", result.OutputDirectory)
	assert.Equal(t, int64(1024*1024), result.MaxFileSize)
	assert.False(t, result.AllowRemote)

	var templates, maps []string
	for _, f := range result.Templates {
		templates = append(templates, f.Path)
	}
	for _, f := range result.FieldMaps {
		maps = append(maps, f.Path)
	}
	assert.ElementsMatch(t, []string{"/forms/driver.pdf", "/forms/state/nv.pdf"}, templates)
	assert.ElementsMatch(t, []string{"/forms/driver.fieldmap.json", "/forms/state/nv.fieldmap.yaml"}, maps)

	require.Len(t, result.AvailableTools, len(descriptions.GetAllToolNames()))
	for _, tool := range result.AvailableTools {
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.NotEqual(t, "Tool description not available", tool.Description, tool.Name)
	}

	assert.Contains(t, result.UsageGuidance, "pdf_fill_template")
	assert.Contains(t, result.UsageGuidance, "templates are disabled")
	assert.Contains(t, result.UsageGuidance, "Templates up to 1MB")
}

func TestServerInfo_MissingDirectory(t *testing.T) {
	svc, err := NewService(Options{
		TemplateDirectory: "/nowhere",
		Fs:                afero.NewMemMapFs(),
	})
	require.NoError(t, err)

	result, err := svc.ServerInfo(context.Background(), "s", "v")
	require.NoError(t, err)
	assert.Empty(t, result.Templates)
	assert.Empty(t, result.FieldMaps)
}

func TestDirectoryCache(t *testing.T) {
	cache := NewDirectoryCache(time.Minute)
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	assert.Nil(t, cache.Get("/forms"))

	cache.Set("/forms", &ScanResult{Templates: []FileInfo{{Name: "a.pdf"}}})
	got := cache.Get("/forms")
	require.NotNil(t, got)
	assert.True(t, got.FromCache)
	assert.Len(t, got.Templates, 1)

	now = now.Add(2 * time.Minute)
	assert.Nil(t, cache.Get("/forms"), "entries expire after the TTL")

	cache.Set("/forms", &ScanResult{})
	cache.Invalidate("/forms")
	assert.Nil(t, cache.Get("/forms"))
}

func TestLazyDirectoryScanner_Limits(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/forms/a/b/c", 0o755))
	for _, p := range []string{"/forms/1.pdf", "/forms/2.pdf", "/forms/a/3.pdf", "/forms/a/b/4.pdf", "/forms/a/b/c/5.pdf"} {
		require.NoError(t, afero.WriteFile(fs, p, []byte("%PDF"), 0o644))
	}

	shallow, err := NewLazyDirectoryScanner(fs, 2, 0, 0).ScanDirectory(context.Background(), "/forms")
	require.NoError(t, err)
	assert.Len(t, shallow.Templates, 3)
	assert.False(t, shallow.Truncated)

	limited, err := NewLazyDirectoryScanner(fs, 0, 2, 0).ScanDirectory(context.Background(), "/forms")
	require.NoError(t, err)
	assert.Len(t, limited.Templates, 2)
	assert.True(t, limited.Truncated)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLazyDirectoryScanner(fs, 0, 0, 0).ScanDirectory(ctx, "/forms")
	assert.ErrorIs(t, err, context.Canceled)
}
