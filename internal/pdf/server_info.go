package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/a3tai/mcp-pdf-overlay/internal/descriptions"
)

// DirectoryCache provides TTL-based caching for directory contents
type DirectoryCache struct {
	entries map[string]*CacheEntry
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// CacheEntry represents a cached directory scan result
type CacheEntry struct {
	result     *ScanResult
	lastUpdate time.Time
}

// LazyDirectoryScanner walks a directory for templates and field maps, with limits
type LazyDirectoryScanner struct {
	fs         afero.Fs
	maxDepth   int
	fileLimit  int
	timeLimit  time.Duration
	skipHidden bool
}

// ScanResult represents the result of a directory scan
type ScanResult struct {
	Templates    []FileInfo
	FieldMaps    []FileInfo
	FromCache    bool
	ScanTime     time.Duration
	FilesScanned int
	Truncated    bool
}

// NewDirectoryCache creates a new directory cache with specified TTL
func NewDirectoryCache(ttl time.Duration) *DirectoryCache {
	return &DirectoryCache{
		entries: make(map[string]*CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a cached scan if it is still fresh
func (c *DirectoryCache) Get(path string) *ScanResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[path]
	if !exists || c.now().Sub(entry.lastUpdate) > c.ttl {
		return nil
	}

	cached := *entry.result
	cached.FromCache = true
	return &cached
}

// Set stores a scan result
func (c *DirectoryCache) Set(path string, result *ScanResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = &CacheEntry{
		result:     result,
		lastUpdate: c.now(),
	}
}

// Invalidate drops the cached scan for path
func (c *DirectoryCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// NewLazyDirectoryScanner creates a new lazy directory scanner
func NewLazyDirectoryScanner(fs afero.Fs, maxDepth, fileLimit int, timeLimit time.Duration) *LazyDirectoryScanner {
	return &LazyDirectoryScanner{
		fs:         fs,
		maxDepth:   maxDepth,
		fileLimit:  fileLimit,
		timeLimit:  timeLimit,
		skipHidden: true,
	}
}

// ScanDirectory collects templates (.pdf) and field maps (.json, .yaml, .yml)
// under root. A missing root yields an empty result.
func (s *LazyDirectoryScanner) ScanDirectory(ctx context.Context, root string) (*ScanResult, error) {
	startTime := time.Now()
	result := &ScanResult{
		Templates: []FileInfo{},
		FieldMaps: []FileInfo{},
	}

	err := s.scanRecursive(ctx, root, 0, result, startTime)
	result.ScanTime = time.Since(startTime)
	return result, err
}

// scanRecursive performs the actual recursive directory traversal
func (s *LazyDirectoryScanner) scanRecursive(ctx context.Context, path string, depth int, result *ScanResult, startTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.maxDepth > 0 && depth >= s.maxDepth {
		return nil
	}

	entries, err := afero.ReadDir(s.fs, path)
	if err != nil {
		return nil // Skip directories we can't read
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.limitReached(result, startTime) {
			result.Truncated = true
			return nil
		}

		result.FilesScanned++
		name := entry.Name()
		entryPath := filepath.Join(path, name)

		if s.skipHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if entry.Mode()&os.ModeSymlink != 0 {
			continue
		}

		if entry.IsDir() {
			if err := s.scanRecursive(ctx, entryPath, depth+1, result, startTime); err != nil {
				return err
			}
			continue
		}

		info := FileInfo{
			Name:         name,
			Path:         entryPath,
			Size:         entry.Size(),
			ModifiedTime: entry.ModTime().Format("2006-01-02 15:04:05"),
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".pdf":
			result.Templates = append(result.Templates, info)
		case ".json", ".yaml", ".yml":
			result.FieldMaps = append(result.FieldMaps, info)
		}
	}

	return nil
}

func (s *LazyDirectoryScanner) limitReached(result *ScanResult, startTime time.Time) bool {
	if s.fileLimit > 0 && len(result.Templates)+len(result.FieldMaps) >= s.fileLimit {
		return true
	}
	return s.timeLimit > 0 && time.Since(startTime) > s.timeLimit
}

// ServerInfo reports configuration, directory contents and usage guidance.
// Directory scan failures degrade to empty listings.
func (s *Service) ServerInfo(ctx context.Context, serverName, version string) (*PDFServerInfoResult, error) {
	dir := s.opts.TemplateDirectory

	scan := s.dirCache.Get(dir)
	if scan == nil {
		scanCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var err error
		scan, err = s.scanner.ScanDirectory(scanCtx, dir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("template directory scan incomplete", "dir", dir, "error", err)
		} else {
			s.dirCache.Set(dir, scan)
		}
	}

	return &PDFServerInfoResult{
		ServerName:        serverName,
		Version:           version,
		TemplateDirectory: dir,
		OutputDirectory:   s.opts.OutputDirectory,
		MaxFileSize:       s.opts.MaxFileSize,
		AllowRemote:       s.opts.AllowRemote,
		AvailableTools:    availableTools(),
		Templates:         scan.Templates,
		FieldMaps:         scan.FieldMaps,
		UsageGuidance:     s.usageGuidance(),
	}, nil
}

// availableTools returns the list of available tools
func availableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        descriptions.ToolFillTemplate,
			Description: descriptions.GetToolDescription(descriptions.ToolFillTemplate),
			Usage:       "Use this tool to produce a completed PDF from a template, a field map and answers.",
			Parameters: "fieldmap_path or fieldmap (one required): field map file or inline JSON object, " +
				"form_data (required): answers keyed by field id, template (optional): overrides the field map's pdfTemplate, " +
				"require_valid (optional): refuse to fill when required answers are missing",
		},
		{
			Name:        descriptions.ToolValidateFormData,
			Description: descriptions.GetToolDescription(descriptions.ToolValidateFormData),
			Usage:       "Use this tool to find required fields that have no answer.",
			Parameters:  "fieldmap_path or fieldmap (one required), form_data (required)",
		},
		{
			Name:        descriptions.ToolGroupFields,
			Description: descriptions.GetToolDescription(descriptions.ToolGroupFields),
			Usage:       "Use this tool to walk a form section by section.",
			Parameters:  "fieldmap_path or fieldmap (one required)",
		},
		{
			Name:        descriptions.ToolInspectFieldMap,
			Description: descriptions.GetToolDescription(descriptions.ToolInspectFieldMap),
			Usage:       "Use this tool to summarize a field map and list authoring problems.",
			Parameters:  "fieldmap_path or fieldmap (one required), check_template (optional): compare pages with the template",
		},
		{
			Name:        descriptions.ToolServerInfo,
			Description: descriptions.GetToolDescription(descriptions.ToolServerInfo),
			Usage:       "Use this tool to get server configuration and the available templates and field maps.",
			Parameters:  "No parameters required",
		},
	}
}

func (s *Service) usageGuidance() string {
	remote := "disabled"
	if s.opts.AllowRemote {
		remote = "enabled"
	}

	return `PDF Overlay MCP Server Usage Guide:

1. DISCOVER:
   - Use 'pdf_server_info' to list templates and field maps in the template directory

2. CHECK THE FIELD MAP:
   - Use 'pdf_inspect_fieldmap' with check_template=true to catch fields that would be skipped

3. COLLECT ANSWERS:
   - Use 'pdf_group_fields' to ask for answers one section at a time
   - Use 'pdf_validate_form_data' to list required fields that are still missing

4. FILL:
   - Use 'pdf_fill_template'; the filled PDF is written to the output directory
   - The response lists placed fields and skipped fields with a reason

IMPORTANT NOTES:
- Coordinates are PDF points from the bottom-left corner of the page
- Checkboxes are checked by true, "true" or "yes" (any case)
- Paths are relative to the template directory and must stay inside it
- Remote (http/https) templates are ` + remote + `
- Templates up to ` + fmt.Sprintf("%d", s.opts.MaxFileSize/(1024*1024)) + `MB are accepted`
}
