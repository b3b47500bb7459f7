// Package security keeps template and field map lookups inside the
// configured directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

// PathValidator provides security validation for file paths
type PathValidator struct {
	fs                  afero.Fs
	configuredDirectory string
}

// NewPathValidator creates a new path validator for the given directory on fs
func NewPathValidator(fs afero.Fs, configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	dir := filepath.Clean(configuredDirectory)
	if isOsFs(fs) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
		}
		dir = abs
	}

	// The directory does not have to exist yet; it may be created later
	return &PathValidator{
		fs:                  fs,
		configuredDirectory: dir,
	}, nil
}

// GetConfiguredDirectory returns the configured directory path
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// ValidatePath checks if a path is within the configured directory
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeSecurityRestriction, "path cannot be empty")
	}

	isWithin, err := v.IsPathWithinDirectory(path)
	if err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeSecurityRestriction, err).
			WithContext("path validation failed").WithSource(path)
	}

	if !isWithin {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeSecurityRestriction,
			"path is outside configured directory").WithSource(path)
	}

	return nil
}

// IsPathWithinDirectory checks if a path is within the configured directory.
// Relative paths are taken relative to that directory.
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	cleanPath := v.absolute(path)
	cleanDir := v.configuredDirectory

	if !within(cleanPath, cleanDir) {
		return false, nil
	}

	// Symlinks only exist on the real filesystem
	if !isOsFs(v.fs) {
		return true, nil
	}

	realDir, err := resolveExisting(cleanDir)
	if err != nil {
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	resolved, err := resolveExisting(cleanPath)
	if err != nil {
		return false, fmt.Errorf("failed to resolve symlinks: %w", err)
	}
	return within(resolved, realDir), nil
}

// NormalizePath returns a cleaned, absolute path within the configured directory
func (v *PathValidator) NormalizePath(path string) (string, error) {
	if path == "" {
		return "", pdferrors.NewPDFError(pdferrors.ErrorTypeSecurityRestriction, "path cannot be empty")
	}

	abs := v.absolute(path)
	if err := v.ValidatePath(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// SanitizePath removes null bytes and normalizes the path
func (v *PathValidator) SanitizePath(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	return v.NormalizePath(path)
}

func (v *PathValidator) absolute(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}
	return filepath.Clean(path)
}

// resolveExisting evaluates symlinks in every component of path. Components
// that do not exist yet are appended unresolved to their deepest existing
// ancestor.
func resolveExisting(path string) (string, error) {
	var missing []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		missing = append([]string{filepath.Base(current)}, missing...)
		current = parent
	}
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func isOsFs(fs afero.Fs) bool {
	_, ok := fs.(*afero.OsFs)
	return ok
}
